package catalog

import (
	"context"
	"database/sql"
	"errors"

	"github.com/learnforge/learnforge-lms/internal/lmserr"
)

// Mutations anywhere in the hierarchy are authorized by walking parent
// references up to the course and comparing its professor to the acting user.
// Existence is checked before ownership at every level, so a dangling
// reference yields not-found rather than forbidden.

func (s *Store) AuthorizeCourseMutation(ctx context.Context, username string, courseID int64) error {
	uid, _, err := s.lookupUser(ctx, username)
	if err != nil {
		return err
	}
	var profID int64
	err = s.db.QueryRowContext(ctx,
		`SELECT professor_id FROM courses WHERE id=$1`, courseID).Scan(&profID)
	if errors.Is(err, sql.ErrNoRows) {
		return lmserr.NotFoundf("course %d not found", courseID)
	}
	if err != nil {
		return err
	}
	if profID != uid {
		return lmserr.Forbiddenf("user %q does not own course %d", username, courseID)
	}
	return nil
}

func (s *Store) AuthorizeModuleMutation(ctx context.Context, username string, moduleID int64) error {
	var courseID int64
	err := s.db.QueryRowContext(ctx,
		`SELECT course_id FROM modules WHERE id=$1`, moduleID).Scan(&courseID)
	if errors.Is(err, sql.ErrNoRows) {
		return lmserr.NotFoundf("module %d not found", moduleID)
	}
	if err != nil {
		return err
	}
	return s.AuthorizeCourseMutation(ctx, username, courseID)
}

func (s *Store) AuthorizeLessonMutation(ctx context.Context, username string, lessonID int64) error {
	var moduleID int64
	err := s.db.QueryRowContext(ctx,
		`SELECT module_id FROM lessons WHERE id=$1`, lessonID).Scan(&moduleID)
	if errors.Is(err, sql.ErrNoRows) {
		return lmserr.NotFoundf("lesson %d not found", lessonID)
	}
	if err != nil {
		return err
	}
	return s.AuthorizeModuleMutation(ctx, username, moduleID)
}

func (s *Store) AuthorizeQuizMutation(ctx context.Context, username string, quizID int64) error {
	var lessonID int64
	err := s.db.QueryRowContext(ctx,
		`SELECT lesson_id FROM lesson_quizzes WHERE id=$1`, quizID).Scan(&lessonID)
	if errors.Is(err, sql.ErrNoRows) {
		return lmserr.NotFoundf("quiz %d not found", quizID)
	}
	if err != nil {
		return err
	}
	return s.AuthorizeLessonMutation(ctx, username, lessonID)
}
