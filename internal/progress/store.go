// Package progress tracks one-time course enrollment and lesson/module
// completion. Completions are monotonic markers; they are never revoked.
package progress

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/learnforge/learnforge-lms/internal/db"
	"github.com/learnforge/learnforge-lms/internal/lmserr"
)

type Enrollment struct {
	ID               int64  `json:"id"`
	UserID           int64  `json:"user_id"`
	CourseID         int64  `json:"course_id"`
	RegistrationDate string `json:"registration_date"`
}

type Completion struct {
	ID             int64  `json:"id"`
	UserID         int64  `json:"user_id"`
	TargetID       int64  `json:"target_id"`
	CompletionDate string `json:"completion_date"`
}

type Store struct {
	db *sql.DB
}

func NewStore(dbh *sql.DB) *Store { return &Store{db: dbh} }

// Enroll records a user's one-time enrollment in a course, dated today.
func (s *Store) Enroll(ctx context.Context, username string, courseID int64) (*Enrollment, error) {
	userID, err := s.userID(ctx, username)
	if err != nil {
		return nil, err
	}
	var exists int
	err = s.db.QueryRowContext(ctx,
		`SELECT 1 FROM courses WHERE id=$1`, courseID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, lmserr.NotFoundf("course %d not found", courseID)
	}
	if err != nil {
		return nil, err
	}
	err = s.db.QueryRowContext(ctx,
		`SELECT 1 FROM course_enrollments WHERE user_id=$1 AND course_id=$2`, userID, courseID).Scan(&exists)
	if err == nil {
		return nil, lmserr.Conflictf("already enrolled in course %d", courseID)
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	e := &Enrollment{UserID: userID, CourseID: courseID, RegistrationDate: today()}
	err = s.db.QueryRowContext(ctx,
		`INSERT INTO course_enrollments (user_id, course_id, registration_date) VALUES ($1,$2,$3) RETURNING id`,
		e.UserID, e.CourseID, e.RegistrationDate).Scan(&e.ID)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return nil, lmserr.Conflictf("already enrolled in course %d", courseID)
		}
		return nil, err
	}
	return e, nil
}

// CompleteModule records a one-time module completion. The module itself is
// not looked up; a completion may reference a target that no longer exists.
func (s *Store) CompleteModule(ctx context.Context, username string, moduleID int64) (*Completion, error) {
	return s.complete(ctx, username, moduleID, "module_completions", "module_id")
}

// CompleteLesson records a one-time lesson completion, with the same
// no-target-lookup behavior as CompleteModule.
func (s *Store) CompleteLesson(ctx context.Context, username string, lessonID int64) (*Completion, error) {
	return s.complete(ctx, username, lessonID, "lesson_completions", "lesson_id")
}

func (s *Store) complete(ctx context.Context, username string, targetID int64, table, col string) (*Completion, error) {
	userID, err := s.userID(ctx, username)
	if err != nil {
		return nil, err
	}
	var exists int
	err = s.db.QueryRowContext(ctx,
		`SELECT 1 FROM `+table+` WHERE user_id=$1 AND `+col+`=$2`, userID, targetID).Scan(&exists)
	if err == nil {
		return nil, lmserr.Conflictf("already completed")
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	c := &Completion{UserID: userID, TargetID: targetID, CompletionDate: today()}
	err = s.db.QueryRowContext(ctx,
		`INSERT INTO `+table+` (user_id, `+col+`, completion_date) VALUES ($1,$2,$3) RETURNING id`,
		c.UserID, c.TargetID, c.CompletionDate).Scan(&c.ID)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return nil, lmserr.Conflictf("already completed")
		}
		return nil, err
	}
	return c, nil
}

func (s *Store) userID(ctx context.Context, username string) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx,
		`SELECT id FROM users WHERE username=$1`, username).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, lmserr.NotFoundf("user %q not found", username)
	}
	if err != nil {
		return 0, err
	}
	return id, nil
}

func today() string { return time.Now().Format("2006-01-02") }
