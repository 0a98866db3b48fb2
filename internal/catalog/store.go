package catalog

import (
	"context"
	"database/sql"
	"errors"

	"github.com/learnforge/learnforge-lms/internal/db"
	"github.com/learnforge/learnforge-lms/internal/lmserr"
)

// Store persists the content hierarchy: courses, modules, lessons and video
// lessons. Mutations authorize against the owning professor before writing.
type Store struct {
	db *sql.DB
}

func NewStore(dbh *sql.DB) *Store { return &Store{db: dbh} }

type CreateCourseInput struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// CreateCourse creates a course owned by the acting professor.
func (s *Store) CreateCourse(ctx context.Context, in CreateCourseInput, actingUser string) (*Course, error) {
	if in.Title == "" {
		return nil, lmserr.Validationf("title required")
	}
	uid, role, err := s.lookupUser(ctx, actingUser)
	if err != nil {
		return nil, err
	}
	if role != "professor" {
		return nil, lmserr.Forbiddenf("user %q is not a professor", actingUser)
	}
	c := &Course{Title: in.Title, Description: in.Description, ProfessorID: uid}
	err = s.db.QueryRowContext(ctx,
		`INSERT INTO courses (title, description, professor_id) VALUES ($1,$2,$3) RETURNING id`,
		c.Title, c.Description, c.ProfessorID).Scan(&c.ID)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return nil, lmserr.Conflictf("course title %q already exists", in.Title)
		}
		return nil, err
	}
	return c, nil
}

func (s *Store) ListCourses(ctx context.Context) ([]Course, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, description, professor_id FROM courses ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Course{}
	for rows.Next() {
		var c Course
		if err := rows.Scan(&c.ID, &c.Title, &c.Description, &c.ProfessorID); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

type CreateModuleInput struct {
	Title    string `json:"title"`
	CourseID int64  `json:"course_id"`
}

func (s *Store) CreateModule(ctx context.Context, in CreateModuleInput, actingUser string) (*Module, error) {
	if in.Title == "" {
		return nil, lmserr.Validationf("title required")
	}
	if err := s.AuthorizeCourseMutation(ctx, actingUser, in.CourseID); err != nil {
		return nil, err
	}
	m := &Module{Title: in.Title, CourseID: in.CourseID}
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO modules (title, course_id) VALUES ($1,$2) RETURNING id`,
		m.Title, m.CourseID).Scan(&m.ID)
	if err != nil {
		return nil, err
	}
	return m, nil
}

type UpdateModuleInput struct {
	Title    string `json:"title"`
	CourseID int64  `json:"course_id"`
}

// UpdateModule retitles a module and may move it to another course. Moving
// requires ownership of the target course as well as the current one.
func (s *Store) UpdateModule(ctx context.Context, moduleID int64, in UpdateModuleInput, actingUser string) (*Module, error) {
	if in.Title == "" {
		return nil, lmserr.Validationf("title required")
	}
	if err := s.AuthorizeModuleMutation(ctx, actingUser, moduleID); err != nil {
		return nil, err
	}
	if err := s.AuthorizeCourseMutation(ctx, actingUser, in.CourseID); err != nil {
		return nil, err
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE modules SET title=$1, course_id=$2 WHERE id=$3`,
		in.Title, in.CourseID, moduleID)
	if err != nil {
		return nil, err
	}
	return &Module{ID: moduleID, Title: in.Title, CourseID: in.CourseID}, nil
}

// DeleteModule removes a module; its lessons go with it via the schema's
// cascade. Completions referencing the module are left in place.
func (s *Store) DeleteModule(ctx context.Context, moduleID int64, actingUser string) error {
	if err := s.AuthorizeModuleMutation(ctx, actingUser, moduleID); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `DELETE FROM modules WHERE id=$1`, moduleID)
	return err
}

func (s *Store) ListModules(ctx context.Context) ([]Module, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, title, course_id FROM modules ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Module{}
	for rows.Next() {
		var m Module
		if err := rows.Scan(&m.ID, &m.Title, &m.CourseID); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

type CreateLessonInput struct {
	Title    string      `json:"title"`
	Kind     ContentKind `json:"content_kind"`
	ModuleID int64       `json:"module_id"`
}

func (s *Store) CreateLesson(ctx context.Context, in CreateLessonInput, actingUser string) (*Lesson, error) {
	if in.Title == "" {
		return nil, lmserr.Validationf("title required")
	}
	if !in.Kind.Valid() {
		return nil, lmserr.Validationf("content_kind must be %q or %q", KindVideo, KindQuiz)
	}
	if err := s.AuthorizeModuleMutation(ctx, actingUser, in.ModuleID); err != nil {
		return nil, err
	}
	l := &Lesson{Title: in.Title, Kind: in.Kind, ModuleID: in.ModuleID}
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO lessons (title, content_kind, module_id) VALUES ($1,$2,$3) RETURNING id`,
		l.Title, string(l.Kind), l.ModuleID).Scan(&l.ID)
	if err != nil {
		return nil, err
	}
	return l, nil
}

type UpdateLessonInput struct {
	Title    string `json:"title"`
	ModuleID int64  `json:"module_id"`
}

// UpdateLesson retitles a lesson and may move it to another module the acting
// professor owns. The content kind is fixed at creation; it determines which
// child entity may exist and is not updatable.
func (s *Store) UpdateLesson(ctx context.Context, lessonID int64, in UpdateLessonInput, actingUser string) (*Lesson, error) {
	if in.Title == "" {
		return nil, lmserr.Validationf("title required")
	}
	if err := s.AuthorizeLessonMutation(ctx, actingUser, lessonID); err != nil {
		return nil, err
	}
	if err := s.AuthorizeModuleMutation(ctx, actingUser, in.ModuleID); err != nil {
		return nil, err
	}
	kind, err := s.lessonKind(ctx, lessonID)
	if err != nil {
		return nil, err
	}
	_, err = s.db.ExecContext(ctx,
		`UPDATE lessons SET title=$1, module_id=$2 WHERE id=$3`,
		in.Title, in.ModuleID, lessonID)
	if err != nil {
		return nil, err
	}
	return &Lesson{ID: lessonID, Title: in.Title, Kind: kind, ModuleID: in.ModuleID}, nil
}

// DeleteLesson removes a lesson and, via cascade, its video or quiz subtree.
func (s *Store) DeleteLesson(ctx context.Context, lessonID int64, actingUser string) error {
	if err := s.AuthorizeLessonMutation(ctx, actingUser, lessonID); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `DELETE FROM lessons WHERE id=$1`, lessonID)
	return err
}

func (s *Store) ListLessons(ctx context.Context) ([]Lesson, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, content_kind, module_id FROM lessons ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Lesson{}
	for rows.Next() {
		var l Lesson
		var kind string
		if err := rows.Scan(&l.ID, &l.Title, &kind, &l.ModuleID); err != nil {
			return nil, err
		}
		l.Kind = ContentKind(kind)
		out = append(out, l)
	}
	return out, rows.Err()
}

// CreateVideo attaches the video URL to a video lesson. A lesson carries at
// most one video, and only lessons of kind video may carry one.
func (s *Store) CreateVideo(ctx context.Context, lessonID int64, videoURL, actingUser string) (*LessonVideo, error) {
	if videoURL == "" {
		return nil, lmserr.Validationf("video_url required")
	}
	if err := s.AuthorizeLessonMutation(ctx, actingUser, lessonID); err != nil {
		return nil, err
	}
	kind, err := s.lessonKind(ctx, lessonID)
	if err != nil {
		return nil, err
	}
	if kind != KindVideo {
		return nil, lmserr.Validationf("lesson %d is not a video lesson", lessonID)
	}
	v := &LessonVideo{LessonID: lessonID, VideoURL: videoURL}
	err = s.db.QueryRowContext(ctx,
		`INSERT INTO lesson_videos (lesson_id, video_url) VALUES ($1,$2) RETURNING id`,
		v.LessonID, v.VideoURL).Scan(&v.ID)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return nil, lmserr.Conflictf("lesson %d already has a video", lessonID)
		}
		return nil, err
	}
	return v, nil
}

// LessonKind reports the content kind of a lesson.
func (s *Store) LessonKind(ctx context.Context, lessonID int64) (ContentKind, error) {
	return s.lessonKind(ctx, lessonID)
}

func (s *Store) lessonKind(ctx context.Context, lessonID int64) (ContentKind, error) {
	var kind string
	err := s.db.QueryRowContext(ctx,
		`SELECT content_kind FROM lessons WHERE id=$1`, lessonID).Scan(&kind)
	if errors.Is(err, sql.ErrNoRows) {
		return "", lmserr.NotFoundf("lesson %d not found", lessonID)
	}
	if err != nil {
		return "", err
	}
	return ContentKind(kind), nil
}

func (s *Store) lookupUser(ctx context.Context, username string) (int64, string, error) {
	var id int64
	var role string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, role FROM users WHERE username=$1`, username).Scan(&id, &role)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, "", lmserr.NotFoundf("user %q not found", username)
	}
	if err != nil {
		return 0, "", err
	}
	return id, role, nil
}
