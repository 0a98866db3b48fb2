package quiz

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/learnforge/learnforge-lms/internal/catalog"
	"github.com/learnforge/learnforge-lms/internal/db"
	"github.com/learnforge/learnforge-lms/internal/lmserr"
)

// Authorizer walks the content hierarchy to the owning professor.
type Authorizer interface {
	AuthorizeLessonMutation(ctx context.Context, username string, lessonID int64) error
	AuthorizeQuizMutation(ctx context.Context, username string, quizID int64) error
	LessonKind(ctx context.Context, lessonID int64) (catalog.ContentKind, error)
}

// Store is the quiz authoring and attempt-scoring engine.
type Store struct {
	db    *sql.DB
	authz Authorizer
}

func NewStore(dbh *sql.DB, authz Authorizer) *Store {
	return &Store{db: dbh, authz: authz}
}

// CreateQuiz persists a quiz with its question/option tree in one
// transaction. Every question must have exactly one correct option; any
// violation rejects the whole batch and nothing is persisted.
func (s *Store) CreateQuiz(ctx context.Context, lessonID int64, questions []QuestionInput, actingUser string) (q *Quiz, err error) {
	if err := s.authz.AuthorizeLessonMutation(ctx, actingUser, lessonID); err != nil {
		return nil, err
	}
	kind, err := s.authz.LessonKind(ctx, lessonID)
	if err != nil {
		return nil, err
	}
	if kind != catalog.KindQuiz {
		return nil, lmserr.Validationf("lesson %d is not a quiz lesson", lessonID)
	}
	for i, in := range questions {
		if err := validateQuestion(in); err != nil {
			return nil, lmserr.Validationf("question %d: %v", i+1, err)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		} else {
			err = tx.Commit()
		}
	}()

	q = &Quiz{LessonID: lessonID}
	err = tx.QueryRowContext(ctx,
		`INSERT INTO lesson_quizzes (lesson_id) VALUES ($1) RETURNING id`,
		lessonID).Scan(&q.ID)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return nil, lmserr.Conflictf("lesson %d already has a quiz", lessonID)
		}
		return nil, err
	}
	for _, in := range questions {
		var qq *Question
		qq, err = insertQuestion(ctx, tx, q.ID, in)
		if err != nil {
			return nil, err
		}
		q.Questions = append(q.Questions, *qq)
	}
	return q, nil
}

// AddQuestion appends one question to an existing quiz, under the same
// exactly-one-correct invariant. Existing questions are untouched.
func (s *Store) AddQuestion(ctx context.Context, quizID int64, in QuestionInput, actingUser string) (q *Question, err error) {
	if err := s.authz.AuthorizeQuizMutation(ctx, actingUser, quizID); err != nil {
		return nil, err
	}
	if err := validateQuestion(in); err != nil {
		return nil, lmserr.Validationf("%v", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		} else {
			err = tx.Commit()
		}
	}()

	return insertQuestion(ctx, tx, quizID, in)
}

func insertQuestion(ctx context.Context, tx *sql.Tx, quizID int64, in QuestionInput) (*Question, error) {
	q := &Question{QuizID: quizID, Text: in.Text}
	err := tx.QueryRowContext(ctx,
		`INSERT INTO quiz_questions (quiz_id, question_text) VALUES ($1,$2) RETURNING id`,
		quizID, in.Text).Scan(&q.ID)
	if err != nil {
		return nil, err
	}
	for _, o := range in.Options {
		opt := Option{QuestionID: q.ID, Text: o.Text, IsCorrect: o.IsCorrect}
		err = tx.QueryRowContext(ctx,
			`INSERT INTO quiz_options (question_id, option_text, is_correct) VALUES ($1,$2,$3) RETURNING id`,
			q.ID, o.Text, o.IsCorrect).Scan(&opt.ID)
		if err != nil {
			return nil, err
		}
		q.Options = append(q.Options, opt)
	}
	return q, nil
}

func validateQuestion(in QuestionInput) error {
	if in.Text == "" {
		return errors.New("question text required")
	}
	if len(in.Options) == 0 {
		return errors.New("at least one option required")
	}
	correct := 0
	for _, o := range in.Options {
		if o.Text == "" {
			return errors.New("option text required")
		}
		if o.IsCorrect {
			correct++
		}
	}
	if correct != 1 {
		return errors.New("exactly one option must be correct")
	}
	return nil
}

// Questions returns the quiz-taker view of a quiz. A quiz with zero questions
// is treated as not found; a published quiz is assumed to have content.
func (s *Store) Questions(ctx context.Context, quizID int64) ([]QuestionView, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, question_text FROM quiz_questions WHERE quiz_id=$1 ORDER BY id`, quizID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []QuestionView
	for rows.Next() {
		var q QuestionView
		if err := rows.Scan(&q.ID, &q.Text); err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, lmserr.NotFoundf("quiz %d has no questions", quizID)
	}
	for i := range out {
		opts, err := s.optionViews(ctx, out[i].ID)
		if err != nil {
			return nil, err
		}
		out[i].Options = opts
	}
	return out, nil
}

func (s *Store) optionViews(ctx context.Context, questionID int64) ([]OptionView, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, option_text FROM quiz_options WHERE question_id=$1 ORDER BY id`, questionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []OptionView{}
	for rows.Next() {
		var o OptionView
		if err := rows.Scan(&o.ID, &o.Text); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// SubmitAttempt records the single attempt a user gets on a quiz: one answer
// row per selected option with correctness snapshotted at submission time,
// and the percentage score on the attempt. Attempt, answers and score persist
// together or not at all.
//
// The selection is taken as given, one option per answered question; the
// engine does not reject duplicate selections for a question or unanswered
// questions. Unanswered questions simply score zero.
func (s *Store) SubmitAttempt(ctx context.Context, username string, quizID int64, selectedOptionIDs []int64) (a *Attempt, err error) {
	var userID int64
	err = s.db.QueryRowContext(ctx,
		`SELECT id FROM users WHERE username=$1`, username).Scan(&userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, lmserr.NotFoundf("user %q not found", username)
	}
	if err != nil {
		return nil, err
	}

	var lessonID int64
	err = s.db.QueryRowContext(ctx,
		`SELECT lesson_id FROM lesson_quizzes WHERE id=$1`, quizID).Scan(&lessonID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, lmserr.NotFoundf("quiz %d not found", quizID)
	}
	if err != nil {
		return nil, err
	}

	var total int
	err = s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM quiz_questions WHERE quiz_id=$1`, quizID).Scan(&total)
	if err != nil {
		return nil, err
	}

	// Advisory duplicate check for a friendly message; the unique index on
	// (user_id, quiz_id) is what actually holds under concurrency.
	var exists int
	err = s.db.QueryRowContext(ctx,
		`SELECT 1 FROM quiz_attempts WHERE user_id=$1 AND quiz_id=$2`, userID, quizID).Scan(&exists)
	if err == nil {
		return nil, lmserr.Conflictf("quiz %d already attempted", quizID)
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		} else {
			err = tx.Commit()
		}
	}()

	a = &Attempt{UserID: userID, QuizID: quizID, AttemptDate: time.Now().Format("2006-01-02")}
	err = tx.QueryRowContext(ctx,
		`INSERT INTO quiz_attempts (user_id, quiz_id, attempt_date, score) VALUES ($1,$2,$3,0) RETURNING id`,
		a.UserID, a.QuizID, a.AttemptDate).Scan(&a.ID)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return nil, lmserr.Conflictf("quiz %d already attempted", quizID)
		}
		return nil, err
	}

	correct := 0
	for _, optID := range selectedOptionIDs {
		var questionID int64
		var isCorrect bool
		err = tx.QueryRowContext(ctx,
			`SELECT question_id, is_correct FROM quiz_options WHERE id=$1`, optID).Scan(&questionID, &isCorrect)
		if errors.Is(err, sql.ErrNoRows) {
			err = lmserr.NotFoundf("option %d not found", optID)
			return nil, err
		}
		if err != nil {
			return nil, err
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO quiz_answers (attempt_id, question_id, selected_option_id, is_correct) VALUES ($1,$2,$3,$4)`,
			a.ID, questionID, optID, isCorrect)
		if err != nil {
			return nil, err
		}
		if isCorrect {
			correct++
		}
	}

	if total > 0 {
		a.Score = 100 * correct / total
	}
	_, err = tx.ExecContext(ctx,
		`UPDATE quiz_attempts SET score=$1 WHERE id=$2`, a.Score, a.ID)
	if err != nil {
		return nil, err
	}
	return a, nil
}
