package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	api "github.com/learnforge/learnforge-lms/internal/api/http"
	"github.com/learnforge/learnforge-lms/internal/auth"
	"github.com/learnforge/learnforge-lms/internal/catalog"
	"github.com/learnforge/learnforge-lms/internal/db"
	"github.com/learnforge/learnforge-lms/internal/progress"
	"github.com/learnforge/learnforge-lms/internal/quiz"
	"github.com/learnforge/learnforge-lms/internal/rbac"
)

// testRouter wires the same route table as cmd/gateway against a throwaway
// sqlite db.
func testRouter(t *testing.T) http.Handler {
	t.Helper()
	dbh, err := db.Open(context.Background(), db.DriverSQLite, "file:"+filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = dbh.Close() })

	authSvc := auth.NewService(dbh, "test-secret", 30*time.Minute)
	catalogStore := catalog.NewStore(dbh)
	quizStore := quiz.NewStore(dbh, catalogStore)
	progressStore := progress.NewStore(dbh)

	r := chi.NewRouter()
	r.Post("/auth/register", api.RegisterHandler(authSvc))
	r.Post("/auth/login", api.LoginHandler(authSvc))
	r.Group(func(pr chi.Router) {
		pr.Use(auth.Middleware(authSvc))
		pr.With(rbac.Require("course:create")).Post("/courses", api.CreateCourseHandler(catalogStore))
		pr.With(rbac.Require("course:enroll")).Post("/courses/{courseID}/enrollments", api.EnrollHandler(progressStore))
		pr.With(rbac.Require("module:create")).Post("/modules", api.CreateModuleHandler(catalogStore))
		pr.With(rbac.Require("lesson:create")).Post("/lessons", api.CreateLessonHandler(catalogStore))
		pr.With(rbac.Require("quiz:create")).Post("/lessons/{lessonID}/quiz", api.CreateQuizHandler(quizStore))
		pr.With(rbac.Require("quiz:view")).Get("/quizzes/{quizID}/questions", api.GetQuizQuestionsHandler(quizStore))
		pr.With(rbac.Require("quiz:take")).Post("/quizzes/{quizID}/attempts", api.SubmitAttemptHandler(quizStore))
	})
	return r
}

func do(t *testing.T, h http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func register(t *testing.T, h http.Handler, username, role string) {
	t.Helper()
	w := do(t, h, "POST", "/auth/register", "", map[string]string{
		"username": username,
		"password": "Sup3rSecret",
		"email":    username + "@example.com",
		"phone":    "+5511999990000",
		"role":     role,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("register %s: status %d: %s", username, w.Code, w.Body)
	}
}

func login(t *testing.T, h http.Handler, username string) string {
	t.Helper()
	w := do(t, h, "POST", "/auth/login", "", map[string]string{
		"username": username,
		"password": "Sup3rSecret",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("login %s: status %d: %s", username, w.Code, w.Body)
	}
	var resp struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil || resp.AccessToken == "" {
		t.Fatalf("login %s: bad response %s", username, w.Body)
	}
	return resp.AccessToken
}

func TestAuthFlowAndRoleGate(t *testing.T) {
	h := testRouter(t)
	register(t, h, "ana", "professor")
	register(t, h, "carla", "student")

	if w := do(t, h, "POST", "/courses", "", map[string]string{"title": "Algebra"}); w.Code != http.StatusUnauthorized {
		t.Fatalf("no token: want 401, got %d", w.Code)
	}

	anaTok := login(t, h, "ana")
	carlaTok := login(t, h, "carla")

	if w := do(t, h, "POST", "/courses", carlaTok, map[string]string{"title": "Algebra"}); w.Code != http.StatusForbidden {
		t.Fatalf("student create course: want 403, got %d", w.Code)
	}
	if w := do(t, h, "POST", "/courses", anaTok, map[string]string{"title": "Algebra"}); w.Code != http.StatusCreated {
		t.Fatalf("professor create course: want 201, got %d: %s", w.Code, w.Body)
	}
}

func TestQuizFlowOverHTTP(t *testing.T) {
	h := testRouter(t)
	register(t, h, "ana", "professor")
	register(t, h, "bruno", "professor")
	register(t, h, "carla", "student")
	anaTok := login(t, h, "ana")
	brunoTok := login(t, h, "bruno")
	carlaTok := login(t, h, "carla")

	var course struct{ ID int64 }
	w := do(t, h, "POST", "/courses", anaTok, map[string]string{"title": "Algebra"})
	if w.Code != http.StatusCreated {
		t.Fatalf("create course: %d: %s", w.Code, w.Body)
	}
	_ = json.Unmarshal(w.Body.Bytes(), &course)

	var mod struct{ ID int64 }
	w = do(t, h, "POST", "/modules", anaTok, map[string]any{"title": "Unit 1", "course_id": course.ID})
	if w.Code != http.StatusCreated {
		t.Fatalf("create module: %d: %s", w.Code, w.Body)
	}
	_ = json.Unmarshal(w.Body.Bytes(), &mod)

	// A professor who does not own the course is rejected despite a valid token.
	w = do(t, h, "POST", "/modules", brunoTok, map[string]any{"title": "Unit X", "course_id": course.ID})
	if w.Code != http.StatusForbidden {
		t.Fatalf("foreign professor: want 403, got %d: %s", w.Code, w.Body)
	}

	var lesson struct{ ID int64 }
	w = do(t, h, "POST", "/lessons", anaTok, map[string]any{"title": "Check", "content_kind": "quiz", "module_id": mod.ID})
	if w.Code != http.StatusCreated {
		t.Fatalf("create lesson: %d: %s", w.Code, w.Body)
	}
	_ = json.Unmarshal(w.Body.Bytes(), &lesson)

	var created struct {
		ID        int64 `json:"id"`
		Questions []struct {
			Options []struct {
				ID        int64 `json:"id"`
				IsCorrect bool  `json:"is_correct"`
			} `json:"options"`
		} `json:"questions"`
	}
	w = do(t, h, "POST", "/lessons/"+itoa(lesson.ID)+"/quiz", anaTok, map[string]any{
		"questions": []map[string]any{
			{"text": "2+2?", "options": []map[string]any{
				{"text": "4", "is_correct": true},
				{"text": "5"},
			}},
		},
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create quiz: %d: %s", w.Code, w.Body)
	}
	_ = json.Unmarshal(w.Body.Bytes(), &created)

	w = do(t, h, "GET", "/quizzes/"+itoa(created.ID)+"/questions", carlaTok, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get questions: %d: %s", w.Code, w.Body)
	}

	var correctID int64
	for _, o := range created.Questions[0].Options {
		if o.IsCorrect {
			correctID = o.ID
		}
	}
	var attempt struct{ Score int }
	w = do(t, h, "POST", "/quizzes/"+itoa(created.ID)+"/attempts", carlaTok, map[string]any{
		"selected_option_ids": []int64{correctID},
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("submit attempt: %d: %s", w.Code, w.Body)
	}
	_ = json.Unmarshal(w.Body.Bytes(), &attempt)
	if attempt.Score != 100 {
		t.Fatalf("want score 100, got %d", attempt.Score)
	}

	w = do(t, h, "POST", "/quizzes/"+itoa(created.ID)+"/attempts", carlaTok, map[string]any{
		"selected_option_ids": []int64{correctID},
	})
	if w.Code != http.StatusConflict {
		t.Fatalf("second attempt: want 409, got %d: %s", w.Code, w.Body)
	}

	w = do(t, h, "POST", "/courses/"+itoa(course.ID)+"/enrollments", carlaTok, nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("enroll: %d: %s", w.Code, w.Body)
	}
	w = do(t, h, "POST", "/courses/"+itoa(course.ID)+"/enrollments", carlaTok, nil)
	if w.Code != http.StatusConflict {
		t.Fatalf("second enroll: want 409, got %d: %s", w.Code, w.Body)
	}
}

func itoa(v int64) string { return strconv.FormatInt(v, 10) }
