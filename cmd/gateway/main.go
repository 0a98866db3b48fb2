package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"

	api "github.com/learnforge/learnforge-lms/internal/api/http"
	"github.com/learnforge/learnforge-lms/internal/auth"
	"github.com/learnforge/learnforge-lms/internal/catalog"
	"github.com/learnforge/learnforge-lms/internal/config"
	"github.com/learnforge/learnforge-lms/internal/db"
	"github.com/learnforge/learnforge-lms/internal/progress"
	"github.com/learnforge/learnforge-lms/internal/quiz"
	"github.com/learnforge/learnforge-lms/internal/rbac"
)

func main() {
	_ = godotenv.Load()
	cfg := config.FromEnv()

	// --- DB ---
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	dbh, err := db.Open(ctx, db.Driver(cfg.DBDriver), cfg.DBDSN)
	if err != nil {
		log.Fatalf("db open failed: %v", err)
	}

	// --- Services ---
	authSvc := auth.NewService(dbh, cfg.AuthSecret, cfg.TokenTTL)
	catalogStore := catalog.NewStore(dbh)
	quizStore := quiz.NewStore(dbh, catalogStore)
	progressStore := progress.NewStore(dbh)

	// --- Router ---
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Post("/auth/register", api.RegisterHandler(authSvc))
	r.Post("/auth/login", api.LoginHandler(authSvc))

	// Protected API (JWT → role in context → RBAC → ownership inside the engines)
	r.Group(func(pr chi.Router) {
		pr.Use(auth.Middleware(authSvc))

		pr.With(rbac.Require("catalog:view")).Get("/courses", api.ListCoursesHandler(catalogStore))
		pr.With(rbac.Require("course:create")).Post("/courses", api.CreateCourseHandler(catalogStore))
		pr.With(rbac.Require("course:enroll")).Post("/courses/{courseID}/enrollments", api.EnrollHandler(progressStore))

		pr.With(rbac.Require("catalog:view")).Get("/modules", api.ListModulesHandler(catalogStore))
		pr.With(rbac.Require("module:create")).Post("/modules", api.CreateModuleHandler(catalogStore))
		pr.With(rbac.Require("module:update")).Put("/modules/{moduleID}", api.UpdateModuleHandler(catalogStore))
		pr.With(rbac.Require("module:delete")).Delete("/modules/{moduleID}", api.DeleteModuleHandler(catalogStore))
		pr.With(rbac.Require("module:complete")).Post("/modules/{moduleID}/complete", api.CompleteModuleHandler(progressStore))

		pr.With(rbac.Require("catalog:view")).Get("/lessons", api.ListLessonsHandler(catalogStore))
		pr.With(rbac.Require("lesson:create")).Post("/lessons", api.CreateLessonHandler(catalogStore))
		pr.With(rbac.Require("lesson:update")).Put("/lessons/{lessonID}", api.UpdateLessonHandler(catalogStore))
		pr.With(rbac.Require("lesson:delete")).Delete("/lessons/{lessonID}", api.DeleteLessonHandler(catalogStore))
		pr.With(rbac.Require("lesson:complete")).Post("/lessons/{lessonID}/complete", api.CompleteLessonHandler(progressStore))
		pr.With(rbac.Require("lesson:create")).Post("/lessons/{lessonID}/video", api.CreateLessonVideoHandler(catalogStore))
		pr.With(rbac.Require("quiz:create")).Post("/lessons/{lessonID}/quiz", api.CreateQuizHandler(quizStore))

		pr.With(rbac.Require("quiz:view")).Get("/quizzes/{quizID}/questions", api.GetQuizQuestionsHandler(quizStore))
		pr.With(rbac.Require("quiz:append")).Post("/quizzes/{quizID}/questions", api.AddQuestionHandler(quizStore))
		pr.With(rbac.Require("quiz:take")).Post("/quizzes/{quizID}/attempts", api.SubmitAttemptHandler(quizStore))
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })

	log.Printf("listening on %s (db=%s)", cfg.HTTPAddr, cfg.DBDriver)
	log.Fatal(http.ListenAndServe(cfg.HTTPAddr, r))
}
