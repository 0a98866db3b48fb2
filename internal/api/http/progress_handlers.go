package http

import (
	"net/http"

	"github.com/learnforge/learnforge-lms/internal/auth"
	"github.com/learnforge/learnforge-lms/internal/progress"
)

func EnrollHandler(store *progress.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		courseID, err := idParam(r, "courseID")
		if err != nil {
			writeError(w, err)
			return
		}
		e, err := store.Enroll(r.Context(), auth.SubjectFromContext(r.Context()), courseID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, e)
	}
}

func CompleteModuleHandler(store *progress.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		moduleID, err := idParam(r, "moduleID")
		if err != nil {
			writeError(w, err)
			return
		}
		c, err := store.CompleteModule(r.Context(), auth.SubjectFromContext(r.Context()), moduleID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, c)
	}
}

func CompleteLessonHandler(store *progress.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		lessonID, err := idParam(r, "lessonID")
		if err != nil {
			writeError(w, err)
			return
		}
		c, err := store.CompleteLesson(r.Context(), auth.SubjectFromContext(r.Context()), lessonID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, c)
	}
}
