package http

import (
	"encoding/json"
	"net/http"

	"github.com/learnforge/learnforge-lms/internal/auth"
	"github.com/learnforge/learnforge-lms/internal/quiz"
)

func CreateQuizHandler(store *quiz.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		lessonID, err := idParam(r, "lessonID")
		if err != nil {
			writeError(w, err)
			return
		}
		var req struct {
			Questions []quiz.QuestionInput `json:"questions"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		q, err := store.CreateQuiz(r.Context(), lessonID, req.Questions, auth.SubjectFromContext(r.Context()))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, q)
	}
}

func AddQuestionHandler(store *quiz.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		quizID, err := idParam(r, "quizID")
		if err != nil {
			writeError(w, err)
			return
		}
		var in quiz.QuestionInput
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		q, err := store.AddQuestion(r.Context(), quizID, in, auth.SubjectFromContext(r.Context()))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, q)
	}
}

func GetQuizQuestionsHandler(store *quiz.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		quizID, err := idParam(r, "quizID")
		if err != nil {
			writeError(w, err)
			return
		}
		out, err := store.Questions(r.Context(), quizID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func SubmitAttemptHandler(store *quiz.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		quizID, err := idParam(r, "quizID")
		if err != nil {
			writeError(w, err)
			return
		}
		var req struct {
			SelectedOptionIDs []int64 `json:"selected_option_ids"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		a, err := store.SubmitAttempt(r.Context(), auth.SubjectFromContext(r.Context()), quizID, req.SelectedOptionIDs)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, a)
	}
}
