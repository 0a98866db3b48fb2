package quiz

type Quiz struct {
	ID        int64      `json:"id"`
	LessonID  int64      `json:"lesson_id"`
	Questions []Question `json:"questions,omitempty"`
}

type Question struct {
	ID      int64    `json:"id"`
	QuizID  int64    `json:"quiz_id"`
	Text    string   `json:"text"`
	Options []Option `json:"options"`
}

type Option struct {
	ID         int64  `json:"id"`
	QuestionID int64  `json:"question_id"`
	Text       string `json:"text"`
	IsCorrect  bool   `json:"is_correct"`
}

// QuestionView is the quiz-taker projection of a question. Option correctness
// is authoring-internal and never appears here.
type QuestionView struct {
	ID      int64        `json:"id"`
	Text    string       `json:"text"`
	Options []OptionView `json:"options"`
}

type OptionView struct {
	ID   int64  `json:"id"`
	Text string `json:"text"`
}

type QuestionInput struct {
	Text    string        `json:"text"`
	Options []OptionInput `json:"options"`
}

type OptionInput struct {
	Text      string `json:"text"`
	IsCorrect bool   `json:"is_correct"`
}

type Attempt struct {
	ID          int64  `json:"id"`
	UserID      int64  `json:"user_id"`
	QuizID      int64  `json:"quiz_id"`
	AttemptDate string `json:"attempt_date"`
	Score       int    `json:"score"`
}
