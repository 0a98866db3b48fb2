package catalog

// ContentKind fixes which child a lesson may carry: a video or a quiz.
type ContentKind string

const (
	KindVideo ContentKind = "video"
	KindQuiz  ContentKind = "quiz"
)

func (k ContentKind) Valid() bool { return k == KindVideo || k == KindQuiz }

type Course struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	ProfessorID int64  `json:"professor_id"`
}

type Module struct {
	ID       int64  `json:"id"`
	Title    string `json:"title"`
	CourseID int64  `json:"course_id"`
}

type Lesson struct {
	ID       int64       `json:"id"`
	Title    string      `json:"title"`
	Kind     ContentKind `json:"content_kind"`
	ModuleID int64       `json:"module_id"`
}

type LessonVideo struct {
	ID       int64  `json:"id"`
	LessonID int64  `json:"lesson_id"`
	VideoURL string `json:"video_url"`
}
