package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Quiz struct {
	gorm.Model
	SchoolID              uint  `gorm:"index;not null"`
	CourseID              *uint `gorm:"index"` // nil = standalone, ungated
	LessonID              *uint
	Title                 string
	Description           string
	PassingScore          int `gorm:"default:70"`
	TimeLimitSeconds      *int
	ShuffleQuestions      bool
	MaxAttempts           *int
	PreviewLimitQuestions int `gorm:"default:2"`
	IsPublished           bool
	QuestionsCount        int
	Questions             datatypes.JSON // inline fallback storage mode
	SchemaVersion         int            `gorm:"default:1"`
	CreatedBy             string
	UpdatedBy             string
}

type QuizQuestion struct {
	gorm.Model
	SchoolID       uint `gorm:"index;not null"`
	QuizID         uint `gorm:"index;not null"`
	QuestionIndex  int
	Question       string
	QuestionHebrew string
	Options        datatypes.JSON // ordered list, at least 2 entries
	CorrectAnswer  string
	Explanation    string
	Points         int `gorm:"default:1"`
}

// QuizAttempt is immutable: created once per submission, never updated.
type QuizAttempt struct {
	gorm.Model
	SchoolID         uint   `gorm:"index;not null"`
	QuizID           uint   `gorm:"index;not null"`
	UserEmail        string `gorm:"index;not null"`
	Score            int
	Passed           bool
	Answers          datatypes.JSON
	TimeTakenSeconds *int
	CompletedAt      time.Time
}
