package models

import (
	"time"

	"gorm.io/gorm"
)

type Course struct {
	gorm.Model
	SchoolID    uint `gorm:"index;not null"`
	Title       string
	ShortDesc   string
	Description string
	AuthorID    uint
	LogoURL     string
	AccessLevel string // FREE, PAID, PRIVATE (empty = legacy tier model)
	AccessTier  string // free, premium, elite (legacy)
	Lessons     []Lesson
}

type Lesson struct {
	gorm.Model
	SchoolID        uint `gorm:"index;not null"`
	CourseID        uint `gorm:"index;not null"`
	Title           string
	Description     string
	Content         string
	VideoURL        string
	AudioURL        string
	DurationSeconds int
	SequenceOrder   int
	IsPreview       bool
	DripMode        string // empty = no drip, OFFSET, DATE
	DripOffsetDays  int
	DripUnlockAt    *time.Time
}

// Enrollment records when a user started a course; drip offsets count
// from EnrolledAt.
type Enrollment struct {
	gorm.Model
	SchoolID   uint   `gorm:"index;not null"`
	UserEmail  string `gorm:"index;not null"`
	CourseID   uint   `gorm:"index;not null"`
	EnrolledAt time.Time
}
