package models

import (
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Download struct {
	gorm.Model
	SchoolID uint  `gorm:"index;not null"`
	CourseID *uint // nil = not attached to a course
	Title    string
	FileURL  string
	Price    float64
}

// EventLog is the audit trail; writes are best-effort and must never
// block the decision they record.
type EventLog struct {
	gorm.Model
	SchoolID   uint   `gorm:"index;not null"`
	UserEmail  string `gorm:"index"`
	EventType  string // download_granted, download_blocked, ...
	EntityType string // DOWNLOAD, QUIZ, LESSON, ...
	EntityID   uint
	Metadata   datatypes.JSON
}
