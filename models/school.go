package models

import "gorm.io/gorm"

type School struct {
	gorm.Model
	Name    string `gorm:"not null"`
	Slug    string `gorm:"unique;not null"`
	LogoURL string
}

type Membership struct {
	gorm.Model
	SchoolID uint   `gorm:"index;not null"`
	UserID   uint   `gorm:"index;not null"`
	Role     string `gorm:"default:STUDENT"` // OWNER, ADMIN, INSTRUCTOR, TA, STUDENT
}
