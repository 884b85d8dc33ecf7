package models

import "gorm.io/gorm"

type User struct {
	gorm.Model
	Username     string `gorm:"unique;not null"`
	Email        string `gorm:"unique;not null"`
	PasswordHash string `gorm:"not null"`
}

// Subscription is the legacy platform-wide tier record, kept for schools
// that never migrated to per-course entitlements.
type Subscription struct {
	gorm.Model
	UserEmail string `gorm:"index;not null"`
	Tier      string `gorm:"default:free"` // free, premium, elite
}
