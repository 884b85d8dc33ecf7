package models

import (
	"time"

	"gorm.io/gorm"
)

type Entitlement struct {
	gorm.Model
	SchoolID  uint   `gorm:"index;not null"`
	UserEmail string `gorm:"index;not null"`
	Type      string `gorm:"not null"` // COURSE, ALL_COURSES, COPY_LICENSE, DOWNLOAD_LICENSE
	CourseID  *uint  // required when Type = COURSE
	StartsAt  *time.Time
	ExpiresAt *time.Time // nil = never expires
	GrantedBy string
}

// ContentProtectionPolicy is per-school; absent rows fall back to
// access.DefaultPolicy().
type ContentProtectionPolicy struct {
	gorm.Model
	SchoolID          uint   `gorm:"uniqueIndex;not null"`
	ProtectContent    bool   `gorm:"default:true"`
	AllowPreviews     bool   `gorm:"default:true"`
	MaxPreviewSeconds int    `gorm:"default:90"`
	MaxPreviewChars   int    `gorm:"default:1500"`
	WatermarkEnabled  bool   `gorm:"default:true"`
	BlockCopy         bool   `gorm:"default:true"`
	BlockPrint        bool   `gorm:"default:true"`
	CopyMode          string `gorm:"default:DISALLOW"` // DISALLOW, INCLUDED_WITH_ACCESS, ADDON
	DownloadMode      string `gorm:"default:DISALLOW"` // DISALLOW, INCLUDED_WITH_ACCESS, ADDON
}
