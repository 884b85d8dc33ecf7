package controllers

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"lomda/access"
	"lomda/config"
	"lomda/models"
	"lomda/store"
)

// accessContext is the point-in-time snapshot the resolver runs on: one
// request, one school, one user.
type accessContext struct {
	Role             string
	IsTeacher        bool
	Entitlements     []models.Entitlement
	SubscriptionTier string
	Policy           *models.ContentProtectionPolicy
	Now              time.Time
}

// loadAccessContext gathers role, entitlements, legacy subscription tier
// and the school policy. Store errors propagate: a failed fetch must
// never be read as "no access".
func loadAccessContext(db *gorm.DB, st *store.Store, cfg *config.Config, schoolID, userID uint, email string) (*accessContext, error) {
	ctx := &accessContext{Now: time.Now().UTC()}

	var membership models.Membership
	err := db.Where("user_id = ? AND school_id = ?", userID, schoolID).First(&membership).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	if err == nil {
		ctx.Role = membership.Role
	}
	if cfg.IsGlobalAdmin(email) {
		ctx.Role = access.RoleAdmin
	}
	ctx.IsTeacher = access.IsTeacherRole(ctx.Role)

	if err := st.Filter(&ctx.Entitlements, schoolID, map[string]interface{}{"user_email": email}, "created_at desc", 500); err != nil {
		return nil, err
	}

	// Legacy platform-wide subscription; not school-scoped.
	var subscription models.Subscription
	err = db.Where("user_email = ?", email).Order("created_at desc").First(&subscription).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	if err == nil {
		ctx.SubscriptionTier = subscription.Tier
	}

	var policy models.ContentProtectionPolicy
	found, err := st.First(&policy, schoolID, nil)
	if err != nil {
		return nil, err
	}
	if found {
		ctx.Policy = &policy
	} else {
		ctx.Policy = access.DefaultPolicy()
	}

	return ctx, nil
}

// enrollDate returns when the user enrolled in the course, or nil when
// no enrollment event was ever recorded. Nil means the resolver skips
// drip evaluation rather than guessing a start date.
func enrollDate(st *store.Store, schoolID uint, email string, courseID uint) (*time.Time, error) {
	var enrollment models.Enrollment
	found, err := st.First(&enrollment, schoolID, map[string]interface{}{
		"user_email": email,
		"course_id":  courseID,
	})
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	date := enrollment.EnrolledAt
	return &date, nil
}
