package access

import (
	"time"

	"lomda/models"
)

// Entitlement types.
const (
	EntitlementCourse          = "COURSE"
	EntitlementAllCourses      = "ALL_COURSES"
	EntitlementCopyLicense     = "COPY_LICENSE"
	EntitlementDownloadLicense = "DOWNLOAD_LICENSE"
)

// IsEntitlementActive reports whether the entitlement's time window
// contains now. A nil entitlement is never active.
func IsEntitlementActive(e *models.Entitlement, now time.Time) bool {
	if e == nil {
		return false
	}
	if e.StartsAt != nil && now.Before(*e.StartsAt) {
		return false
	}
	if e.ExpiresAt != nil && !now.Before(*e.ExpiresAt) {
		return false
	}
	return true
}

// ActiveEntitlements filters out entitlements whose window has not
// started or has already passed.
func ActiveEntitlements(entitlements []models.Entitlement, now time.Time) []models.Entitlement {
	var active []models.Entitlement
	for i := range entitlements {
		if IsEntitlementActive(&entitlements[i], now) {
			active = append(active, entitlements[i])
		}
	}
	return active
}

// HasCourseEntitlement reports whether any active entitlement grants the
// given course: either an ALL_COURSES grant or a COURSE grant matching
// the exact course id.
func HasCourseEntitlement(entitlements []models.Entitlement, courseID uint, now time.Time) bool {
	for i := range entitlements {
		e := &entitlements[i]
		if !IsEntitlementActive(e, now) {
			continue
		}
		if e.Type == EntitlementAllCourses {
			return true
		}
		if e.Type == EntitlementCourse && e.CourseID != nil && *e.CourseID == courseID {
			return true
		}
	}
	return false
}

// HasLicense reports whether an active entitlement of the given add-on
// license type exists.
func HasLicense(entitlements []models.Entitlement, licenseType string, now time.Time) bool {
	for i := range entitlements {
		if entitlements[i].Type == licenseType && IsEntitlementActive(&entitlements[i], now) {
			return true
		}
	}
	return false
}

// NormalizeEntitlementType maps the field-name variants seen in imported
// records to the canonical type before anything enters the resolver.
func NormalizeEntitlementType(typeField, legacyField string) string {
	if typeField != "" {
		return typeField
	}
	return legacyField
}
