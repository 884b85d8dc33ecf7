// Package materials gates lesson content and file downloads behind
// computed access levels. Sanitization here is the last line before a
// renderer; the first line is not fetching at all (access.ShouldFetchMaterials).
package materials

import (
	"encoding/json"
	"fmt"
	"time"

	"lomda/access"
	"lomda/models"
	"lomda/store"
)

// Material is the content payload handed to renderers.
type Material struct {
	ContentText         string `json:"content_text"`
	VideoURL            string `json:"video_url,omitempty"`
	AudioURL            string `json:"audio_url,omitempty"`
	DurationSeconds     int    `json:"duration_seconds"`
	IsPreview           bool   `json:"is_preview,omitempty"`
	PreviewLimitChars   int    `json:"preview_limit_chars,omitempty"`
	PreviewLimitSeconds int    `json:"preview_limit_seconds,omitempty"`
}

// SanitizeForAccess returns only what the access level permits. LOCKED
// and DRIP_LOCKED yield nil: no field of the underlying content crosses
// this boundary. PREVIEW truncates text and caps duration; media URLs
// pass through because time-limiting a stream is the player's job.
func SanitizeForAccess(material *Material, level access.Level, policy *models.ContentProtectionPolicy) *Material {
	if material == nil {
		return nil
	}
	switch level {
	case access.Full:
		return material
	case access.Preview:
		return previewMaterial(material, access.EffectivePolicy(policy))
	default:
		return nil
	}
}

func previewMaterial(material *Material, policy *models.ContentProtectionPolicy) *Material {
	maxChars := policy.MaxPreviewChars
	if maxChars <= 0 {
		maxChars = 1500
	}
	maxSeconds := policy.MaxPreviewSeconds
	if maxSeconds <= 0 {
		maxSeconds = 90
	}

	text := material.ContentText
	if runes := []rune(text); len(runes) > maxChars {
		text = string(runes[:maxChars]) + "..."
	}

	duration := material.DurationSeconds
	if duration > maxSeconds {
		duration = maxSeconds
	}

	return &Material{
		ContentText:         text,
		VideoURL:            material.VideoURL,
		AudioURL:            material.AudioURL,
		DurationSeconds:     duration,
		IsPreview:           true,
		PreviewLimitChars:   maxChars,
		PreviewLimitSeconds: maxSeconds,
	}
}

// WatermarkText is the overlay string for protected renders.
func WatermarkText(userEmail string, now time.Time) string {
	if userEmail == "" {
		return ""
	}
	return fmt.Sprintf("%s • %s", userEmail, now.Format("2006-01-02"))
}

type Engine struct {
	store store.Scoped
}

func NewEngine(s store.Scoped) *Engine {
	return &Engine{store: s}
}

// GetLessonMaterial fetches the raw content payload for one lesson.
// Callers must have checked access.ShouldFetchMaterials first; this is
// the fetch they were deciding about. Absence is (nil, nil).
func (e *Engine) GetLessonMaterial(schoolID, lessonID uint) (*Material, *models.Lesson, error) {
	var lesson models.Lesson
	found, err := e.store.First(&lesson, schoolID, map[string]interface{}{"id": lessonID})
	if err != nil {
		return nil, nil, err
	}
	if !found {
		return nil, nil, nil
	}
	material := &Material{
		ContentText:     lesson.Content,
		VideoURL:        lesson.VideoURL,
		AudioURL:        lesson.AudioURL,
		DurationSeconds: lesson.DurationSeconds,
	}
	return material, &lesson, nil
}

// Download resolution reasons.
const (
	ReasonNotFound          = "not_found"
	ReasonFree              = "free"
	ReasonCourseRequired    = "course_required"
	ReasonLicenseRequired   = "license_required"
	ReasonAddonAccess       = "addon_access"
	ReasonCourseAccess      = "course_access"
	ReasonDownloadsDisabled = "downloads_disabled"
	ReasonNoAccess          = "no_access"
	ReasonError             = "error"
)

type DownloadRequest struct {
	SchoolID     uint
	DownloadID   uint
	UserEmail    string
	Entitlements []models.Entitlement
	Policy       *models.ContentProtectionPolicy
	Now          time.Time
}

// DownloadResult distinguishes "denied" from "granted but the audit
// write failed": AuditErr is informational and never blocks the grant.
type DownloadResult struct {
	Allowed  bool   `json:"allowed"`
	URL      string `json:"url,omitempty"`
	Reason   string `json:"reason"`
	AuditErr error  `json:"-"`
}

// GetSecureDownloadUrl resolves whether a file may be downloaded and
// audits the decision. Free items (no parent course, or zero price) are
// always granted. Gated items go through the download-mode license gate;
// a missing course dominates a missing license in the reported reason.
func (e *Engine) GetSecureDownloadUrl(in DownloadRequest) (DownloadResult, error) {
	var download models.Download
	found, err := e.store.First(&download, in.SchoolID, map[string]interface{}{"id": in.DownloadID})
	if err != nil {
		// Ambiguity surfaces; a fetch failure is never "no access".
		return DownloadResult{Reason: ReasonError}, err
	}
	if !found {
		result := DownloadResult{Reason: ReasonNotFound}
		result.AuditErr = e.audit(in, &result, false, false)
		return result, nil
	}

	now := in.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	isFree := download.CourseID == nil || download.Price == 0
	if isFree {
		result := DownloadResult{Allowed: true, URL: download.FileURL, Reason: ReasonFree}
		result.AuditErr = e.audit(in, &result, false, true)
		return result, nil
	}

	hasLicense := access.HasLicense(in.Entitlements, access.EntitlementDownloadLicense, now)
	hasCourse := access.HasCourseEntitlement(in.Entitlements, *download.CourseID, now)

	policy := access.EffectivePolicy(in.Policy)
	result := DownloadResult{Reason: ReasonNoAccess}
	switch policy.DownloadMode {
	case access.ModeIncludedWithAccess:
		result.Allowed = hasCourse
		if hasCourse {
			result.Reason = ReasonCourseAccess
		} else {
			result.Reason = ReasonCourseRequired
		}
	case access.ModeAddon:
		result.Allowed = hasCourse && hasLicense
		switch {
		case !hasCourse:
			result.Reason = ReasonCourseRequired
		case !hasLicense:
			result.Reason = ReasonLicenseRequired
		default:
			result.Reason = ReasonAddonAccess
		}
	default:
		result.Reason = ReasonDownloadsDisabled
	}

	if result.Allowed {
		result.URL = download.FileURL
	}
	result.AuditErr = e.audit(in, &result, hasLicense, hasCourse)
	return result, nil
}

// audit writes one EventLog row per resolution. Best effort: the error
// is reported on the result, never propagated.
func (e *Engine) audit(in DownloadRequest, result *DownloadResult, hasLicense, hasCourse bool) error {
	eventType := "download_blocked"
	if result.Allowed {
		eventType = "download_granted"
	}
	metadata, err := json.Marshal(map[string]interface{}{
		"reason":      result.Reason,
		"has_license": hasLicense,
		"has_course":  hasCourse,
	})
	if err != nil {
		return err
	}
	event := models.EventLog{
		UserEmail:  in.UserEmail,
		EventType:  eventType,
		EntityType: "DOWNLOAD",
		EntityID:   in.DownloadID,
		Metadata:   metadata,
	}
	return e.store.Create(in.SchoolID, &event)
}
