package materials

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lomda/access"
	"lomda/models"
	"lomda/store"
)

type fakeStore struct {
	lessons   []models.Lesson
	downloads []models.Download
	events    []models.EventLog

	firstErr error
	auditErr error
}

func (f *fakeStore) Filter(dest interface{}, schoolID uint, match map[string]interface{}, sort string, limit int) error {
	return nil
}

func (f *fakeStore) First(dest interface{}, schoolID uint, match map[string]interface{}) (bool, error) {
	if schoolID == 0 {
		return false, store.ErrMissingSchool
	}
	if f.firstErr != nil {
		return false, f.firstErr
	}
	id, _ := match["id"].(uint)
	switch v := dest.(type) {
	case *models.Lesson:
		for i := range f.lessons {
			if f.lessons[i].SchoolID == schoolID && f.lessons[i].ID == id {
				*v = f.lessons[i]
				return true, nil
			}
		}
	case *models.Download:
		for i := range f.downloads {
			if f.downloads[i].SchoolID == schoolID && f.downloads[i].ID == id {
				*v = f.downloads[i]
				return true, nil
			}
		}
	}
	return false, nil
}

func (f *fakeStore) Create(schoolID uint, value interface{}) error {
	if event, ok := value.(*models.EventLog); ok {
		if f.auditErr != nil {
			return f.auditErr
		}
		event.SchoolID = schoolID
		f.events = append(f.events, *event)
	}
	return nil
}

func (f *fakeStore) Update(model interface{}, id, schoolID uint, fields map[string]interface{}, enforceOwnership bool) error {
	return nil
}

func (f *fakeStore) Delete(model interface{}, id, schoolID uint, enforceOwnership bool) error {
	return nil
}

func (f *fakeStore) Transaction(fn func(store.Scoped) error) error { return fn(f) }

func (f *fakeStore) SupportsQuizQuestions() bool { return false }

func uintPtr(v uint) *uint { return &v }

func TestSanitizeForAccess(t *testing.T) {
	material := &Material{
		ContentText:     strings.Repeat("א", 2000),
		VideoURL:        "https://cdn.test/v.mp4",
		DurationSeconds: 600,
	}

	t.Run("full passes through untouched", func(t *testing.T) {
		got := SanitizeForAccess(material, access.Full, nil)
		assert.Same(t, material, got)
	})

	t.Run("locked yields nil", func(t *testing.T) {
		assert.Nil(t, SanitizeForAccess(material, access.Locked, nil))
		assert.Nil(t, SanitizeForAccess(material, access.DripLocked, nil))
		assert.Nil(t, SanitizeForAccess(material, access.NotFound, nil))
	})

	t.Run("nil material stays nil", func(t *testing.T) {
		assert.Nil(t, SanitizeForAccess(nil, access.Full, nil))
	})

	t.Run("preview truncates text and caps duration", func(t *testing.T) {
		policy := &models.ContentProtectionPolicy{AllowPreviews: true, MaxPreviewChars: 100, MaxPreviewSeconds: 60}
		got := SanitizeForAccess(material, access.Preview, policy)
		require.NotNil(t, got)
		assert.True(t, got.IsPreview)
		assert.True(t, strings.HasSuffix(got.ContentText, "..."))
		assert.LessOrEqual(t, len([]rune(got.ContentText)), 103)
		assert.Equal(t, 60, got.DurationSeconds)
		assert.Equal(t, "https://cdn.test/v.mp4", got.VideoURL)
		// Original untouched.
		assert.Equal(t, 600, material.DurationSeconds)
	})

	t.Run("short content is not truncated", func(t *testing.T) {
		small := &Material{ContentText: "hello", DurationSeconds: 30}
		got := SanitizeForAccess(small, access.Preview, nil)
		require.NotNil(t, got)
		assert.Equal(t, "hello", got.ContentText)
		assert.Equal(t, 30, got.DurationSeconds)
	})

	t.Run("zero policy limits fall back to defaults", func(t *testing.T) {
		policy := &models.ContentProtectionPolicy{AllowPreviews: true}
		got := SanitizeForAccess(material, access.Preview, policy)
		require.NotNil(t, got)
		assert.Equal(t, 1500, got.PreviewLimitChars)
		assert.Equal(t, 90, got.PreviewLimitSeconds)
	})
}

func TestWatermarkText(t *testing.T) {
	now := time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC)
	assert.Equal(t, "dana@school.test • 2025-03-14", WatermarkText("dana@school.test", now))
	assert.Empty(t, WatermarkText("", now))
}

func TestGetLessonMaterial(t *testing.T) {
	lesson := models.Lesson{
		SchoolID:        1,
		CourseID:        7,
		Content:         "body",
		VideoURL:        "https://cdn.test/v.mp4",
		DurationSeconds: 300,
	}
	lesson.ID = 5
	f := &fakeStore{lessons: []models.Lesson{lesson}}
	engine := NewEngine(f)

	t.Run("found", func(t *testing.T) {
		material, got, err := engine.GetLessonMaterial(1, 5)
		require.NoError(t, err)
		require.NotNil(t, material)
		assert.Equal(t, "body", material.ContentText)
		assert.Equal(t, 300, material.DurationSeconds)
		assert.Equal(t, uint(7), got.CourseID)
	})

	t.Run("absent", func(t *testing.T) {
		material, got, err := engine.GetLessonMaterial(1, 99)
		require.NoError(t, err)
		assert.Nil(t, material)
		assert.Nil(t, got)
	})

	t.Run("cross school", func(t *testing.T) {
		material, _, err := engine.GetLessonMaterial(2, 5)
		require.NoError(t, err)
		assert.Nil(t, material)
	})
}

func seedDownload(f *fakeStore, courseID *uint, price float64) uint {
	d := models.Download{SchoolID: 1, CourseID: courseID, Title: "workbook", FileURL: "https://cdn.test/w.pdf", Price: price}
	d.ID = uint(len(f.downloads) + 1)
	f.downloads = append(f.downloads, d)
	return d.ID
}

func courseEnt(courseID uint) models.Entitlement {
	return models.Entitlement{Type: access.EntitlementCourse, CourseID: uintPtr(courseID)}
}

func licenseEnt() models.Entitlement {
	return models.Entitlement{Type: access.EntitlementDownloadLicense}
}

func addonPolicy() *models.ContentProtectionPolicy {
	return &models.ContentProtectionPolicy{DownloadMode: access.ModeAddon}
}

func TestGetSecureDownloadUrlFree(t *testing.T) {
	f := &fakeStore{}
	engine := NewEngine(f)

	t.Run("no parent course", func(t *testing.T) {
		id := seedDownload(f, nil, 10)
		result, err := engine.GetSecureDownloadUrl(DownloadRequest{SchoolID: 1, DownloadID: id, UserEmail: "a@b.test"})
		require.NoError(t, err)
		assert.True(t, result.Allowed)
		assert.Equal(t, ReasonFree, result.Reason)
		assert.Equal(t, "https://cdn.test/w.pdf", result.URL)
	})

	t.Run("zero price", func(t *testing.T) {
		id := seedDownload(f, uintPtr(7), 0)
		result, err := engine.GetSecureDownloadUrl(DownloadRequest{SchoolID: 1, DownloadID: id, UserEmail: "a@b.test"})
		require.NoError(t, err)
		assert.True(t, result.Allowed)
		assert.Equal(t, ReasonFree, result.Reason)
	})
}

func TestGetSecureDownloadUrlNotFound(t *testing.T) {
	f := &fakeStore{}
	engine := NewEngine(f)

	result, err := engine.GetSecureDownloadUrl(DownloadRequest{SchoolID: 1, DownloadID: 99, UserEmail: "a@b.test"})
	require.NoError(t, err)
	assert.False(t, result.Allowed)
	assert.Equal(t, ReasonNotFound, result.Reason)
	assert.Empty(t, result.URL)
	require.Len(t, f.events, 1)
	assert.Equal(t, "download_blocked", f.events[0].EventType)
}

func TestGetSecureDownloadUrlStoreError(t *testing.T) {
	f := &fakeStore{firstErr: errors.New("connection reset")}
	engine := NewEngine(f)

	result, err := engine.GetSecureDownloadUrl(DownloadRequest{SchoolID: 1, DownloadID: 1})
	require.Error(t, err)
	assert.False(t, result.Allowed)
	assert.Equal(t, ReasonError, result.Reason)
	assert.Empty(t, f.events, "fetch failures are not audited as decisions")
}

func TestGetSecureDownloadUrlAddonMode(t *testing.T) {
	cases := []struct {
		name        string
		ents        []models.Entitlement
		wantAllowed bool
		wantReason  string
	}{
		{"course and license", []models.Entitlement{courseEnt(7), licenseEnt()}, true, ReasonAddonAccess},
		{"license only, course dominates", []models.Entitlement{licenseEnt()}, false, ReasonCourseRequired},
		{"course only", []models.Entitlement{courseEnt(7)}, false, ReasonLicenseRequired},
		{"neither", nil, false, ReasonCourseRequired},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := &fakeStore{}
			id := seedDownload(f, uintPtr(7), 25)
			engine := NewEngine(f)

			result, err := engine.GetSecureDownloadUrl(DownloadRequest{
				SchoolID: 1, DownloadID: id, UserEmail: "a@b.test",
				Entitlements: tc.ents, Policy: addonPolicy(),
			})
			require.NoError(t, err)
			assert.Equal(t, tc.wantAllowed, result.Allowed)
			assert.Equal(t, tc.wantReason, result.Reason)
			if tc.wantAllowed {
				assert.NotEmpty(t, result.URL)
			} else {
				assert.Empty(t, result.URL)
			}
		})
	}
}

func TestGetSecureDownloadUrlIncludedMode(t *testing.T) {
	policy := &models.ContentProtectionPolicy{DownloadMode: access.ModeIncludedWithAccess}

	t.Run("course access grants", func(t *testing.T) {
		f := &fakeStore{}
		id := seedDownload(f, uintPtr(7), 25)
		engine := NewEngine(f)

		result, err := engine.GetSecureDownloadUrl(DownloadRequest{
			SchoolID: 1, DownloadID: id,
			Entitlements: []models.Entitlement{courseEnt(7)}, Policy: policy,
		})
		require.NoError(t, err)
		assert.True(t, result.Allowed)
		assert.Equal(t, ReasonCourseAccess, result.Reason)
	})

	t.Run("no course access", func(t *testing.T) {
		f := &fakeStore{}
		id := seedDownload(f, uintPtr(7), 25)
		engine := NewEngine(f)

		result, err := engine.GetSecureDownloadUrl(DownloadRequest{SchoolID: 1, DownloadID: id, Policy: policy})
		require.NoError(t, err)
		assert.False(t, result.Allowed)
		assert.Equal(t, ReasonCourseRequired, result.Reason)
	})
}

func TestGetSecureDownloadUrlDisabled(t *testing.T) {
	f := &fakeStore{}
	id := seedDownload(f, uintPtr(7), 25)
	engine := NewEngine(f)

	// Default policy mode is DISALLOW; a full entitlement set changes nothing.
	result, err := engine.GetSecureDownloadUrl(DownloadRequest{
		SchoolID: 1, DownloadID: id,
		Entitlements: []models.Entitlement{courseEnt(7), licenseEnt()},
	})
	require.NoError(t, err)
	assert.False(t, result.Allowed)
	assert.Equal(t, ReasonDownloadsDisabled, result.Reason)
}

func TestGetSecureDownloadUrlAudit(t *testing.T) {
	t.Run("one event per resolution", func(t *testing.T) {
		f := &fakeStore{}
		id := seedDownload(f, uintPtr(7), 25)
		engine := NewEngine(f)

		result, err := engine.GetSecureDownloadUrl(DownloadRequest{
			SchoolID: 1, DownloadID: id, UserEmail: "a@b.test",
			Entitlements: []models.Entitlement{courseEnt(7), licenseEnt()},
			Policy:       addonPolicy(),
		})
		require.NoError(t, err)
		assert.True(t, result.Allowed)
		require.Len(t, f.events, 1)
		event := f.events[0]
		assert.Equal(t, "download_granted", event.EventType)
		assert.Equal(t, "DOWNLOAD", event.EntityType)
		assert.Equal(t, id, event.EntityID)
		assert.Equal(t, "a@b.test", event.UserEmail)
		assert.Equal(t, uint(1), event.SchoolID)
		assert.Contains(t, string(event.Metadata), ReasonAddonAccess)
	})

	t.Run("audit failure never blocks the grant", func(t *testing.T) {
		f := &fakeStore{auditErr: errors.New("event table full")}
		id := seedDownload(f, nil, 0)
		engine := NewEngine(f)

		result, err := engine.GetSecureDownloadUrl(DownloadRequest{SchoolID: 1, DownloadID: id, UserEmail: "a@b.test"})
		require.NoError(t, err)
		assert.True(t, result.Allowed)
		assert.NotEmpty(t, result.URL)
		assert.Error(t, result.AuditErr)
	})
}
