package access

import "lomda/models"

// License policy modes.
const (
	ModeDisallow           = "DISALLOW"
	ModeIncludedWithAccess = "INCLUDED_WITH_ACCESS"
	ModeAddon              = "ADDON"
)

// DefaultPolicy is used when a school never configured content
// protection. Restrictive on copy/download, preview-friendly otherwise.
func DefaultPolicy() *models.ContentProtectionPolicy {
	return &models.ContentProtectionPolicy{
		ProtectContent:    true,
		AllowPreviews:     true,
		MaxPreviewSeconds: 90,
		MaxPreviewChars:   1500,
		WatermarkEnabled:  true,
		BlockCopy:         true,
		BlockPrint:        true,
		CopyMode:          ModeDisallow,
		DownloadMode:      ModeDisallow,
	}
}

// EffectivePolicy returns the school's policy or the default when nil.
func EffectivePolicy(p *models.ContentProtectionPolicy) *models.ContentProtectionPolicy {
	if p == nil {
		return DefaultPolicy()
	}
	return p
}
