package controllers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"lomda/access"
	"lomda/config"
	"lomda/models"
	"lomda/store"
)

type SchoolsController struct {
	DB  *gorm.DB
	St  *store.Store
	Cfg *config.Config
}

func NewSchoolsController(db *gorm.DB, st *store.Store, cfg *config.Config) *SchoolsController {
	return &SchoolsController{DB: db, St: st, Cfg: cfg}
}

func (sc *SchoolsController) CreateSchool(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(uint)

	var input struct {
		Name string `json:"name"`
		Slug string `json:"slug"`
	}
	if err := c.BodyParser(&input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Cannot parse JSON",
		})
	}
	if input.Name == "" || input.Slug == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Name and slug are required",
		})
	}

	school := models.School{Name: input.Name, Slug: input.Slug}
	if err := sc.DB.Create(&school).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not create school",
		})
	}

	membership := models.Membership{
		SchoolID: school.ID,
		UserID:   userID,
		Role:     access.RoleOwner,
	}
	if err := sc.DB.Create(&membership).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not create membership",
		})
	}

	return c.JSON(fiber.Map{
		"message": "School created",
		"school":  school,
	})
}

func (sc *SchoolsController) JoinSchool(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(uint)

	schoolID, err := c.ParamsInt("schoolId")
	if err != nil || schoolID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid school ID",
		})
	}

	var existing models.Membership
	if err := sc.DB.Where("user_id = ? AND school_id = ?", userID, schoolID).First(&existing).Error; err == nil {
		return c.JSON(fiber.Map{
			"message":    "Already a member",
			"membership": existing,
		})
	}

	membership := models.Membership{
		SchoolID: uint(schoolID),
		UserID:   userID,
		Role:     access.RoleStudent,
	}
	if err := sc.DB.Create(&membership).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not create membership",
		})
	}

	return c.JSON(fiber.Map{
		"message":    "Joined school",
		"membership": membership,
	})
}

// GrantEntitlement creates an entitlement for a user in this school.
// Accepts both `type` and the legacy `entitlement_type` field name; the
// canonical type is fixed here, before anything reaches the resolver.
func (sc *SchoolsController) GrantEntitlement(c *fiber.Ctx) error {
	email := c.Locals("user_email").(string)

	schoolID, err := c.ParamsInt("schoolId")
	if err != nil || schoolID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid school ID",
		})
	}

	var input struct {
		UserEmail       string     `json:"user_email"`
		Type            string     `json:"type"`
		EntitlementType string     `json:"entitlement_type"`
		CourseID        *uint      `json:"course_id"`
		StartsAt        *time.Time `json:"starts_at"`
		ExpiresAt       *time.Time `json:"expires_at"`
	}
	if err := c.BodyParser(&input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Cannot parse JSON",
		})
	}

	entitlementType := access.NormalizeEntitlementType(input.Type, input.EntitlementType)
	switch entitlementType {
	case access.EntitlementCourse, access.EntitlementAllCourses,
		access.EntitlementCopyLicense, access.EntitlementDownloadLicense:
	default:
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid entitlement type",
		})
	}
	if input.UserEmail == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "user_email is required",
		})
	}
	if entitlementType == access.EntitlementCourse && input.CourseID == nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "course_id is required for COURSE entitlements",
		})
	}

	entitlement := models.Entitlement{
		UserEmail: input.UserEmail,
		Type:      entitlementType,
		CourseID:  input.CourseID,
		StartsAt:  input.StartsAt,
		ExpiresAt: input.ExpiresAt,
		GrantedBy: email,
	}
	if err := sc.St.Create(uint(schoolID), &entitlement); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not create entitlement",
		})
	}

	return c.JSON(fiber.Map{
		"message":     "Entitlement granted",
		"entitlement": entitlement,
	})
}

// UpdatePolicy upserts the school's content protection policy.
func (sc *SchoolsController) UpdatePolicy(c *fiber.Ctx) error {
	schoolID, err := c.ParamsInt("schoolId")
	if err != nil || schoolID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid school ID",
		})
	}

	var input struct {
		ProtectContent    *bool   `json:"protect_content"`
		AllowPreviews     *bool   `json:"allow_previews"`
		MaxPreviewSeconds *int    `json:"max_preview_seconds"`
		MaxPreviewChars   *int    `json:"max_preview_chars"`
		WatermarkEnabled  *bool   `json:"watermark_enabled"`
		BlockCopy         *bool   `json:"block_copy"`
		BlockPrint        *bool   `json:"block_print"`
		CopyMode          *string `json:"copy_mode"`
		DownloadMode      *string `json:"download_mode"`
	}
	if err := c.BodyParser(&input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Cannot parse JSON",
		})
	}

	for _, mode := range []*string{input.CopyMode, input.DownloadMode} {
		if mode == nil {
			continue
		}
		switch *mode {
		case access.ModeDisallow, access.ModeIncludedWithAccess, access.ModeAddon:
		default:
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Invalid policy mode",
			})
		}
	}

	var policy models.ContentProtectionPolicy
	found, err := sc.St.First(&policy, uint(schoolID), nil)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not query database",
		})
	}
	if !found {
		policy = *access.DefaultPolicy()
	}

	if input.ProtectContent != nil {
		policy.ProtectContent = *input.ProtectContent
	}
	if input.AllowPreviews != nil {
		policy.AllowPreviews = *input.AllowPreviews
	}
	if input.MaxPreviewSeconds != nil {
		policy.MaxPreviewSeconds = *input.MaxPreviewSeconds
	}
	if input.MaxPreviewChars != nil {
		policy.MaxPreviewChars = *input.MaxPreviewChars
	}
	if input.WatermarkEnabled != nil {
		policy.WatermarkEnabled = *input.WatermarkEnabled
	}
	if input.BlockCopy != nil {
		policy.BlockCopy = *input.BlockCopy
	}
	if input.BlockPrint != nil {
		policy.BlockPrint = *input.BlockPrint
	}
	if input.CopyMode != nil {
		policy.CopyMode = *input.CopyMode
	}
	if input.DownloadMode != nil {
		policy.DownloadMode = *input.DownloadMode
	}

	if policy.ID == 0 {
		if err := sc.St.Create(uint(schoolID), &policy); err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Could not create policy",
			})
		}
	} else if err := sc.DB.Save(&policy).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not update policy",
		})
	}

	return c.JSON(fiber.Map{
		"message": "Policy updated",
		"policy":  policy,
	})
}
