package controllers

import (
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"lomda/access"
	"lomda/config"
	"lomda/materials"
	"lomda/models"
	"lomda/store"
)

type LessonsController struct {
	DB     *gorm.DB
	St     *store.Store
	Cfg    *config.Config
	Engine *materials.Engine
}

func NewLessonsController(db *gorm.DB, st *store.Store, cfg *config.Config) *LessonsController {
	return &LessonsController{DB: db, St: st, Cfg: cfg, Engine: materials.NewEngine(st)}
}

// GetLessonMaterial resolves access first and only then fetches content.
// Locked callers get a gating payload, never a partial material.
func (lc *LessonsController) GetLessonMaterial(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(uint)
	email := c.Locals("user_email").(string)

	schoolID, err := c.ParamsInt("schoolId")
	if err != nil || schoolID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid school ID",
		})
	}
	lessonID, err := c.ParamsInt("id")
	if err != nil || lessonID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid lesson ID",
		})
	}

	// Lesson metadata first: access cannot be resolved without knowing
	// which course the lesson belongs to.
	var lesson models.Lesson
	found, err := lc.St.First(&lesson, uint(schoolID), map[string]interface{}{"id": lessonID})
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not query database",
		})
	}
	if !found {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error":  "Lesson not found",
			"access": access.NotFound,
		})
	}

	var course models.Course
	found, err = lc.St.First(&course, uint(schoolID), map[string]interface{}{"id": lesson.CourseID})
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not query database",
		})
	}
	if !found {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error":  "Course not found",
			"access": access.NotFound,
		})
	}

	ctx, err := loadAccessContext(lc.DB, lc.St, lc.Cfg, uint(schoolID), userID, email)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not query database",
		})
	}
	enrolled, err := enrollDate(lc.St, uint(schoolID), email, course.ID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not query database",
		})
	}

	level := access.Resolve(access.ResolveInput{
		Course:           &course,
		Lesson:           &lesson,
		Role:             ctx.Role,
		Entitlements:     ctx.Entitlements,
		SubscriptionTier: ctx.SubscriptionTier,
		Policy:           ctx.Policy,
		EnrollDate:       enrolled,
		Now:              ctx.Now,
	})

	if !access.ShouldFetchMaterials(level) {
		gate := fiber.Map{
			"access":   level,
			"material": nil,
		}
		if level == access.DripLocked && enrolled != nil {
			availability := access.ComputeLessonAvailability(&lesson, *enrolled, ctx.Now)
			if availability.AvailableAt != nil {
				gate["available_at"] = availability.AvailableAt
				gate["countdown"] = access.FormatAvailabilityCountdown(*availability.AvailableAt, ctx.Now)
			}
		}
		return c.Status(fiber.StatusForbidden).JSON(gate)
	}

	material, _, err := lc.Engine.GetLessonMaterial(uint(schoolID), lesson.ID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not query database",
		})
	}

	sanitized := materials.SanitizeForAccess(material, level, ctx.Policy)

	canCopy := access.ResolveLicense(level, ctx.Policy.CopyMode,
		access.HasLicense(ctx.Entitlements, access.EntitlementCopyLicense, ctx.Now))
	canDownload := access.ResolveLicense(level, ctx.Policy.DownloadMode,
		access.HasLicense(ctx.Entitlements, access.EntitlementDownloadLicense, ctx.Now))

	response := fiber.Map{
		"access":       level,
		"material":     sanitized,
		"can_copy":     canCopy,
		"can_download": canDownload,
	}
	if ctx.Policy.WatermarkEnabled {
		response["watermark"] = materials.WatermarkText(email, ctx.Now)
	}
	return c.JSON(response)
}
