package middleware

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"lomda/access"
	"lomda/config"
	"lomda/models"
	"lomda/utils"
)

// AuthMiddleware verifies the JWT and stashes the caller's identity in
// locals for handlers.
func AuthMiddleware(cfg *config.Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, email, err := utils.ExtractUserFromToken(c, cfg)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Unauthorized",
			})
		}
		c.Locals("user_id", userID)
		c.Locals("user_email", email)
		return c.Next()
	}
}

// SchoolAdminMiddleware requires an OWNER/ADMIN membership in the school
// named by the :schoolId route param, or a global admin email.
func SchoolAdminMiddleware(db *gorm.DB, cfg *config.Config) fiber.Handler {
	return requireRole(db, cfg, access.IsSchoolAdmin)
}

// TeacherMiddleware requires a teaching membership (OWNER, ADMIN,
// INSTRUCTOR or TA) in the school named by the :schoolId route param.
func TeacherMiddleware(db *gorm.DB, cfg *config.Config) fiber.Handler {
	return requireRole(db, cfg, access.IsTeacherRole)
}

func requireRole(db *gorm.DB, cfg *config.Config, allowed func(string) bool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, email, err := utils.ExtractUserFromToken(c, cfg)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Unauthorized",
			})
		}

		if cfg.IsGlobalAdmin(email) {
			c.Locals("user_id", userID)
			c.Locals("user_email", email)
			return c.Next()
		}

		schoolID, err := c.ParamsInt("schoolId")
		if err != nil || schoolID <= 0 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Invalid school ID",
			})
		}

		var membership models.Membership
		dbErr := db.Where("user_id = ? AND school_id = ?", userID, schoolID).First(&membership).Error
		if dbErr != nil {
			if errors.Is(dbErr, gorm.ErrRecordNotFound) {
				return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
					"error": "Forbidden - insufficient role",
				})
			}
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Could not query database",
			})
		}
		if !allowed(membership.Role) {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": "Forbidden - insufficient role",
			})
		}

		c.Locals("user_id", userID)
		c.Locals("user_email", email)
		return c.Next()
	}
}
