package controllers

import (
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"lomda/config"
	"lomda/models"
)

type UserController struct {
	DB  *gorm.DB
	Cfg *config.Config
}

func NewUserController(db *gorm.DB, cfg *config.Config) *UserController {
	return &UserController{DB: db, Cfg: cfg}
}

// GetProfile returns the caller's profile with their school memberships.
func (uc *UserController) GetProfile(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(uint)

	var user models.User
	if err := uc.DB.First(&user, userID).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "User not found",
		})
	}

	var memberships []models.Membership
	uc.DB.Where("user_id = ?", userID).Find(&memberships)

	membershipList := make([]fiber.Map, 0, len(memberships))
	for _, m := range memberships {
		membershipList = append(membershipList, fiber.Map{
			"school_id": m.SchoolID,
			"role":      m.Role,
		})
	}

	return c.JSON(fiber.Map{
		"id":          user.ID,
		"username":    user.Username,
		"email":       user.Email,
		"created_at":  user.CreatedAt,
		"memberships": membershipList,
	})
}

// UpdateProfile changes the caller's username.
func (uc *UserController) UpdateProfile(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(uint)

	var input struct {
		Username string `json:"username"`
	}
	if err := c.BodyParser(&input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Cannot parse JSON",
		})
	}

	var user models.User
	if err := uc.DB.First(&user, userID).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "User not found",
		})
	}

	if input.Username != "" {
		user.Username = input.Username
	}
	if err := uc.DB.Save(&user).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not update profile",
		})
	}

	return c.JSON(fiber.Map{
		"message": "Profile updated",
		"user": fiber.Map{
			"id":       user.ID,
			"username": user.Username,
			"email":    user.Email,
		},
	})
}
