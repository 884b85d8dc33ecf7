package controllers

import (
	"log"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"lomda/config"
	"lomda/materials"
	"lomda/models"
	"lomda/store"
)

type DownloadsController struct {
	DB     *gorm.DB
	St     *store.Store
	Cfg    *config.Config
	Engine *materials.Engine
	Logger *log.Logger
}

func NewDownloadsController(db *gorm.DB, st *store.Store, cfg *config.Config, logger *log.Logger) *DownloadsController {
	return &DownloadsController{DB: db, St: st, Cfg: cfg, Engine: materials.NewEngine(st), Logger: logger}
}

// GetSecureDownload resolves download access and returns the URL only
// when granted. The audit write is best-effort: a failure is logged and
// the decision stands.
func (dc *DownloadsController) GetSecureDownload(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(uint)
	email := c.Locals("user_email").(string)

	schoolID, err := c.ParamsInt("schoolId")
	if err != nil || schoolID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid school ID",
		})
	}
	downloadID, err := c.ParamsInt("id")
	if err != nil || downloadID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid download ID",
		})
	}

	ctx, err := loadAccessContext(dc.DB, dc.St, dc.Cfg, uint(schoolID), userID, email)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not query database",
		})
	}

	result, err := dc.Engine.GetSecureDownloadUrl(materials.DownloadRequest{
		SchoolID:     uint(schoolID),
		DownloadID:   uint(downloadID),
		UserEmail:    email,
		Entitlements: ctx.Entitlements,
		Policy:       ctx.Policy,
		Now:          ctx.Now,
	})
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":  "Could not resolve download",
			"reason": result.Reason,
		})
	}
	if result.AuditErr != nil && dc.Logger != nil {
		dc.Logger.Printf("download audit write failed: %v", result.AuditErr)
	}

	status := fiber.StatusOK
	switch {
	case result.Reason == materials.ReasonNotFound:
		status = fiber.StatusNotFound
	case !result.Allowed:
		status = fiber.StatusForbidden
	}
	return c.Status(status).JSON(result)
}

// CreateDownload registers a downloadable file for the school.
func (dc *DownloadsController) CreateDownload(c *fiber.Ctx) error {
	schoolID, err := c.ParamsInt("schoolId")
	if err != nil || schoolID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid school ID",
		})
	}

	var input struct {
		Title    string  `json:"title"`
		FileURL  string  `json:"file_url"`
		Price    float64 `json:"price"`
		CourseID *uint   `json:"course_id"`
	}
	if err := c.BodyParser(&input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Cannot parse JSON",
		})
	}
	if input.FileURL == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "file_url is required",
		})
	}

	download := models.Download{
		Title:    input.Title,
		FileURL:  input.FileURL,
		Price:    input.Price,
		CourseID: input.CourseID,
	}
	if err := dc.St.Create(uint(schoolID), &download); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not create download",
		})
	}

	return c.JSON(fiber.Map{
		"message":  "Download created",
		"download": download,
	})
}
