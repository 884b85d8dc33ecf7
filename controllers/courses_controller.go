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

type CoursesController struct {
	DB  *gorm.DB
	St  *store.Store
	Cfg *config.Config
}

func NewCoursesController(db *gorm.DB, st *store.Store, cfg *config.Config) *CoursesController {
	return &CoursesController{DB: db, St: st, Cfg: cfg}
}

func (cc *CoursesController) ListCourses(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(uint)
	email := c.Locals("user_email").(string)

	schoolID, err := c.ParamsInt("schoolId")
	if err != nil || schoolID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid school ID",
		})
	}

	ctx, err := loadAccessContext(cc.DB, cc.St, cc.Cfg, uint(schoolID), userID, email)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not query database",
		})
	}

	var courses []models.Course
	if err := cc.St.Filter(&courses, uint(schoolID), nil, "created_at desc", 250); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not query database",
		})
	}

	result := make([]fiber.Map, 0, len(courses))
	for i := range courses {
		course := &courses[i]
		level := access.Resolve(access.ResolveInput{
			Course:           course,
			Role:             ctx.Role,
			Entitlements:     ctx.Entitlements,
			SubscriptionTier: ctx.SubscriptionTier,
			Policy:           ctx.Policy,
			Now:              ctx.Now,
		})
		result = append(result, fiber.Map{
			"id":           course.ID,
			"title":        course.Title,
			"short_desc":   course.ShortDesc,
			"logo_url":     course.LogoURL,
			"access_level": course.AccessLevel,
			"access_tier":  course.AccessTier,
			"access":       level,
		})
	}

	return c.JSON(result)
}

func (cc *CoursesController) GetCourseDetails(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(uint)
	email := c.Locals("user_email").(string)

	schoolID, err := c.ParamsInt("schoolId")
	if err != nil || schoolID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid school ID",
		})
	}
	courseID, err := c.ParamsInt("id")
	if err != nil || courseID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid course ID",
		})
	}

	var course models.Course
	found, err := cc.St.First(&course, uint(schoolID), map[string]interface{}{"id": courseID})
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not query database",
		})
	}
	if !found {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Course not found",
		})
	}

	ctx, err := loadAccessContext(cc.DB, cc.St, cc.Cfg, uint(schoolID), userID, email)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not query database",
		})
	}
	enrolled, err := enrollDate(cc.St, uint(schoolID), email, course.ID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not query database",
		})
	}

	courseLevel := access.Resolve(access.ResolveInput{
		Course:           &course,
		Role:             ctx.Role,
		Entitlements:     ctx.Entitlements,
		SubscriptionTier: ctx.SubscriptionTier,
		Policy:           ctx.Policy,
		Now:              ctx.Now,
	})

	var lessons []models.Lesson
	if err := cc.St.Filter(&lessons, uint(schoolID), map[string]interface{}{"course_id": course.ID}, "sequence_order", 1000); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not query database",
		})
	}

	lessonList := make([]fiber.Map, 0, len(lessons))
	for i := range lessons {
		lesson := &lessons[i]
		level := access.Resolve(access.ResolveInput{
			Course:           &course,
			Lesson:           lesson,
			Role:             ctx.Role,
			Entitlements:     ctx.Entitlements,
			SubscriptionTier: ctx.SubscriptionTier,
			Policy:           ctx.Policy,
			EnrollDate:       enrolled,
			Now:              ctx.Now,
		})

		entry := fiber.Map{
			"id":         lesson.ID,
			"title":      lesson.Title,
			"order":      lesson.SequenceOrder,
			"is_preview": lesson.IsPreview,
			"access":     level,
		}
		if level == access.DripLocked && enrolled != nil {
			availability := access.ComputeLessonAvailability(lesson, *enrolled, ctx.Now)
			if availability.AvailableAt != nil {
				entry["available_at"] = availability.AvailableAt
				entry["countdown"] = access.FormatAvailabilityCountdown(*availability.AvailableAt, ctx.Now)
			}
		}
		lessonList = append(lessonList, entry)
	}

	return c.JSON(fiber.Map{
		"course": fiber.Map{
			"id":           course.ID,
			"title":        course.Title,
			"short_desc":   course.ShortDesc,
			"description":  course.Description,
			"logo_url":     course.LogoURL,
			"access_level": course.AccessLevel,
			"access_tier":  course.AccessTier,
		},
		"access":  courseLevel,
		"lessons": lessonList,
	})
}

// EnrollInCourse records the enrollment event drip offsets count from.
// Requires course access; enrolling without access would let anyone
// start their own drip clock on locked content.
func (cc *CoursesController) EnrollInCourse(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(uint)
	email := c.Locals("user_email").(string)

	schoolID, err := c.ParamsInt("schoolId")
	if err != nil || schoolID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid school ID",
		})
	}
	courseID, err := c.ParamsInt("id")
	if err != nil || courseID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid course ID",
		})
	}

	var course models.Course
	found, err := cc.St.First(&course, uint(schoolID), map[string]interface{}{"id": courseID})
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not query database",
		})
	}
	if !found {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Course not found",
		})
	}

	ctx, err := loadAccessContext(cc.DB, cc.St, cc.Cfg, uint(schoolID), userID, email)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not query database",
		})
	}

	level := access.Resolve(access.ResolveInput{
		Course:           &course,
		Role:             ctx.Role,
		Entitlements:     ctx.Entitlements,
		SubscriptionTier: ctx.SubscriptionTier,
		Policy:           ctx.Policy,
		Now:              ctx.Now,
	})
	if level != access.Full {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error":  "Course access required to enroll",
			"access": level,
		})
	}

	existing, err := enrollDate(cc.St, uint(schoolID), email, course.ID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not query database",
		})
	}
	if existing != nil {
		return c.JSON(fiber.Map{
			"message":     "Already enrolled",
			"enrolled_at": existing,
		})
	}

	enrollment := models.Enrollment{
		UserEmail:  email,
		CourseID:   course.ID,
		EnrolledAt: ctx.Now,
	}
	if err := cc.St.Create(uint(schoolID), &enrollment); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not create enrollment",
		})
	}

	return c.JSON(fiber.Map{
		"message":     "Enrolled",
		"enrolled_at": enrollment.EnrolledAt,
	})
}

func (cc *CoursesController) CreateCourse(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(uint)

	schoolID, err := c.ParamsInt("schoolId")
	if err != nil || schoolID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid school ID",
		})
	}

	var input struct {
		Title       string `json:"title"`
		ShortDesc   string `json:"short_desc"`
		Description string `json:"description"`
		LogoURL     string `json:"logo_url"`
		AccessLevel string `json:"access_level"`
		AccessTier  string `json:"access_tier"`
	}
	if err := c.BodyParser(&input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Cannot parse JSON",
		})
	}

	course := models.Course{
		Title:       input.Title,
		ShortDesc:   input.ShortDesc,
		Description: input.Description,
		LogoURL:     input.LogoURL,
		AccessLevel: input.AccessLevel,
		AccessTier:  input.AccessTier,
		AuthorID:    userID,
	}
	if err := cc.St.Create(uint(schoolID), &course); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not create course",
		})
	}

	return c.JSON(fiber.Map{
		"message": "Course created",
		"course":  course,
	})
}

func (cc *CoursesController) AddLesson(c *fiber.Ctx) error {
	schoolID, err := c.ParamsInt("schoolId")
	if err != nil || schoolID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid school ID",
		})
	}
	courseID, err := c.ParamsInt("id")
	if err != nil || courseID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid course ID",
		})
	}

	var input struct {
		Title           string     `json:"title"`
		Description     string     `json:"description"`
		Content         string     `json:"content"`
		VideoURL        string     `json:"video_url"`
		AudioURL        string     `json:"audio_url"`
		DurationSeconds int        `json:"duration_seconds"`
		IsPreview       bool       `json:"is_preview"`
		DripMode        string     `json:"drip_mode"`
		DripOffsetDays  int        `json:"drip_offset_days"`
		DripUnlockAt    *time.Time `json:"drip_unlock_at"`
	}
	if err := c.BodyParser(&input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Cannot parse JSON",
		})
	}

	var course models.Course
	found, err := cc.St.First(&course, uint(schoolID), map[string]interface{}{"id": courseID})
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not query database",
		})
	}
	if !found {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Course not found",
		})
	}

	var lessonCount int64
	if err := cc.DB.Model(&models.Lesson{}).
		Where("school_id = ? AND course_id = ?", schoolID, courseID).
		Count(&lessonCount).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not query database",
		})
	}

	lesson := models.Lesson{
		CourseID:        course.ID,
		Title:           input.Title,
		Description:     input.Description,
		Content:         input.Content,
		VideoURL:        input.VideoURL,
		AudioURL:        input.AudioURL,
		DurationSeconds: input.DurationSeconds,
		SequenceOrder:   int(lessonCount) + 1,
		IsPreview:       input.IsPreview,
		DripMode:        input.DripMode,
		DripOffsetDays:  input.DripOffsetDays,
		DripUnlockAt:    input.DripUnlockAt,
	}
	if err := cc.St.Create(uint(schoolID), &lesson); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not create lesson",
		})
	}

	return c.JSON(fiber.Map{
		"message": "Lesson added",
		"lesson":  lesson,
	})
}
