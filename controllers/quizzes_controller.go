package controllers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"lomda/access"
	"lomda/config"
	"lomda/models"
	"lomda/quizzes"
	"lomda/store"
)

type QuizzesController struct {
	DB     *gorm.DB
	St     *store.Store
	Cfg    *config.Config
	Engine *quizzes.Engine
}

func NewQuizzesController(db *gorm.DB, st *store.Store, cfg *config.Config) *QuizzesController {
	return &QuizzesController{DB: db, St: st, Cfg: cfg, Engine: quizzes.NewEngine(st)}
}

func (qc *QuizzesController) ListQuizzes(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(uint)
	email := c.Locals("user_email").(string)

	schoolID, err := c.ParamsInt("schoolId")
	if err != nil || schoolID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid school ID",
		})
	}

	ctx, err := loadAccessContext(qc.DB, qc.St, qc.Cfg, uint(schoolID), userID, email)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not query database",
		})
	}

	match := map[string]interface{}{}
	if !ctx.IsTeacher {
		match["is_published"] = true
	}
	var quizList []models.Quiz
	if err := qc.St.Filter(&quizList, uint(schoolID), match, "created_at desc", 250); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not query database",
		})
	}

	result := make([]fiber.Map, 0, len(quizList))
	for i := range quizList {
		quiz := &quizList[i]
		level, err := qc.resolveQuizLevel(quiz, ctx, uint(schoolID))
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Could not query database",
			})
		}
		result = append(result, fiber.Map{
			"id":              quiz.ID,
			"title":           quiz.Title,
			"course_id":       quiz.CourseID,
			"questions_count": quiz.QuestionsCount,
			"passing_score":   quiz.PassingScore,
			"is_published":    quiz.IsPublished,
			"access":          level,
		})
	}

	return c.JSON(result)
}

// GetQuizForAccess resolves the access level, then lets the engine fetch
// only what that level permits.
func (qc *QuizzesController) GetQuizForAccess(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(uint)
	email := c.Locals("user_email").(string)

	schoolID, err := c.ParamsInt("schoolId")
	if err != nil || schoolID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid school ID",
		})
	}
	quizID, err := c.ParamsInt("id")
	if err != nil || quizID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid quiz ID",
		})
	}

	ctx, err := loadAccessContext(qc.DB, qc.St, qc.Cfg, uint(schoolID), userID, email)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not query database",
		})
	}

	quiz, err := qc.Engine.GetQuizMeta(uint(schoolID), uint(quizID))
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not query database",
		})
	}
	if quiz == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error":  "Quiz not found",
			"access": access.NotFound,
		})
	}

	level, err := qc.resolveQuizLevel(quiz, ctx, uint(schoolID))
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not query database",
		})
	}

	bundle, err := qc.Engine.LoadQuizForAccess(uint(schoolID), uint(quizID), level, ctx.IsTeacher)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not query database",
		})
	}

	return c.JSON(fiber.Map{
		"quiz": fiber.Map{
			"id":                 quiz.ID,
			"title":              quiz.Title,
			"description":        quiz.Description,
			"course_id":          quiz.CourseID,
			"passing_score":      quiz.PassingScore,
			"time_limit_seconds": quiz.TimeLimitSeconds,
			"shuffle_questions":  quiz.ShuffleQuestions,
			"max_attempts":       quiz.MaxAttempts,
			"questions_count":    quiz.QuestionsCount,
		},
		"questions": bundle.Questions,
		"access":    bundle.Access,
	})
}

func (qc *QuizzesController) SubmitAttempt(c *fiber.Ctx) error {
	email := c.Locals("user_email").(string)

	schoolID, err := c.ParamsInt("schoolId")
	if err != nil || schoolID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid school ID",
		})
	}
	quizID, err := c.ParamsInt("id")
	if err != nil || quizID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid quiz ID",
		})
	}

	var input struct {
		Score            int                     `json:"score"`
		Passed           bool                    `json:"passed"`
		Answers          []quizzes.AttemptAnswer `json:"answers"`
		TimeTakenSeconds *int                    `json:"time_taken_seconds"`
	}
	if err := c.BodyParser(&input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Cannot parse JSON",
		})
	}

	attemptID, err := qc.Engine.RecordQuizAttempt(quizzes.RecordAttemptInput{
		SchoolID:         uint(schoolID),
		QuizID:           uint(quizID),
		UserEmail:        email,
		Score:            input.Score,
		Passed:           input.Passed,
		Answers:          input.Answers,
		TimeTakenSeconds: input.TimeTakenSeconds,
	})
	if err != nil {
		if errors.Is(err, quizzes.ErrMissingSchool) ||
			errors.Is(err, quizzes.ErrMissingQuizID) ||
			errors.Is(err, quizzes.ErrMissingUserEmail) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": err.Error(),
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not record attempt",
		})
	}

	return c.JSON(fiber.Map{
		"message":    "Attempt recorded",
		"attempt_id": attemptID,
	})
}

func (qc *QuizzesController) SaveQuiz(c *fiber.Ctx) error {
	email := c.Locals("user_email").(string)

	schoolID, err := c.ParamsInt("schoolId")
	if err != nil || schoolID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid school ID",
		})
	}

	var input struct {
		QuizID    uint                  `json:"quiz_id"`
		Meta      quizzes.QuizMeta      `json:"meta"`
		Questions []quizzes.RawQuestion `json:"questions"`
	}
	if err := c.BodyParser(&input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Cannot parse JSON",
		})
	}

	quizID, err := qc.Engine.SaveQuiz(quizzes.SaveQuizInput{
		SchoolID:  uint(schoolID),
		QuizID:    input.QuizID,
		Meta:      input.Meta,
		Questions: input.Questions,
		UserEmail: email,
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Quiz not found",
			})
		}
		if errors.Is(err, quizzes.ErrMissingSchool) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": err.Error(),
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not save quiz",
		})
	}

	return c.JSON(fiber.Map{
		"message": "Quiz saved",
		"quiz_id": quizID,
	})
}

// resolveQuizLevel loads the parent course (when the quiz has one) and
// runs the resolver.
func (qc *QuizzesController) resolveQuizLevel(quiz *models.Quiz, ctx *accessContext, schoolID uint) (access.Level, error) {
	in := access.ResolveInput{
		Quiz:             quiz,
		Role:             ctx.Role,
		Entitlements:     ctx.Entitlements,
		SubscriptionTier: ctx.SubscriptionTier,
		Policy:           ctx.Policy,
		Now:              ctx.Now,
	}
	if quiz.CourseID != nil {
		var course models.Course
		found, err := qc.St.First(&course, schoolID, map[string]interface{}{"id": *quiz.CourseID})
		if err != nil {
			return access.NotFound, err
		}
		if found {
			in.Course = &course
		}
	}
	return access.Resolve(in), nil
}
