package routes

import (
	"log"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"lomda/config"
	"lomda/controllers"
	"lomda/middleware"
	"lomda/store"
)

func SetupRoutes(app *fiber.App, db *gorm.DB, cfg *config.Config, logger *log.Logger) {
	st := store.New(db)

	// Auth routes
	authController := controllers.NewAuthController(db, cfg)
	app.Post("/api/auth/register", authController.Register)
	app.Post("/api/auth/login", authController.Login)

	// Middleware
	authMiddleware := middleware.AuthMiddleware(cfg)
	teacherMiddleware := middleware.TeacherMiddleware(db, cfg)
	adminMiddleware := middleware.SchoolAdminMiddleware(db, cfg)

	// User routes
	userController := controllers.NewUserController(db, cfg)
	app.Get("/api/user/profile", authMiddleware, userController.GetProfile)
	app.Put("/api/user/profile", authMiddleware, userController.UpdateProfile)

	// School routes
	schoolsController := controllers.NewSchoolsController(db, st, cfg)
	app.Post("/api/schools", authMiddleware, schoolsController.CreateSchool)
	app.Post("/api/schools/:schoolId/join", authMiddleware, schoolsController.JoinSchool)

	// School-scoped content routes
	coursesController := controllers.NewCoursesController(db, st, cfg)
	lessonsController := controllers.NewLessonsController(db, st, cfg)
	quizzesController := controllers.NewQuizzesController(db, st, cfg)
	downloadsController := controllers.NewDownloadsController(db, st, cfg, logger)

	school := app.Group("/api/schools/:schoolId", authMiddleware)
	school.Get("/courses", coursesController.ListCourses)
	school.Get("/courses/:id", coursesController.GetCourseDetails)
	school.Post("/courses/:id/enroll", coursesController.EnrollInCourse)
	school.Get("/lessons/:id/material", lessonsController.GetLessonMaterial)
	school.Get("/quizzes", quizzesController.ListQuizzes)
	school.Get("/quizzes/:id", quizzesController.GetQuizForAccess)
	school.Post("/quizzes/:id/attempts", quizzesController.SubmitAttempt)
	school.Get("/downloads/:id", downloadsController.GetSecureDownload)

	// Teaching staff routes
	teaching := app.Group("/api/schools/:schoolId/teach", teacherMiddleware)
	teaching.Post("/courses", coursesController.CreateCourse)
	teaching.Post("/courses/:id/lessons", coursesController.AddLesson)
	teaching.Post("/quizzes", quizzesController.SaveQuiz)

	// Admin routes
	admin := app.Group("/api/schools/:schoolId/admin", adminMiddleware)
	admin.Post("/entitlements", schoolsController.GrantEntitlement)
	admin.Put("/policy", schoolsController.UpdatePolicy)
	admin.Post("/downloads", downloadsController.CreateDownload)
}
