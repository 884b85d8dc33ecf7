package utils

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"lomda/config"
	"lomda/models"
)

func InitDB(cfg *config.Config) (*gorm.DB, error) {
	dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		cfg.DBHost, cfg.DBPort, cfg.DBUser, cfg.DBPassword, cfg.DBName)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	err = db.AutoMigrate(
		&models.User{},
		&models.Subscription{},
		&models.School{},
		&models.Membership{},
		&models.Course{},
		&models.Lesson{},
		&models.Enrollment{},
		&models.Quiz{},
		&models.QuizQuestion{},
		&models.QuizAttempt{},
		&models.Entitlement{},
		&models.ContentProtectionPolicy{},
		&models.Download{},
		&models.EventLog{},
	)
	if err != nil {
		return nil, err
	}

	return db, nil
}
