package db

import (
	"context"
	"errors"

	"github.com/monocle-dev/scrumboard/internal/models"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

// ErrNotConnected is returned when the store is used before ConnectDatabase.
var ErrNotConnected = errors.New("database is not connected")

func ConnectDatabase(dsn string) error {
	return Open(postgres.Open(dsn))
}

// Open connects DB through any gorm dialector; tests use sqlite.
func Open(dialector gorm.Dialector) error {
	var err error

	DB, err = gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})

	if err != nil {
		return err
	}

	return nil
}

func Close() error {
	if DB == nil {
		return nil
	}

	sqlDB, err := DB.DB()

	if err != nil {
		return err
	}

	return sqlDB.Close()
}

func Ping(ctx context.Context) error {
	if DB == nil {
		return ErrNotConnected
	}

	sqlDB, err := DB.DB()

	if err != nil {
		return err
	}

	return sqlDB.PingContext(ctx)
}

func MigrateDatabase() error {
	if DB == nil {
		return ErrNotConnected
	}

	models := []interface{}{
		&models.User{},
		&models.Project{},
		&models.TeamMember{},
		&models.Sprint{},
		&models.UserStory{},
		&models.Task{},
		&models.Rubric{},
		&models.Evaluation{},
		&models.Comment{},
	}

	return DB.AutoMigrate(models...)
}
