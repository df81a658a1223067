package db

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/fx"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/Rogue-Bear-Innovations/art-archive/internal/config"
	"github.com/Rogue-Bear-Innovations/art-archive/internal/models"
)

var Module = fx.Provide(NewGormClient, NewStore)

var logLevels = map[string]logger.LogLevel{
	"silent": logger.Silent,
	"error":  logger.Error,
	"warn":   logger.Warn,
	"info":   logger.Info,
}

func NewGormClient(cfg *config.Config) (*gorm.DB, error) {
	level, ok := logLevels[cfg.DBLogLevel]
	if !ok {
		level = logger.Warn
	}
	newLogger := logger.New(log.New(os.Stdout, "\r\n", log.LstdFlags), logger.Config{
		SlowThreshold:             200 * time.Millisecond,
		LogLevel:                  level,
		Colorful:                  true,
		IgnoreRecordNotFoundError: true,
	})

	var dialector gorm.Dialector
	switch cfg.DBDriver {
	case config.DriverPostgres:
		dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
			cfg.DBHost, cfg.DBUser, cfg.DBPassword, cfg.DBName, cfg.DBPort, cfg.DBSSLMode)
		dialector = postgres.Open(dsn)
	default:
		dialector = sqlite.Open(cfg.DBPath)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: newLogger,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect database")
	}

	if cfg.DBDriver != config.DriverPostgres {
		// one writer at a time; sqlite transactions and plain statements must not race for the file lock
		sqlDB, err := db.DB()
		if err != nil {
			return nil, errors.Wrap(err, "get sql db")
		}
		sqlDB.SetMaxOpenConns(1)
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}

	return db, nil
}

// Migrate creates the three collections if they do not exist yet.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&models.Art{}); err != nil {
		return errors.Wrap(err, "migrate art")
	}
	if err := db.AutoMigrate(&models.Category{}); err != nil {
		return errors.Wrap(err, "migrate category")
	}
	if err := db.AutoMigrate(&models.TagCategory{}); err != nil {
		return errors.Wrap(err, "migrate tag category")
	}
	return nil
}
