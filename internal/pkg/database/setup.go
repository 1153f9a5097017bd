package database

import (
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/ManuelReschke/CogniFox/app/models"
	"github.com/ManuelReschke/CogniFox/internal/pkg/config"
)

const maxRetries = 5
const retryDelay = 5 * time.Second

// Open connects to MySQL, retrying while the database container comes up,
// and applies the schema when autoMigrate is set.
func Open(cfg config.DatabaseConfig, autoMigrate bool) (*gorm.DB, error) {
	var lastErr error
	for i := 0; i < maxRetries; i++ {
		db, err := gorm.Open(mysql.New(mysql.Config{
			DSN:                       cfg.MySQLDSN(),
			DefaultStringSize:         256,
			DisableDatetimePrecision:  true,
			DontSupportRenameIndex:    true,
			DontSupportRenameColumn:   true,
			SkipInitializeWithVersion: false,
		}), &gorm.Config{})
		if err == nil {
			if autoMigrate {
				if err := Migrate(db); err != nil {
					return nil, err
				}
			}
			return db, nil
		}
		lastErr = err

		log.Warnf("[Database] Failed to connect (try %d/%d): %v", i+1, maxRetries, err)
		if i < maxRetries-1 {
			time.Sleep(retryDelay)
		}
	}

	return nil, fmt.Errorf("database unavailable after %d attempts: %w", maxRetries, lastErr)
}

// Migrate brings the gorm-managed tables up to date. Production deployments
// use cmd/migrate instead.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.WebhookEvent{},
		&models.TestResult{},
	)
}
