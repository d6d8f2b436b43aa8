package database

import (
	"log"

	"whatsapp-crm/internal/config"
	"whatsapp-crm/internal/models"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var GormDB *gorm.DB

func InitGorm(cfg *config.Config) {
	var err error
	if cfg.DatabaseURL != "" {
		GormDB, err = gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{
			Logger: logger.Default.LogMode(logger.Warn),
		})
	} else {
		// Local / test fallback
		GormDB, err = gorm.Open(sqlite.Open(cfg.DBPath), &gorm.Config{
			Logger: logger.Default.LogMode(logger.Warn),
		})
	}

	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	log.Println("Connected to database successfully")

	if err := Migrate(GormDB); err != nil {
		log.Fatalf("Failed to run auto-migration: %v", err)
	}

	log.Println("Database migration completed")
}

// Migrate runs the schema migration for all models. Exposed so tests can
// migrate their own in-memory databases.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Instance{},
		&models.Chat{},
		&models.Message{},
		&models.Template{},
		&models.Campaign{},
		&models.CampaignLead{},
	)
}
