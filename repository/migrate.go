package repository

import (
	"fmt"

	"github.com/amirphl/Susanoo/models"
	"gorm.io/gorm"
)

// enumTypeStmts create the postgres enum types the models map onto.
// Creation is idempotent so restarts are safe.
var enumTypeStmts = []string{
	`DO $$ BEGIN CREATE TYPE campaign_status AS ENUM ('draft', 'scheduled', 'sending', 'sent', 'failed'); EXCEPTION WHEN duplicate_object THEN NULL; END $$`,
	`DO $$ BEGIN CREATE TYPE pacing_policy AS ENUM ('fast', 'balanced', 'safe'); EXCEPTION WHEN duplicate_object THEN NULL; END $$`,
	`DO $$ BEGIN CREATE TYPE message_status AS ENUM ('pending', 'sent', 'delivered', 'failed', 'bounced'); EXCEPTION WHEN duplicate_object THEN NULL; END $$`,
	`DO $$ BEGIN CREATE TYPE delivery_method AS ENUM ('primary', 'fallback'); EXCEPTION WHEN duplicate_object THEN NULL; END $$`,
}

// EnsureSchema creates the enum types and migrates all model tables
func EnsureSchema(db *gorm.DB) error {
	for _, stmt := range enumTypeStmts {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("failed to create enum type: %w", err)
		}
	}

	if err := db.AutoMigrate(
		&models.Campaign{},
		&models.Contact{},
		&models.Message{},
		&models.DeadLetter{},
		&models.WhatsAppSession{},
	); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}

	return nil
}
