// Package db owns the database connection and schema migration.
package db

import (
	"log"

	"settlement-backend/internal/config"
	"settlement-backend/internal/models"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

func InitDB() {
	var err error

	if config.AppConfig == nil || config.AppConfig.Database.DSN == "" {
		log.Fatalf("Database DSN is required")
	}

	dsn := config.AppConfig.Database.DSN
	DB, err = gorm.Open(postgres.Open(dsn), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		SkipDefaultTransaction:                   true,
		PrepareStmt:                              true,
		TranslateError:                           true,
		Logger:                                   logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		log.Fatalf("Failed to connect database: %v", err)
	}

	if err := DB.AutoMigrate(
		&models.ChainConfig{},
		&models.TokenMapping{},
		&models.SyntheticToken{},
		&models.TokenAccount{},
		&models.UserNonce{},
		&models.LedgerEntry{},
		&models.ProcessedMessage{},
		&models.DispatchRecord{},
		&models.SettlementRecord{},
		&models.LockerToken{},
		&models.LockerDestination{},
		&models.ChainBalanceManager{},
	); err != nil {
		log.Fatalf("AutoMigrate failed: %v", err)
	}

	log.Println("Database schema migrated")
}
