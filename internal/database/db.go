package database

import (
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"logistics-backend/internal/config"
	"logistics-backend/internal/logger"
	"logistics-backend/internal/models"
)

var DB *gorm.DB

// Init opens the Postgres connection, sizes the pool and runs migrations.
func Init(cfg *config.Config) error {
	logLevel := gormlogger.Warn
	if cfg.IsDevelopment() {
		logLevel = gormlogger.Info
	}

	db, err := gorm.Open(postgres.Open(cfg.DatabaseDSN), &gorm.Config{
		Logger: gormlogger.Default.LogMode(logLevel),
	})
	if err != nil {
		return fmt.Errorf("could not connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("could not get sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(5 * time.Minute)

	if err := Migrate(db); err != nil {
		return err
	}

	DB = db
	logger.Logger.Info().Msg("database connected, migrations applied")
	return nil
}

// Migrate creates or updates every table. Parents are listed before their children.
func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.User{},
		&models.Supplier{},
		&models.Product{},
		&models.Requirement{},
		&models.RequirementDetail{},
		&models.PurchaseOrder{},
		&models.PurchaseOrderDetail{},
		&models.Reception{},
		&models.ReceptionDetail{},
		&models.Output{},
		&models.OutputDetail{},
		&models.InventoryMovement{},
		&models.Invoice{},
		&models.InvoiceDetail{},
		&models.AuditLog{},
	)
	if err != nil {
		return fmt.Errorf("auto migrate failed: %w", err)
	}
	return nil
}

// Ping checks that the pool can still reach the database.
func Ping() error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}
	sqlDB, err := DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}
