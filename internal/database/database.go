package database

import (
	"fmt"
	"time"

	"tcg-pricer/internal/models"

	"github.com/rs/zerolog"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const dailyPriceIndex = "idx_daily_price_card_date"

// Initialize opens the MySQL database at databaseURL, configures the pool and
// runs migrations.
func Initialize(databaseURL string, log zerolog.Logger) (*gorm.DB, error) {
	db, err := Open(mysql.Open(databaseURL), log)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MySQL database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	log.Info().Msg("database initialized successfully")
	return db, nil
}

// Open connects with dialector and migrates the schema.
func Open(dialector gorm.Dialector, log zerolog.Logger) (*gorm.DB, error) {
	db, err := gorm.Open(dialector, &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, err
	}
	if err := Migrate(db, log); err != nil {
		return nil, err
	}
	return db, nil
}

// Migrate creates the catalog and price history tables.
func Migrate(db *gorm.DB, log zerolog.Logger) error {
	if err := db.AutoMigrate(
		&models.TCGGame{},
		&models.CardSet{},
		&models.Rarity{},
		&models.Card{},
		&models.CardVersion{},
		&models.Price{},
		&models.DailyPriceHistory{},
	); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	if err := ensureDailyPriceUniqueIndex(db); err != nil {
		log.Warn().Err(err).Msg("migration warning")
	}
	return nil
}

// ensureDailyPriceUniqueIndex makes sure the (card_version_id, date) unique
// index exists on tables created before it was declared.
func ensureDailyPriceUniqueIndex(db *gorm.DB) error {
	if db.Migrator().HasIndex(&models.DailyPriceHistory{}, dailyPriceIndex) {
		return nil
	}
	if err := db.Migrator().CreateIndex(&models.DailyPriceHistory{}, dailyPriceIndex); err != nil {
		return fmt.Errorf("failed creating %s: %w", dailyPriceIndex, err)
	}
	return nil
}
