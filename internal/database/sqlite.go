package database

import (
	"fmt"

	sqlite "github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/roundtable-labs/backend/internal/analytics"
	"github.com/roundtable-labs/backend/internal/keywords"
	"github.com/roundtable-labs/backend/internal/meetings"
	"github.com/roundtable-labs/backend/internal/minutes"
	"github.com/roundtable-labs/backend/internal/stt"
	"github.com/roundtable-labs/backend/internal/users"
)

// OpenSQLite establishes a SQLite connection and performs schema migrations.
func OpenSQLite(path string, logger *zap.Logger) (*gorm.DB, error) {
	if path == "" {
		return nil, fmt.Errorf("database path is required")
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(
		&users.Account{},
		&meetings.Meeting{},
		&meetings.Block{},
		&meetings.BlockRevision{},
		&meetings.Attachment{},
		&stt.TranscriptSegment{},
		&minutes.MinutesSnapshot{},
		&keywords.KeywordLog{},
		&analytics.TradingArea{},
		&analytics.IndustryMetric{},
		&analytics.ChangeIndex{},
		&analytics.ClosureStat{},
		&analytics.StoreCount{},
		&migrationRecord{},
	); err != nil {
		return nil, err
	}

	if err := applyMigrations(db, logger); err != nil {
		return nil, err
	}

	if logger != nil {
		logger.Info("database initialized", zap.String("path", path))
	}

	return db, nil
}
