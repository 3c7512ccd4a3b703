package database

import (
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/roundtable-labs/backend/internal/analytics"
)

const migrationBackfillClosureSignguCodes = "2026-07-20_backfill_closure_signgu_codes"

type migrationRecord struct {
	Name             string `gorm:"column:name;primaryKey;size:190;not null"`
	AppliedAtSeconds int64  `gorm:"column:applied_at_s;not null"`
}

func (migrationRecord) TableName() string {
	return "db_migrations"
}

type migrationDefinition struct {
	name  string
	apply func(*gorm.DB) error
}

func applyMigrations(db *gorm.DB, logger *zap.Logger) error {
	migrations := []migrationDefinition{
		{name: migrationBackfillClosureSignguCodes, apply: backfillClosureSignguCodes},
	}

	for _, migration := range migrations {
		var record migrationRecord
		err := db.Where("name = ?", migration.name).Take(&record).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if err := migration.apply(db); err != nil {
			return err
		}
		appliedAt := time.Now().UTC().Unix()
		if err := db.Create(&migrationRecord{Name: migration.name, AppliedAtSeconds: appliedAt}).Error; err != nil {
			return err
		}
		if logger != nil {
			logger.Info("database migration applied", zap.String("migration", migration.name))
		}
	}
	return nil
}

// Early closure imports stored the district name only; later queries filter
// by the five-digit code as well.
func backfillClosureSignguCodes(db *gorm.DB) error {
	var names []string
	if err := db.Model(&analytics.ClosureStat{}).
		Where("signgu_cd = '' AND signgu_cd_nm <> ''").
		Distinct().
		Pluck("signgu_cd_nm", &names).Error; err != nil {
		return err
	}
	for _, name := range names {
		code := analytics.SignguNameToCode(name)
		if code == "" {
			continue
		}
		if err := db.Model(&analytics.ClosureStat{}).
			Where("signgu_cd = '' AND signgu_cd_nm = ?", name).
			Update("signgu_cd", code).Error; err != nil {
			return err
		}
	}
	return nil
}
