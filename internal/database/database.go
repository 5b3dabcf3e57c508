package database

import (
	"fmt"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DB holds the database connection
type DB struct {
	*gorm.DB
}

// NewDatabase opens (or creates) the SQLite ledger at dbPath and migrates it
func NewDatabase(dbPath string) (*DB, error) {
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	// SQLite allows a single writer
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetConnMaxLifetime(time.Hour)

	err = db.AutoMigrate(
		&Simulation{},
		&DecisionRecord{},
		&ChannelSnapshot{},
		&Event{},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	for _, stmt := range ledgerIndexes {
		if err := db.Exec(stmt).Error; err != nil {
			return nil, fmt.Errorf("failed to create ledger index: %w", err)
		}
	}

	return &DB{db}, nil
}

// ledgerIndexes cover the per-run queries the API issues: decisions by round
// and device, snapshots by round and port
var ledgerIndexes = []string{
	`CREATE INDEX IF NOT EXISTS idx_decisions_sim_round_device ON decision_records(simulation_id, round, device_id)`,
	`CREATE INDEX IF NOT EXISTS idx_snapshots_sim_round_port ON channel_snapshots(simulation_id, round, port)`,
	`CREATE INDEX IF NOT EXISTS idx_events_sim_time ON events(simulation_id, timestamp)`,
}

// Close closes the database connection
func (db *DB) Close() error {
	sqlDB, err := db.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
