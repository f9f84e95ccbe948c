// Package db opens and migrates the bridge's embedded SQLite store.
package db

import (
	"fmt"
	"os"
	"path/filepath"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/remotevibe/bridge/internal/models"
)

// DefaultPath returns the fixed per-user database path,
// $XDG_DATA_HOME/remotevibe/bridge.db (falling back to ~/.local/share).
func DefaultPath() (string, error) {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return filepath.Join(dir, "remotevibe", "bridge.db"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("db: resolve home directory: %w", err)
	}
	return filepath.Join(home, ".local", "share", "remotevibe", "bridge.db"), nil
}

// Connect opens (creating if absent) the SQLite database at path and runs
// AutoMigrate for every model in the schema. One connection is owned by the
// caller for the life of the process.
func Connect(path string) (*gorm.DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("db: create data directory: %w", err)
	}
	gdb, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("db: open %s: %w", path, err)
	}
	if err := AutoMigrate(gdb); err != nil {
		return nil, err
	}
	return gdb, nil
}

// AllModels returns every model the bridge persists.
func AllModels() []interface{} {
	return []interface{}{
		&models.ThreadSession{},
		&models.PartMessage{},
		&models.BotToken{},
		&models.ChannelDirectory{},
		&models.BotAPIKey{},
	}
}

// AutoMigrate creates or updates every table in AllModels.
func AutoMigrate(gdb *gorm.DB) error {
	if err := gdb.AutoMigrate(AllModels()...); err != nil {
		return fmt.Errorf("db: auto-migrate: %w", err)
	}
	return nil
}

// Close closes the underlying *sql.DB.
func Close(gdb *gorm.DB) error {
	sqlDB, err := gdb.DB()
	if err != nil {
		return fmt.Errorf("db: get sql.DB: %w", err)
	}
	return sqlDB.Close()
}
