// Package journal records link events to SQLite through gorm. The default
// database lives in memory and is never read back at startup.
package journal

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	_ "modernc.org/sqlite"
)

// Config holds database configuration
type Config struct {
	Path string // SQLite DSN, e.g. file::memory:?cache=shared or a file path
}

// DB wraps the GORM database instance
type DB struct {
	db *gorm.DB
}

// NewDB opens the journal with the pure Go SQLite driver and migrates the schema
func NewDB(config Config, l *log.Logger) (*DB, error) {
	var gormLog logger.Interface
	if l != nil {
		gormLog = logger.New(
			l.StandardLog(log.StandardLogOptions{ForceLevel: log.WarnLevel}),
			logger.Config{
				SlowThreshold:             200 * time.Millisecond,
				LogLevel:                  logger.Warn,
				IgnoreRecordNotFoundError: true,
				Colorful:                  false,
			},
		)
	} else {
		gormLog = logger.Default.LogMode(logger.Silent)
	}

	dialector := sqlite.Dialector{
		DriverName: "sqlite",
		DSN:        config.Path,
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormLog,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open journal %s: %w", config.Path, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	// one long-lived connection: a shared in-memory database disappears with
	// its last connection, and the recorder is the only writer anyway
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(0)
	sqlDB.SetConnMaxIdleTime(0)

	for _, pragma := range pragmas(config.Path) {
		if _, err := sqlDB.Exec(pragma); err != nil {
			return nil, fmt.Errorf("failed to configure journal (%s): %w", pragma, err)
		}
	}

	if err := db.AutoMigrate(&LinkEvent{}); err != nil {
		return nil, fmt.Errorf("failed to migrate journal: %w", err)
	}

	if l != nil {
		l.Debug("Journal initialized", "path", config.Path, "memory", inMemory(config.Path))
	}

	return &DB{db: db}, nil
}

func inMemory(path string) bool {
	return strings.Contains(path, ":memory:") || strings.Contains(path, "mode=memory")
}

// pragmas tunes SQLite for the journal. In memory there is nothing to sync;
// on disk the journal is append-mostly and may lose the last events on power loss.
func pragmas(path string) []string {
	if inMemory(path) {
		return []string{
			"PRAGMA journal_mode=MEMORY",
			"PRAGMA synchronous=OFF",
			"PRAGMA temp_store=MEMORY",
		}
	}
	return []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=OFF",
		"PRAGMA wal_autocheckpoint=256",
		"PRAGMA temp_store=MEMORY",
	}
}

// GetDB returns the underlying GORM database instance
func (db *DB) GetDB() *gorm.DB {
	return db.db
}

// Close closes the database connection
func (db *DB) Close() error {
	sqlDB, err := db.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Health pings the connection and runs SQLite's quick integrity check
func (db *DB) Health() error {
	sqlDB, err := db.db.DB()
	if err != nil {
		return err
	}
	if err := sqlDB.Ping(); err != nil {
		return err
	}
	var result string
	if err := sqlDB.QueryRow("PRAGMA quick_check").Scan(&result); err != nil {
		return err
	}
	if result != "ok" {
		return fmt.Errorf("journal integrity check: %s", result)
	}
	return nil
}
