package database

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Options applied to every connection. Immediate transactions take the write lock on
// BEGIN so read-then-write sequences inside a transaction cannot interleave.
const connectionOptions = "_foreign_keys=on&_txlock=immediate&_busy_timeout=5000"

// partialIndexes enforce uniqueness among enabled rows only.
var partialIndexes = []string{
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_users_email_enabled ON users(email) WHERE enabled = 1`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_task_lists_user_name_enabled ON task_lists(user_id, name) WHERE enabled = 1`,
}

// Open opens the SQLite database at path and runs migrations.
func Open(path string, logw *log.Logger) (*gorm.DB, error) {
	if logw == nil {
		logw = log.New(os.Stdout, "", log.LstdFlags)
	}
	if err := ensureDirForSQLite(path); err != nil {
		return nil, err
	}

	dbLogger := logger.New(logw, logger.Config{
		SlowThreshold:             time.Second,
		LogLevel:                  logger.Warn,
		IgnoreRecordNotFoundError: true,
		Colorful:                  false,
	})

	db, err := gorm.Open(sqlite.Open(DSN(path)), &gorm.Config{Logger: dbLogger})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}

	logw.Println("Database initialized successfully")
	return db, nil
}

// Migrate creates or updates the schema.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&User{}, &TaskList{}, &Task{}, &Notification{}); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	for _, stmt := range partialIndexes {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}
	return nil
}

// DSN turns a database path into a sqlite3 DSN with the connection options applied.
func DSN(path string) string {
	dsn := path
	if !strings.HasPrefix(dsn, "file:") {
		dsn = "file:" + dsn
	}
	if strings.Contains(dsn, "?") {
		return dsn + "&" + connectionOptions
	}
	return dsn + "?" + connectionOptions
}

// ensureDirForSQLite creates the parent directory of a file database.
func ensureDirForSQLite(path string) error {
	if strings.Contains(path, ":memory:") || strings.Contains(path, "mode=memory") {
		return nil
	}
	clean := strings.TrimPrefix(path, "file:")
	clean = strings.Split(clean, "?")[0]
	dir := filepath.Dir(clean)
	if dir == "." || dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create db dir %q: %w", dir, err)
	}
	return nil
}

// Close closes the underlying connection pool.
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Store handles database operations for every entity.
type Store struct {
	db *gorm.DB
}

// NewStore wraps an open database.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}
