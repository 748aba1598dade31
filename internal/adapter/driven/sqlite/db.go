package sqlite

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// DB wraps a single SQLite connection with WAL mode enabled. The hook runs
// one operation at a time, so one connection is enough and sidesteps
// "database is locked" errors entirely.
type DB struct {
	Conn *sql.DB
	path string
}

// OpenDB opens the SQLite database at dbPath with WAL mode, busy timeout,
// synchronous NORMAL and foreign keys enabled. The file is created on
// first use.
func OpenDB(dbPath string) (*DB, error) {
	dsn := fmt.Sprintf(
		"file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(ON)",
		dbPath,
	)

	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	conn.SetMaxOpenConns(1)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &DB{Conn: conn, path: dbPath}, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	if err := db.Conn.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}
