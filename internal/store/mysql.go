package store

import (
	"database/sql"
	"fmt"

	_ "github.com/go-sql-driver/mysql"
)

type MySQLStore struct {
	sqlStore
}

// MySQL has no CREATE INDEX IF NOT EXISTS, so the indexes ride along in
// the table definition.
const mysqlSchema = `
CREATE TABLE IF NOT EXISTS events (
    id BIGINT PRIMARY KEY AUTO_INCREMENT,
    cohort VARCHAR(255) NOT NULL,
    created_at BIGINT NOT NULL,
    converted_at BIGINT,
    INDEX idx_events_cohort (cohort),
    INDEX idx_events_cohort_converted (cohort, converted_at)
)`

func OpenMySQL(dsn string) (*MySQLStore, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to reach database: %w", err)
	}

	if _, err := db.Exec(mysqlSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &MySQLStore{sqlStore{db: db}}, nil
}
