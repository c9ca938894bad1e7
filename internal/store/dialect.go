package store

import (
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
)

// dialect captures the per-driver differences the store has to care about.
type dialect struct {
	// driverName is the database/sql driver the connection is opened with.
	driverName string
	// returning is true when inserts report the new id via RETURNING
	// instead of LastInsertId.
	returning bool
	// schema holds the CREATE statements for this driver.
	schema []string
}

var sqliteDialect = dialect{
	driverName: "sqlite",
	schema: []string{
		`CREATE TABLE IF NOT EXISTS users (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			username TEXT UNIQUE NOT NULL,
			password_hash TEXT NOT NULL,
			company_id INTEGER NOT NULL,
			is_superuser INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS visitors (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			email TEXT NOT NULL DEFAULT '',
			phone TEXT NOT NULL DEFAULT '',
			company_id INTEGER NOT NULL,
			pre_registered INTEGER NOT NULL DEFAULT 0,
			notified INTEGER NOT NULL DEFAULT 0,
			check_in DATETIME,
			check_out DATETIME,
			temperature REAL,
			health_status TEXT,
			face_image_path TEXT,
			visit_purpose TEXT NOT NULL DEFAULT '',
			person_to_meet TEXT NOT NULL DEFAULT '',
			department TEXT NOT NULL DEFAULT '',
			company_name TEXT NOT NULL DEFAULT '',
			visitor_location TEXT NOT NULL DEFAULT '',
			version INTEGER NOT NULL DEFAULT 1,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_visitors_company ON visitors(company_id)`,
		`CREATE INDEX IF NOT EXISTS idx_users_company ON users(company_id)`,
	},
}

var postgresDialect = dialect{
	driverName: "pgx",
	returning:  true,
	schema: []string{
		`CREATE TABLE IF NOT EXISTS users (
			id BIGSERIAL PRIMARY KEY,
			username TEXT UNIQUE NOT NULL,
			password_hash TEXT NOT NULL,
			company_id BIGINT NOT NULL,
			is_superuser BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS visitors (
			id BIGSERIAL PRIMARY KEY,
			name TEXT NOT NULL,
			email TEXT NOT NULL DEFAULT '',
			phone TEXT NOT NULL DEFAULT '',
			company_id BIGINT NOT NULL,
			pre_registered BOOLEAN NOT NULL DEFAULT FALSE,
			notified BOOLEAN NOT NULL DEFAULT FALSE,
			check_in TIMESTAMPTZ,
			check_out TIMESTAMPTZ,
			temperature DOUBLE PRECISION,
			health_status TEXT,
			face_image_path TEXT,
			visit_purpose TEXT NOT NULL DEFAULT '',
			person_to_meet TEXT NOT NULL DEFAULT '',
			department TEXT NOT NULL DEFAULT '',
			company_name TEXT NOT NULL DEFAULT '',
			visitor_location TEXT NOT NULL DEFAULT '',
			version BIGINT NOT NULL DEFAULT 1,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_visitors_company ON visitors(company_id)`,
		`CREATE INDEX IF NOT EXISTS idx_users_company ON users(company_id)`,
	},
}

// MySQL has no CREATE INDEX IF NOT EXISTS, so indexes are declared inline.
var mysqlDialect = dialect{
	driverName: "mysql",
	schema: []string{
		`CREATE TABLE IF NOT EXISTS users (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			username VARCHAR(191) UNIQUE NOT NULL,
			password_hash VARCHAR(255) NOT NULL,
			company_id BIGINT NOT NULL,
			is_superuser BOOLEAN NOT NULL DEFAULT FALSE,
			created_at DATETIME(6) NOT NULL DEFAULT CURRENT_TIMESTAMP(6),
			INDEX idx_users_company (company_id)
		)`,
		`CREATE TABLE IF NOT EXISTS visitors (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			email VARCHAR(255) NOT NULL DEFAULT '',
			phone VARCHAR(64) NOT NULL DEFAULT '',
			company_id BIGINT NOT NULL,
			pre_registered BOOLEAN NOT NULL DEFAULT FALSE,
			notified BOOLEAN NOT NULL DEFAULT FALSE,
			check_in DATETIME(6) NULL,
			check_out DATETIME(6) NULL,
			temperature DOUBLE NULL,
			health_status VARCHAR(255) NULL,
			face_image_path VARCHAR(1024) NULL,
			visit_purpose VARCHAR(255) NOT NULL DEFAULT '',
			person_to_meet VARCHAR(255) NOT NULL DEFAULT '',
			department VARCHAR(255) NOT NULL DEFAULT '',
			company_name VARCHAR(255) NOT NULL DEFAULT '',
			visitor_location VARCHAR(255) NOT NULL DEFAULT '',
			version BIGINT NOT NULL DEFAULT 1,
			created_at DATETIME(6) NOT NULL DEFAULT CURRENT_TIMESTAMP(6),
			INDEX idx_visitors_company (company_id)
		)`,
	},
}

// dialectFor maps a configured driver name to its dialect.
func dialectFor(driver string) (dialect, error) {
	switch driver {
	case "", "sqlite":
		return sqliteDialect, nil
	case "postgres", "pgx":
		return postgresDialect, nil
	case "mysql":
		return mysqlDialect, nil
	default:
		return dialect{}, fmt.Errorf("unsupported store driver %q (use sqlite, postgres or mysql)", driver)
	}
}

// normalizeMySQLDSN forces parseTime so DATETIME columns scan into time.Time,
// and pins the session location to UTC.
func normalizeMySQLDSN(dsn string) (string, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "", fmt.Errorf("parse mysql dsn: %w", err)
	}
	cfg.ParseTime = true
	cfg.Loc = time.UTC
	return cfg.FormatDSN(), nil
}
