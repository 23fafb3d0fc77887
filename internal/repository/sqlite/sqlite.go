// Package sqlite implements the repository interfaces on SQLite.
//
// WHY modernc.org/sqlite INSTEAD OF github.com/mattn/go-sqlite3?
// mattn/go-sqlite3 needs CGo and a C compiler, which makes cross-compiling
// painful. modernc.org/sqlite is a pure Go translation of SQLite, so the
// server builds anywhere Go builds and tests run against ":memory:".
//
// DATABASE/SQL OVERVIEW:
//   - sql.DB  : a connection pool (NOT a single connection!)
//   - sql.Tx  : a transaction
//   - sql.Rows: multiple result rows (must be closed!)
//
// One *DB implements every repository interface. Tables:
//
//	users ─┬─< reviews >── courses ─< teaching_records >── terms
//	       ├─< favorites                      │
//	       └─< password_resets            instructors
//	verification_codes (keyed by email, exists before the user does)
package sqlite

import (
	"database/sql"
	"errors"
	"fmt"

	sqlitedrv "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// DB wraps a sql.DB connection pool and provides repository methods.
type DB struct {
	conn *sql.DB
}

// New opens the database at dbPath and runs migrations.
//
//   - "data/reviews.db" → file-based database (persistent)
//   - ":memory:"        → in-memory database (tests)
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	// An in-memory database exists per connection. Pinning the pool to one
	// connection keeps every query on the same database.
	if dbPath == ":memory:" {
		conn.SetMaxOpenConns(1)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	// WAL lets readers proceed while a write is in progress; foreign keys
	// are off by default in SQLite.
	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA foreign_keys=ON", "PRAGMA busy_timeout=5000"} {
		if _, err := conn.Exec(pragma); err != nil {
			conn.Close()
			return nil, fmt.Errorf("sqlite: %s: %w", pragma, err)
		}
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}
	return db, nil
}

// Close closes the connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Ping is used by the health endpoint.
func (db *DB) Ping() error {
	return db.conn.Ping()
}

// migrate creates the schema. Every statement is idempotent so it runs on
// each start; later columns go through addColumnIfNotExists.
func (db *DB) migrate() error {
	steps := []struct {
		name string
		sql  string
	}{
		{"users", `
			CREATE TABLE IF NOT EXISTS users (
				id             TEXT PRIMARY KEY,
				email          TEXT NOT NULL UNIQUE,
				name           TEXT NOT NULL UNIQUE COLLATE NOCASE,
				password_hash  TEXT NOT NULL DEFAULT '',
				email_verified INTEGER NOT NULL DEFAULT 0,
				active         INTEGER NOT NULL DEFAULT 1,
				created_at     DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
				updated_at     DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
			);`},
		{"courses", `
			CREATE TABLE IF NOT EXISTS courses (
				code       TEXT PRIMARY KEY,
				title_en   TEXT NOT NULL,
				title_tc   TEXT NOT NULL DEFAULT '',
				title_sc   TEXT NOT NULL DEFAULT '',
				department TEXT NOT NULL DEFAULT '',
				language   TEXT NOT NULL DEFAULT ''
			);`},
		{"terms", `
			CREATE TABLE IF NOT EXISTS terms (
				code       TEXT PRIMARY KEY,
				name       TEXT NOT NULL,
				start_date DATETIME,
				end_date   DATETIME
			);`},
		{"instructors", `
			CREATE TABLE IF NOT EXISTS instructors (
				name       TEXT PRIMARY KEY,
				title      TEXT NOT NULL DEFAULT '',
				department TEXT NOT NULL DEFAULT '',
				email      TEXT NOT NULL DEFAULT ''
			);`},
		{"teaching_records", `
			CREATE TABLE IF NOT EXISTS teaching_records (
				course_code     TEXT NOT NULL REFERENCES courses(code),
				term_code       TEXT NOT NULL REFERENCES terms(code),
				instructor_name TEXT NOT NULL REFERENCES instructors(name),
				session_type    TEXT NOT NULL,
				PRIMARY KEY (course_code, term_code, instructor_name, session_type)
			);
			CREATE INDEX IF NOT EXISTS idx_teaching_records_instructor ON teaching_records(instructor_name);`},
		{"reviews", `
			CREATE TABLE IF NOT EXISTS reviews (
				id                           TEXT PRIMARY KEY,
				user_id                      TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
				is_anon                      INTEGER NOT NULL DEFAULT 0,
				username                     TEXT NOT NULL DEFAULT '',
				course_code                  TEXT NOT NULL REFERENCES courses(code),
				term_code                    TEXT NOT NULL REFERENCES terms(code),
				course_workload              REAL,
				course_difficulties          REAL,
				course_usefulness            REAL,
				course_final_grade           TEXT NOT NULL,
				course_comments              TEXT NOT NULL,
				has_service_learning         INTEGER NOT NULL DEFAULT 0,
				service_learning_description TEXT,
				submitted_at                 TEXT NOT NULL,
				instructor_details           TEXT NOT NULL DEFAULT '[]',
				review_language              TEXT NOT NULL DEFAULT 'en',
				created_at                   DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
				updated_at                   DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
			);
			CREATE UNIQUE INDEX IF NOT EXISTS idx_reviews_user_course_term ON reviews(user_id, course_code, term_code);
			CREATE INDEX IF NOT EXISTS idx_reviews_course ON reviews(course_code);`},
		{"favorites", `
			CREATE TABLE IF NOT EXISTS favorites (
				user_id    TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
				kind       TEXT NOT NULL,
				key        TEXT NOT NULL,
				created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
				PRIMARY KEY (user_id, kind, key)
			);`},
		{"verification_codes", `
			CREATE TABLE IF NOT EXISTS verification_codes (
				email       TEXT PRIMARY KEY,
				code_hash   TEXT NOT NULL,
				expires_at  DATETIME NOT NULL,
				attempts    INTEGER NOT NULL DEFAULT 0,
				verified_at DATETIME,
				created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
			);`},
		{"password_resets", `
			CREATE TABLE IF NOT EXISTS password_resets (
				id          TEXT PRIMARY KEY,
				user_id     TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
				secret_hash TEXT NOT NULL,
				expires_at  DATETIME NOT NULL,
				used_at     DATETIME,
				created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
			);
			CREATE INDEX IF NOT EXISTS idx_password_resets_user ON password_resets(user_id, created_at);`},
	}
	for _, s := range steps {
		if _, err := db.conn.Exec(s.sql); err != nil {
			return fmt.Errorf("creating %s: %w", s.name, err)
		}
	}

	// Google linking arrived after the first release.
	if err := db.addColumnIfNotExists("users", "google_id", "TEXT"); err != nil {
		return fmt.Errorf("adding google_id to users: %w", err)
	}
	if err := db.addColumnIfNotExists("users", "google_email", "TEXT NOT NULL DEFAULT ''"); err != nil {
		return fmt.Errorf("adding google_email to users: %w", err)
	}
	if _, err := db.conn.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS idx_users_google_id ON users(google_id) WHERE google_id IS NOT NULL`); err != nil {
		return fmt.Errorf("creating google_id index: %w", err)
	}
	return nil
}

// addColumnIfNotExists makes ALTER TABLE ADD COLUMN safe to run repeatedly.
func (db *DB) addColumnIfNotExists(table, column, definition string) error {
	var count int
	err := db.conn.QueryRow(
		`SELECT COUNT(*) FROM pragma_table_info(?) WHERE name = ?`,
		table, column,
	).Scan(&count)
	if err != nil {
		return fmt.Errorf("checking column %s.%s: %w", table, column, err)
	}
	if count > 0 {
		return nil
	}
	_, err = db.conn.Exec(fmt.Sprintf(`ALTER TABLE %s ADD COLUMN %s %s`, table, column, definition))
	return err
}

// isUniqueViolation reports whether err is a UNIQUE or PRIMARY KEY failure.
func isUniqueViolation(err error) bool {
	var se *sqlitedrv.Error
	if !errors.As(err, &se) {
		return false
	}
	return se.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE || se.Code() == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
}

// checkAffected turns "no row matched" into notFound.
func checkAffected(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: reading rows affected: %w", err)
	}
	if n == 0 {
		return notFound
	}
	return nil
}
