//go:build integration

// Package testdb provides helpers for tests that run against a real
// PostgreSQL database.
//
// Tests using it are compiled only with the integration build tag and are
// skipped unless a database URL is set:
//
//	func TestSomething(t *testing.T) {
//	    db := testdb.GetTestDBWithT(t)
//	    testdb.WithTx(t, db, func(t *testing.T, tx *sql.Tx) {
//	        s := postgres.NewPostgresTemplateStore(tx, nil)
//	        ...
//	    })
//	}
//
// The schema is migrated once per process with the embedded migrations.
package testdb

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/easybewerbung/bewerbung-api/internal/platform/postgres"
	"github.com/easybewerbung/bewerbung-api/internal/redact"
	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib" // pgx driver
)

// Environment variables checked for a test database, in order.
var urlEnvVars = []string{"BEWERBUNG_TEST_DATABASE_URL", "DATABASE_URL"}

var (
	migrateOnce sync.Once
	migrateErr  error
)

// GetTestDatabaseURL returns the first configured test database URL.
func GetTestDatabaseURL() string {
	for _, name := range urlEnvVars {
		if v := os.Getenv(name); v != "" {
			return v
		}
	}
	return ""
}

// ShouldSkipDatabaseTest reports whether no test database is configured.
func ShouldSkipDatabaseTest() bool {
	return GetTestDatabaseURL() == ""
}

// GetTestDBWithT opens a migrated connection pool and closes it when the
// test ends. The test is skipped when no database is configured.
func GetTestDBWithT(t *testing.T) *sql.DB {
	t.Helper()

	dbURL := GetTestDatabaseURL()
	if dbURL == "" {
		t.Skipf("none of %v set, skipping database test", urlEnvVars)
	}

	db, err := sql.Open("pgx", dbURL)
	if err != nil {
		t.Fatalf("failed to open test database: %s", redact.Error(err))
	}
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Logf("failed to close test database: %v", err)
		}
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		t.Fatalf("failed to ping test database: %s", redact.Error(err))
	}

	migrateOnce.Do(func() {
		quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
		migrateErr = postgres.Migrate(context.Background(), db, postgres.MigrateUp, quiet)
	})
	if migrateErr != nil {
		t.Fatalf("failed to migrate test database: %v", migrateErr)
	}
	return db
}

// WithTx runs fn inside a transaction that is always rolled back.
func WithTx(t *testing.T, db *sql.DB, fn func(t *testing.T, tx *sql.Tx)) {
	t.Helper()

	tx, err := db.BeginTx(context.Background(), nil)
	if err != nil {
		t.Fatalf("failed to begin transaction: %v", err)
	}
	defer func() {
		if err := tx.Rollback(); err != nil && err != sql.ErrTxDone {
			t.Errorf("failed to roll back transaction: %v", err)
		}
	}()

	fn(t, tx)
}

// CreateUser inserts a user with the given balance and removes it, with
// everything that cascades from it, when the test ends. It writes through db
// directly because stores that own their transactions cannot see rows of an
// uncommitted test transaction.
func CreateUser(t *testing.T, db *sql.DB, credits int) uuid.UUID {
	t.Helper()

	id := uuid.New()
	_, err := db.ExecContext(context.Background(),
		`INSERT INTO users (id, email, credits, documentation_language) VALUES ($1, $2, $3, 'de')`,
		id, fmt.Sprintf("%s@test.invalid", id), credits)
	if err != nil {
		t.Fatalf("failed to create test user: %v", err)
	}
	t.Cleanup(func() {
		if _, err := db.ExecContext(context.Background(), `DELETE FROM users WHERE id = $1`, id); err != nil {
			t.Logf("failed to delete test user: %v", err)
		}
	})
	return id
}

// CreateApplication inserts an application owned by userID.
func CreateApplication(t *testing.T, db *sql.DB, userID uuid.UUID, jobTitle, company string) uuid.UUID {
	t.Helper()

	id := uuid.New()
	_, err := db.ExecContext(context.Background(),
		`INSERT INTO applications (id, user_id, job_title, company) VALUES ($1, $2, $3, $4)`,
		id, userID, jobTitle, company)
	if err != nil {
		t.Fatalf("failed to create test application: %v", err)
	}
	return id
}
