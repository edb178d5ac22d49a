// Package testutil holds helpers shared by package tests.
package testutil

import (
	"FeeDistributor/internal/persistence"
	"context"
	"crypto/sha256"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	_ "github.com/lib/pq"
	"github.com/mr-tron/base58"
	"github.com/rs/zerolog"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
)

// truncated lists every table the migrations create, in dependency order.
var truncated = []string{
	"distribution.day_progress",
	"distribution.events",
	"distribution.journal",
	"vesting.schedules",
	"revenue.accruals",
	"revenue.day_claims",
	"projections.account_totals",
	"projections.watermark",
}

// SetupTestDB returns a migrated Postgres database. TEST_POSTGRES_DSN points
// at an existing server; otherwise a throwaway container is started, and the
// test is skipped when Docker is unavailable.
func SetupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		dsn = startContainer(ctx, t)
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		t.Skipf("test postgres not available: %v", err)
	}

	if err := persistence.NewMigrator(db, MigrationsDir(t), zerolog.Nop()).Up(ctx); err != nil {
		db.Close()
		t.Fatalf("migrate: %v", err)
	}
	for _, table := range truncated {
		if _, err := db.ExecContext(ctx, fmt.Sprintf("TRUNCATE %s RESTART IDENTITY CASCADE", table)); err != nil {
			db.Close()
			t.Fatalf("truncate %s: %v", table, err)
		}
	}

	t.Cleanup(func() { db.Close() })
	return db
}

func startContainer(ctx context.Context, t *testing.T) string {
	t.Helper()

	ctr, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("fees_test"),
		postgres.WithUsername("fees"),
		postgres.WithPassword("fees"),
		postgres.BasicWaitStrategies(),
	)
	if err != nil {
		t.Skipf("postgres container unavailable: %v", err)
	}
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(ctr); err != nil {
			t.Logf("terminate postgres container: %v", err)
		}
	})

	dsn, err := ctr.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("postgres connection string: %v", err)
	}
	return dsn
}

// MigrationsDir walks up from the working directory to the module root.
func MigrationsDir(t *testing.T) string {
	t.Helper()

	dir, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return filepath.Join(dir, "migrations")
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			t.Fatalf("go.mod not found above working directory")
		}
		dir = parent
	}
}

// AccountID derives a stable base58 32-byte identifier from a label, so
// tests can name accounts "alice" and still pass id validation.
func AccountID(label string) string {
	sum := sha256.Sum256([]byte(label))
	return base58.Encode(sum[:])
}

// GoldenFile reads testdata/<name>.
func GoldenFile(t *testing.T, name string) []byte {
	t.Helper()
	path := filepath.Join("testdata", name)
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read golden file %s: %v", path, err)
	}
	return data
}

// AssertGolden compares got against testdata/<name>. With UPDATE_GOLDEN=1
// the file is rewritten instead.
func AssertGolden(t *testing.T, name string, got []byte) {
	t.Helper()

	if os.Getenv("UPDATE_GOLDEN") == "1" {
		path := filepath.Join("testdata", name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("create testdata dir: %v", err)
		}
		if err := os.WriteFile(path, got, 0o644); err != nil {
			t.Fatalf("write golden file %s: %v", path, err)
		}
		t.Logf("updated golden file: %s", path)
		return
	}

	want := GoldenFile(t, name)
	if string(got) != string(want) {
		t.Errorf("golden file mismatch for %s:\n--- want ---\n%s\n--- got ---\n%s", name, want, got)
	}
}
