package test

import (
	"context"
	"os"
	"testing"

	"github.com/dp9910/app4me-sub001/internal/profile"
	"github.com/dp9910/app4me-sub001/store"
	"github.com/dp9910/app4me-sub001/store/db"
)

// getDriverFromEnv returns the driver under test. DRIVER=postgres requires
// POSTGRES_TEST_DSN.
func getDriverFromEnv() string {
	if driver := os.Getenv("DRIVER"); driver != "" {
		return driver
	}
	return "sqlite"
}

// NewTestingStore returns a migrated store on a fresh database.
func NewTestingStore(ctx context.Context, t *testing.T) *store.Store {
	t.Helper()
	p := getTestingProfile(t)
	driver, err := db.NewDBDriver(p)
	if err != nil {
		t.Fatalf("failed to create db driver: %v", err)
	}

	ts := store.New(driver, p)
	if err := ts.Migrate(ctx); err != nil {
		t.Fatalf("failed to migrate db: %v", err)
	}
	t.Cleanup(func() {
		if p.Driver == "postgres" {
			cleanPostgres(ctx, t, driver)
		}
		_ = ts.Close()
	})
	return ts
}

func getTestingProfile(t *testing.T) *profile.Profile {
	driver := getDriverFromEnv()
	p := &profile.Profile{Mode: "dev", Driver: driver}
	switch driver {
	case "postgres":
		p.DSN = os.Getenv("POSTGRES_TEST_DSN")
		if p.DSN == "" {
			t.Skip("POSTGRES_TEST_DSN is not set")
		}
	default:
		p.DSN = ":memory:"
	}
	return p
}

func cleanPostgres(ctx context.Context, t *testing.T, driver store.Driver) {
	for _, table := range []string{"app_embedding", "app_features", "app"} {
		if _, err := driver.GetDB().ExecContext(ctx, "DELETE FROM "+table); err != nil {
			t.Logf("failed to clean %s: %v", table, err)
		}
	}
}
