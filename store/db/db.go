package db

import (
	"github.com/pkg/errors"

	"github.com/dp9910/app4me-sub001/internal/profile"
	"github.com/dp9910/app4me-sub001/store"
	"github.com/dp9910/app4me-sub001/store/db/postgres"
	"github.com/dp9910/app4me-sub001/store/db/sqlite"
)

// ============================================================================
// DATABASE SUPPORT POLICY
// ============================================================================
// PostgreSQL: production catalog with pgvector embeddings.
// SQLite: development and tests. Vectors are compared in Go.
// ============================================================================

// NewDBDriver creates new db driver based on profile.
func NewDBDriver(profile *profile.Profile) (store.Driver, error) {
	var driver store.Driver
	var err error

	switch profile.Driver {
	case "sqlite":
		driver, err = sqlite.NewDB(profile)
	case "postgres":
		driver, err = postgres.NewDB(profile)
	default:
		return nil, errors.Errorf("unknown db driver %q: only 'postgres' and 'sqlite' are supported", profile.Driver)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to create db driver")
	}
	return driver, nil
}
