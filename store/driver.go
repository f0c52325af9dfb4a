package store

import (
	"context"
	"database/sql"
)

// Driver is an interface for store driver.
// It contains all methods that store database driver should implement.
type Driver interface {
	GetDB() *sql.DB
	Close() error

	IsInitialized(ctx context.Context) (bool, error)

	// App model related methods.
	UpsertApp(ctx context.Context, upsert *App) (*App, error)
	ListApps(ctx context.Context, find *FindApp) ([]*App, error)
	DeleteApp(ctx context.Context, delete *DeleteApp) error

	// AppFeatures model related methods.
	UpsertAppFeatures(ctx context.Context, upsert *AppFeatures) (*AppFeatures, error)
	ListAppFeatures(ctx context.Context, find *FindAppFeatures) ([]*AppFeatures, error)
	DeleteAppFeatures(ctx context.Context, appID string) error

	// AppEmbedding model related methods.
	UpsertAppEmbedding(ctx context.Context, embedding *AppEmbedding) (*AppEmbedding, error)
	ListAppEmbeddings(ctx context.Context, find *FindAppEmbedding) ([]*AppEmbedding, error)
	DeleteAppEmbedding(ctx context.Context, appID string) error
}
