// Package retrieval implements hybrid app retrieval: semantic and keyword
// retrievers, rank fusion, re-ranking, and the request pipeline around them.
package retrieval

import (
	"context"

	"github.com/dp9910/app4me-sub001/store"
)

// Store is the read side of the app store used by retrieval.
type Store interface {
	ListApps(ctx context.Context, find *store.FindApp) ([]*store.App, error)
	ListAppFeatures(ctx context.Context, find *store.FindAppFeatures) ([]*store.AppFeatures, error)
	ListAppEmbeddings(ctx context.Context, find *store.FindAppEmbedding) ([]*store.AppEmbedding, error)
}

// AppSet indexes apps by id.
type AppSet map[string]*store.App

// LoadApps lists the apps matching the CEL filter, all apps when filter is
// empty.
func LoadApps(ctx context.Context, st Store, filter string) (AppSet, error) {
	apps, err := st.ListApps(ctx, &store.FindApp{Filter: filter})
	if err != nil {
		return nil, err
	}
	set := make(AppSet, len(apps))
	for _, app := range apps {
		set[app.ID] = app
	}
	return set, nil
}
