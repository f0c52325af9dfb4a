package store

import (
	"context"

	"github.com/pkg/errors"
)

// App is a unified app record merged from the upstream sources.
type App struct {
	ID          string
	Title       string
	Category    string
	Description string
	// Rating is nil when no source reported one, which is distinct from 0.
	Rating    *float64
	IconURL   string
	CreatedTs int64
	UpdatedTs int64
}

// RatingOrZero returns the rating, treating an absent rating as 0.
func (a *App) RatingOrZero() float64 {
	if a == nil || a.Rating == nil {
		return 0
	}
	return *a.Rating
}

// FindApp is the find condition for apps.
type FindApp struct {
	ID       *string
	IDs      []string
	Category *string
	// Filter is an optional CEL expression evaluated against each app,
	// e.g. `app.rating >= 4.0 && app.category == "Lifestyle"`.
	Filter string
	Limit  *int
}

// DeleteApp is the delete condition for apps.
type DeleteApp struct {
	ID string
}

// UpsertApp inserts or updates an app.
func (s *Store) UpsertApp(ctx context.Context, upsert *App) (*App, error) {
	app, err := s.driver.UpsertApp(ctx, upsert)
	if err != nil {
		return nil, err
	}
	s.appCache.Delete(app.ID)
	return app, nil
}

// ListApps lists apps matching the find condition. A CEL filter is applied
// after the driver query, so Limit counts filtered apps.
func (s *Store) ListApps(ctx context.Context, find *FindApp) ([]*App, error) {
	if find == nil {
		find = &FindApp{}
	}
	if find.Filter == "" {
		return s.driver.ListApps(ctx, find)
	}

	filter, err := CompileAppFilter(find.Filter)
	if err != nil {
		return nil, errors.WithMessage(ErrInvalidFilter, err.Error())
	}

	driverFind := *find
	driverFind.Filter = ""
	driverFind.Limit = nil
	list, err := s.driver.ListApps(ctx, &driverFind)
	if err != nil {
		return nil, err
	}

	filtered := make([]*App, 0, len(list))
	for _, app := range list {
		ok, err := filter.Match(app)
		if err != nil {
			return nil, errors.WithMessage(ErrInvalidFilter, err.Error())
		}
		if !ok {
			continue
		}
		filtered = append(filtered, app)
		if find.Limit != nil && len(filtered) >= *find.Limit {
			break
		}
	}
	return filtered, nil
}

// GetApp gets an app by id. Returns nil, nil when the app does not exist.
func (s *Store) GetApp(ctx context.Context, id string) (*App, error) {
	if cached, ok := s.appCache.Get(id); ok {
		return cached, nil
	}

	list, err := s.driver.ListApps(ctx, &FindApp{ID: &id})
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, nil
	}

	app := list[0]
	s.appCache.Set(app.ID, app)
	return app, nil
}

// DeleteApp deletes an app.
func (s *Store) DeleteApp(ctx context.Context, delete *DeleteApp) error {
	if err := s.driver.DeleteApp(ctx, delete); err != nil {
		return err
	}
	s.appCache.Delete(delete.ID)
	return nil
}
