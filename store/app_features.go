package store

import "context"

// AppFeatures holds the LLM-extracted descriptive features of an app.
// A record with empty weight maps is valid and contributes no keyword score.
type AppFeatures struct {
	AppID string
	// KeywordWeights maps a lowercased keyword to its TF-IDF weight.
	KeywordWeights map[string]float64
	// CategoryWeights maps a category-label token to its weight.
	CategoryWeights map[string]float64
	PrimaryUseCase  string
	CreatedTs       int64
	UpdatedTs       int64
}

// FindAppFeatures is the find condition for app features.
type FindAppFeatures struct {
	AppID  *string
	AppIDs []string
}

// UpsertAppFeatures inserts or updates the features of an app.
func (s *Store) UpsertAppFeatures(ctx context.Context, upsert *AppFeatures) (*AppFeatures, error) {
	return s.driver.UpsertAppFeatures(ctx, upsert)
}

// ListAppFeatures lists app features.
func (s *Store) ListAppFeatures(ctx context.Context, find *FindAppFeatures) ([]*AppFeatures, error) {
	if find == nil {
		find = &FindAppFeatures{}
	}
	return s.driver.ListAppFeatures(ctx, find)
}

// GetAppFeatures gets the features of an app. Returns nil, nil when absent.
func (s *Store) GetAppFeatures(ctx context.Context, appID string) (*AppFeatures, error) {
	list, err := s.driver.ListAppFeatures(ctx, &FindAppFeatures{AppID: &appID})
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, nil
	}
	return list[0], nil
}

// DeleteAppFeatures deletes the features of an app.
func (s *Store) DeleteAppFeatures(ctx context.Context, appID string) error {
	return s.driver.DeleteAppFeatures(ctx, appID)
}
