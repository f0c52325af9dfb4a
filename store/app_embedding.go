package store

import "context"

// AppEmbedding represents the vector embedding of an app.
type AppEmbedding struct {
	AppID     string
	Embedding []float32
	Model     string // Model identifier, e.g., "text-embedding-3-small"
	CreatedTs int64
	UpdatedTs int64
}

// FindAppEmbedding is the find condition for app embeddings.
type FindAppEmbedding struct {
	AppID *string
	Model *string
	Limit int
}

// UpsertAppEmbedding inserts or updates an app embedding.
func (s *Store) UpsertAppEmbedding(ctx context.Context, embedding *AppEmbedding) (*AppEmbedding, error) {
	return s.driver.UpsertAppEmbedding(ctx, embedding)
}

// GetAppEmbedding gets the embedding of a specific app. Returns nil, nil when absent.
func (s *Store) GetAppEmbedding(ctx context.Context, appID string, model string) (*AppEmbedding, error) {
	find := &FindAppEmbedding{AppID: &appID}
	if model != "" {
		find.Model = &model
	}
	list, err := s.driver.ListAppEmbeddings(ctx, find)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, nil
	}
	return list[0], nil
}

// ListAppEmbeddings lists app embeddings.
func (s *Store) ListAppEmbeddings(ctx context.Context, find *FindAppEmbedding) ([]*AppEmbedding, error) {
	if find == nil {
		find = &FindAppEmbedding{}
	}
	return s.driver.ListAppEmbeddings(ctx, find)
}

// DeleteAppEmbedding deletes an app embedding.
func (s *Store) DeleteAppEmbedding(ctx context.Context, appID string) error {
	return s.driver.DeleteAppEmbedding(ctx, appID)
}
