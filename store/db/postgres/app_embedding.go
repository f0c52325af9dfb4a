package postgres

import (
	"context"
	"strings"
	"time"

	"github.com/pgvector/pgvector-go"
	"github.com/pkg/errors"

	"github.com/dp9910/app4me-sub001/store"
)

// UpsertAppEmbedding inserts or updates an app embedding.
func (d *DB) UpsertAppEmbedding(ctx context.Context, embedding *store.AppEmbedding) (*store.AppEmbedding, error) {
	now := time.Now().Unix()
	if embedding.CreatedTs == 0 {
		embedding.CreatedTs = now
	}
	if embedding.UpdatedTs == 0 {
		embedding.UpdatedTs = now
	}

	stmt := `
		INSERT INTO app_embedding (app_id, model, embedding, created_ts, updated_ts)
		VALUES (` + placeholders(5) + `)
		ON CONFLICT (app_id, model)
		DO UPDATE SET
			embedding = EXCLUDED.embedding,
			updated_ts = EXCLUDED.updated_ts
		RETURNING created_ts, updated_ts
	`

	vector := pgvector.NewVector(embedding.Embedding)
	if err := d.db.QueryRowContext(ctx, stmt,
		embedding.AppID,
		embedding.Model,
		vector,
		embedding.CreatedTs,
		embedding.UpdatedTs,
	).Scan(&embedding.CreatedTs, &embedding.UpdatedTs); err != nil {
		return nil, errors.Wrap(err, "failed to upsert app embedding")
	}
	return embedding, nil
}

// ListAppEmbeddings lists app embeddings.
func (d *DB) ListAppEmbeddings(ctx context.Context, find *store.FindAppEmbedding) ([]*store.AppEmbedding, error) {
	where, args := []string{"1 = 1"}, []any{}

	if find.AppID != nil {
		where, args = append(where, "app_id = "+placeholder(len(args)+1)), append(args, *find.AppID)
	}
	if find.Model != nil {
		where, args = append(where, "model = "+placeholder(len(args)+1)), append(args, *find.Model)
	}

	query := `
		SELECT app_id, model, embedding, created_ts, updated_ts
		FROM app_embedding
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY app_id ASC, model ASC`
	if find.Limit > 0 {
		query += " LIMIT " + placeholder(len(args)+1)
		args = append(args, find.Limit)
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list app embeddings")
	}
	defer rows.Close()

	list := []*store.AppEmbedding{}
	for rows.Next() {
		var embedding store.AppEmbedding
		var vector pgvector.Vector
		if err := rows.Scan(
			&embedding.AppID,
			&embedding.Model,
			&vector,
			&embedding.CreatedTs,
			&embedding.UpdatedTs,
		); err != nil {
			return nil, errors.Wrap(err, "failed to scan app embedding")
		}
		embedding.Embedding = vector.Slice()
		list = append(list, &embedding)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return list, nil
}

// DeleteAppEmbedding deletes all embeddings of an app.
func (d *DB) DeleteAppEmbedding(ctx context.Context, appID string) error {
	if _, err := d.db.ExecContext(ctx, `DELETE FROM app_embedding WHERE app_id = `+placeholder(1), appID); err != nil {
		return errors.Wrap(err, "failed to delete app embedding")
	}
	return nil
}
