package postgres

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/dp9910/app4me-sub001/store"
)

func (d *DB) UpsertAppFeatures(ctx context.Context, upsert *store.AppFeatures) (*store.AppFeatures, error) {
	keywordWeights, err := marshalWeights(upsert.KeywordWeights)
	if err != nil {
		return nil, err
	}
	categoryWeights, err := marshalWeights(upsert.CategoryWeights)
	if err != nil {
		return nil, err
	}

	now := time.Now().Unix()
	if upsert.CreatedTs == 0 {
		upsert.CreatedTs = now
	}
	if upsert.UpdatedTs == 0 {
		upsert.UpdatedTs = now
	}

	stmt := `
		INSERT INTO app_features (app_id, keyword_weights, category_weights, primary_use_case, created_ts, updated_ts)
		VALUES ($1, $2::jsonb, $3::jsonb, $4, $5, $6)
		ON CONFLICT (app_id) DO UPDATE SET
			keyword_weights = EXCLUDED.keyword_weights,
			category_weights = EXCLUDED.category_weights,
			primary_use_case = EXCLUDED.primary_use_case,
			updated_ts = EXCLUDED.updated_ts
		RETURNING created_ts, updated_ts
	`
	if err := d.db.QueryRowContext(ctx, stmt,
		upsert.AppID,
		string(keywordWeights),
		string(categoryWeights),
		upsert.PrimaryUseCase,
		upsert.CreatedTs,
		upsert.UpdatedTs,
	).Scan(&upsert.CreatedTs, &upsert.UpdatedTs); err != nil {
		return nil, errors.Wrapf(err, "failed to upsert app features %s", upsert.AppID)
	}
	return upsert, nil
}

func (d *DB) ListAppFeatures(ctx context.Context, find *store.FindAppFeatures) ([]*store.AppFeatures, error) {
	where, args := []string{"1 = 1"}, []any{}

	if find.AppID != nil {
		where, args = append(where, "app_id = "+placeholder(len(args)+1)), append(args, *find.AppID)
	}
	if len(find.AppIDs) > 0 {
		where, args = append(where, "app_id = ANY("+placeholder(len(args)+1)+")"), append(args, pq.Array(find.AppIDs))
	}

	query := `
		SELECT app_id, keyword_weights, category_weights, primary_use_case, created_ts, updated_ts
		FROM app_features
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY app_id ASC`

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list app features")
	}
	defer rows.Close()

	list := []*store.AppFeatures{}
	for rows.Next() {
		var features store.AppFeatures
		var keywordWeights, categoryWeights []byte
		if err := rows.Scan(
			&features.AppID,
			&keywordWeights,
			&categoryWeights,
			&features.PrimaryUseCase,
			&features.CreatedTs,
			&features.UpdatedTs,
		); err != nil {
			return nil, errors.Wrap(err, "failed to scan app features")
		}
		// A malformed row skips only its own app.
		if features.KeywordWeights, err = unmarshalWeights(keywordWeights); err != nil {
			slog.Debug("skipping app features with malformed keyword weights", "app_id", features.AppID, "error", err)
			continue
		}
		if features.CategoryWeights, err = unmarshalWeights(categoryWeights); err != nil {
			slog.Debug("skipping app features with malformed category weights", "app_id", features.AppID, "error", err)
			continue
		}
		list = append(list, &features)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return list, nil
}

func (d *DB) DeleteAppFeatures(ctx context.Context, appID string) error {
	if _, err := d.db.ExecContext(ctx, `DELETE FROM app_features WHERE app_id = `+placeholder(1), appID); err != nil {
		return errors.Wrapf(err, "failed to delete app features %s", appID)
	}
	return nil
}
