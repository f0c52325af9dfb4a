package sqlite

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/dp9910/app4me-sub001/store"
)

func (d *DB) UpsertApp(ctx context.Context, upsert *store.App) (*store.App, error) {
	now := time.Now().Unix()
	if upsert.CreatedTs == 0 {
		upsert.CreatedTs = now
	}
	if upsert.UpdatedTs == 0 {
		upsert.UpdatedTs = now
	}

	stmt := `
		INSERT INTO app (id, title, category, description, rating, icon_url, created_ts, updated_ts)
		VALUES (` + placeholders(8) + `)
		ON CONFLICT (id) DO UPDATE SET
			title = excluded.title,
			category = excluded.category,
			description = excluded.description,
			rating = excluded.rating,
			icon_url = excluded.icon_url,
			updated_ts = excluded.updated_ts
		RETURNING created_ts, updated_ts
	`
	var rating sql.NullFloat64
	if upsert.Rating != nil {
		rating = sql.NullFloat64{Float64: *upsert.Rating, Valid: true}
	}
	if err := d.db.QueryRowContext(ctx, stmt,
		upsert.ID,
		upsert.Title,
		upsert.Category,
		upsert.Description,
		rating,
		upsert.IconURL,
		upsert.CreatedTs,
		upsert.UpdatedTs,
	).Scan(&upsert.CreatedTs, &upsert.UpdatedTs); err != nil {
		return nil, errors.Wrapf(err, "failed to upsert app %s", upsert.ID)
	}
	return upsert, nil
}

func (d *DB) ListApps(ctx context.Context, find *store.FindApp) ([]*store.App, error) {
	where, args := []string{"1 = 1"}, []any{}

	if find.ID != nil {
		where, args = append(where, "id = "+placeholder(len(args)+1)), append(args, *find.ID)
	}
	if len(find.IDs) > 0 {
		where = append(where, inClause("id", len(find.IDs)))
		for _, id := range find.IDs {
			args = append(args, id)
		}
	}
	if find.Category != nil {
		where, args = append(where, "category = "+placeholder(len(args)+1)), append(args, *find.Category)
	}

	query := `
		SELECT id, title, category, description, rating, icon_url, created_ts, updated_ts
		FROM app
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY id ASC`
	if find.Limit != nil {
		query += " LIMIT " + placeholder(len(args)+1)
		args = append(args, *find.Limit)
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list apps")
	}
	defer rows.Close()

	list := []*store.App{}
	for rows.Next() {
		var app store.App
		var rating sql.NullFloat64
		if err := rows.Scan(
			&app.ID,
			&app.Title,
			&app.Category,
			&app.Description,
			&rating,
			&app.IconURL,
			&app.CreatedTs,
			&app.UpdatedTs,
		); err != nil {
			return nil, errors.Wrap(err, "failed to scan app")
		}
		if rating.Valid {
			value := rating.Float64
			app.Rating = &value
		}
		list = append(list, &app)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return list, nil
}

func (d *DB) DeleteApp(ctx context.Context, delete *store.DeleteApp) error {
	if _, err := d.db.ExecContext(ctx, `DELETE FROM app WHERE id = `+placeholder(1), delete.ID); err != nil {
		return errors.Wrapf(err, "failed to delete app %s", delete.ID)
	}
	return nil
}
