package postgres

import (
	"context"
	"time"

	"github.com/geocoder89/stockroom/internal/domain/item"
	"github.com/geocoder89/stockroom/internal/repo"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ItemsRepo struct {
	pool *pgxpool.Pool
	obs  repo.Observer
}

func NewItemsRepo(pool *pgxpool.Pool, obs repo.Observer) *ItemsRepo {
	return &ItemsRepo{pool: pool, obs: obs}
}

const itemColumns = `id, item_name, quantity, description, category, created_at, updated_at`

func (r *ItemsRepo) Create(ctx context.Context, in item.Input) (item.Item, error) {
	now := time.Now().UTC().Truncate(time.Microsecond)
	it := item.Item{
		ID:          uuid.NewString(),
		ItemName:    in.ItemName,
		Quantity:    in.Qty(),
		Description: in.Description,
		Category:    in.Category,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err := repo.Observe(r.obs, "items.create", func() error {
		_, err := r.pool.Exec(ctx,
			`INSERT INTO items (`+itemColumns+`) VALUES ($1,$2,$3,$4,$5,$6,$7)`,
			it.ID, it.ItemName, it.Quantity, it.Description, it.Category, it.CreatedAt, it.UpdatedAt,
		)
		return err
	})

	if err != nil {
		return item.Item{}, err
	}

	return it, nil
}

func (r *ItemsRepo) List(ctx context.Context) ([]item.Item, error) {
	var output []item.Item

	err := repo.Observe(r.obs, "items.list", func() error {
		rows, err := r.pool.Query(ctx,
			`SELECT `+itemColumns+`
			FROM items
			ORDER BY created_at DESC, id ASC`)
		if err != nil {
			return err
		}
		defer rows.Close()

		output = make([]item.Item, 0)
		for rows.Next() {
			var it item.Item
			if err := scanItem(rows, &it); err != nil {
				return err
			}
			output = append(output, it)
		}
		return rows.Err()
	})

	if err != nil {
		return nil, err
	}
	return output, nil
}

func (r *ItemsRepo) GetByID(ctx context.Context, id string) (item.Item, error) {
	if _, err := uuid.Parse(id); err != nil {
		return item.Item{}, repo.ErrNotFound
	}

	var it item.Item

	err := repo.Observe(r.obs, "items.get_by_id", func() error {
		return scanItem(r.pool.QueryRow(ctx,
			`SELECT `+itemColumns+` FROM items WHERE id = $1`, id), &it)
	})

	return it, mapNoRows(err)
}

func (r *ItemsRepo) Update(ctx context.Context, id string, in item.Input) (item.Item, error) {
	if _, err := uuid.Parse(id); err != nil {
		return item.Item{}, repo.ErrNotFound
	}

	var it item.Item

	err := repo.Observe(r.obs, "items.update", func() error {
		return scanItem(r.pool.QueryRow(ctx,
			`UPDATE items
			SET item_name = $2, quantity = $3, description = $4, category = $5, updated_at = $6
			WHERE id = $1
			RETURNING `+itemColumns,
			id, in.ItemName, in.Qty(), in.Description, in.Category, time.Now().UTC().Truncate(time.Microsecond),
		), &it)
	})

	return it, mapNoRows(err)
}

func (r *ItemsRepo) Delete(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return repo.ErrNotFound
	}

	var affected int64

	err := repo.Observe(r.obs, "items.delete", func() error {
		tag, err := r.pool.Exec(ctx, `DELETE FROM items WHERE id = $1`, id)
		if err != nil {
			return err
		}
		affected = tag.RowsAffected()
		return nil
	})

	if err != nil {
		return err
	}
	if affected == 0 {
		return repo.ErrNotFound
	}
	return nil
}

func scanItem(row pgx.Row, it *item.Item) error {
	return row.Scan(
		&it.ID,
		&it.ItemName,
		&it.Quantity,
		&it.Description,
		&it.Category,
		&it.CreatedAt,
		&it.UpdatedAt,
	)
}
