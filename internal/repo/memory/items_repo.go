package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/geocoder89/stockroom/internal/domain/item"
	"github.com/geocoder89/stockroom/internal/repo"
	"github.com/google/uuid"
)

type ItemsRepo struct {
	mu    sync.RWMutex
	items map[string]item.Item
}

func NewItemsRepo() *ItemsRepo {
	return &ItemsRepo{
		items: make(map[string]item.Item),
	}
}

func (r *ItemsRepo) Create(ctx context.Context, in item.Input) (item.Item, error) {
	if err := ctx.Err(); err != nil {
		return item.Item{}, err
	}

	now := time.Now().UTC()
	it := item.Item{
		ID:          uuid.NewString(),
		ItemName:    in.ItemName,
		Quantity:    in.Qty(),
		Description: in.Description,
		Category:    in.Category,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	r.mu.Lock()
	r.items[it.ID] = it
	r.mu.Unlock()

	return it, nil
}

// List returns newest first, ties broken by id for a stable order.
func (r *ItemsRepo) List(ctx context.Context) ([]item.Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	out := make([]item.Item, 0, len(r.items))
	for _, it := range r.items {
		out = append(out, it)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})

	return out, nil
}

func (r *ItemsRepo) GetByID(ctx context.Context, id string) (item.Item, error) {
	if err := ctx.Err(); err != nil {
		return item.Item{}, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	it, ok := r.items[id]
	if !ok {
		return item.Item{}, repo.ErrNotFound
	}
	return it, nil
}

func (r *ItemsRepo) Update(ctx context.Context, id string, in item.Input) (item.Item, error) {
	if err := ctx.Err(); err != nil {
		return item.Item{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	it, ok := r.items[id]
	if !ok {
		return item.Item{}, repo.ErrNotFound
	}

	it.ItemName = in.ItemName
	it.Quantity = in.Qty()
	it.Description = in.Description
	it.Category = in.Category
	it.UpdatedAt = time.Now().UTC()

	r.items[id] = it
	return it, nil
}

func (r *ItemsRepo) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.items[id]; !ok {
		return repo.ErrNotFound
	}
	delete(r.items, id)
	return nil
}
