package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/geocoder89/stockroom/internal/apperr"
	"github.com/geocoder89/stockroom/internal/cache"
	"github.com/geocoder89/stockroom/internal/domain/item"
	"github.com/geocoder89/stockroom/internal/repo"
	"github.com/geocoder89/stockroom/internal/validation"
	"github.com/gin-gonic/gin"
)

const (
	msgItemNotFound = "Item not found"
	listCacheKey    = "items:all"
)

type ItemsStore interface {
	Create(ctx context.Context, in item.Input) (item.Item, error)
	List(ctx context.Context) ([]item.Item, error)
	GetByID(ctx context.Context, id string) (item.Item, error)
	Update(ctx context.Context, id string, in item.Input) (item.Item, error)
	Delete(ctx context.Context, id string) error
}

type ItemsHandler struct {
	repo  ItemsStore
	cache *cache.Cache[[]item.Item]

	// gen counts invalidations. A list read only fills the cache when no
	// write landed while it was in flight.
	mu  sync.Mutex
	gen uint64
}

// NewItemsHandler caches the list read; a nil cache disables caching.
func NewItemsHandler(repo ItemsStore, c *cache.Cache[[]item.Item]) *ItemsHandler {
	return &ItemsHandler{repo: repo, cache: c}
}

func (h *ItemsHandler) ListItems(ctx *gin.Context) {
	if h.cache != nil {
		if items, ok := h.cache.Get(listCacheKey); ok {
			RespondJSONWithETag(ctx, http.StatusOK, gin.H{"items": items, "count": len(items)})
			return
		}
	}

	gen := h.generation()

	cctx, cancel := context.WithTimeout(ctx.Request.Context(), 3*time.Second)
	defer cancel()

	items, err := h.repo.List(cctx)
	if err != nil {
		RespondErr(ctx, apperr.Internal(err, "Could not list items"))
		return
	}
	if items == nil {
		items = []item.Item{}
	}

	h.fill(gen, items)

	RespondJSONWithETag(ctx, http.StatusOK, gin.H{"items": items, "count": len(items)})
}

func (h *ItemsHandler) GetItemByID(ctx *gin.Context) {
	cctx, cancel := context.WithTimeout(ctx.Request.Context(), 3*time.Second)
	defer cancel()

	it, err := h.repo.GetByID(cctx, ctx.Param("id"))
	if err != nil {
		h.respondStoreErr(ctx, err, "Could not fetch item")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"item": it})
}

func (h *ItemsHandler) CreateItem(ctx *gin.Context) {
	in, ok := bindItem(ctx)
	if !ok {
		return
	}

	cctx, cancel := context.WithTimeout(ctx.Request.Context(), 3*time.Second)
	defer cancel()

	created, err := h.repo.Create(cctx, in)
	if err != nil {
		RespondErr(ctx, apperr.Internal(err, "Could not create item"))
		return
	}
	h.invalidate()

	logMutation(ctx, "item created", created.ID)
	ctx.JSON(http.StatusCreated, gin.H{
		"message": "Item created successfully",
		"item":    created,
	})
}

// UpdateItem replaces every editable field.
func (h *ItemsHandler) UpdateItem(ctx *gin.Context) {
	in, ok := bindItem(ctx)
	if !ok {
		return
	}

	cctx, cancel := context.WithTimeout(ctx.Request.Context(), 3*time.Second)
	defer cancel()

	updated, err := h.repo.Update(cctx, ctx.Param("id"), in)
	if err != nil {
		h.respondStoreErr(ctx, err, "Could not update item")
		return
	}
	h.invalidate()

	logMutation(ctx, "item updated", updated.ID)
	ctx.JSON(http.StatusOK, gin.H{
		"message": "Item updated successfully",
		"item":    updated,
	})
}

func (h *ItemsHandler) DeleteItem(ctx *gin.Context) {
	id := ctx.Param("id")

	cctx, cancel := context.WithTimeout(ctx.Request.Context(), 3*time.Second)
	defer cancel()

	if err := h.repo.Delete(cctx, id); err != nil {
		h.respondStoreErr(ctx, err, "Could not delete item")
		return
	}
	h.invalidate()

	logMutation(ctx, "item deleted", id)
	ctx.JSON(http.StatusOK, gin.H{"message": "Item deleted successfully"})
}

func (h *ItemsHandler) generation() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.gen
}

func (h *ItemsHandler) fill(gen uint64, items []item.Item) {
	if h.cache == nil {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if gen != h.gen {
		return
	}
	h.cache.Set(listCacheKey, items)
}

func (h *ItemsHandler) invalidate() {
	if h.cache == nil {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.gen++
	h.cache.Delete(listCacheKey)
}

func (h *ItemsHandler) respondStoreErr(ctx *gin.Context, err error, message string) {
	if errors.Is(err, repo.ErrNotFound) {
		RespondNotFound(ctx, msgItemNotFound)
		return
	}
	RespondErr(ctx, apperr.Internal(err, message))
}

func bindItem(ctx *gin.Context) (item.Input, bool) {
	var req item.Input
	if !BindJSON(ctx, &req) {
		return item.Input{}, false
	}

	in, err := validation.Item(req)
	if err != nil {
		var errs validation.Errors
		if errors.As(err, &errs) {
			RespondErr(ctx, apperr.Validation(errs))
		} else {
			RespondErr(ctx, apperr.Internal(err, "Validation failed"))
		}
		return item.Input{}, false
	}

	return in, true
}

// logMutation relies on the trace handler to attach the acting user_id.
func logMutation(ctx *gin.Context, msg, itemID string) {
	slog.InfoContext(ctx.Request.Context(), msg, "item_id", itemID)
}
