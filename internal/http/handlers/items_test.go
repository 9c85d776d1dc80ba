package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/geocoder89/stockroom/internal/cache"
	"github.com/geocoder89/stockroom/internal/domain/item"
	"github.com/geocoder89/stockroom/internal/http/handlers"
	"github.com/geocoder89/stockroom/internal/repo"
	"github.com/geocoder89/stockroom/internal/validation"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Make sure Gin does not spam the console during the test
func init() {
	gin.SetMode(gin.TestMode)
}

type fakeItemsRepo struct {
	createFn func(ctx context.Context, in item.Input) (item.Item, error)
	listFn   func(ctx context.Context) ([]item.Item, error)
	getFn    func(ctx context.Context, id string) (item.Item, error)
	updateFn func(ctx context.Context, id string, in item.Input) (item.Item, error)
	deleteFn func(ctx context.Context, id string) error

	listCalls int
}

func (f *fakeItemsRepo) Create(ctx context.Context, in item.Input) (item.Item, error) {
	if f.createFn != nil {
		return f.createFn(ctx, in)
	}
	return item.Item{}, nil
}

func (f *fakeItemsRepo) List(ctx context.Context) ([]item.Item, error) {
	f.listCalls++
	if f.listFn != nil {
		return f.listFn(ctx)
	}
	return nil, nil
}

func (f *fakeItemsRepo) GetByID(ctx context.Context, id string) (item.Item, error) {
	if f.getFn != nil {
		return f.getFn(ctx, id)
	}
	return item.Item{}, nil
}

func (f *fakeItemsRepo) Update(ctx context.Context, id string, in item.Input) (item.Item, error) {
	if f.updateFn != nil {
		return f.updateFn(ctx, id, in)
	}
	return item.Item{}, nil
}

func (f *fakeItemsRepo) Delete(ctx context.Context, id string) error {
	if f.deleteFn != nil {
		return f.deleteFn(ctx, id)
	}
	return nil
}

// small helper which returns a gin engine with one handler mounted
func setupRouter(method, path string, h gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.Handle(method, path, h)
	return r
}

type errorBody struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
		Details struct {
			Errors []string `json:"errors"`
		} `json:"details"`
	} `json:"error"`
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) errorBody {
	t.Helper()

	var body errorBody
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error body: %v body=%s", err, w.Body.String())
	}
	return body
}

func sampleItem(in item.Input) item.Item {
	now := time.Now().UTC()
	return item.Item{
		ID:          uuid.NewString(),
		ItemName:    in.ItemName,
		Quantity:    in.Qty(),
		Description: in.Description,
		Category:    in.Category,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func TestCreateItemHandler(t *testing.T) {
	tests := []struct {
		name           string
		body           string
		repoSetUp      func(*fakeItemsRepo)
		wantStatusCode int
		wantErrors     []string
	}{
		{
			name: "success",
			body: `{"itemName":"  Hammer ","quantity":3,"description":"claw","category":"Tools"}`,
			repoSetUp: func(f *fakeItemsRepo) {
				f.createFn = func(ctx context.Context, in item.Input) (item.Item, error) {
					if in.ItemName != "Hammer" {
						return item.Item{}, errors.New("name was not trimmed")
					}
					return sampleItem(in), nil
				}
			},
			wantStatusCode: http.StatusCreated,
		},
		{
			name:           "every violation is reported",
			body:           `{"itemName":"A","quantity":0,"category":"Tools"}`,
			wantStatusCode: http.StatusBadRequest,
			wantErrors:     []string{validation.MsgItemName, validation.MsgItemQuantity},
		},
		{
			name:           "missing quantity",
			body:           `{"itemName":"Saw","category":"Tools"}`,
			wantStatusCode: http.StatusBadRequest,
			wantErrors:     []string{validation.MsgItemQuantity},
		},
		{
			name:           "quantity of wrong type",
			body:           `{"itemName":"Saw","quantity":"ten","category":"Tools"}`,
			wantStatusCode: http.StatusBadRequest,
		},
		{
			name:           "broken json",
			body:           `{"itemName":`,
			wantStatusCode: http.StatusBadRequest,
		},
		{
			name: "repo_error",
			body: `{"itemName":"Saw","quantity":1,"category":"Tools"}`,
			repoSetUp: func(f *fakeItemsRepo) {
				f.createFn = func(ctx context.Context, in item.Input) (item.Item, error) {
					return item.Item{}, errors.New("db error")
				}
			},
			wantStatusCode: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &fakeItemsRepo{}
			if tt.repoSetUp != nil {
				tt.repoSetUp(fake)
			}

			h := handlers.NewItemsHandler(fake, nil)
			r := setupRouter(http.MethodPost, "/items", h.CreateItem)

			req := httptest.NewRequest(http.MethodPost, "/items", bytes.NewBufferString(tt.body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != tt.wantStatusCode {
				t.Fatalf("got status %d, want %d, body=%s", w.Code, tt.wantStatusCode, w.Body.String())
			}

			if tt.wantErrors != nil {
				body := decodeError(t, w)
				if body.Error.Code != "validation_error" {
					t.Fatalf("unexpected code %q", body.Error.Code)
				}
				if len(body.Error.Details.Errors) != len(tt.wantErrors) {
					t.Fatalf("got errors %v, want %v", body.Error.Details.Errors, tt.wantErrors)
				}
				for i, msg := range tt.wantErrors {
					if body.Error.Details.Errors[i] != msg {
						t.Fatalf("errors[%d] = %q, want %q", i, body.Error.Details.Errors[i], msg)
					}
				}
			}
		})
	}
}

func TestGetItemHandler(t *testing.T) {
	tests := []struct {
		name           string
		getFn          func(ctx context.Context, id string) (item.Item, error)
		wantStatusCode int
		wantMessage    string
	}{
		{
			name: "found",
			getFn: func(ctx context.Context, id string) (item.Item, error) {
				return item.Item{ID: id, ItemName: "Saw", Quantity: 1, Category: "Tools"}, nil
			},
			wantStatusCode: http.StatusOK,
		},
		{
			name: "not found",
			getFn: func(ctx context.Context, id string) (item.Item, error) {
				return item.Item{}, repo.ErrNotFound
			},
			wantStatusCode: http.StatusNotFound,
			wantMessage:    "Item not found",
		},
		{
			name: "store failure",
			getFn: func(ctx context.Context, id string) (item.Item, error) {
				return item.Item{}, errors.New("timeout")
			},
			wantStatusCode: http.StatusInternalServerError,
			wantMessage:    "Could not fetch item",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := handlers.NewItemsHandler(&fakeItemsRepo{getFn: tt.getFn}, nil)
			r := setupRouter(http.MethodGet, "/items/:id", h.GetItemByID)

			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/items/abc", nil))

			if w.Code != tt.wantStatusCode {
				t.Fatalf("got status %d, want %d, body=%s", w.Code, tt.wantStatusCode, w.Body.String())
			}
			if tt.wantMessage != "" {
				if got := decodeError(t, w).Error.Message; got != tt.wantMessage {
					t.Fatalf("got message %q, want %q", got, tt.wantMessage)
				}
				return
			}

			var body struct {
				Item *item.Item `json:"item"`
			}
			if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body.Item == nil || body.Item.ID != "abc" {
				t.Fatalf("expected the item under \"item\", got %s", w.Body.String())
			}
		})
	}
}

func TestListItemsHandler_CachesAndInvalidates(t *testing.T) {
	stored := []item.Item{{ID: "1", ItemName: "Saw", Quantity: 1, Category: "Tools"}}
	fake := &fakeItemsRepo{
		listFn: func(ctx context.Context) ([]item.Item, error) { return stored, nil },
		createFn: func(ctx context.Context, in item.Input) (item.Item, error) {
			it := sampleItem(in)
			stored = append(stored, it)
			return it, nil
		},
	}

	h := handlers.NewItemsHandler(fake, cache.New[[]item.Item](time.Minute))
	r := gin.New()
	r.GET("/items", h.ListItems)
	r.POST("/items", h.CreateItem)

	list := func() (int, string) {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/items", nil))
		if w.Code != http.StatusOK {
			t.Fatalf("list status %d", w.Code)
		}
		var body struct {
			Items []item.Item `json:"items"`
			Count int         `json:"count"`
		}
		if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if body.Count != len(body.Items) {
			t.Fatalf("count %d does not match %d items", body.Count, len(body.Items))
		}
		return body.Count, w.Header().Get("ETag")
	}

	count, etag := list()
	if count != 1 || etag == "" {
		t.Fatalf("got count %d etag %q", count, etag)
	}
	list()
	if fake.listCalls != 1 {
		t.Fatalf("second list should be served from cache, store hit %d times", fake.listCalls)
	}

	req := httptest.NewRequest(http.MethodPost, "/items", bytes.NewBufferString(`{"itemName":"Drill","quantity":2,"category":"Tools"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("create status %d body=%s", w.Code, w.Body.String())
	}

	count, newETag := list()
	if count != 2 {
		t.Fatalf("write should invalidate the cached list, got %d items", count)
	}
	if newETag == etag {
		t.Fatalf("etag should change with the payload")
	}
}

func TestListItemsHandler_WriteDuringReadSkipsCacheFill(t *testing.T) {
	stored := []item.Item{{ID: "1", ItemName: "Saw", Quantity: 1, Category: "Tools"}}
	var r *gin.Engine

	fake := &fakeItemsRepo{
		createFn: func(ctx context.Context, in item.Input) (item.Item, error) {
			it := sampleItem(in)
			stored = append(stored, it)
			return it, nil
		},
	}
	fake.listFn = func(ctx context.Context) ([]item.Item, error) {
		snapshot := append([]item.Item(nil), stored...)
		if fake.listCalls == 1 {
			// a create lands after the read took its snapshot
			req := httptest.NewRequest(http.MethodPost, "/items", bytes.NewBufferString(`{"itemName":"Drill","quantity":2,"category":"Tools"}`))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			if w.Code != http.StatusCreated {
				t.Errorf("create status %d body=%s", w.Code, w.Body.String())
			}
		}
		return snapshot, nil
	}

	h := handlers.NewItemsHandler(fake, cache.New[[]item.Item](time.Minute))
	r = gin.New()
	r.GET("/items", h.ListItems)
	r.POST("/items", h.CreateItem)

	count := func() int {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/items", nil))
		var body struct {
			Count int `json:"count"`
		}
		if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
			t.Fatalf("decode: %v", err)
		}
		return body.Count
	}

	if got := count(); got != 1 {
		t.Fatalf("in-flight read: got %d items, want the 1 it read", got)
	}
	if got := count(); got != 2 {
		t.Fatalf("stale list was cached after the write, got %d items", got)
	}
	if fake.listCalls != 2 {
		t.Fatalf("store hit %d times, want 2", fake.listCalls)
	}
	if got := count(); got != 2 || fake.listCalls != 2 {
		t.Fatalf("fresh list should be cached, got %d items after %d store reads", got, fake.listCalls)
	}
}

func TestListItemsHandler_NotModified(t *testing.T) {
	fake := &fakeItemsRepo{
		listFn: func(ctx context.Context) ([]item.Item, error) {
			return []item.Item{{ID: "1", ItemName: "Saw", Quantity: 1, Category: "Tools"}}, nil
		},
	}
	h := handlers.NewItemsHandler(fake, nil)
	r := setupRouter(http.MethodGet, "/items", h.ListItems)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/items", nil))
	etag := w.Header().Get("ETag")

	req := httptest.NewRequest(http.MethodGet, "/items", nil)
	req.Header.Set("If-None-Match", "W/"+etag)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNotModified {
		t.Fatalf("got status %d, want 304", w.Code)
	}
}

func TestListItemsHandler_EmptyIsArray(t *testing.T) {
	h := handlers.NewItemsHandler(&fakeItemsRepo{}, nil)
	r := setupRouter(http.MethodGet, "/items", h.ListItems)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/items", nil))

	if !bytes.Contains(w.Body.Bytes(), []byte(`"items":[]`)) {
		t.Fatalf("expected an empty array, got %s", w.Body.String())
	}
}

func TestUpdateAndDeleteItemHandler(t *testing.T) {
	fake := &fakeItemsRepo{
		updateFn: func(ctx context.Context, id string, in item.Input) (item.Item, error) {
			if id == "missing" {
				return item.Item{}, repo.ErrNotFound
			}
			it := sampleItem(in)
			it.ID = id
			return it, nil
		},
		deleteFn: func(ctx context.Context, id string) error {
			if id == "missing" {
				return repo.ErrNotFound
			}
			return nil
		},
	}
	h := handlers.NewItemsHandler(fake, nil)
	r := gin.New()
	r.PUT("/items/:id", h.UpdateItem)
	r.DELETE("/items/:id", h.DeleteItem)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		want   int
	}{
		{"update ok", http.MethodPut, "/items/1", `{"itemName":"Saw","quantity":4,"category":"Tools"}`, http.StatusOK},
		{"update missing", http.MethodPut, "/items/missing", `{"itemName":"Saw","quantity":4,"category":"Tools"}`, http.StatusNotFound},
		{"update invalid", http.MethodPut, "/items/1", `{"itemName":"Saw","quantity":-1,"category":"T"}`, http.StatusBadRequest},
		{"delete ok", http.MethodDelete, "/items/1", "", http.StatusOK},
		{"delete missing", http.MethodDelete, "/items/missing", "", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, bytes.NewBufferString(tt.body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != tt.want {
				t.Fatalf("got status %d, want %d, body=%s", w.Code, tt.want, w.Body.String())
			}
		})
	}
}
