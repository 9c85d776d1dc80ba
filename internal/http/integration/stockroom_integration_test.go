package integration_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/geocoder89/stockroom/internal/app"
	"github.com/geocoder89/stockroom/internal/config"
	"github.com/gin-gonic/gin"
)

const (
	adminEmail    = "admin@example.com"
	adminPassword = "admin-pass"
)

func testConfig() config.Config {
	return config.Config{
		Env:             "test",
		StoreDriver:     config.StoreMemory,
		JWTSecret:       "test-secret-key",
		JWTTTL:          time.Hour,
		JWTIssuer:       "stockroom",
		BcryptCost:      4,
		AdminEmail:      adminEmail,
		AdminPassword:   adminPassword,
		AdminName:       "Test Admin",
		AdminContact:    "0000000000",
		LoginRateLimit:  100,
		LoginRateWindow: time.Minute,
		ItemsCacheTTL:   time.Minute,
		MaxBodyBytes:    1 << 20,
	}
}

func setupApp(t *testing.T, cfg config.Config) *app.App {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger := slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelDebug}))

	a, err := app.New(context.Background(), cfg, logger)
	if err != nil {
		t.Fatalf("build app: %v", err)
	}
	t.Cleanup(a.Close)
	return a
}

// helpers

func doJSON(t *testing.T, h http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		buf = bytes.NewReader(b)
	}

	req := httptest.NewRequest(method, path, buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()

	var out T
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v body=%s", err, w.Body.String())
	}
	return out
}

type loginResponse struct {
	Token string `json:"token"`
	User  struct {
		ID    string `json:"id"`
		Email string `json:"email"`
		Role  string `json:"role"`
	} `json:"user"`
}

type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
		Details struct {
			Errors []string `json:"errors"`
		} `json:"details"`
	} `json:"error"`
}

func login(t *testing.T, h http.Handler, email, password string) loginResponse {
	t.Helper()

	w := doJSON(t, h, http.MethodPost, "/api/v1/auth/login", "", map[string]string{"email": email, "password": password})
	if w.Code != http.StatusOK {
		t.Fatalf("login %s: got %d body=%s", email, w.Code, w.Body.String())
	}
	return decode[loginResponse](t, w)
}

func TestRegisterLoginAndItemAccess(t *testing.T) {
	a := setupApp(t, testConfig())
	h := a.Router

	w := doJSON(t, h, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"name": "Ann", "email": "Ann@X.com", "contact": "1234567890", "password": "secret1",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("register: got %d body=%s", w.Code, w.Body.String())
	}
	if bytes.Contains(w.Body.Bytes(), []byte("password")) {
		t.Fatalf("register response leaks password fields: %s", w.Body.String())
	}

	// duplicate with different casing
	w = doJSON(t, h, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"name": "Ann", "email": "ann@x.com", "contact": "1234567890", "password": "secret1",
	})
	if w.Code != http.StatusConflict {
		t.Fatalf("duplicate register: got %d", w.Code)
	}

	ann := login(t, h, "ann@x.com", "secret1")
	if ann.User.Role != "user" || ann.User.Email != "ann@x.com" {
		t.Fatalf("unexpected user %+v", ann.User)
	}

	admin := login(t, h, adminEmail, adminPassword)
	if admin.User.Role != "admin" {
		t.Fatalf("seeded admin has role %q", admin.User.Role)
	}

	newItem := map[string]any{"itemName": "Hammer", "quantity": 3, "category": "Tools"}

	// anonymous mutation is rejected before the role check
	if w := doJSON(t, h, http.MethodPost, "/api/v1/items", "", newItem); w.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous create: got %d", w.Code)
	}

	if w := doJSON(t, h, http.MethodPost, "/api/v1/items", ann.Token, newItem); w.Code != http.StatusForbidden {
		t.Fatalf("user create: got %d", w.Code)
	}

	w = doJSON(t, h, http.MethodPost, "/api/v1/items", admin.Token, newItem)
	if w.Code != http.StatusCreated {
		t.Fatalf("admin create: got %d body=%s", w.Code, w.Body.String())
	}
	created := decode[struct {
		Item struct {
			ID       string `json:"id"`
			ItemName string `json:"itemName"`
			Quantity int    `json:"quantity"`
		} `json:"item"`
	}](t, w)

	// reads are public
	w = doJSON(t, h, http.MethodGet, "/api/v1/items", "", nil)
	list := decode[struct {
		Count int `json:"count"`
	}](t, w)
	if w.Code != http.StatusOK || list.Count != 1 {
		t.Fatalf("list: got %d count=%d", w.Code, list.Count)
	}

	itemPath := "/api/v1/items/" + created.Item.ID
	w = doJSON(t, h, http.MethodGet, itemPath, "", nil)
	fetched := decode[struct {
		Item struct {
			ID string `json:"id"`
		} `json:"item"`
	}](t, w)
	if w.Code != http.StatusOK || fetched.Item.ID != created.Item.ID {
		t.Fatalf("get: got %d id=%q, want %q", w.Code, fetched.Item.ID, created.Item.ID)
	}

	update := map[string]any{"itemName": "Hammer", "quantity": 7, "category": "Tools"}
	if w := doJSON(t, h, http.MethodPut, itemPath, ann.Token, update); w.Code != http.StatusForbidden {
		t.Fatalf("user update: got %d", w.Code)
	}
	if w := doJSON(t, h, http.MethodPut, itemPath, admin.Token, update); w.Code != http.StatusOK {
		t.Fatalf("admin update: got %d body=%s", w.Code, w.Body.String())
	}

	if w := doJSON(t, h, http.MethodDelete, itemPath, ann.Token, nil); w.Code != http.StatusForbidden {
		t.Fatalf("user delete: got %d", w.Code)
	}
	if w := doJSON(t, h, http.MethodDelete, itemPath, admin.Token, nil); w.Code != http.StatusOK {
		t.Fatalf("admin delete: got %d", w.Code)
	}
	if w := doJSON(t, h, http.MethodGet, itemPath, "", nil); w.Code != http.StatusNotFound {
		t.Fatalf("get after delete: got %d", w.Code)
	}

	w = doJSON(t, h, http.MethodGet, "/api/v1/auth/me", ann.Token, nil)
	if w.Code != http.StatusOK || !bytes.Contains(w.Body.Bytes(), []byte(ann.User.ID)) {
		t.Fatalf("me: got %d body=%s", w.Code, w.Body.String())
	}
}

func TestLoginFailuresAreIndistinguishable(t *testing.T) {
	h := setupApp(t, testConfig()).Router

	wrong := doJSON(t, h, http.MethodPost, "/api/v1/auth/login", "", map[string]string{"email": adminEmail, "password": "not-the-pass"})
	unknown := doJSON(t, h, http.MethodPost, "/api/v1/auth/login", "", map[string]string{"email": "ghost@example.com", "password": "not-the-pass"})

	if wrong.Code != http.StatusUnauthorized || unknown.Code != http.StatusUnauthorized {
		t.Fatalf("got %d and %d, want 401 for both", wrong.Code, unknown.Code)
	}

	a := decode[errorResponse](t, wrong)
	b := decode[errorResponse](t, unknown)
	if a.Error.Code != b.Error.Code || a.Error.Message != b.Error.Message {
		t.Fatalf("responses differ: %+v vs %+v", a.Error, b.Error)
	}
}

func TestItemValidationReportsEveryRule(t *testing.T) {
	h := setupApp(t, testConfig()).Router
	admin := login(t, h, adminEmail, adminPassword)

	w := doJSON(t, h, http.MethodPost, "/api/v1/items", admin.Token, map[string]any{"itemName": "A", "quantity": 0, "category": "Tools"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("got %d", w.Code)
	}

	body := decode[errorResponse](t, w)
	if body.Error.Code != "validation_error" || len(body.Error.Details.Errors) != 2 {
		t.Fatalf("unexpected body %+v", body.Error)
	}
}

func TestExpiredTokenIsRejected(t *testing.T) {
	a := setupApp(t, testConfig())
	h := a.Router

	admin := login(t, h, adminEmail, adminPassword)

	// a token issued two hours ago has outlived its one hour ttl
	stale, _, err := a.Tokens.WithClock(func() time.Time { return time.Now().Add(-2 * time.Hour) }).Issue(admin.User.ID)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	w := doJSON(t, h, http.MethodGet, "/api/v1/auth/me", stale, nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("got %d, want 401", w.Code)
	}
	if got := decode[errorResponse](t, w).Error.Message; got != "Token expired. Please login again." {
		t.Fatalf("got message %q", got)
	}
}

func TestLoginRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.LoginRateLimit = 2
	h := setupApp(t, cfg).Router

	creds := map[string]string{"email": "ghost@example.com", "password": "whatever"}
	var last int
	for i := 0; i < 3; i++ {
		last = doJSON(t, h, http.MethodPost, "/api/v1/auth/login", "", creds).Code
	}
	if last != http.StatusTooManyRequests {
		t.Fatalf("third attempt got %d, want 429", last)
	}
}

func TestHealthAndUnknownRoute(t *testing.T) {
	h := setupApp(t, testConfig()).Router

	if w := doJSON(t, h, http.MethodGet, "/api/v1/health", "", nil); w.Code != http.StatusOK {
		t.Fatalf("health: got %d", w.Code)
	}
	if w := doJSON(t, h, http.MethodGet, "/readyz", "", nil); w.Code != http.StatusOK {
		t.Fatalf("readyz: got %d", w.Code)
	}
	if w := doJSON(t, h, http.MethodGet, "/metrics", "", nil); w.Code != http.StatusOK {
		t.Fatalf("metrics: got %d", w.Code)
	}

	w := doJSON(t, h, http.MethodGet, "/api/v1/nope", "", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("unknown route: got %d", w.Code)
	}
	if got := decode[errorResponse](t, w).Error.Message; got != "Route not found" {
		t.Fatalf("got message %q", got)
	}
}
