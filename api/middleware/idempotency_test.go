package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mercanto-labs/mercanto-backend/pkg/logger"
)

// The middleware is mounted on the /api/v1 route group, before the leaf
// route resolves, so it must recognize money-moving requests from the
// concrete URL path alone.
func newIdempotencyTestRouter(store *memoryIdempotencyStore, handlerRuns *int) http.Handler {
	logg := logger.New(logger.Options{ServiceName: "test"})

	countingHandler := func(w http.ResponseWriter, r *http.Request) {
		*handlerRuns++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"data":{"ok":true}}`))
	}

	r := chi.NewRouter()
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(Idempotency(store, logg))

		r.Route("/orders", func(r chi.Router) {
			r.Post("/{orderId}/refund", countingHandler)
		})
		r.Route("/wallet", func(r chi.Router) {
			r.Get("/", countingHandler)
			r.Post("/deposit", countingHandler)
		})
	})
	return r
}

func TestIdempotencyRequiresKeyOnMoneyRoutes(t *testing.T) {
	t.Parallel()

	store := newMemoryIdempotencyStore()
	runs := 0
	router := newIdempotencyTestRouter(store, &runs)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/wallet/deposit", strings.NewReader(`{"amount":"50","provider":"card"}`)))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without Idempotency-Key, got %d", rec.Code)
	}
	if runs != 0 {
		t.Fatalf("handler must not run without an idempotency key, ran %d times", runs)
	}
}

func TestIdempotencyReplaysStoredResponse(t *testing.T) {
	t.Parallel()

	store := newMemoryIdempotencyStore()
	runs := 0
	router := newIdempotencyTestRouter(store, &runs)
	body := `{"amount":"50","provider":"card"}`

	send := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/wallet/deposit", strings.NewReader(body))
		req.Header.Set("Idempotency-Key", "dep-1")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec
	}

	first := send()
	if first.Code != http.StatusCreated {
		t.Fatalf("expected 201 on first delivery, got %d", first.Code)
	}
	if runs != 1 {
		t.Fatalf("expected handler to run once, ran %d times", runs)
	}

	second := send()
	if runs != 1 {
		t.Fatalf("replay must not run the handler again, ran %d times", runs)
	}
	if second.Code != http.StatusCreated {
		t.Fatalf("expected replayed status 201, got %d", second.Code)
	}
	if second.Body.String() != first.Body.String() {
		t.Fatalf("replayed body %q differs from original %q", second.Body.String(), first.Body.String())
	}
	if got := second.Header().Get("Content-Type"); got != "application/json" {
		t.Fatalf("expected replayed content type, got %q", got)
	}
}

func TestIdempotencyRejectsKeyReuseWithDifferentBody(t *testing.T) {
	t.Parallel()

	store := newMemoryIdempotencyStore()
	runs := 0
	router := newIdempotencyTestRouter(store, &runs)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders/6f1d8c1e-0000-4000-8000-000000000001/refund", strings.NewReader(`{"amount":"4"}`))
	req.Header.Set("Idempotency-Key", "ref-1")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated || runs != 1 {
		t.Fatalf("expected first refund to run, got status %d runs %d", rec.Code, runs)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/v1/orders/6f1d8c1e-0000-4000-8000-000000000001/refund", strings.NewReader(`{"amount":"9"}`))
	req.Header.Set("Idempotency-Key", "ref-1")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 on key reuse with different body, got %d", rec.Code)
	}
	if runs != 1 {
		t.Fatalf("mismatched replay must not run the handler, ran %d times", runs)
	}
}

func TestIdempotencyIgnoresUnmatchedRoutes(t *testing.T) {
	t.Parallel()

	store := newMemoryIdempotencyStore()
	runs := 0
	router := newIdempotencyTestRouter(store, &runs)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/wallet", nil))

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected read route to pass through, got %d", rec.Code)
	}
	if runs != 1 {
		t.Fatalf("expected handler to run without a key on a read route, ran %d times", runs)
	}
	if store.len() != 0 {
		t.Fatalf("read routes must not create idempotency records, stored %d", store.len())
	}
}

type memoryIdempotencyStore struct {
	mu      sync.Mutex
	records map[string]string
}

func newMemoryIdempotencyStore() *memoryIdempotencyStore {
	return &memoryIdempotencyStore{records: map[string]string{}}
}

func (s *memoryIdempotencyStore) Get(_ context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.records[key], nil
}

func (s *memoryIdempotencyStore) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.records[key]; exists {
		return false, nil
	}
	s.records[key] = value.(string)
	return true, nil
}

func (s *memoryIdempotencyStore) IdempotencyKey(scope, id string) string {
	return "idempotency:" + scope + ":" + id
}

func (s *memoryIdempotencyStore) Del(_ context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, key := range keys {
		delete(s.records, key)
	}
	return nil
}

func (s *memoryIdempotencyStore) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}
