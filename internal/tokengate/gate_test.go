package tokengate

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattjoyce/crispbridge/internal/cache"
)

type fakeVerifier struct {
	mu    sync.Mutex
	calls int
	valid map[string]bool
	err   error
}

func (f *fakeVerifier) VerifyToken(_ context.Context, token, websiteID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return false, f.err
	}
	return f.valid[token+"/"+websiteID], nil
}

func (f *fakeVerifier) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func newGate(v Verifier) *Gate {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(v, cache.NewMemoryStore(), Config{TTL: time.Minute}, logger)
}

func TestAuthorize_Memoized(t *testing.T) {
	v := &fakeVerifier{valid: map[string]bool{"tok/site": true}}
	g := newGate(v)
	ctx := context.Background()

	assert.True(t, g.Authorize(ctx, "tok", "site"))
	assert.True(t, g.Authorize(ctx, "tok", "site"))
	assert.Equal(t, 1, v.Calls())

	assert.False(t, g.Authorize(ctx, "tok", "other"))
	assert.Equal(t, 2, v.Calls(), "different site is a different key")
}

func TestAuthorize_ErrorCachedAsFalse(t *testing.T) {
	v := &fakeVerifier{err: errors.New("timeout")}
	g := newGate(v)
	ctx := context.Background()

	assert.False(t, g.Authorize(ctx, "tok", "site"))
	assert.False(t, g.Authorize(ctx, "tok", "site"))
	assert.Equal(t, 1, v.Calls(), "failed verification must not be retried within the TTL")
}

func TestAuthorize_Concurrent(t *testing.T) {
	v := &fakeVerifier{valid: map[string]bool{"tok/site": true}}
	g := newGate(v)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.True(t, g.Authorize(context.Background(), "tok", "site"))
		}()
	}
	wg.Wait()
	assert.GreaterOrEqual(t, v.Calls(), 1)
}

func TestCacheKey(t *testing.T) {
	k := CacheKey("secret-token", "site-1")
	assert.Contains(t, k, "crisp.token.")
	assert.Contains(t, k, ".site-1")
	assert.NotContains(t, k, "secret-token")
	assert.Equal(t, k, CacheKey("secret-token", "site-1"))
	assert.NotEqual(t, k, CacheKey("other-token", "site-1"))
}

func TestMiddleware(t *testing.T) {
	v := &fakeVerifier{valid: map[string]bool{"good/site-1": true}}
	g := newGate(v)

	var seen string
	h := g.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = WebsiteID(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	tests := []struct {
		name       string
		query      string
		wantStatus int
		wantError  string
	}{
		{"missing both", "", http.StatusUnauthorized, "Missing authentication"},
		{"missing website", "?token=good", http.StatusUnauthorized, "Missing authentication"},
		{"missing token", "?website_id=site-1", http.StatusUnauthorized, "Missing authentication"},
		{"rejected", "?token=bad&website_id=site-1", http.StatusUnauthorized, "Invalid token"},
		{"accepted", "?token=good&website_id=site-1", http.StatusOK, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/crisp/settings"+tt.query, nil)
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)

			assert.Equal(t, tt.wantStatus, rr.Code)
			if tt.wantError != "" {
				var body map[string]string
				require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
				assert.Equal(t, tt.wantError, body["error"])
				assert.Empty(t, rr.Header().Get("Content-Security-Policy"))
				return
			}
			assert.Equal(t, "frame-ancestors https://app.crisp.chat https://app.crisp.im", rr.Header().Get("Content-Security-Policy"))
			assert.Equal(t, "site-1", seen)
		})
	}
}

func TestMiddleware_CustomOrigins(t *testing.T) {
	v := &fakeVerifier{valid: map[string]bool{"good/s": true}}
	g := New(v, cache.NewMemoryStore(), Config{FrameOrigins: []string{"https://a.example"}}, nil)
	h := g.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/?token=good&website_id=s", nil))
	assert.Equal(t, "frame-ancestors https://a.example", rr.Header().Get("Content-Security-Policy"))
}
