// Package tokengate guards the settings editor with the short-lived token
// Crisp appends to the iframe URL.
package tokengate

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/zeebo/blake3"

	"github.com/mattjoyce/crispbridge/internal/cache"
	"github.com/mattjoyce/crispbridge/internal/metrics"
)

const DefaultTTL = 300 * time.Second

// DefaultFrameOrigins are the Crisp dashboard origins allowed to embed the
// editor.
var DefaultFrameOrigins = []string{"https://app.crisp.chat", "https://app.crisp.im"}

// Verifier checks a token with the remote platform.
type Verifier interface {
	VerifyToken(ctx context.Context, token, websiteID string) (bool, error)
}

type result struct {
	Valid bool `json:"valid"`
}

// Gate authorizes (token, website id) pairs, remembering each answer for
// the configured TTL.
type Gate struct {
	verifier Verifier
	cache    *cache.Cache[result]
	origins  []string
	logger   *slog.Logger
}

// Config controls Gate construction.
type Config struct {
	TTL          time.Duration
	FrameOrigins []string
}

// New returns a Gate that consults verifier on cache misses.
func New(verifier Verifier, store cache.Store, cfg Config, logger *slog.Logger) *Gate {
	if logger == nil {
		logger = slog.Default()
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	origins := cfg.FrameOrigins
	if len(origins) == 0 {
		origins = DefaultFrameOrigins
	}
	return &Gate{
		verifier: verifier,
		cache:    cache.New[result](store, "token", ttl, logger),
		origins:  origins,
		logger:   logger,
	}
}

// CacheKey names the cache entry for a (token, website id) pair. The token
// is hashed so bearer credentials are never written to a shared store.
func CacheKey(token, websiteID string) string {
	sum := blake3.Sum256([]byte(token))
	return "crisp.token." + hex.EncodeToString(sum[:16]) + "." + websiteID
}

// Authorize reports whether token is valid for websiteID. Verification
// errors count as invalid, and that answer is cached like any other.
func (g *Gate) Authorize(ctx context.Context, token, websiteID string) bool {
	r := g.cache.Remember(ctx, CacheKey(token, websiteID), func(ctx context.Context) result {
		ok, err := g.verifier.VerifyToken(ctx, token, websiteID)
		if err != nil {
			metrics.TokenVerifications.WithLabelValues("error").Inc()
			g.logger.Warn("token verification failed", "website_id", websiteID, "error", err)
			return result{Valid: false}
		}
		if ok {
			metrics.TokenVerifications.WithLabelValues("valid").Inc()
		} else {
			metrics.TokenVerifications.WithLabelValues("invalid").Inc()
		}
		return result{Valid: ok}
	})
	return r.Valid
}

type ctxKey struct{}

// WebsiteID returns the website id validated by Middleware.
func WebsiteID(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}

// WithWebsiteID stores id as the validated website id.
func WithWebsiteID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// Middleware rejects requests lacking a valid token/website_id query pair
// and restricts framing of accepted responses to the allowed origins.
func (g *Gate) Middleware(next http.Handler) http.Handler {
	csp := "frame-ancestors " + strings.Join(g.origins, " ")
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		token, websiteID := q.Get("token"), q.Get("website_id")
		if token == "" || websiteID == "" {
			writeError(w, "Missing authentication")
			return
		}
		if !g.Authorize(r.Context(), token, websiteID) {
			writeError(w, "Invalid token")
			return
		}

		w.Header().Set("Content-Security-Policy", csp)
		next.ServeHTTP(w, r.WithContext(WithWebsiteID(r.Context(), websiteID)))
	})
}

func writeError(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
