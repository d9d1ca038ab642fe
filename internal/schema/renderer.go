package schema

import (
	"encoding/hex"
	"sync"

	"github.com/zeebo/blake3"
)

const defaultRendererCapacity = 64

// Fingerprint returns the BLAKE3 hex digest of a raw schema document.
func Fingerprint(raw []byte) string {
	sum := blake3.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

// Renderer memoizes Render by schema fingerprint. The returned slices are
// shared between callers and must be treated as read-only.
type Renderer struct {
	mu       sync.RWMutex
	byHash   map[string][]FieldDefinition
	capacity int
}

// NewRenderer returns a Renderer holding at most capacity distinct schemas.
func NewRenderer(capacity int) *Renderer {
	if capacity <= 0 {
		capacity = defaultRendererCapacity
	}
	return &Renderer{
		byHash:   make(map[string][]FieldDefinition),
		capacity: capacity,
	}
}

// Render returns the field definitions for raw, rendering only on a miss.
func (r *Renderer) Render(raw []byte) []FieldDefinition {
	if r == nil {
		return Render(raw)
	}
	fp := Fingerprint(raw)

	r.mu.RLock()
	fields, ok := r.byHash[fp]
	r.mu.RUnlock()
	if ok {
		return fields
	}

	fields = Render(raw)

	r.mu.Lock()
	if len(r.byHash) >= r.capacity {
		// Schemas change rarely; starting over is simpler than LRU bookkeeping.
		r.byHash = make(map[string][]FieldDefinition)
	}
	r.byHash[fp] = fields
	r.mu.Unlock()
	return fields
}

// Len reports how many schemas are memoized.
func (r *Renderer) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byHash)
}
