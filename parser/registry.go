package parser

import (
	"strings"
	"sync"

	"github.com/aluiziolira/go-scrape-jobs/models"
)

// GenericKey names the fallback strategy.
const GenericKey = "generic"

type registryEntry struct {
	key      string
	strategy Strategy
}

// Registry maps site identifiers to extraction strategies.
type Registry struct {
	mu       sync.RWMutex
	entries  []registryEntry
	fallback Strategy
}

// NewRegistry returns an empty registry that resolves every site to the generic strategy.
func NewRegistry() *Registry {
	return &Registry{fallback: NewGenericStrategy()}
}

// DefaultRegistry registers the known Cambodian job boards.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	for _, key := range []string{"khmer24", "bongthom", "jobtify"} {
		r.Register(key, NewBoardStrategy(key))
	}
	return r
}

// Register adds or replaces the strategy for key. Keys are case-insensitive.
// Registering GenericKey replaces the fallback.
func (r *Registry) Register(key string, strategy Strategy) {
	key = strings.ToLower(strings.TrimSpace(key))
	r.mu.Lock()
	defer r.mu.Unlock()

	if key == GenericKey {
		r.fallback = strategy
		return
	}
	for i := range r.entries {
		if r.entries[i].key == key {
			r.entries[i].strategy = strategy
			return
		}
	}
	r.entries = append(r.entries, registryEntry{key: key, strategy: strategy})
}

// Keys lists registered keys in registration order, excluding the fallback.
func (r *Registry) Keys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]string, 0, len(r.entries))
	for _, e := range r.entries {
		keys = append(keys, e.key)
	}
	return keys
}

// Lookup resolves the strategy for site: its explicit Strategy key when set, otherwise the first
// registered key contained in the base URL, otherwise the fallback.
func (r *Registry) Lookup(site models.JobSite) Strategy {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if explicit := strings.ToLower(strings.TrimSpace(site.Strategy)); explicit != "" {
		if explicit == GenericKey {
			return r.fallback
		}
		for _, e := range r.entries {
			if e.key == explicit {
				return e.strategy
			}
		}
		return r.fallback
	}

	base := strings.ToLower(site.BaseURL)
	for _, e := range r.entries {
		if strings.Contains(base, e.key) {
			return e.strategy
		}
	}
	return r.fallback
}
