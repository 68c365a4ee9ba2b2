// Package cache stores template info so repeated field lookups and request
// validation do not hit the API each time.
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/personalia-io/personalia-sdk-go/personalia/types"
)

// DefaultTTL is how long template info is kept when no TTL is given.
const DefaultTTL = 10 * time.Minute

type entry struct {
	info    types.TemplateInfo
	expires time.Time
}

// Memory is an in-process TTL cache. It is safe for concurrent use.
type Memory struct {
	mu    sync.Mutex
	ttl   time.Duration
	items map[string]entry
	now   func() time.Time
}

// NewMemory creates a Memory cache. A non-positive ttl uses DefaultTTL.
func NewMemory(ttl time.Duration) *Memory {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Memory{ttl: ttl, items: make(map[string]entry), now: time.Now}
}

// Get returns a copy of the cached info, or nil on a miss.
func (m *Memory) Get(ctx context.Context, templateID string) (*types.TemplateInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.items[templateID]
	if !ok {
		return nil, nil
	}
	if !m.now().Before(e.expires) {
		delete(m.items, templateID)
		return nil, nil
	}
	return clone(&e.info), nil
}

// Set stores a copy of info.
func (m *Memory) Set(ctx context.Context, info *types.TemplateInfo) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[info.TemplateID] = entry{info: *clone(info), expires: m.now().Add(m.ttl)}
	return nil
}

// Len returns the number of entries, expired ones included.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}

func clone(info *types.TemplateInfo) *types.TemplateInfo {
	out := *info
	out.Fields = append([]types.TemplateField(nil), info.Fields...)
	return &out
}
