package catalog

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

type memoryRepository struct {
	mu        sync.RWMutex
	resources map[string]*Resource
}

// NewMemoryRepository keeps the catalog in process.
func NewMemoryRepository() Repository {
	return &memoryRepository{resources: make(map[string]*Resource)}
}

func cloneResource(r *Resource) *Resource {
	c := *r
	if r.DefaultPrice != nil {
		p := *r.DefaultPrice
		c.DefaultPrice = &p
	}
	return &c
}

func (m *memoryRepository) Create(ctx context.Context, res *Resource) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	res.ID = uuid.NewString()
	res.CreatedAt = time.Now().UTC()
	m.resources[res.ID] = cloneResource(res)
	return nil
}

func (m *memoryRepository) GetByID(ctx context.Context, id string) (*Resource, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	res, ok := m.resources[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneResource(res), nil
}

func (m *memoryRepository) List(ctx context.Context, filter Filter) ([]*Resource, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var matched []*Resource
	for _, res := range m.resources {
		if filter.Kind != "" && res.Kind != filter.Kind {
			continue
		}
		if filter.ActiveOnly && !res.IsActive {
			continue
		}
		matched = append(matched, res)
	}
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID < matched[j].ID
	})

	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize < 1 {
		filter.PageSize = 20
	}
	start := min((filter.Page-1)*filter.PageSize, len(matched))
	end := min(start+filter.PageSize, len(matched))

	out := make([]*Resource, 0, end-start)
	for _, res := range matched[start:end] {
		out = append(out, cloneResource(res))
	}
	return out, len(matched), nil
}

func (m *memoryRepository) Update(ctx context.Context, res *Resource) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.resources[res.ID]; !ok {
		return ErrNotFound
	}
	m.resources[res.ID] = cloneResource(res)
	return nil
}

func (m *memoryRepository) ListActiveIDs(ctx context.Context, kind Kind) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var ids []string
	for id, res := range m.resources {
		if res.Kind == kind && res.IsActive {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}
