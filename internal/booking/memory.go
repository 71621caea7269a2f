package booking

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

type memoryRepository struct {
	mu       sync.RWMutex
	bookings map[string]*Booking
}

func NewMemoryRepository() Repository {
	return &memoryRepository{bookings: make(map[string]*Booking)}
}

func cloneBooking(b *Booking) *Booking {
	c := *b
	if b.DriverID != nil {
		id := *b.DriverID
		c.DriverID = &id
	}
	return &c
}

func (m *memoryRepository) Create(ctx context.Context, b *Booking) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now().UTC()
	b.ID = uuid.NewString()
	b.CreatedAt = now
	b.UpdatedAt = now
	m.bookings[b.ID] = cloneBooking(b)
	return nil
}

func (m *memoryRepository) GetByID(ctx context.Context, id string) (*Booking, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	b, ok := m.bookings[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneBooking(b), nil
}

func (m *memoryRepository) List(ctx context.Context, filter Filter) ([]*Booking, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var matched []*Booking
	for _, b := range m.bookings {
		if filter.UserID != "" && b.UserID != filter.UserID {
			continue
		}
		if filter.Kind != "" && b.Kind != filter.Kind {
			continue
		}
		if filter.ResourceID != "" && b.ResourceID != filter.ResourceID {
			continue
		}
		if filter.Status != "" && b.Status != filter.Status {
			continue
		}
		matched = append(matched, b)
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
	total := len(matched)
	start := min((filter.Page-1)*filter.PageSize, total)
	end := min(start+filter.PageSize, total)

	out := make([]*Booking, 0, end-start)
	for _, b := range matched[start:end] {
		out = append(out, cloneBooking(b))
	}
	return out, total, nil
}

func (m *memoryRepository) UpdateStatus(ctx context.Context, id string, from, to Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.bookings[id]
	if !ok || b.Status != from {
		return ErrNotFound
	}
	next := cloneBooking(b)
	next.Status = to
	next.UpdatedAt = time.Now().UTC()
	m.bookings[id] = next
	return nil
}
