package ledger

import (
	"context"
	"time"

	"github.com/staydrive/inventory-engine/internal/db"
)

type memoryRepository struct {
	tm           *db.LocalTxManager
	reservations map[string]*Reservation
}

func NewMemoryRepository(tm *db.LocalTxManager) Repository {
	return &memoryRepository{tm: tm, reservations: make(map[string]*Reservation)}
}

func cloneReservation(r *Reservation) *Reservation {
	c := *r
	if r.DriverID != nil {
		id := *r.DriverID
		c.DriverID = &id
	}
	if r.ReleasedAt != nil {
		at := *r.ReleasedAt
		c.ReleasedAt = &at
	}
	return &c
}

func (m *memoryRepository) Create(ctx context.Context, res *Reservation) error {
	defer m.tm.Lock(ctx)()

	id := res.ID
	res.CreatedAt = time.Now().UTC()
	m.reservations[id] = cloneReservation(res)
	db.OnRollback(ctx, func() { delete(m.reservations, id) })
	return nil
}

func (m *memoryRepository) Get(ctx context.Context, id string) (*Reservation, error) {
	defer m.tm.Lock(ctx)()

	res, ok := m.reservations[id]
	if !ok {
		return nil, ErrReservationNotFound
	}
	return cloneReservation(res), nil
}

// GetForUpdate needs no extra locking: the transaction already holds the
// manager's mutex.
func (m *memoryRepository) GetForUpdate(ctx context.Context, id string) (*Reservation, error) {
	return m.Get(ctx, id)
}

func (m *memoryRepository) MarkReleased(ctx context.Context, id string, at time.Time) error {
	defer m.tm.Lock(ctx)()

	cur, ok := m.reservations[id]
	if !ok || cur.Status != StatusHeld {
		return ErrReservationNotFound
	}
	next := cloneReservation(cur)
	next.Status = StatusReleased
	next.ReleasedAt = &at
	m.reservations[id] = next
	db.OnRollback(ctx, func() { m.reservations[id] = cur })
	return nil
}
