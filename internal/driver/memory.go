package driver

import (
	"context"
	"sort"
	"time"

	"github.com/staydrive/inventory-engine/internal/calendar"
	"github.com/staydrive/inventory-engine/internal/db"
)

type memoryKey struct {
	driverID string
	day      calendar.Day
}

// memoryRepository shares the LocalTxManager of the capacity store so a
// reservation touching both stays one unit of work.
type memoryRepository struct {
	tm       *db.LocalTxManager
	statuses map[memoryKey]*DayStatus
}

func NewMemoryRepository(tm *db.LocalTxManager) Repository {
	return &memoryRepository{tm: tm, statuses: make(map[memoryKey]*DayStatus)}
}

func cloneStatus(s *DayStatus) *DayStatus {
	c := *s
	if s.ReservationID != nil {
		id := *s.ReservationID
		c.ReservationID = &id
	}
	return &c
}

func sortStatuses(out []*DayStatus) {
	sort.Slice(out, func(i, j int) bool {
		if out[i].DriverID != out[j].DriverID {
			return out[i].DriverID < out[j].DriverID
		}
		return out[i].Day < out[j].Day
	})
}

func (m *memoryRepository) put(ctx context.Context, k memoryKey, s *DayStatus) {
	prev, existed := m.statuses[k]
	m.statuses[k] = s
	db.OnRollback(ctx, func() {
		if existed {
			m.statuses[k] = prev
		} else {
			delete(m.statuses, k)
		}
	})
}

func (m *memoryRepository) ListRange(ctx context.Context, driverID string, rng calendar.Range) ([]*DayStatus, error) {
	defer m.tm.Lock(ctx)()

	var out []*DayStatus
	for _, day := range rng.Days() {
		if s, ok := m.statuses[memoryKey{driverID, day}]; ok {
			out = append(out, cloneStatus(s))
		}
	}
	return out, nil
}

func (m *memoryRepository) ListAvailableOn(ctx context.Context, day calendar.Day) ([]string, error) {
	defer m.tm.Lock(ctx)()

	var ids []string
	for k, s := range m.statuses {
		if k.day == day && s.Status == StatusAvailable {
			ids = append(ids, k.driverID)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (m *memoryRepository) LockAvailable(ctx context.Context, days []calendar.Day, driverID *string) ([]*DayStatus, error) {
	defer m.tm.Lock(ctx)()

	wanted := make(map[calendar.Day]bool, len(days))
	for _, d := range days {
		wanted[d] = true
	}
	var out []*DayStatus
	for k, s := range m.statuses {
		if !wanted[k.day] || s.Status != StatusAvailable {
			continue
		}
		if driverID != nil && k.driverID != *driverID {
			continue
		}
		out = append(out, cloneStatus(s))
	}
	sortStatuses(out)
	return out, nil
}

func (m *memoryRepository) SetStatus(ctx context.Context, driverID string, day calendar.Day, status Status) (*DayStatus, error) {
	defer m.tm.Lock(ctx)()

	k := memoryKey{driverID, day}
	if cur, ok := m.statuses[k]; ok && cur.Status == StatusBooked {
		return nil, ErrDriverDayBooked
	}
	next := &DayStatus{DriverID: driverID, Day: day, Status: status, UpdatedAt: time.Now().UTC()}
	m.put(ctx, k, next)
	return cloneStatus(next), nil
}

func (m *memoryRepository) MarkBooked(ctx context.Context, driverID string, days []calendar.Day, reservationID string) error {
	defer m.tm.Lock(ctx)()

	for _, day := range days {
		if s, ok := m.statuses[memoryKey{driverID, day}]; !ok || s.Status != StatusAvailable {
			return ErrDriverNotAvailable
		}
	}
	now := time.Now().UTC()
	for _, day := range days {
		id := reservationID
		m.put(ctx, memoryKey{driverID, day}, &DayStatus{
			DriverID: driverID, Day: day, Status: StatusBooked, ReservationID: &id, UpdatedAt: now,
		})
	}
	return nil
}

func (m *memoryRepository) ReleaseBooked(ctx context.Context, reservationID string) (int64, error) {
	defer m.tm.Lock(ctx)()

	var n int64
	now := time.Now().UTC()
	for k, s := range m.statuses {
		if s.ReservationID == nil || *s.ReservationID != reservationID {
			continue
		}
		m.put(ctx, k, &DayStatus{DriverID: k.driverID, Day: k.day, Status: StatusAvailable, UpdatedAt: now})
		n++
	}
	return n, nil
}

func (m *memoryRepository) DeleteUnbookedBefore(ctx context.Context, cutoff calendar.Day) (int64, error) {
	defer m.tm.Lock(ctx)()

	var n int64
	for k, s := range m.statuses {
		if k.day.Before(cutoff) && s.Status != StatusBooked {
			delete(m.statuses, k)
			db.OnRollback(ctx, func() { m.statuses[k] = s })
			n++
		}
	}
	return n, nil
}
