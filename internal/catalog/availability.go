package catalog

import (
	"context"
	"sync"
	"time"

	"pos-terminal/internal/domain"
)

type AvailabilityLoader interface {
	LoadRoomAvailability(ctx context.Context, date time.Time) ([]domain.RoomAvailability, error)
}

// Index is a point-in-time snapshot of room bookings for one date. It is
// replaced wholesale on Refresh and never patched locally.
type Index struct {
	loader AvailabilityLoader

	mu     sync.RWMutex
	date   time.Time
	loaded bool
	order  []string
	rooms  map[string]domain.RoomAvailability
}

func NewIndex(loader AvailabilityLoader) *Index {
	return &Index{loader: loader}
}

func (x *Index) Refresh(ctx context.Context, date time.Time) error {
	list, err := x.loader.LoadRoomAvailability(ctx, date)
	if err != nil {
		return domain.Wrap(domain.CodeRemoteUnavailable, "load room availability", err)
	}
	rooms := make(map[string]domain.RoomAvailability, len(list))
	order := make([]string, 0, len(list))
	for _, ra := range list {
		if _, dup := rooms[ra.Room.ID]; !dup {
			order = append(order, ra.Room.ID)
		}
		rooms[ra.Room.ID] = ra
	}
	x.mu.Lock()
	x.date, x.loaded, x.order, x.rooms = date, true, order, rooms
	x.mu.Unlock()
	return nil
}

func (x *Index) Loaded() bool {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.loaded
}

func (x *Index) Date() time.Time {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.date
}

func (x *Index) Room(roomID string) (domain.RoomAvailability, bool) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	ra, ok := x.rooms[roomID]
	return ra, ok
}

// Rooms lists availability in the order the backend returned it.
func (x *Index) Rooms() []domain.RoomAvailability {
	x.mu.RLock()
	defer x.mu.RUnlock()
	out := make([]domain.RoomAvailability, 0, len(x.order))
	for _, id := range x.order {
		out = append(out, x.rooms[id])
	}
	return out
}
