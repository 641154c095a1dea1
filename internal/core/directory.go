package core

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// RoomDirectory owns the set of live rooms. Rooms are created lazily on
// first join and retired by a janitor once they have been empty for a
// grace period, so an abandoned room's journal does not live forever.
type RoomDirectory struct {
	mu    sync.Mutex
	rooms map[string]*Room

	limit         int
	retireAfter   time.Duration
	sweepInterval time.Duration
	log           *zerolog.Logger
}

// DirectoryOptions configure room capacity and retirement.
type DirectoryOptions struct {
	RoomLimit     int
	RetireAfter   time.Duration
	SweepInterval time.Duration
}

// NewRoomDirectory constructs an empty directory.
func NewRoomDirectory(opts DirectoryOptions, logger *zerolog.Logger) *RoomDirectory {
	return &RoomDirectory{
		rooms:         make(map[string]*Room),
		limit:         opts.RoomLimit,
		retireAfter:   opts.RetireAfter,
		sweepInterval: opts.SweepInterval,
		log:           logger,
	}
}

// Room returns the room for a key, creating it if asked to.
func (d *RoomDirectory) Room(key string, create bool) *Room {
	d.mu.Lock()
	defer d.mu.Unlock()
	rm := d.rooms[key]
	if rm == nil && create {
		rm = newRoom(key, d.limit)
		d.rooms[key] = rm
	}
	return rm
}

// Snapshot returns room keys with their member counts. Non-authoritative;
// used only by the administrative read surface.
func (d *RoomDirectory) Snapshot() map[string]int {
	d.mu.Lock()
	rooms := make([]*Room, 0, len(d.rooms))
	for _, rm := range d.rooms {
		rooms = append(rooms, rm)
	}
	d.mu.Unlock()

	out := make(map[string]int, len(rooms))
	for _, rm := range rooms {
		out[rm.Key] = len(rm.Members())
	}
	return out
}

// Sweep retires rooms that have been empty for longer than the grace
// period and returns how many were removed. A join between sweeps clears
// the room's empty timestamp, which cancels its retirement. Each room is
// marked retired under its own mutex before it leaves the map, so a join
// that fetched the room just before the sweep is rejected instead of
// landing in a ghost room.
func (d *RoomDirectory) Sweep(now time.Time) int {
	if d.retireAfter <= 0 {
		return 0
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	removed := 0
	for key, rm := range d.rooms {
		if rm.retire(now, d.retireAfter) {
			delete(d.rooms, key)
			removed++
		}
	}
	return removed
}

// Run drives the retirement janitor until the context is cancelled.
func (d *RoomDirectory) Run(ctx context.Context) {
	if d.sweepInterval <= 0 || d.retireAfter <= 0 {
		<-ctx.Done()
		return
	}
	ticker := time.NewTicker(d.sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if n := d.Sweep(time.Now()); n > 0 {
				d.log.Debug().Int("rooms", n).Msg("retired empty rooms")
			}
		case <-ctx.Done():
			return
		}
	}
}
