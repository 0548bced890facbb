// Package favourites holds the user's pinned route-stop slots and per-list
// sort preferences, persisted through the storage collaborator.
package favourites

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/hktransit/hktransit/pkg/geo"
	"github.com/hktransit/hktransit/pkg/objects"
	"github.com/hktransit/hktransit/pkg/storage"
)

// ErrSlotOutOfRange is returned for slot indexes outside 1..MaxSlots.
var ErrSlotOutOfRange = errors.New("favourites: slot out of range")

// maxLastLookups bounds the recent-lookup history, most recent last.
const maxLastLookups = 50

// LastLookup is one recorded route lookup, feeding the RECENT sort mode.
type LastLookup struct {
	RouteNumber string           `json:"routeNumber"`
	Operator    objects.Operator `json:"co"`
}

// ResolvedFavourite is the stop a favourite slot currently points at. For
// FIXED favourites it echoes the stored stop; for CLOSEST it is recomputed
// per call.
type ResolvedFavourite struct {
	StopID string
	Index  int
	Stop   *objects.Stop
}

// Store keeps favourite slots, sort preferences and lookup history in
// memory, mirroring every mutation to durable storage off the calling
// goroutine. Readers always observe a complete pre- or post-mutation state.
type Store struct {
	mu        sync.RWMutex
	slots     map[int]*objects.FavouriteRouteStop
	sortModes map[objects.RouteListType]objects.RouteSortMode
	lookups   []LastLookup
	maxSlots  int

	storage storage.Store

	// writes tracks outstanding persistence goroutines; persistMu orders
	// them and writeSeq drops writes that a newer mutation superseded.
	writes    sync.WaitGroup
	persistMu sync.Mutex
	seq       uint64
	written   uint64
}

func NewStore(store storage.Store, maxSlots int) *Store {
	return &Store{
		slots:     map[int]*objects.FavouriteRouteStop{},
		sortModes: map[objects.RouteListType]objects.RouteSortMode{},
		maxSlots:  maxSlots,
		storage:   store,
	}
}

type persistedState struct {
	Favourites map[int]*objects.FavouriteRouteStop             `json:"favourites"`
	SortModes  map[objects.RouteListType]objects.RouteSortMode `json:"sortModes"`
	Lookups    []LastLookup                                    `json:"lastLookups"`
}

// Load hydrates the store from durable storage. Missing blobs are a clean
// first run, not an error.
func (s *Store) Load(ctx context.Context) error {
	payload, err := s.storage.Get(ctx, storage.KeyFavourites)
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("favourites: load: %w", err)
	}

	var state persistedState
	if err := json.Unmarshal(payload, &state); err != nil {
		return fmt.Errorf("favourites: decode: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if state.Favourites != nil {
		s.slots = state.Favourites
	}
	if state.SortModes != nil {
		s.sortModes = state.SortModes
	}
	s.lookups = state.Lookups

	return nil
}

// SetFavourite overwrites the slot unconditionally.
func (s *Store) SetFavourite(slot int, favourite *objects.FavouriteRouteStop) error {
	if slot < 1 || slot > s.maxSlots {
		return fmt.Errorf("%w: %d", ErrSlotOutOfRange, slot)
	}

	s.mu.Lock()
	s.slots[slot] = favourite
	s.persistLocked()
	s.mu.Unlock()

	return nil
}

// ClearFavourite removes the slot, if set.
func (s *Store) ClearFavourite(slot int) error {
	if slot < 1 || slot > s.maxSlots {
		return fmt.Errorf("%w: %d", ErrSlotOutOfRange, slot)
	}

	s.mu.Lock()
	delete(s.slots, slot)
	s.persistLocked()
	s.mu.Unlock()

	return nil
}

// Favourite returns the slot's stored value, if any.
func (s *Store) Favourite(slot int) (*objects.FavouriteRouteStop, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	favourite, ok := s.slots[slot]
	return favourite, ok
}

// UsedSlots returns the occupied slot indexes in ascending order.
func (s *Store) UsedSlots() []int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	slots := make([]int, 0, len(s.slots))
	for slot := 1; slot <= s.maxSlots; slot++ {
		if _, ok := s.slots[slot]; ok {
			slots = append(slots, slot)
		}
	}
	return slots
}

// OriginProvider supplies the user's current position on demand. It is only
// invoked when a CLOSEST favourite actually needs it, since obtaining a fix
// can be expensive. ok is false when no position is available.
type OriginProvider func() (origin objects.Coordinates, ok bool)

// ResolveFavourite computes the stop the slot currently points at against
// the given snapshot. FIXED favourites return the stored stop; CLOSEST
// favourites re-resolve to the nearest stop on the route. Resolution is
// side-effect-free and idempotent for an unchanged snapshot and origin.
//
// Returns ok = false when the slot is empty or the route no longer contains
// a resolvable stop; callers treat an unresolvable favourite as unused.
func (s *Store) ResolveFavourite(sheet *objects.DataSheet, slot int, originProvider OriginProvider) (ResolvedFavourite, bool) {
	s.mu.RLock()
	favourite, ok := s.slots[slot]
	s.mu.RUnlock()
	if !ok {
		return ResolvedFavourite{}, false
	}

	stops := favourite.Route.Stops[favourite.Operator]

	if favourite.Mode == objects.FavouriteStopModeFixed {
		if !containsStop(stops, favourite.StopID) {
			return ResolvedFavourite{}, false
		}
		return ResolvedFavourite{StopID: favourite.StopID, Index: favourite.Index, Stop: favourite.Stop}, true
	}

	if len(stops) == 0 {
		return ResolvedFavourite{}, false
	}

	origin, haveOrigin := objects.Coordinates{}, false
	if originProvider != nil {
		origin, haveOrigin = originProvider()
	}
	if !haveOrigin {
		// No position fix; the stored stop is the best available answer.
		if !containsStop(stops, favourite.StopID) {
			return ResolvedFavourite{}, false
		}
		return ResolvedFavourite{StopID: favourite.StopID, Index: favourite.Index, Stop: favourite.Stop}, true
	}

	type candidate struct {
		stopID string
		index  int
		stop   *objects.Stop
	}
	candidates := make([]candidate, 0, len(stops))
	for i, stopID := range stops {
		stop, ok := sheet.StopList[stopID]
		if !ok {
			continue
		}
		candidates = append(candidates, candidate{stopID: stopID, index: i, stop: stop})
	}
	if len(candidates) == 0 {
		return ResolvedFavourite{}, false
	}

	// Nearest stop on the route wins outright; when nothing is close by the
	// favourite still resolves to the globally closest stop rather than
	// going unresolved.
	nearest, _ := geo.Nearest(origin, candidates, func(c candidate) objects.Coordinates {
		return c.stop.Location
	})
	chosen := candidates[nearest]
	return ResolvedFavourite{StopID: chosen.stopID, Index: chosen.index, Stop: chosen.stop}, true
}

// SortMode returns the saved sort mode for the list context, defaulting to
// NORMAL.
func (s *Store) SortMode(listType objects.RouteListType) objects.RouteSortMode {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if mode, ok := s.sortModes[listType]; ok {
		return mode
	}
	return objects.RouteSortModeNormal
}

// SetSortMode saves the sort mode for the list context.
func (s *Store) SetSortMode(listType objects.RouteListType, mode objects.RouteSortMode) {
	s.mu.Lock()
	s.sortModes[listType] = mode
	s.persistLocked()
	s.mu.Unlock()
}

// RecordLookup appends a route lookup to the history, most recent last,
// dropping any earlier occurrence of the same route and trimming to the
// bound.
func (s *Store) RecordLookup(routeNumber string, operator objects.Operator) {
	s.mu.Lock()
	filtered := s.lookups[:0]
	for _, lookup := range s.lookups {
		if lookup.RouteNumber != routeNumber || lookup.Operator != operator {
			filtered = append(filtered, lookup)
		}
	}
	s.lookups = append(filtered, LastLookup{RouteNumber: routeNumber, Operator: operator})
	if len(s.lookups) > maxLastLookups {
		s.lookups = s.lookups[len(s.lookups)-maxLastLookups:]
	}
	s.persistLocked()
	s.mu.Unlock()
}

// LastLookups returns a copy of the lookup history, most recent last.
func (s *Store) LastLookups() []LastLookup {
	s.mu.RLock()
	defer s.mu.RUnlock()

	lookups := make([]LastLookup, len(s.lookups))
	copy(lookups, s.lookups)
	return lookups
}

// Flush blocks until every persistence write issued so far has completed.
// A mutation is durably saved once Flush returns.
func (s *Store) Flush() {
	s.writes.Wait()
}

// persistLocked snapshots the state under s.mu and hands it to a background
// writer. Writers are ordered; a write that a newer snapshot has already
// superseded is skipped.
func (s *Store) persistLocked() {
	state := persistedState{
		Favourites: make(map[int]*objects.FavouriteRouteStop, len(s.slots)),
		SortModes:  make(map[objects.RouteListType]objects.RouteSortMode, len(s.sortModes)),
		Lookups:    make([]LastLookup, len(s.lookups)),
	}
	for slot, favourite := range s.slots {
		state.Favourites[slot] = favourite
	}
	for listType, mode := range s.sortModes {
		state.SortModes[listType] = mode
	}
	copy(state.Lookups, s.lookups)

	s.seq++
	seq := s.seq

	s.writes.Add(1)
	go func() {
		defer s.writes.Done()

		s.persistMu.Lock()
		defer s.persistMu.Unlock()
		if seq <= s.written {
			return
		}

		payload, err := json.Marshal(state)
		if err != nil {
			log.Error().Err(err).Msg("Failed to encode favourites state")
			return
		}
		if err := s.storage.Put(context.Background(), storage.KeyFavourites, payload); err != nil {
			log.Error().Err(err).Msg("Failed to persist favourites state")
			return
		}
		s.written = seq
	}()
}

func containsStop(stops []string, stopID string) bool {
	for _, stop := range stops {
		if stop == stopID {
			return true
		}
	}
	return false
}
