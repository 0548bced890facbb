// Package registry wires the dataset loader, search, geo ranking, arrival
// dispatch and favourites behind one explicitly constructed service object.
package registry

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"

	"github.com/hktransit/hktransit/pkg/config"
	"github.com/hktransit/hktransit/pkg/eta"
	"github.com/hktransit/hktransit/pkg/favourites"
	"github.com/hktransit/hktransit/pkg/storage"
)

// State is the dataset loader's lifecycle state.
type State int32

const (
	StateUninitialized State = iota
	StateLoading
	StateReady
	StateUpdating
	StateError
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "UNINITIALIZED"
	case StateLoading:
		return "LOADING"
	case StateReady:
		return "READY"
	case StateUpdating:
		return "UPDATING"
	case StateError:
		return "ERROR"
	}
	return fmt.Sprintf("State(%d)", int32(s))
}

// Registry is the process-wide transit data service. Construct one at
// startup with New and pass it by reference; there is no global instance.
//
// Reads are served from an immutable snapshot swapped atomically on
// refresh. A reader mid-query keeps its snapshot; no reader ever observes
// a partially loaded one.
type Registry struct {
	config config.Config

	fetcher    *datasetFetcher
	storage    storage.Store
	dispatcher *eta.Dispatcher
	favourites *favourites.Store
	typhoon    *eta.TyphoonMonitor

	snapshot atomic.Pointer[Snapshot]

	// mu guards the loader state machine. At most one load or refresh is
	// in flight; inflight is non-nil while one runs and is closed when it
	// finishes.
	mu       sync.Mutex
	state    State
	loadErr  error
	inflight chan struct{}
}

func New(cfg config.Config, store storage.Store) *Registry {
	dispatcher := eta.NewDispatcher(eta.DispatcherOptions{
		Timeout:       cfg.ETA.QueryTimeout.Std(),
		ResultTTL:     cfg.ETA.ResultTTL.Std(),
		MaxConcurrent: cfg.ETA.MaxConcurrent,
	})
	dispatcher.RegisterDefaultSources()

	return &Registry{
		config:     cfg,
		fetcher:    newDatasetFetcher(cfg.Data.ChecksumURL, cfg.Data.DataSheetURL, store),
		storage:    store,
		dispatcher: dispatcher,
		favourites: favourites.NewStore(store, cfg.Favourites.MaxSlots),
		typhoon:    eta.NewTyphoonMonitor(),
		state:      StateUninitialized,
	}
}

// Start hydrates persisted state and performs the initial dataset load.
// A failed initial load is fatal; the registry ends up in StateError and
// the error is returned for the caller to surface.
func (r *Registry) Start(ctx context.Context) error {
	if err := r.favourites.Load(ctx); err != nil {
		return err
	}
	_, err := r.EnsureLoaded(ctx)
	return err
}

// State returns the loader state.
func (r *Registry) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Snapshot returns the current snapshot, or nil before the first load.
func (r *Registry) Snapshot() *Snapshot {
	return r.snapshot.Load()
}

// Favourites exposes the favourites and sort-preference store.
func (r *Registry) Favourites() *favourites.Store {
	return r.favourites
}

// EnsureLoaded returns the current snapshot, triggering the initial load
// if none exists yet. With a snapshot present it returns immediately
// regardless of freshness; without one it blocks until the load finishes
// or ctx expires.
func (r *Registry) EnsureLoaded(ctx context.Context) (*Snapshot, error) {
	if snapshot := r.snapshot.Load(); snapshot != nil {
		return snapshot, nil
	}

	done := r.beginInitialLoad()
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-done:
	}

	if snapshot := r.snapshot.Load(); snapshot != nil {
		return snapshot, nil
	}
	r.mu.Lock()
	err := r.loadErr
	r.mu.Unlock()
	if err == nil {
		err = errors.New("registry: dataset unavailable")
	}
	return nil, err
}

func (r *Registry) beginInitialLoad() <-chan struct{} {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.inflight != nil {
		return r.inflight
	}
	done := make(chan struct{})
	r.inflight = done
	r.state = StateLoading

	go func() {
		snapshot, err := r.initialLoad(context.Background())

		r.mu.Lock()
		if err != nil {
			r.state = StateError
			r.loadErr = err
			log.Error().Err(err).Msg("Initial dataset load failed")
		} else {
			r.snapshot.Store(snapshot)
			r.state = StateReady
			r.loadErr = nil
			log.Info().
				Str("checksum", snapshot.Checksum).
				Int("routes", len(snapshot.Sheet.RouteList)).
				Int("stops", len(snapshot.Sheet.StopList)).
				Msg("Published initial dataset snapshot")
		}
		r.inflight = nil
		r.mu.Unlock()
		close(done)
	}()

	return done
}

// initialLoad prefers the mirrored payload when its checksum still matches
// upstream, or when upstream is unreachable, and downloads a fresh copy
// otherwise.
func (r *Registry) initialLoad(ctx context.Context) (*Snapshot, error) {
	remote, remoteErr := r.fetcher.RemoteChecksum(ctx)
	if remoteErr != nil {
		log.Warn().Err(remoteErr).Msg("Dataset checksum probe failed during initial load")
	}

	cached, cachedChecksum, haveCache := r.fetcher.CachedDataSheet(ctx)
	if haveCache && (remoteErr != nil || cachedChecksum == remote) {
		sheet, err := decodeDataSheet(cached)
		if err == nil {
			return newSnapshot(sheet, cachedChecksum), nil
		}
		log.Warn().Err(err).Msg("Stored dataset is invalid, downloading a fresh copy")
	}

	payload, err := r.fetcher.FetchDataSheet(ctx)
	if err != nil {
		return nil, fmt.Errorf("registry: dataset download: %w", err)
	}
	sheet, err := decodeDataSheet(payload)
	if err != nil {
		return nil, err
	}

	if remoteErr == nil {
		if err := r.fetcher.StoreDataSheet(ctx, payload, remote); err != nil {
			log.Error().Err(err).Msg("Failed to mirror dataset to storage")
		}
	}
	return newSnapshot(sheet, remote), nil
}

// CheckFreshness probes the upstream dataset version and refreshes the
// snapshot on a mismatch. Probe and refresh failures are logged and the
// current snapshot keeps serving; the next scheduled probe retries.
func (r *Registry) CheckFreshness(ctx context.Context) {
	current := r.snapshot.Load()
	if current == nil {
		return
	}

	remote, err := r.fetcher.RemoteChecksum(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Dataset freshness probe failed")
		return
	}
	if remote == current.Checksum {
		return
	}

	log.Info().
		Str("current", current.Checksum).
		Str("remote", remote).
		Msg("Dataset version changed upstream, refreshing")
	if err := r.refresh(ctx, remote); err != nil {
		log.Error().Err(err).Msg("Dataset refresh failed, keeping the current snapshot")
	}
}

// refresh downloads, validates and publishes a new snapshot. The previous
// snapshot serves all reads until the new one is fully validated.
func (r *Registry) refresh(ctx context.Context, checksum string) error {
	r.mu.Lock()
	if r.inflight != nil {
		r.mu.Unlock()
		return nil
	}
	done := make(chan struct{})
	r.inflight = done
	r.state = StateUpdating
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		r.state = StateReady
		r.inflight = nil
		r.mu.Unlock()
		close(done)
	}()

	var payload []byte
	download := func() error {
		var err error
		payload, err = r.fetcher.FetchDataSheet(ctx)
		return err
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3), ctx)
	if err := backoff.Retry(download, policy); err != nil {
		return err
	}

	sheet, err := decodeDataSheet(payload)
	if err != nil {
		return err
	}
	if err := r.fetcher.StoreDataSheet(ctx, payload, checksum); err != nil {
		log.Error().Err(err).Msg("Failed to mirror refreshed dataset to storage")
	}

	r.snapshot.Store(newSnapshot(sheet, checksum))
	log.Info().
		Str("checksum", checksum).
		Int("routes", len(sheet.RouteList)).
		Msg("Published refreshed dataset snapshot")
	return nil
}

// RunBackgroundRefresh probes dataset freshness on the configured interval
// until ctx is cancelled.
func (r *Registry) RunBackgroundRefresh(ctx context.Context) {
	ticker := time.NewTicker(r.config.Data.RefreshInterval.Std())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.CheckFreshness(ctx)
		}
	}
}
