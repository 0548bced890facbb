package registry

import (
	"sync"

	"github.com/hktransit/hktransit/pkg/geo"
	"github.com/hktransit/hktransit/pkg/objects"
	"github.com/hktransit/hktransit/pkg/search"
)

// Snapshot is one published generation of the dataset together with the
// query structures derived from it. The derived structures are built lazily
// on first use and memoized against this snapshot, never against the clock;
// a refresh publishes a whole new Snapshot.
type Snapshot struct {
	Sheet    *objects.DataSheet
	Checksum string

	searchOnce sync.Once
	search     *search.Index

	geoOnce sync.Once
	geo     *geo.Engine
}

func newSnapshot(sheet *objects.DataSheet, checksum string) *Snapshot {
	return &Snapshot{Sheet: sheet, Checksum: checksum}
}

// SearchIndex returns the route-number prefix index for this snapshot.
func (s *Snapshot) SearchIndex() *search.Index {
	s.searchOnce.Do(func() {
		s.search = search.BuildIndex(s.Sheet)
	})
	return s.search
}

// GeoEngine returns the nearby-routes engine for this snapshot.
func (s *Snapshot) GeoEngine() *geo.Engine {
	s.geoOnce.Do(func() {
		s.geo = geo.NewEngine(s.Sheet)
	})
	return s.geo
}
