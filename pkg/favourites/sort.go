package favourites

import (
	"math"
	"sort"

	"github.com/hktransit/hktransit/pkg/objects"
)

// Sort returns the entries ordered for the given mode. The sort is stable:
// entries the mode considers equal keep their input order, and Normal mode
// keeps the input order outright. Proximity mode requires an origin; a nil
// origin is a programming error and panics.
func Sort(entries []*objects.RouteSearchResultEntry, mode objects.RouteSortMode, origin *objects.Coordinates, history []LastLookup) []*objects.RouteSearchResultEntry {
	sorted := make([]*objects.RouteSearchResultEntry, len(entries))
	copy(sorted, entries)

	switch mode {
	case objects.RouteSortModeRecent:
		recency := map[string]int{}
		for i, lookup := range history {
			recency[lookup.RouteNumber+"|"+lookup.Operator.Name()] = i
		}
		rank := func(entry *objects.RouteSearchResultEntry) int {
			if entry.Route == nil {
				return -1
			}
			if position, ok := recency[entry.Route.RouteNumber+"|"+entry.Operator.Name()]; ok {
				return position
			}
			return -1
		}
		// History is most recent last; higher positions sort first.
		sort.SliceStable(sorted, func(i, j int) bool {
			return rank(sorted[i]) > rank(sorted[j])
		})

	case objects.RouteSortModeProximity:
		if origin == nil {
			panic("favourites: proximity sort requires an origin")
		}
		distance := func(entry *objects.RouteSearchResultEntry) float64 {
			if entry.StopInfo == nil {
				return math.Inf(1)
			}
			if entry.StopInfo.Data != nil {
				return origin.DistanceTo(entry.StopInfo.Data.Location)
			}
			return entry.StopInfo.Distance
		}
		sort.SliceStable(sorted, func(i, j int) bool {
			return distance(sorted[i]) < distance(sorted[j])
		})
	}

	return sorted
}
