// Package geo answers nearest-stop and nearby-route queries against one
// DataSheet snapshot.
package geo

import (
	"regexp"
	"strconv"
	"time"

	"golang.org/x/exp/slices"

	"github.com/hktransit/hktransit/pkg/objects"
	"github.com/hktransit/hktransit/pkg/util"
)

// NearbyRadiusKm is the search radius for nearby-route queries.
const NearbyRadiusKm = 0.3

// Nearest returns the index of the minimum-distance candidate and that
// distance in kilometres. Ties go to the first occurrence. Returns -1 for an
// empty candidate list.
func Nearest[T any](origin objects.Coordinates, candidates []T, location func(T) objects.Coordinates) (int, float64) {
	best := -1
	bestDistance := 0.0
	for i, candidate := range candidates {
		distance := origin.DistanceTo(location(candidate))
		if best == -1 || distance < bestDistance {
			best = i
			bestDistance = distance
		}
	}
	return best, bestDistance
}

// Engine runs geographic queries over one snapshot. Build a new Engine per
// snapshot; it is stateless beyond the snapshot reference and safe for
// concurrent use.
type Engine struct {
	sheet *objects.DataSheet

	clock func() time.Time
}

func NewEngine(sheet *objects.DataSheet) *Engine {
	return &Engine{sheet: sheet, clock: time.Now}
}

// NearbyRoutesResult carries either a hit list of routes within the radius,
// or (when Entries is empty) just the globally closest stop so the caller
// can render a closest-miss message.
type NearbyRoutesResult struct {
	Entries         []*objects.RouteSearchResultEntry
	ClosestStopID   string
	ClosestStop     *objects.Stop
	ClosestDistance float64
	Origin          objects.Coordinates
}

type nearbyStop struct {
	stopID   string
	stop     *objects.Stop
	distance float64
	operator objects.Operator
}

// NearbyRoutes scans the full stop list for stops within NearbyRadiusKm of
// the origin and returns every route serving them, minus excluded route
// numbers. In interchange mode the caller passes the route it is already on
// via the exclusion set. When nothing is within the radius the result
// carries only the single globally closest stop and its distance.
func (e *Engine) NearbyRoutes(lat float64, lng float64, excludedRouteNumbers map[string]bool, isInterchangeSearch bool) *NearbyRoutesResult {
	origin := objects.NewCoordinates(lat, lng)

	var closestStopID string
	var closestStop *objects.Stop
	closestDistance := -1.0

	var nearbyStops []nearbyStop
	for stopID, stop := range e.sheet.StopList {
		distance := origin.DistanceTo(stop.Location)

		if closestDistance < 0 || distance < closestDistance || (distance == closestDistance && stopID < closestStopID) {
			closestStopID = stopID
			closestStop = stop
			closestDistance = distance
		}

		if distance <= NearbyRadiusKm {
			operator, ok := operatorForStopID(stopID)
			if !ok {
				continue
			}
			nearbyStops = append(nearbyStops, nearbyStop{stopID: stopID, stop: stop, distance: distance, operator: operator})
		}
	}

	result := &NearbyRoutesResult{
		ClosestStopID:   closestStopID,
		ClosestStop:     closestStop,
		ClosestDistance: closestDistance,
		Origin:          origin,
	}

	byRouteKey := map[string]*objects.RouteSearchResultEntry{}
	for _, nearby := range nearbyStops {
		for _, reference := range e.sheet.StopMap[nearby.stopID] {
			route, ok := e.sheet.RouteList[reference.RouteKey]
			if !ok {
				continue
			}
			if excludedRouteNumbers[route.RouteNumber] {
				continue
			}

			entry := &objects.RouteSearchResultEntry{
				RouteKey: reference.RouteKey,
				Route:    route,
				Operator: reference.Operator,
				StopInfo: &objects.StopInfo{
					StopID:   nearby.stopID,
					Data:     nearby.stop,
					Distance: nearby.distance,
					Operator: nearby.operator,
				},
				Origin:              &origin,
				IsInterchangeSearch: isInterchangeSearch,
			}

			existing, ok := byRouteKey[reference.RouteKey]
			if !ok || nearby.distance < existing.StopInfo.Distance ||
				(nearby.distance == existing.StopInfo.Distance && nearby.stopID < existing.StopInfo.StopID) {
				byRouteKey[reference.RouteKey] = entry
			}
		}
	}

	for _, entry := range byRouteKey {
		result.Entries = append(result.Entries, entry)
	}
	e.sortNearbyEntries(result.Entries)

	return result
}

var stopIDOperators = objects.AllOperators()

func operatorForStopID(stopID string) (objects.Operator, bool) {
	for _, operator := range stopIDOperators {
		if operator.MatchStopIDPattern(stopID) {
			return operator, true
		}
	}
	return "", false
}

var nonDigits = regexp.MustCompile(`[^0-9]`)

// sortNearbyEntries orders routes the way riders expect at a stop pole:
// numerically, with night routes surfaced during the night window, special
// "S" departures demoted, and racecourse "R" routes demoted outside
// holidays. Ordering is deterministic for a given snapshot and clock.
func (e *Engine) sortNearbyEntries(entries []*objects.RouteSearchResultEntry) {
	now := util.InHongKong(e.clock())
	isNight := now.Hour() >= 1 && now.Hour() < 5
	weekday := now.Weekday()
	isHoliday := weekday == time.Saturday || weekday == time.Sunday || objects.ContainsDate(e.sheet.Holidays, now)

	weight := func(entry *objects.RouteSearchResultEntry) int {
		routeNumber := entry.Route.RouteNumber
		prefix := routeNumber[0:1]
		suffix := routeNumber[len(routeNumber)-1:]

		n, _ := strconv.Atoi(nonDigits.ReplaceAllString(routeNumber, ""))

		if _, isGmb := entry.Route.Bound[objects.OperatorGMB]; isGmb {
			n += 1000
		}
		if prefix == "N" {
			if isNight {
				n -= 10000
			} else {
				n += 10000
			}
		}
		if suffix == "S" {
			n += 1000
		}
		if !isHoliday && (prefix == "R" || suffix == "R") {
			n += 100000
		}
		if prefix < "0" || prefix > "9" {
			if prefix != "K" && prefix != "N" {
				n += 400
			}
		}
		return n
	}

	slices.SortStableFunc(entries, func(a, b *objects.RouteSearchResultEntry) int {
		if diff := weight(a) - weight(b); diff != 0 {
			return diff
		}
		if a.Route.RouteNumber != b.Route.RouteNumber {
			if a.Route.RouteNumber < b.Route.RouteNumber {
				return -1
			}
			return 1
		}
		if diff := a.Operator.Compare(b.Operator); diff != 0 {
			return diff
		}
		if a.RouteKey < b.RouteKey {
			return -1
		}
		if a.RouteKey > b.RouteKey {
			return 1
		}
		return 0
	})
}
