package registry

import (
	"context"
	"errors"

	"github.com/hktransit/hktransit/pkg/eta"
	"github.com/hktransit/hktransit/pkg/favourites"
	"github.com/hktransit/hktransit/pkg/geo"
	"github.com/hktransit/hktransit/pkg/objects"
	"github.com/hktransit/hktransit/pkg/search"
)

// ErrRouteNotFound is returned when a route key does not resolve in the
// current snapshot.
var ErrRouteNotFound = errors.New("registry: route key not found")

// GetEta answers one arrival lookup. Upstream failures come back as a
// connection-error result; the returned error is only ever a cancelled
// context or a failed initial load.
func (r *Registry) GetEta(ctx context.Context, stopID string, stopIndex int, operator objects.Operator, route *objects.Route) (*objects.ETAQueryResult, error) {
	if _, err := r.EnsureLoaded(ctx); err != nil {
		return nil, err
	}

	result, err := r.dispatcher.Query(ctx, eta.Query{
		StopID:    stopID,
		StopIndex: stopIndex,
		Operator:  operator,
		Route:     route,
		Typhoon:   r.typhoon.Current(ctx),
	})
	if err != nil {
		return nil, err
	}

	r.favourites.RecordLookup(route.RouteNumber, operator)
	return result, nil
}

// FindRoutes searches routes by number. exact restricts to the number
// itself; otherwise every route whose number starts with text matches. The
// optional predicate narrows by route or operator.
func (r *Registry) FindRoutes(ctx context.Context, text string, exact bool, predicate search.Predicate) ([]*objects.RouteSearchResultEntry, error) {
	snapshot, err := r.EnsureLoaded(ctx)
	if err != nil {
		return nil, err
	}
	return snapshot.SearchIndex().FindRoutes(text, exact, predicate), nil
}

// NextChars returns the characters extending prefix toward known route
// numbers, and whether prefix is itself a complete number.
func (r *Registry) NextChars(ctx context.Context, prefix string) (search.NextCharsResult, error) {
	snapshot, err := r.EnsureLoaded(ctx)
	if err != nil {
		return search.NextCharsResult{}, err
	}
	return snapshot.SearchIndex().NextChars(prefix), nil
}

// NearbyRoutes ranks routes serving stops near the origin, or reports the
// single closest stop when nothing is within the radius.
func (r *Registry) NearbyRoutes(ctx context.Context, lat float64, lng float64, excludedRouteNumbers map[string]bool, isInterchangeSearch bool) (*geo.NearbyRoutesResult, error) {
	snapshot, err := r.EnsureLoaded(ctx)
	if err != nil {
		return nil, err
	}
	return snapshot.GeoEngine().NearbyRoutes(lat, lng, excludedRouteNumbers, isInterchangeSearch), nil
}

// FindRouteByKey re-hydrates a stripped search entry's route from the
// current snapshot.
func (r *Registry) FindRouteByKey(ctx context.Context, routeKey string) (*objects.Route, error) {
	snapshot, err := r.EnsureLoaded(ctx)
	if err != nil {
		return nil, err
	}
	route, ok := snapshot.Sheet.RouteList[routeKey]
	if !ok {
		return nil, ErrRouteNotFound
	}
	return route, nil
}

// ResolveFavourite resolves a favourite slot against the current snapshot.
// ok is false for an empty or unresolvable slot.
func (r *Registry) ResolveFavourite(ctx context.Context, slot int, origin favourites.OriginProvider) (favourites.ResolvedFavourite, bool, error) {
	snapshot, err := r.EnsureLoaded(ctx)
	if err != nil {
		return favourites.ResolvedFavourite{}, false, err
	}
	resolved, ok := r.favourites.ResolveFavourite(snapshot.Sheet, slot, origin)
	return resolved, ok, nil
}
