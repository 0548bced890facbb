package objects

import (
	"strings"
)

// RouteListType is the list context a sort preference applies to.
type RouteListType string

const (
	RouteListTypeNormal    RouteListType = "normal"
	RouteListTypeNearby    RouteListType = "nearby"
	RouteListTypeFavourite RouteListType = "favourite"
	RouteListTypeRecent    RouteListType = "recent"
)

func RouteListTypeFrom(name string) RouteListType {
	switch strings.ToLower(name) {
	case "nearby":
		return RouteListTypeNearby
	case "favourite":
		return RouteListTypeFavourite
	case "recent":
		return RouteListTypeRecent
	default:
		return RouteListTypeNormal
	}
}

// RouteSortMode is the user's chosen ordering for a route list.
type RouteSortMode string

const (
	RouteSortModeNormal    RouteSortMode = "NORMAL"
	RouteSortModeRecent    RouteSortMode = "RECENT"
	RouteSortModeProximity RouteSortMode = "PROXIMITY"
)

func RouteSortModeFrom(name string) RouteSortMode {
	switch strings.ToUpper(name) {
	case "RECENT":
		return RouteSortModeRecent
	case "PROXIMITY":
		return RouteSortModeProximity
	default:
		return RouteSortModeNormal
	}
}
