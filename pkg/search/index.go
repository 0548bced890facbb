// Package search builds a prefix index over the route numbers of one
// DataSheet snapshot. An Index is immutable once built and safe for
// concurrent readers; a new snapshot gets a new Index.
package search

import (
	"strings"

	"golang.org/x/exp/slices"

	"github.com/hktransit/hktransit/pkg/objects"
)

type trieNode struct {
	children map[rune]*trieNode
	// canonical holds the route number in dataset casing when this node
	// terminates a full route number.
	canonical string
}

// Index answers incremental "what can come next" queries and full route
// lookups for one snapshot.
type Index struct {
	root  *trieNode
	sheet *objects.DataSheet

	// routeKeys is the snapshot's route keys in stable sorted order, so
	// search results are reproducible for a given snapshot.
	routeKeys []string
}

func BuildIndex(sheet *objects.DataSheet) *Index {
	index := &Index{
		root:  &trieNode{children: map[rune]*trieNode{}},
		sheet: sheet,
	}

	for _, routeNumber := range sheet.RouteNumbers() {
		index.insert(routeNumber)
	}

	for key := range sheet.RouteList {
		index.routeKeys = append(index.routeKeys, key)
	}
	slices.Sort(index.routeKeys)

	return index
}

func (i *Index) insert(routeNumber string) {
	node := i.root
	for _, r := range strings.ToUpper(routeNumber) {
		child, ok := node.children[r]
		if !ok {
			child = &trieNode{children: map[rune]*trieNode{}}
			node.children[r] = child
		}
		node = child
	}
	node.canonical = routeNumber
}

func (i *Index) walk(prefix string) *trieNode {
	node := i.root
	for _, r := range strings.ToUpper(prefix) {
		child, ok := node.children[r]
		if !ok {
			return nil
		}
		node = child
	}
	return node
}

// NextCharsResult is the answer to one incremental keyboard query.
type NextCharsResult struct {
	Characters    []rune
	HasExactMatch bool
}

// NextChars returns the set of characters that extend prefix towards at
// least one known route number, and whether prefix is itself a full route
// number. Matching is case-insensitive; returned characters are canonical
// upper case, sorted for determinism.
func (i *Index) NextChars(prefix string) NextCharsResult {
	node := i.walk(prefix)
	if node == nil {
		return NextCharsResult{}
	}

	characters := make([]rune, 0, len(node.children))
	for r := range node.children {
		characters = append(characters, r)
	}
	slices.Sort(characters)

	return NextCharsResult{
		Characters:    characters,
		HasExactMatch: node.canonical != "",
	}
}

// Predicate filters FindRoutes results by route and serving operator.
type Predicate func(route *objects.Route, operator objects.Operator) bool

// FindRoutes returns entries for every route whose number matches text:
// exactly when exact is set, by prefix otherwise. The optional predicate
// restricts results (nil admits everything). Service-type branches of the
// same route direction collapse to the lowest service type, so one search
// row stands for each direction. Results are ordered by route key, which
// is stable for a given snapshot.
func (i *Index) FindRoutes(text string, exact bool, predicate Predicate) []*objects.RouteSearchResultEntry {
	upper := strings.ToUpper(text)

	var entries []*objects.RouteSearchResultEntry
	seen := map[string]int{}
	for _, key := range i.routeKeys {
		route := i.sheet.RouteList[key]
		routeNumber := strings.ToUpper(route.RouteNumber)

		if exact {
			if routeNumber != upper {
				continue
			}
		} else if !strings.HasPrefix(routeNumber, upper) {
			continue
		}

		operator := route.FirstOperator()
		if predicate != nil && !predicate(route, operator) {
			continue
		}

		entry := &objects.RouteSearchResultEntry{
			RouteKey: key,
			Route:    route,
			Operator: operator,
		}

		if at, ok := seen[directionKey(route, operator)]; ok {
			if route.ServiceTypeValue() < entries[at].Route.ServiceTypeValue() {
				entries[at] = entry
			}
			continue
		}

		seen[directionKey(route, operator)] = len(entries)
		entries = append(entries, entry)
	}

	return entries
}

// directionKey identifies one direction of a route under one operator,
// ignoring the service type. NLB splits directions by route id rather
// than a bound code.
func directionKey(route *objects.Route, operator objects.Operator) string {
	discriminator := route.Bound[operator]
	if operator == objects.OperatorNLB {
		discriminator = route.NlbID
	}
	return route.RouteNumber + "|" + operator.Name() + "|" + discriminator
}

// CanonicalRouteNumber returns the dataset casing for a route number typed
// in any case, if it exists.
func (i *Index) CanonicalRouteNumber(routeNumber string) (string, bool) {
	node := i.walk(routeNumber)
	if node == nil || node.canonical == "" {
		return "", false
	}
	return node.canonical, true
}
