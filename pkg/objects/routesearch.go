package objects

import (
	"io"
)

// StopInfo ties a stop-id to its Stop payload and the distance from a search
// origin. Data may be nil after Strip; re-hydrate it from the snapshot.
type StopInfo struct {
	StopID   string   `json:"stopId"`
	Data     *Stop    `json:"data,omitempty"`
	Distance float64  `json:"distance"`
	Operator Operator `json:"co"`
}

func (s *StopInfo) MarshalBinary(w io.Writer) error {
	if err := writeString(w, s.StopID); err != nil {
		return err
	}
	if err := writeBool(w, s.Data != nil); err != nil {
		return err
	}
	if s.Data != nil {
		if err := s.Data.MarshalBinary(w); err != nil {
			return err
		}
	}
	if err := writeFloat64(w, s.Distance); err != nil {
		return err
	}
	return writeString(w, s.Operator.Name())
}

func ReadStopInfo(r io.Reader) (*StopInfo, error) {
	info := &StopInfo{}

	var err error
	if info.StopID, err = readString(r); err != nil {
		return nil, err
	}
	hasData, err := readBool(r)
	if err != nil {
		return nil, err
	}
	if hasData {
		if info.Data, err = ReadStop(r); err != nil {
			return nil, err
		}
	}
	if info.Distance, err = readFloat64(r); err != nil {
		return nil, err
	}
	name, err := readString(r)
	if err != nil {
		return nil, err
	}
	info.Operator = OperatorFrom(name)

	return info, nil
}

// RouteSearchResultEntry is a transient reference to a route (and optionally
// a stop on it) produced by search and nearby queries.
type RouteSearchResultEntry struct {
	RouteKey            string       `json:"routeKey"`
	Route               *Route       `json:"route,omitempty"`
	Operator            Operator     `json:"co"`
	StopInfo            *StopInfo    `json:"stop,omitempty"`
	Origin              *Coordinates `json:"origin,omitempty"`
	IsInterchangeSearch bool         `json:"isInterchangeSearch"`
}

// Strip drops the heavyweight Route and Stop payloads, keeping only the
// identifiers needed to re-hydrate from a snapshot on the receiving side.
func (e *RouteSearchResultEntry) Strip() {
	e.Route = nil
	if e.StopInfo != nil {
		e.StopInfo.Data = nil
	}
}

func (e *RouteSearchResultEntry) MarshalBinary(w io.Writer) error {
	if err := writeString(w, e.RouteKey); err != nil {
		return err
	}
	if err := writeBool(w, e.Route != nil); err != nil {
		return err
	}
	if e.Route != nil {
		if err := e.Route.MarshalBinary(w); err != nil {
			return err
		}
	}
	if err := writeString(w, e.Operator.Name()); err != nil {
		return err
	}
	if err := writeBool(w, e.StopInfo != nil); err != nil {
		return err
	}
	if e.StopInfo != nil {
		if err := e.StopInfo.MarshalBinary(w); err != nil {
			return err
		}
	}
	if err := writeNullable(w, e.Origin, func(w io.Writer, c Coordinates) error {
		return c.MarshalBinary(w)
	}); err != nil {
		return err
	}
	return writeBool(w, e.IsInterchangeSearch)
}

func ReadRouteSearchResultEntry(r io.Reader) (*RouteSearchResultEntry, error) {
	entry := &RouteSearchResultEntry{}

	var err error
	if entry.RouteKey, err = readString(r); err != nil {
		return nil, err
	}
	hasRoute, err := readBool(r)
	if err != nil {
		return nil, err
	}
	if hasRoute {
		if entry.Route, err = ReadRoute(r); err != nil {
			return nil, err
		}
	}
	name, err := readString(r)
	if err != nil {
		return nil, err
	}
	entry.Operator = OperatorFrom(name)
	hasStop, err := readBool(r)
	if err != nil {
		return nil, err
	}
	if hasStop {
		if entry.StopInfo, err = ReadStopInfo(r); err != nil {
			return nil, err
		}
	}
	if entry.Origin, err = readNullable(r, readCoordinates); err != nil {
		return nil, err
	}
	if entry.IsInterchangeSearch, err = readBool(r); err != nil {
		return nil, err
	}

	return entry, nil
}
