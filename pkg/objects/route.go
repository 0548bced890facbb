package objects

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/exp/slices"
)

// GMBRegion is the green minibus licensing region.
type GMBRegion string

const (
	GMBRegionHKI GMBRegion = "HKI"
	GMBRegionKLN GMBRegion = "KLN"
	GMBRegionNT  GMBRegion = "NT"
)

func GMBRegionFrom(name string) (GMBRegion, bool) {
	switch strings.ToUpper(name) {
	case "HKI":
		return GMBRegionHKI, true
	case "KLN":
		return GMBRegionKLN, true
	case "NT":
		return GMBRegionNT, true
	}
	return "", false
}

// Route is one direction/branch of one service. A single route number can
// map to several Route values across operators, bounds and branches.
type Route struct {
	RouteNumber string              `json:"route"`
	Bound       map[Operator]string `json:"bound"`
	Operators   []Operator          `json:"co"`
	ServiceType string              `json:"serviceType"`
	NlbID       string              `json:"nlbId"`
	GtfsID      string              `json:"gtfsId"`

	IsCtbCircular bool `json:"ctbIsCircular"`
	IsKmbCtbJoint bool `json:"kmbCtbJoint"`

	GMBRegion   *GMBRegion     `json:"gmbRegion,omitempty"`
	LrtCircular *BilingualText `json:"lrtCircular,omitempty"`

	Dest BilingualText `json:"dest"`
	Orig BilingualText `json:"orig"`

	// Stops holds the ordered stop-id list per operator serving this route.
	Stops map[Operator][]string `json:"stops"`

	// Fares and FaresHoliday are null when the dataset carries no fare
	// table; both encodings keep null and empty distinct.
	Fares        []string `json:"fares"`
	FaresHoliday []string `json:"faresHoliday"`

	// JourneyTime is the scheduled end-to-end time in minutes.
	JourneyTime *int `json:"jt,omitempty"`
}

// FirstOperator returns the highest-priority operator serving this route.
func (r *Route) FirstOperator() Operator {
	if len(r.Operators) == 0 {
		return ""
	}
	first := r.Operators[0]
	for _, operator := range r.Operators[1:] {
		if operator.Compare(first) < 0 {
			first = operator
		}
	}
	return first
}

// ServiceTypeValue parses the service type as an integer, defaulting to the
// highest priority (1) when it is not numeric.
func (r *Route) ServiceTypeValue() int {
	if value, err := strconv.Atoi(r.ServiceType); err == nil {
		return value
	}
	return 1
}

// RouteKey builds the stable identifier for one direction/branch of a route
// under its primary operator.
func (r *Route) RouteKey() string {
	operator := r.FirstOperator()
	discriminator := r.Bound[operator]
	switch operator {
	case OperatorNLB:
		discriminator = r.NlbID
	case OperatorGMB:
		if r.GMBRegion != nil {
			discriminator = string(*r.GMBRegion) + "," + discriminator
		}
	}
	return fmt.Sprintf("%s+%s+%s+%s", r.RouteNumber, r.ServiceType, operator.Name(), discriminator)
}

func (r *Route) MarshalBinary(w io.Writer) error {
	if err := writeString(w, r.RouteNumber); err != nil {
		return err
	}
	if err := writeOperatorStringMap(w, r.Bound); err != nil {
		return err
	}
	if err := writeInt32(w, int32(len(r.Operators))); err != nil {
		return err
	}
	for _, operator := range r.Operators {
		if err := writeString(w, operator.Name()); err != nil {
			return err
		}
	}
	if err := writeString(w, r.ServiceType); err != nil {
		return err
	}
	if err := writeString(w, r.NlbID); err != nil {
		return err
	}
	if err := writeString(w, r.GtfsID); err != nil {
		return err
	}
	if err := writeBool(w, r.IsCtbCircular); err != nil {
		return err
	}
	if err := writeBool(w, r.IsKmbCtbJoint); err != nil {
		return err
	}
	if err := writeNullable(w, r.GMBRegion, func(w io.Writer, region GMBRegion) error {
		return writeString(w, string(region))
	}); err != nil {
		return err
	}
	if err := writeNullable(w, r.LrtCircular, func(w io.Writer, t BilingualText) error {
		return t.MarshalBinary(w)
	}); err != nil {
		return err
	}
	if err := r.Dest.MarshalBinary(w); err != nil {
		return err
	}
	if err := r.Orig.MarshalBinary(w); err != nil {
		return err
	}
	if err := writeOperatorStopsMap(w, r.Stops); err != nil {
		return err
	}
	if err := writeNullableStringSlice(w, r.Fares); err != nil {
		return err
	}
	if err := writeNullableStringSlice(w, r.FaresHoliday); err != nil {
		return err
	}
	return writeNullable(w, r.JourneyTime, func(w io.Writer, minutes int) error {
		return writeInt32(w, int32(minutes))
	})
}

func ReadRoute(r io.Reader) (*Route, error) {
	route := &Route{}

	var err error
	if route.RouteNumber, err = readString(r); err != nil {
		return nil, err
	}
	if route.Bound, err = readOperatorStringMap(r); err != nil {
		return nil, err
	}
	operatorCount, err := readInt32(r)
	if err != nil {
		return nil, err
	}
	for i := int32(0); i < operatorCount; i++ {
		name, err := readString(r)
		if err != nil {
			return nil, err
		}
		route.Operators = append(route.Operators, OperatorFrom(name))
	}
	if route.ServiceType, err = readString(r); err != nil {
		return nil, err
	}
	if route.NlbID, err = readString(r); err != nil {
		return nil, err
	}
	if route.GtfsID, err = readString(r); err != nil {
		return nil, err
	}
	if route.IsCtbCircular, err = readBool(r); err != nil {
		return nil, err
	}
	if route.IsKmbCtbJoint, err = readBool(r); err != nil {
		return nil, err
	}
	if route.GMBRegion, err = readNullable(r, func(r io.Reader) (GMBRegion, error) {
		name, err := readString(r)
		if err != nil {
			return "", err
		}
		region, _ := GMBRegionFrom(name)
		return region, nil
	}); err != nil {
		return nil, err
	}
	if route.LrtCircular, err = readNullable(r, readBilingualText); err != nil {
		return nil, err
	}
	if route.Dest, err = readBilingualText(r); err != nil {
		return nil, err
	}
	if route.Orig, err = readBilingualText(r); err != nil {
		return nil, err
	}
	if route.Stops, err = readOperatorStopsMap(r); err != nil {
		return nil, err
	}
	if route.Fares, err = readNullableStringSlice(r); err != nil {
		return nil, err
	}
	if route.FaresHoliday, err = readNullableStringSlice(r); err != nil {
		return nil, err
	}
	journeyTime, err := readNullable(r, readInt32)
	if err != nil {
		return nil, err
	}
	if journeyTime != nil {
		minutes := int(*journeyTime)
		route.JourneyTime = &minutes
	}

	return route, nil
}

// Operator-keyed maps are written in ordinal order so that the binary form
// of a Route is deterministic.
func sortedOperatorKeys[V any](m map[Operator]V) []Operator {
	keys := make([]Operator, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	slices.SortFunc(keys, func(a, b Operator) int { return a.Compare(b) })
	return keys
}

func writeOperatorStringMap(w io.Writer, m map[Operator]string) error {
	if err := writeInt32(w, int32(len(m))); err != nil {
		return err
	}
	for _, operator := range sortedOperatorKeys(m) {
		if err := writeString(w, operator.Name()); err != nil {
			return err
		}
		if err := writeString(w, m[operator]); err != nil {
			return err
		}
	}
	return nil
}

func readOperatorStringMap(r io.Reader) (map[Operator]string, error) {
	length, err := readInt32(r)
	if err != nil {
		return nil, err
	}
	m := make(map[Operator]string, length)
	for i := int32(0); i < length; i++ {
		name, err := readString(r)
		if err != nil {
			return nil, err
		}
		value, err := readString(r)
		if err != nil {
			return nil, err
		}
		m[OperatorFrom(name)] = value
	}
	return m, nil
}

func writeOperatorStopsMap(w io.Writer, m map[Operator][]string) error {
	if err := writeInt32(w, int32(len(m))); err != nil {
		return err
	}
	for _, operator := range sortedOperatorKeys(m) {
		if err := writeString(w, operator.Name()); err != nil {
			return err
		}
		if err := writeStringSlice(w, m[operator]); err != nil {
			return err
		}
	}
	return nil
}

func readOperatorStopsMap(r io.Reader) (map[Operator][]string, error) {
	length, err := readInt32(r)
	if err != nil {
		return nil, err
	}
	m := make(map[Operator][]string, length)
	for i := int32(0); i < length; i++ {
		name, err := readString(r)
		if err != nil {
			return nil, err
		}
		stops, err := readStringSlice(r)
		if err != nil {
			return nil, err
		}
		m[OperatorFrom(name)] = stops
	}
	return m, nil
}

func writeNullableStringSlice(w io.Writer, values []string) error {
	if err := writeBool(w, values != nil); err != nil {
		return err
	}
	if values == nil {
		return nil
	}
	return writeStringSlice(w, values)
}

func readNullableStringSlice(r io.Reader) ([]string, error) {
	present, err := readBool(r)
	if err != nil {
		return nil, err
	}
	if !present {
		return nil, nil
	}
	return readStringSlice(r)
}
