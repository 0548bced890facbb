package objects

import (
	"encoding/json"
	"fmt"
	"io"
	"time"
)

// OperatorRouteKey is a stopMap back-reference from a stop to one of the
// routes serving it.
type OperatorRouteKey struct {
	Operator Operator
	RouteKey string
}

// The structured form keeps the original two-element array shape.
func (p OperatorRouteKey) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]string{p.Operator.Name(), p.RouteKey})
}

func (p *OperatorRouteKey) UnmarshalJSON(data []byte) error {
	var pair [2]string
	if err := json.Unmarshal(data, &pair); err != nil {
		return err
	}
	p.Operator = OperatorFrom(pair[0])
	p.RouteKey = pair[1]
	return nil
}

// DataSheet is one immutable snapshot of the full static dataset. A snapshot
// is never mutated after a successful load; refreshes build and publish a
// whole new value.
type DataSheet struct {
	Holidays  []Date                        `json:"holidays"`
	RouteList map[string]*Route             `json:"routeList"`
	StopList  map[string]*Stop              `json:"stopList"`
	StopMap   map[string][]OperatorRouteKey `json:"stopMap"`
}

// Date is a calendar date carried as yyyy-MM-dd in the structured form.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	// The upstream holiday feed historically used yyyyMMdd.
	if len(raw) == 8 {
		raw = raw[0:4] + "-" + raw[4:6] + "-" + raw[6:8]
	}
	parsed, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return err
	}
	d.Year, d.Month, d.Day = parsed.Year(), parsed.Month(), parsed.Day()
	return nil
}

// Contains reports whether t falls on one of the listed dates.
func ContainsDate(dates []Date, t time.Time) bool {
	for _, date := range dates {
		if date.Year == t.Year() && date.Month == t.Month() && date.Day == t.Day() {
			return true
		}
	}
	return false
}

// Verify checks the snapshot's referential invariants: every stopMap
// route-key resolves in routeList and every stopMap stop-id resolves in
// stopList. A snapshot failing Verify must never be published.
func (d *DataSheet) Verify() error {
	if d.RouteList == nil || d.StopList == nil {
		return fmt.Errorf("data sheet missing required tables")
	}
	for stopID, references := range d.StopMap {
		if _, ok := d.StopList[stopID]; !ok {
			return fmt.Errorf("stop map references unknown stop %q", stopID)
		}
		for _, reference := range references {
			if _, ok := d.RouteList[reference.RouteKey]; !ok {
				return fmt.Errorf("stop map for %q references unknown route key %q", stopID, reference.RouteKey)
			}
		}
	}
	return nil
}

// RouteNumbers returns the distinct route numbers in the snapshot.
func (d *DataSheet) RouteNumbers() []string {
	seen := map[string]bool{}
	var numbers []string
	for _, route := range d.RouteList {
		if !seen[route.RouteNumber] {
			seen[route.RouteNumber] = true
			numbers = append(numbers, route.RouteNumber)
		}
	}
	return numbers
}

func (d *DataSheet) MarshalBinary(w io.Writer) error {
	if err := writeInt32(w, int32(len(d.Holidays))); err != nil {
		return err
	}
	for _, holiday := range d.Holidays {
		if err := writeString(w, holiday.String()); err != nil {
			return err
		}
	}

	routeKeys := sortedStringKeys(d.RouteList)
	if err := writeInt32(w, int32(len(routeKeys))); err != nil {
		return err
	}
	for _, key := range routeKeys {
		if err := writeString(w, key); err != nil {
			return err
		}
		if err := d.RouteList[key].MarshalBinary(w); err != nil {
			return err
		}
	}

	stopIDs := sortedStringKeys(d.StopList)
	if err := writeInt32(w, int32(len(stopIDs))); err != nil {
		return err
	}
	for _, stopID := range stopIDs {
		if err := writeString(w, stopID); err != nil {
			return err
		}
		if err := d.StopList[stopID].MarshalBinary(w); err != nil {
			return err
		}
	}

	mappedIDs := sortedStringKeys(d.StopMap)
	if err := writeInt32(w, int32(len(mappedIDs))); err != nil {
		return err
	}
	for _, stopID := range mappedIDs {
		if err := writeString(w, stopID); err != nil {
			return err
		}
		references := d.StopMap[stopID]
		if err := writeInt32(w, int32(len(references))); err != nil {
			return err
		}
		for _, reference := range references {
			if err := writeString(w, reference.Operator.Name()); err != nil {
				return err
			}
			if err := writeString(w, reference.RouteKey); err != nil {
				return err
			}
		}
	}

	return nil
}

func ReadDataSheet(r io.Reader) (*DataSheet, error) {
	sheet := &DataSheet{
		RouteList: map[string]*Route{},
		StopList:  map[string]*Stop{},
		StopMap:   map[string][]OperatorRouteKey{},
	}

	holidayCount, err := readInt32(r)
	if err != nil {
		return nil, err
	}
	for i := int32(0); i < holidayCount; i++ {
		raw, err := readString(r)
		if err != nil {
			return nil, err
		}
		var date Date
		if err := date.UnmarshalJSON([]byte(`"` + raw + `"`)); err != nil {
			return nil, err
		}
		sheet.Holidays = append(sheet.Holidays, date)
	}

	routeCount, err := readInt32(r)
	if err != nil {
		return nil, err
	}
	for i := int32(0); i < routeCount; i++ {
		key, err := readString(r)
		if err != nil {
			return nil, err
		}
		route, err := ReadRoute(r)
		if err != nil {
			return nil, err
		}
		sheet.RouteList[key] = route
	}

	stopCount, err := readInt32(r)
	if err != nil {
		return nil, err
	}
	for i := int32(0); i < stopCount; i++ {
		stopID, err := readString(r)
		if err != nil {
			return nil, err
		}
		stop, err := ReadStop(r)
		if err != nil {
			return nil, err
		}
		sheet.StopList[stopID] = stop
	}

	mappedCount, err := readInt32(r)
	if err != nil {
		return nil, err
	}
	for i := int32(0); i < mappedCount; i++ {
		stopID, err := readString(r)
		if err != nil {
			return nil, err
		}
		referenceCount, err := readInt32(r)
		if err != nil {
			return nil, err
		}
		references := make([]OperatorRouteKey, 0, referenceCount)
		for j := int32(0); j < referenceCount; j++ {
			name, err := readString(r)
			if err != nil {
				return nil, err
			}
			routeKey, err := readString(r)
			if err != nil {
				return nil, err
			}
			references = append(references, OperatorRouteKey{Operator: OperatorFrom(name), RouteKey: routeKey})
		}
		sheet.StopMap[stopID] = references
	}

	return sheet, nil
}
