package objects

import (
	"bytes"
	"encoding/json"
	"reflect"
	"testing"
	"time"
)

func minimalRoute() *Route {
	return &Route{
		RouteNumber: "1A",
		Bound:       map[Operator]string{OperatorKMB: "O"},
		Operators:   []Operator{OperatorKMB},
		ServiceType: "1",
		Dest:        BilingualText{Zh: "尖沙咀", En: "Tsim Sha Tsui"},
		Orig:        BilingualText{Zh: "中秀茂坪", En: "Sau Mau Ping (Central)"},
		Stops: map[Operator][]string{
			OperatorKMB: {"A3C9FAD0GGGGGGGG", "AC1FD9BDD09D1DD6"},
		},
	}
}

func fullRoute() *Route {
	region := GMBRegionKLN
	journeyTime := 62
	return &Route{
		RouteNumber: "74",
		Bound:       map[Operator]string{OperatorGMB: "O", OperatorKMB: "I"},
		Operators:   []Operator{OperatorGMB, OperatorKMB},
		ServiceType: "2",
		NlbID:       "38",
		GtfsID:      "2038",
		IsCtbCircular: true,
		IsKmbCtbJoint: true,
		GMBRegion:   &region,
		LrtCircular: &BilingualText{Zh: "循環線", En: "Circular"},
		Dest:        BilingualText{Zh: "觀塘", En: "Kwun Tong"},
		Orig:        BilingualText{Zh: "九龍灣", En: "Kowloon Bay"},
		Stops: map[Operator][]string{
			OperatorGMB: {"20001477", "20001478"},
			OperatorKMB: {"AC1FD9BDD09D1DD6"},
		},
		Fares:        []string{"4.7", "5.8"},
		FaresHoliday: []string{"5.0", "6.1"},
		JourneyTime:  &journeyTime,
	}
}

func sampleStop() *Stop {
	remark := BilingualText{Zh: "近港鐵站", En: "Near MTR station"}
	bbi := "BBI-0042"
	return &Stop{
		Location: Coordinates{Lat: 22.3363, Lng: 114.1847},
		Name:     BilingualText{Zh: "九龍塘", En: "Kowloon Tong"},
		Remark:   &remark,
		KmbBbiID: &bbi,
	}
}

func TestRoute_RoundTripJSON(t *testing.T) {
	for name, route := range map[string]*Route{"minimal": minimalRoute(), "full": fullRoute()} {
		t.Run(name, func(t *testing.T) {
			data, err := json.Marshal(route)
			if err != nil {
				t.Fatalf("marshal: %v", err)
			}
			var decoded Route
			if err := json.Unmarshal(data, &decoded); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if !reflect.DeepEqual(route, &decoded) {
				t.Errorf("round trip mismatch:\n got %+v\nwant %+v", &decoded, route)
			}
		})
	}
}

func TestRoute_RoundTripBinary(t *testing.T) {
	for name, route := range map[string]*Route{"minimal": minimalRoute(), "full": fullRoute()} {
		t.Run(name, func(t *testing.T) {
			var buffer bytes.Buffer
			if err := route.MarshalBinary(&buffer); err != nil {
				t.Fatalf("marshal: %v", err)
			}
			decoded, err := ReadRoute(&buffer)
			if err != nil {
				t.Fatalf("read: %v", err)
			}
			if !reflect.DeepEqual(route, decoded) {
				t.Errorf("round trip mismatch:\n got %+v\nwant %+v", decoded, route)
			}
		})
	}
}

func TestStop_RoundTrip(t *testing.T) {
	stops := map[string]*Stop{
		"full": sampleStop(),
		"minimal": {
			Location: Coordinates{Lat: 22.2819, Lng: 114.1582},
			Name:     BilingualText{Zh: "中環", En: "Central"},
		},
	}

	for name, stop := range stops {
		t.Run(name, func(t *testing.T) {
			data, err := json.Marshal(stop)
			if err != nil {
				t.Fatalf("marshal json: %v", err)
			}
			var fromJSON Stop
			if err := json.Unmarshal(data, &fromJSON); err != nil {
				t.Fatalf("unmarshal json: %v", err)
			}
			if !reflect.DeepEqual(stop, &fromJSON) {
				t.Errorf("json round trip mismatch: got %+v want %+v", &fromJSON, stop)
			}

			var buffer bytes.Buffer
			if err := stop.MarshalBinary(&buffer); err != nil {
				t.Fatalf("marshal binary: %v", err)
			}
			fromBinary, err := ReadStop(&buffer)
			if err != nil {
				t.Fatalf("read binary: %v", err)
			}
			if !reflect.DeepEqual(stop, fromBinary) {
				t.Errorf("binary round trip mismatch: got %+v want %+v", fromBinary, stop)
			}
		})
	}
}

func sampleDataSheet() *DataSheet {
	return &DataSheet{
		Holidays: []Date{
			{Year: 2024, Month: time.January, Day: 1},
			{Year: 2024, Month: time.February, Day: 10},
		},
		RouteList: map[string]*Route{
			"1A+1+kmb+O": minimalRoute(),
			"74+2+gmb+KLN,O": fullRoute(),
		},
		StopList: map[string]*Stop{
			"AC1FD9BDD09D1DD6": sampleStop(),
			"20001477": {
				Location: Coordinates{Lat: 22.31, Lng: 114.22},
				Name:     BilingualText{Zh: "觀塘道", En: "Kwun Tong Road"},
			},
		},
		StopMap: map[string][]OperatorRouteKey{
			"AC1FD9BDD09D1DD6": {
				{Operator: OperatorKMB, RouteKey: "1A+1+kmb+O"},
			},
			"20001477": {
				{Operator: OperatorGMB, RouteKey: "74+2+gmb+KLN,O"},
			},
		},
	}
}

func TestDataSheet_RoundTrip(t *testing.T) {
	sheet := sampleDataSheet()

	data, err := json.Marshal(sheet)
	if err != nil {
		t.Fatalf("marshal json: %v", err)
	}
	var fromJSON DataSheet
	if err := json.Unmarshal(data, &fromJSON); err != nil {
		t.Fatalf("unmarshal json: %v", err)
	}
	if !reflect.DeepEqual(sheet, &fromJSON) {
		t.Error("json round trip mismatch")
	}

	var buffer bytes.Buffer
	if err := sheet.MarshalBinary(&buffer); err != nil {
		t.Fatalf("marshal binary: %v", err)
	}
	fromBinary, err := ReadDataSheet(&buffer)
	if err != nil {
		t.Fatalf("read binary: %v", err)
	}
	if !reflect.DeepEqual(sheet, fromBinary) {
		t.Error("binary round trip mismatch")
	}
}

func TestDataSheet_Verify(t *testing.T) {
	sheet := sampleDataSheet()
	if err := sheet.Verify(); err != nil {
		t.Fatalf("valid sheet failed verify: %v", err)
	}

	t.Run("unknown route key", func(t *testing.T) {
		broken := sampleDataSheet()
		broken.StopMap["AC1FD9BDD09D1DD6"] = []OperatorRouteKey{{Operator: OperatorKMB, RouteKey: "gone"}}
		if broken.Verify() == nil {
			t.Error("expected verify failure for dangling route key")
		}
	})

	t.Run("unknown stop id", func(t *testing.T) {
		broken := sampleDataSheet()
		broken.StopMap["nope"] = []OperatorRouteKey{{Operator: OperatorKMB, RouteKey: "1A+1+kmb+O"}}
		if broken.Verify() == nil {
			t.Error("expected verify failure for dangling stop id")
		}
	})
}

func TestRouteSearchResultEntry_StripAndRoundTrip(t *testing.T) {
	origin := Coordinates{Lat: 22.3, Lng: 114.17}
	entry := &RouteSearchResultEntry{
		RouteKey: "1A+1+kmb+O",
		Route:    minimalRoute(),
		Operator: OperatorKMB,
		StopInfo: &StopInfo{
			StopID:   "AC1FD9BDD09D1DD6",
			Data:     sampleStop(),
			Distance: 0.12,
			Operator: OperatorKMB,
		},
		Origin:              &origin,
		IsInterchangeSearch: true,
	}

	var buffer bytes.Buffer
	if err := entry.MarshalBinary(&buffer); err != nil {
		t.Fatalf("marshal: %v", err)
	}
	decoded, err := ReadRouteSearchResultEntry(&buffer)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !reflect.DeepEqual(entry, decoded) {
		t.Error("binary round trip mismatch")
	}

	entry.Strip()
	if entry.Route != nil {
		t.Error("Strip should drop the route payload")
	}
	if entry.StopInfo == nil || entry.StopInfo.Data != nil {
		t.Error("Strip should drop the stop payload but keep the identifier")
	}
	if entry.RouteKey != "1A+1+kmb+O" || entry.StopInfo.StopID != "AC1FD9BDD09D1DD6" {
		t.Error("Strip must keep identifiers intact")
	}

	var stripped bytes.Buffer
	if err := entry.MarshalBinary(&stripped); err != nil {
		t.Fatalf("marshal stripped: %v", err)
	}
	decodedStripped, err := ReadRouteSearchResultEntry(&stripped)
	if err != nil {
		t.Fatalf("read stripped: %v", err)
	}
	if !reflect.DeepEqual(entry, decodedStripped) {
		t.Error("stripped round trip mismatch")
	}
}

func TestFavouriteRouteStop_RoundTrip(t *testing.T) {
	favourite := &FavouriteRouteStop{
		StopID:   "AC1FD9BDD09D1DD6",
		Operator: OperatorKMB,
		Index:    4,
		Stop:     sampleStop(),
		Route:    minimalRoute(),
		Mode:     FavouriteStopModeClosest,
	}

	data, err := json.Marshal(favourite)
	if err != nil {
		t.Fatalf("marshal json: %v", err)
	}
	var fromJSON FavouriteRouteStop
	if err := json.Unmarshal(data, &fromJSON); err != nil {
		t.Fatalf("unmarshal json: %v", err)
	}
	if !reflect.DeepEqual(favourite, &fromJSON) {
		t.Error("json round trip mismatch")
	}

	var buffer bytes.Buffer
	if err := favourite.MarshalBinary(&buffer); err != nil {
		t.Fatalf("marshal binary: %v", err)
	}
	fromBinary, err := ReadFavouriteRouteStop(&buffer)
	if err != nil {
		t.Fatalf("read binary: %v", err)
	}
	if !reflect.DeepEqual(favourite, fromBinary) {
		t.Error("binary round trip mismatch")
	}
}

func TestETAQueryResult_RoundTripBinary(t *testing.T) {
	result := &ETAQueryResult{
		Operator:  OperatorKMB,
		FetchedAt: time.Date(2024, time.March, 5, 9, 30, 0, 0, time.UTC),
	}
	result.Lines[0] = TimeLine(3.5, BilingualText{Zh: "3 分鐘", En: "3 min"})
	result.Lines[1] = TimeLine(11, BilingualText{Zh: "11 分鐘", En: "11 min"})
	result.Lines[2] = SentinelLine(ETASentinelNoSchedule, BilingualText{Zh: "尾班車已過", En: "Last bus departed"})

	var buffer bytes.Buffer
	if err := result.MarshalBinary(&buffer); err != nil {
		t.Fatalf("marshal: %v", err)
	}
	decoded, err := ReadETAQueryResult(&buffer)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !reflect.DeepEqual(result, decoded) {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", decoded, result)
	}

	if decoded.NextScheduledBus() != 3 {
		t.Errorf("NextScheduledBus() = %d, want 3", decoded.NextScheduledBus())
	}
	if decoded.IsConnectionError() {
		t.Error("result should not be a connection error")
	}
}

func TestRouteJSONKeepsFarePresence(t *testing.T) {
	tests := []struct {
		name  string
		fares []string
		want  string
	}{
		{"absent", nil, `"fares":null`},
		{"empty", []string{}, `"fares":[]`},
		{"populated", []string{"4.7"}, `"fares":["4.7"]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			route := minimalRoute()
			route.Fares = tt.fares

			blob, err := json.Marshal(route)
			if err != nil {
				t.Fatal(err)
			}
			if !bytes.Contains(blob, []byte(tt.want)) {
				t.Errorf("marshalled route %s, want it to contain %s", blob, tt.want)
			}

			var decoded Route
			if err := json.Unmarshal(blob, &decoded); err != nil {
				t.Fatal(err)
			}
			if !reflect.DeepEqual(decoded.Fares, tt.fares) {
				t.Errorf("Fares round-tripped to %#v, want %#v", decoded.Fares, tt.fares)
			}
		})
	}
}
