package eta

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hktransit/hktransit/pkg/objects"
)

func TestKMBLookupFiltersAndDeduplicates(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.FixedZone("HKT", 8*3600))
	arrivalAt := func(minutes int) string {
		return now.Add(time.Duration(minutes) * time.Minute).Format(time.RFC3339)
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/stop-eta/HK12345678901234" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		fmt.Fprintf(w, `{"data": [
			{"co": "KMB", "route": "960", "dir": "O", "seq": 4, "eta_seq": 1, "eta": %q, "rmk_tc": "", "rmk_en": ""},
			{"co": "KMB", "route": "960", "dir": "O", "seq": 4, "eta_seq": 1, "eta": %q, "rmk_tc": "", "rmk_en": ""},
			{"co": "KMB", "route": "960", "dir": "O", "seq": 4, "eta_seq": 2, "eta": %q, "rmk_tc": "預定班次", "rmk_en": "Scheduled"},
			{"co": "KMB", "route": "960", "dir": "I", "seq": 4, "eta_seq": 1, "eta": %q, "rmk_tc": "", "rmk_en": ""},
			{"co": "KMB", "route": "296C", "dir": "O", "seq": 4, "eta_seq": 1, "eta": %q, "rmk_tc": "", "rmk_en": ""},
			{"co": "CTB", "route": "960", "dir": "O", "seq": 4, "eta_seq": 1, "eta": %q, "rmk_tc": "", "rmk_en": ""},
			{"co": "KMB", "route": "960", "dir": "O", "seq": 18, "eta_seq": 3, "eta": %q, "rmk_tc": "", "rmk_en": ""},
			{"co": "KMB", "route": "960", "dir": "O", "seq": 4, "eta_seq": 3, "eta": ""}
		]}`, arrivalAt(5), arrivalAt(5), arrivalAt(12), arrivalAt(2), arrivalAt(3), arrivalAt(4), arrivalAt(40))
	}))
	defer server.Close()

	source := NewKMBSource()
	source.BaseURL = server.URL
	source.clock = func() time.Time { return now }

	query := Query{
		StopID:    "HK12345678901234",
		StopIndex: 4,
		Operator:  objects.OperatorKMB,
		Route: &objects.Route{
			RouteNumber: "960",
			Bound:       map[objects.Operator]string{objects.OperatorKMB: "O"},
			Operators:   []objects.Operator{objects.OperatorKMB},
			ServiceType: "1",
		},
	}

	result, err := source.Lookup(context.Background(), query)
	if err != nil {
		t.Fatalf("Lookup returned error: %v", err)
	}

	// Expect the two arrivals on the queried route/bound at the queried
	// stop sequence: other routes, the other bound, the other operator,
	// the far stop sequence, the duplicate eta_seq and the empty slot are
	// all filtered out.
	if got := result.Lines[0].RoundedMinutes(); got != 5 {
		t.Errorf("first arrival = %d min, want 5", got)
	}
	if got := result.Lines[1].RoundedMinutes(); got != 12 {
		t.Errorf("second arrival = %d min, want 12", got)
	}
	if result.Lines[1].Text.En != "Scheduled" {
		t.Errorf("second remark = %q, want Scheduled", result.Lines[1].Text.En)
	}
	if result.Lines[2].HasTime {
		t.Error("third line should be empty")
	}
}

func TestKMBLookupEmptyTimetable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data": []}`)
	}))
	defer server.Close()

	source := NewKMBSource()
	source.BaseURL = server.URL

	query := Query{
		StopID:   "HK12345678901234",
		Operator: objects.OperatorKMB,
		Route: &objects.Route{
			RouteNumber: "960",
			Bound:       map[objects.Operator]string{objects.OperatorKMB: "O"},
			Operators:   []objects.Operator{objects.OperatorKMB},
			ServiceType: "1",
		},
	}

	result, err := source.Lookup(context.Background(), query)
	if err != nil {
		t.Fatalf("Lookup returned error: %v", err)
	}
	if result.Lines[0].Sentinel != objects.ETASentinelNoSchedule {
		t.Errorf("sentinel = %v, want no-schedule", result.Lines[0].Sentinel)
	}

	query.Typhoon = TyphoonInfo{IsAboveSignalEight: true, SignalLevel: 8}
	result, err = source.Lookup(context.Background(), query)
	if err != nil {
		t.Fatalf("Lookup returned error: %v", err)
	}
	if result.Lines[0].Sentinel != objects.ETASentinelTyphoonSchedule {
		t.Errorf("sentinel = %v, want typhoon", result.Lines[0].Sentinel)
	}
}

func TestMTRLookupEndOfLine(t *testing.T) {
	source := NewMTRSource()

	query := Query{
		StopID:   "TUC",
		Operator: objects.OperatorMTR,
		Route: &objects.Route{
			RouteNumber: "TML",
			Bound:       map[objects.Operator]string{objects.OperatorMTR: "DT"},
			Operators:   []objects.Operator{objects.OperatorMTR},
			ServiceType: "1",
			Stops: map[objects.Operator][]string{
				objects.OperatorMTR: {"WKS", "HUH", "TUC"},
			},
		},
	}

	// The terminus never hits the network; a nil server would fail loudly
	// if it did.
	result, err := source.Lookup(context.Background(), query)
	if err != nil {
		t.Fatalf("Lookup returned error: %v", err)
	}
	if result.Lines[0].Sentinel != objects.ETASentinelEndOfLine {
		t.Errorf("sentinel = %v, want end-of-line", result.Lines[0].Sentinel)
	}
}

func TestMTRLookupParsesPlatformSchedule(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.FixedZone("HKT", 8*3600))
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("line"); got != "TML" {
			t.Errorf("line = %q, want TML", got)
		}
		fmt.Fprintf(w, `{"status": 1, "data": {"TML-HUH": {
			"UP": [{"time": %q, "dest": "WKS", "plat": "1"}],
			"DOWN": [{"time": %q, "dest": "TUC", "plat": "2"}]
		}}}`,
			now.Add(4*time.Minute).Format("2006-01-02 15:04:05"),
			now.Add(9*time.Minute).Format("2006-01-02 15:04:05"))
	}))
	defer server.Close()

	source := NewMTRSource()
	source.ScheduleURL = server.URL
	source.clock = func() time.Time { return now }

	query := Query{
		StopID:   "HUH",
		Operator: objects.OperatorMTR,
		Route: &objects.Route{
			RouteNumber: "TML",
			Bound:       map[objects.Operator]string{objects.OperatorMTR: "DT"},
			Operators:   []objects.Operator{objects.OperatorMTR},
			ServiceType: "1",
			Stops: map[objects.Operator][]string{
				objects.OperatorMTR: {"WKS", "HUH", "TUC"},
			},
		},
	}

	result, err := source.Lookup(context.Background(), query)
	if err != nil {
		t.Fatalf("Lookup returned error: %v", err)
	}
	if got := result.Lines[0].RoundedMinutes(); got != 9 {
		t.Errorf("down-bound arrival = %d min, want 9", got)
	}
	if result.Lines[0].Text.En != "Platform 2" {
		t.Errorf("remark = %q, want Platform 2", result.Lines[0].Text.En)
	}
}

func TestMTRBusLookupRejectsUpstreamFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, "<html>gateway timeout</html>")
	}))
	defer server.Close()

	source := NewMTRBusSource()
	source.ScheduleURL = server.URL

	query := Query{
		StopID:   "K12-U010",
		Operator: objects.OperatorMTRBus,
		Route: &objects.Route{
			RouteNumber: "K12",
			Bound:       map[objects.Operator]string{objects.OperatorMTRBus: "O"},
			Operators:   []objects.Operator{objects.OperatorMTRBus},
			ServiceType: "1",
		},
	}

	if _, err := source.Lookup(context.Background(), query); err == nil {
		t.Fatal("Lookup should fail on a non-200 upstream response")
	}
}
