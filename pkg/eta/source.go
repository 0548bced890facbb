// Package eta fetches and normalizes real-time arrival estimates from the
// per-operator upstream APIs into the canonical ETAQueryResult shape.
package eta

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/hktransit/hktransit/pkg/objects"
	"github.com/hktransit/hktransit/pkg/util"
)

// Query identifies one arrival lookup: a stop on one direction/branch of a
// route under one operator.
type Query struct {
	StopID    string
	StopIndex int
	Operator  objects.Operator
	Route     *objects.Route

	// Typhoon carries the current warning state so sources can distinguish
	// "no departures because typhoon timetable" from plain "no departures".
	Typhoon TyphoonInfo
}

// Key is the coalescing identity: concurrent queries with equal keys share
// one upstream call.
func (q Query) Key() string {
	return fmt.Sprintf("%s|%s|%s", q.StopID, q.Route.RouteKey(), q.Operator.Name())
}

// Source fetches arrivals from one upstream operator API and maps them into
// the canonical result shape. Implementations must be safe for concurrent
// use and must honour ctx cancellation.
type Source interface {
	GetName() string
	Operators() []objects.Operator
	Lookup(ctx context.Context, query Query) (*objects.ETAQueryResult, error)
}

// httpGetJSON is the shared fetch helper for sources.
func httpGetJSON(ctx context.Context, client *http.Client, url string, target interface{}) error {
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}

	response, err := client.Do(request)
	if err != nil {
		return err
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		return fmt.Errorf("eta: upstream returned status %d", response.StatusCode)
	}

	return decodeJSON(response.Body, target)
}

func decodeJSON(r io.Reader, target interface{}) error {
	return json.NewDecoder(r).Decode(target)
}

// departedCutoffMinutes drops arrivals more than ten minutes in the past.
// The feeds keep recently departed vehicles around for a while; anything
// older is noise.
const departedCutoffMinutes = -10

// closestStopSequence scans upstream entries for the stop sequence nearest
// to the queried stop index. Looping routes visit the same stop under more
// than one sequence and the feeds report arrivals for all of them; extract
// returns an entry's sequence and whether the entry is in scope. Returns -1
// when nothing matches.
func closestStopSequence[T any](entries []T, stopIndex int, extract func(T) (int, bool)) int {
	best := -1
	bestDistance := 0
	for _, entry := range entries {
		sequence, ok := extract(entry)
		if !ok {
			continue
		}
		distance := sequence - stopIndex
		if distance < 0 {
			distance = -distance
		}
		if best == -1 || distance < bestDistance {
			best = sequence
			bestDistance = distance
		}
	}
	return best
}

// parseArrivalInstant parses an RFC 3339 arrival timestamp. The feeds send
// empty strings or the literal "null" for tracked slots with no vehicle.
func parseArrivalInstant(value string) (time.Time, bool) {
	if value == "" || strings.EqualFold(value, "null") {
		return time.Time{}, false
	}
	arrival, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, false
	}
	return arrival, true
}

// parseArrivalLocal parses a zone-less "2006-01-02 15:04:05" arrival
// timestamp as Hong Kong wall time.
func parseArrivalLocal(value string) (time.Time, bool) {
	if value == "" || strings.EqualFold(value, "null") {
		return time.Time{}, false
	}
	arrival, err := time.ParseInLocation("2006-01-02 15:04:05", value, util.HongKongLocation())
	if err != nil {
		return time.Time{}, false
	}
	return arrival, true
}

// parseSeconds parses a numeric seconds field the feeds send as a string.
func parseSeconds(value string) (float64, bool) {
	if value == "" || strings.EqualFold(value, "null") {
		return 0, false
	}
	seconds, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, false
	}
	return seconds, true
}

// minutesUntil converts an absolute arrival time into countdown minutes
// relative to now. Results slightly in the past clamp to zero so a bus at
// the stop shows "0 min" rather than a negative countdown.
func minutesUntil(arrival time.Time, now time.Time) float64 {
	minutes := arrival.Sub(now).Minutes()
	if minutes < 0 && minutes > -1 {
		return 0
	}
	return minutes
}

// noScheduleLine picks the right sentinel for an empty timetable: the
// typhoon sentinel while signal eight or above is in force, plain
// no-schedule otherwise.
func noScheduleLine(typhoon TyphoonInfo) objects.ETALine {
	if typhoon.IsAboveSignalEight {
		return objects.SentinelLine(objects.ETASentinelTyphoonSchedule, objects.BilingualText{
			Zh: typhoon.WarningTitle.Zh + " 班次可能受影響",
			En: typhoon.WarningTitle.En + " Service may be affected",
		})
	}
	return objects.SentinelLine(objects.ETASentinelNoSchedule, objects.BilingualText{
		Zh: "未有預定班次",
		En: "No scheduled departures",
	})
}

// isTerminalStop reports whether stopID is the final stop of the ordered
// stop list. Rail feeds only report departures, so the terminus answers
// with the end-of-line state instead of an upstream call.
func isTerminalStop(stops []string, stopID string) bool {
	for i, stop := range stops {
		if stop == stopID {
			return i+1 >= len(stops)
		}
	}
	return false
}

// endOfLineResult builds the fixed answer for a query at a rail terminus.
func endOfLineResult(operator objects.Operator, now time.Time) *objects.ETAQueryResult {
	result := &objects.ETAQueryResult{Operator: operator, FetchedAt: now}
	result.Lines[0] = objects.SentinelLine(objects.ETASentinelEndOfLine, objects.BilingualText{
		Zh: "終點站",
		En: "End of Line",
	})
	return result
}

// buildResult assembles the fixed-arity result, substituting the
// no-schedule sentinel when no lines were produced.
func buildResult(operator objects.Operator, lines []objects.ETALine, typhoon TyphoonInfo, now time.Time) *objects.ETAQueryResult {
	result := &objects.ETAQueryResult{Operator: operator, FetchedAt: now}
	if len(lines) == 0 {
		result.Lines[0] = noScheduleLine(typhoon)
		return result
	}
	for i := 0; i < objects.ETALineCount && i < len(lines); i++ {
		result.Lines[i] = lines[i]
	}
	return result
}
