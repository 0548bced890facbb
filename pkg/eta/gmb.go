package eta

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/hktransit/hktransit/pkg/objects"
)

// GMBSource queries the green minibus stop ETA endpoint. The response
// carries every route branch serving the stop; entries are filtered to the
// queried route's bound and narrowed to the closest stop sequence per
// branch.
type GMBSource struct {
	BaseURL string

	client *http.Client
	clock  func() time.Time
}

func NewGMBSource() *GMBSource {
	return &GMBSource{
		BaseURL: "https://data.etagmb.gov.hk",
		client:  &http.Client{},
		clock:   time.Now,
	}
}

func (s *GMBSource) GetName() string {
	return "etagmb-stop-eta"
}

func (s *GMBSource) Operators() []objects.Operator {
	return []objects.Operator{objects.OperatorGMB}
}

type gmbStopETAResponse struct {
	Data []gmbRouteETA `json:"data"`
}

type gmbRouteETA struct {
	RouteID  int64         `json:"route_id"`
	RouteSeq int           `json:"route_seq"`
	StopSeq  int           `json:"stop_seq"`
	ETA      []gmbETAEntry `json:"eta"`
}

type gmbETAEntry struct {
	Timestamp string `json:"timestamp"`
	RemarkZh  string `json:"remarks_tc"`
	RemarkEn  string `json:"remarks_en"`
}

type gmbArrival struct {
	stopSeq int
	routeID int64
	minutes float64
	remark  objects.BilingualText
}

func (s *GMBSource) Lookup(ctx context.Context, query Query) (*objects.ETAQueryResult, error) {
	var response gmbStopETAResponse
	url := fmt.Sprintf("%s/eta/stop/%s", s.BaseURL, query.StopID)
	if err := httpGetJSON(ctx, s.client, url, &response); err != nil {
		return nil, err
	}

	bound := query.Route.Bound[objects.OperatorGMB]
	now := s.clock()

	var arrivals []gmbArrival
	stopSequences := map[int64][]int{}
	for _, routeETA := range response.Data {
		routeBound := "O"
		if routeETA.RouteSeq > 1 {
			routeBound = "I"
		}
		routeID := fmt.Sprintf("%d", routeETA.RouteID)
		if routeBound != bound || routeID != query.Route.GtfsID {
			continue
		}
		stopSequences[routeETA.RouteID] = append(stopSequences[routeETA.RouteID], routeETA.StopSeq)
		for _, entry := range routeETA.ETA {
			arrival, ok := parseArrivalInstant(entry.Timestamp)
			if !ok {
				continue
			}
			arrivals = append(arrivals, gmbArrival{
				stopSeq: routeETA.StopSeq,
				routeID: routeETA.RouteID,
				minutes: minutesUntil(arrival, now),
				remark:  objects.BilingualText{Zh: entry.RemarkZh, En: entry.RemarkEn},
			})
		}
	}

	// A branch can serve the queried stop under several sequences; keep
	// only arrivals for the sequence closest to the queried stop index.
	for routeID, sequences := range stopSequences {
		if len(sequences) <= 1 {
			continue
		}
		matching := closestStopSequence(sequences, query.StopIndex, func(sequence int) (int, bool) {
			return sequence, true
		})
		filtered := arrivals[:0]
		for _, arrival := range arrivals {
			if arrival.routeID != routeID || arrival.stopSeq == matching {
				filtered = append(filtered, arrival)
			}
		}
		arrivals = filtered
	}

	sort.SliceStable(arrivals, func(i, j int) bool {
		return arrivals[i].minutes < arrivals[j].minutes
	})

	var lines []objects.ETALine
	for _, arrival := range arrivals {
		if arrival.minutes < departedCutoffMinutes {
			continue
		}
		lines = append(lines, objects.TimeLine(arrival.minutes, arrival.remark))
	}

	return buildResult(objects.OperatorGMB, lines, query.Typhoon, now), nil
}
