package eta

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/hktransit/hktransit/pkg/objects"
)

// CTBSource queries the Citybus ETA endpoint, which is keyed on both the
// stop and the route number.
type CTBSource struct {
	BaseURL string

	client *http.Client
	clock  func() time.Time
}

func NewCTBSource() *CTBSource {
	return &CTBSource{
		BaseURL: "https://rt.data.gov.hk/v2/transport/citybus",
		client:  &http.Client{},
		clock:   time.Now,
	}
}

func (s *CTBSource) GetName() string {
	return "citybus-eta"
}

func (s *CTBSource) Operators() []objects.Operator {
	return []objects.Operator{objects.OperatorCTB}
}

type ctbETAResponse struct {
	Data []ctbETAEntry `json:"data"`
}

type ctbETAEntry struct {
	Co       string `json:"co"`
	Route    string `json:"route"`
	Dir      string `json:"dir"`
	Seq      int    `json:"seq"`
	ETASeq   int    `json:"eta_seq"`
	ETA      string `json:"eta"`
	RemarkZh string `json:"rmk_tc"`
	RemarkEn string `json:"rmk_en"`
}

func (s *CTBSource) Lookup(ctx context.Context, query Query) (*objects.ETAQueryResult, error) {
	var response ctbETAResponse
	url := fmt.Sprintf("%s/eta/CTB/%s/%s", s.BaseURL, query.StopID, query.Route.RouteNumber)
	if err := httpGetJSON(ctx, s.client, url, &response); err != nil {
		return nil, err
	}

	bound := query.Route.Bound[objects.OperatorCTB]
	matches := func(entry ctbETAEntry) bool {
		if entry.Co != "CTB" || entry.Route != query.Route.RouteNumber {
			return false
		}
		// A multi-character bound marks a circular route serving both
		// directions through this stop.
		return len(bound) > 1 || entry.Dir == bound
	}

	stopSeq := closestStopSequence(response.Data, query.StopIndex, func(entry ctbETAEntry) (int, bool) {
		return entry.Seq, matches(entry)
	})

	entries := make([]ctbETAEntry, len(response.Data))
	copy(entries, response.Data)
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].ETASeq < entries[j].ETASeq
	})

	now := s.clock()
	var lines []objects.ETALine
	seenETASeq := map[int]bool{}
	for _, entry := range entries {
		if !matches(entry) || entry.Seq != stopSeq || seenETASeq[entry.ETASeq] {
			continue
		}
		seenETASeq[entry.ETASeq] = true

		arrival, ok := parseArrivalInstant(entry.ETA)
		if !ok {
			continue
		}
		minutes := minutesUntil(arrival, now)
		if minutes < departedCutoffMinutes {
			continue
		}
		lines = append(lines, objects.TimeLine(minutes, objects.BilingualText{
			Zh: entry.RemarkZh,
			En: entry.RemarkEn,
		}))
	}

	return buildResult(objects.OperatorCTB, lines, query.Typhoon, now), nil
}
