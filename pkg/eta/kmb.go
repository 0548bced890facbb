package eta

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/hktransit/hktransit/pkg/objects"
)

// KMBSource queries the etabus open data stop ETA endpoint. One call returns
// every route serving the stop, so responses are filtered down to the
// queried route and bound.
type KMBSource struct {
	BaseURL string

	client *http.Client
	clock  func() time.Time
}

func NewKMBSource() *KMBSource {
	return &KMBSource{
		BaseURL: "https://data.etabus.gov.hk/v1/transport/kmb",
		client:  &http.Client{},
		clock:   time.Now,
	}
}

func (s *KMBSource) GetName() string {
	return "kmb-stop-eta"
}

func (s *KMBSource) Operators() []objects.Operator {
	return []objects.Operator{objects.OperatorKMB}
}

type kmbStopETAResponse struct {
	Data []kmbStopETAEntry `json:"data"`
}

type kmbStopETAEntry struct {
	Co       string `json:"co"`
	Route    string `json:"route"`
	Dir      string `json:"dir"`
	Seq      int    `json:"seq"`
	ETASeq   int    `json:"eta_seq"`
	ETA      string `json:"eta"`
	RemarkZh string `json:"rmk_tc"`
	RemarkEn string `json:"rmk_en"`
}

func (s *KMBSource) Lookup(ctx context.Context, query Query) (*objects.ETAQueryResult, error) {
	var response kmbStopETAResponse
	url := fmt.Sprintf("%s/stop-eta/%s", s.BaseURL, query.StopID)
	if err := httpGetJSON(ctx, s.client, url, &response); err != nil {
		return nil, err
	}

	bound := query.Route.Bound[objects.OperatorKMB]
	matches := func(entry kmbStopETAEntry) bool {
		return entry.Co == "KMB" && entry.Route == query.Route.RouteNumber && entry.Dir == bound
	}

	// The feed repeats each arrival at every stop sequence a looping route
	// visits; keep the sequence closest to the queried stop index.
	stopSeq := closestStopSequence(response.Data, query.StopIndex, func(entry kmbStopETAEntry) (int, bool) {
		return entry.Seq, matches(entry)
	})

	now := s.clock()
	var lines []objects.ETALine
	seenETASeq := map[int]bool{}
	for _, entry := range response.Data {
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

	return buildResult(objects.OperatorKMB, lines, query.Typhoon, now), nil
}
