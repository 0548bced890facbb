package eta

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/hktransit/hktransit/pkg/objects"
)

// NLBSource queries the New Lantao Bus estimated arrivals endpoint. The
// endpoint is keyed on the operator's internal route id rather than the
// public route number.
type NLBSource struct {
	BaseURL string

	client *http.Client
	clock  func() time.Time
}

func NewNLBSource() *NLBSource {
	return &NLBSource{
		BaseURL: "https://rt.data.gov.hk/v2/transport/nlb",
		client:  &http.Client{},
		clock:   time.Now,
	}
}

func (s *NLBSource) GetName() string {
	return "nlb-estimated-arrivals"
}

func (s *NLBSource) Operators() []objects.Operator {
	return []objects.Operator{objects.OperatorNLB}
}

type nlbETAResponse struct {
	EstimatedArrivals []nlbETAEntry `json:"estimatedArrivals"`
}

type nlbETAEntry struct {
	EstimatedArrivalTime string `json:"estimatedArrivalTime"`
	DepartedStatus       string `json:"departed"`
	NoGPS                int    `json:"noGPS"`
	WheelChair           int    `json:"wheelChair"`
}

func (s *NLBSource) Lookup(ctx context.Context, query Query) (*objects.ETAQueryResult, error) {
	var response nlbETAResponse
	url := fmt.Sprintf("%s/stop.php?action=estimatedArrivals&routeId=%s&stopId=%s&language=zh",
		s.BaseURL, query.Route.NlbID, query.StopID)
	if err := httpGetJSON(ctx, s.client, url, &response); err != nil {
		return nil, err
	}

	now := s.clock()
	var lines []objects.ETALine
	for _, entry := range response.EstimatedArrivals {
		arrival, ok := parseArrivalLocal(entry.EstimatedArrivalTime)
		if !ok {
			continue
		}
		minutes := minutesUntil(arrival, now)
		if minutes < departedCutoffMinutes {
			continue
		}
		var remark objects.BilingualText
		if entry.NoGPS == 1 {
			remark = objects.BilingualText{Zh: "預定班次", En: "Scheduled Bus"}
		}
		lines = append(lines, objects.TimeLine(minutes, remark))
	}

	return buildResult(objects.OperatorNLB, lines, query.Typhoon, now), nil
}
