package eta

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/hktransit/hktransit/pkg/objects"
)

// MTRSource queries the heavy rail next train endpoint. The route number is
// the line code and the stop id is the station code; the bound selects the
// up or down platform list.
type MTRSource struct {
	ScheduleURL string

	client *http.Client
	clock  func() time.Time
}

func NewMTRSource() *MTRSource {
	return &MTRSource{
		ScheduleURL: "https://rt.data.gov.hk/v1/transport/mtr/getSchedule.php",
		client:      &http.Client{},
		clock:       time.Now,
	}
}

func (s *MTRSource) GetName() string {
	return "mtr-next-train"
}

func (s *MTRSource) Operators() []objects.Operator {
	return []objects.Operator{objects.OperatorMTR}
}

type mtrScheduleResponse struct {
	Status int                           `json:"status"`
	Data   map[string]mtrStationSchedule `json:"data"`
}

type mtrStationSchedule struct {
	Up   []mtrTrainInfo `json:"UP"`
	Down []mtrTrainInfo `json:"DOWN"`
}

type mtrTrainInfo struct {
	Time     string `json:"time"`
	Dest     string `json:"dest"`
	Platform string `json:"plat"`
}

func (s *MTRSource) Lookup(ctx context.Context, query Query) (*objects.ETAQueryResult, error) {
	lineName := query.Route.RouteNumber
	stops := query.Route.Stops[objects.OperatorMTR]
	if isTerminalStop(stops, query.StopID) {
		return endOfLineResult(objects.OperatorMTR, s.clock()), nil
	}

	var response mtrScheduleResponse
	url := fmt.Sprintf("%s?line=%s&sta=%s", s.ScheduleURL, lineName, query.StopID)
	if err := httpGetJSON(ctx, s.client, url, &response); err != nil {
		return nil, err
	}

	now := s.clock()
	if response.Status == 0 {
		return buildResult(objects.OperatorMTR, nil, query.Typhoon, now), nil
	}

	schedule, ok := response.Data[fmt.Sprintf("%s-%s", lineName, query.StopID)]
	if !ok {
		return buildResult(objects.OperatorMTR, nil, query.Typhoon, now), nil
	}

	trains := schedule.Down
	if query.Route.Bound[objects.OperatorMTR] == "UT" {
		trains = schedule.Up
	}

	var lines []objects.ETALine
	for _, train := range trains {
		arrival, ok := parseArrivalLocal(train.Time)
		if !ok {
			continue
		}
		minutes := minutesUntil(arrival, now)
		if minutes < departedCutoffMinutes {
			continue
		}
		remark := objects.EmptyBilingualText
		if train.Platform != "" {
			remark = objects.NewBilingualText(
				train.Platform+"號月台",
				"Platform "+train.Platform,
			)
		}
		lines = append(lines, objects.TimeLine(minutes, remark))
	}

	return buildResult(objects.OperatorMTR, lines, query.Typhoon, now), nil
}
