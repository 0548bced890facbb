package eta

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/hktransit/hktransit/pkg/objects"
)

// MTRBusSource queries the MTR feeder bus schedule endpoint. Unlike the
// other feeds this one is a POST keyed on the route number and returns the
// whole route's stops; arrivals are picked out by the queried stop id.
type MTRBusSource struct {
	ScheduleURL string

	client *http.Client
	clock  func() time.Time
}

func NewMTRBusSource() *MTRBusSource {
	return &MTRBusSource{
		ScheduleURL: "https://rt.data.gov.hk/v1/transport/mtr/bus/getSchedule",
		client:      &http.Client{},
		clock:       time.Now,
	}
}

func (s *MTRBusSource) GetName() string {
	return "mtr-bus-schedule"
}

func (s *MTRBusSource) Operators() []objects.Operator {
	return []objects.Operator{objects.OperatorMTRBus}
}

type mtrBusScheduleRequest struct {
	Language  string `json:"language"`
	RouteName string `json:"routeName"`
}

type mtrBusScheduleResponse struct {
	BusStop []mtrBusStopSchedule `json:"busStop"`
}

type mtrBusStopSchedule struct {
	BusStopID string           `json:"busStopId"`
	Bus       []mtrBusETAEntry `json:"bus"`
}

type mtrBusETAEntry struct {
	ArrivalTimeInSecond   string `json:"arrivalTimeInSecond"`
	DepartureTimeInSecond string `json:"departureTimeInSecond"`
	IsScheduled           string `json:"isScheduled"`
	IsDelayed             string `json:"isDelayed"`
	Remark                string `json:"busRemark"`
}

// mtrBusFarFutureSeconds marks the feed's placeholder arrival value; the
// departure time is authoritative past it.
const mtrBusFarFutureSeconds = 108000

func (s *MTRBusSource) Lookup(ctx context.Context, query Query) (*objects.ETAQueryResult, error) {
	body, err := json.Marshal(mtrBusScheduleRequest{Language: "zh", RouteName: query.Route.RouteNumber})
	if err != nil {
		return nil, err
	}
	request, err := http.NewRequestWithContext(ctx, http.MethodPost, s.ScheduleURL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	request.Header.Set("Content-Type", "application/json")

	httpResponse, err := s.client.Do(request)
	if err != nil {
		return nil, err
	}
	defer httpResponse.Body.Close()

	if httpResponse.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("eta: upstream returned status %d", httpResponse.StatusCode)
	}

	var response mtrBusScheduleResponse
	if err := decodeJSON(httpResponse.Body, &response); err != nil {
		return nil, err
	}

	now := s.clock()
	var lines []objects.ETALine
	for _, stopSchedule := range response.BusStop {
		if stopSchedule.BusStopID != query.StopID {
			continue
		}
		for _, bus := range stopSchedule.Bus {
			seconds, ok := parseSeconds(bus.ArrivalTimeInSecond)
			if !ok {
				continue
			}
			if seconds >= mtrBusFarFutureSeconds {
				if seconds, ok = parseSeconds(bus.DepartureTimeInSecond); !ok {
					continue
				}
			}
			minutes := seconds / 60.0
			if minutes < departedCutoffMinutes {
				continue
			}
			lines = append(lines, objects.TimeLine(minutes, mtrBusRemark(bus)))
		}
	}

	return buildResult(objects.OperatorMTRBus, lines, query.Typhoon, now), nil
}

func mtrBusRemark(bus mtrBusETAEntry) objects.BilingualText {
	remark := objects.EmptyBilingualText
	if bus.Remark != "" && bus.Remark != "null" {
		remark = objects.NewBilingualText(bus.Remark, bus.Remark)
	}
	if bus.IsScheduled == "1" {
		remark = appendRemark(remark, "預定班次", "Scheduled Bus")
	}
	if bus.IsDelayed == "1" {
		remark = appendRemark(remark, "行車緩慢", "Bus Delayed")
	}
	return remark
}

func appendRemark(remark objects.BilingualText, zh string, en string) objects.BilingualText {
	if !remark.IsEmpty() {
		remark = remark.AppendString("/")
	}
	return remark.Append(objects.NewBilingualText(zh, en))
}
