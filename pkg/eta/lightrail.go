package eta

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/hktransit/hktransit/pkg/objects"
)

// LightRailSource queries the Light Rail platform schedule endpoint. The
// feed is keyed on the numeric station id and reports per-platform train
// lists across every route calling at the station.
type LightRailSource struct {
	ScheduleURL string

	client *http.Client
	clock  func() time.Time
}

func NewLightRailSource() *LightRailSource {
	return &LightRailSource{
		ScheduleURL: "https://rt.data.gov.hk/v1/transport/mtr/lrt/getSchedule",
		client:      &http.Client{},
		clock:       time.Now,
	}
}

func (s *LightRailSource) GetName() string {
	return "light-rail-schedule"
}

func (s *LightRailSource) Operators() []objects.Operator {
	return []objects.Operator{objects.OperatorLightRail}
}

type lightRailScheduleResponse struct {
	Status       int                 `json:"status"`
	PlatformList []lightRailPlatform `json:"platform_list"`
}

type lightRailPlatform struct {
	PlatformID int                  `json:"platform_id"`
	RouteList  []lightRailTrainInfo `json:"route_list"`
}

type lightRailTrainInfo struct {
	RouteNumber string `json:"route_no"`
	DestZh      string `json:"dest_ch"`
	DestEn      string `json:"dest_en"`
	TimeZh      string `json:"time_ch"`
	TimeEn      string `json:"time_en"`
	TrainLength int    `json:"train_length"`
}

var lightRailMinutesPattern = regexp.MustCompile(`([0-9]+) *min`)

type lightRailArrival struct {
	minutes  float64
	platform int
	remark   objects.BilingualText
}

func (s *LightRailSource) Lookup(ctx context.Context, query Query) (*objects.ETAQueryResult, error) {
	stops := query.Route.Stops[objects.OperatorLightRail]
	if isTerminalStop(stops, query.StopID) {
		return endOfLineResult(objects.OperatorLightRail, s.clock()), nil
	}

	stationID := strings.TrimPrefix(query.StopID, "LR")
	var response lightRailScheduleResponse
	url := fmt.Sprintf("%s?station_id=%s", s.ScheduleURL, stationID)
	if err := httpGetJSON(ctx, s.client, url, &response); err != nil {
		return nil, err
	}

	now := s.clock()
	if response.Status == 0 {
		return buildResult(objects.OperatorLightRail, nil, query.Typhoon, now), nil
	}

	var arrivals []lightRailArrival
	for _, platform := range response.PlatformList {
		for _, train := range platform.RouteList {
			if train.RouteNumber != query.Route.RouteNumber || train.TimeZh == "" {
				continue
			}
			if !lightRailDestMatches(query.Route, train.DestZh) {
				continue
			}
			minutes := 0.0
			if matches := lightRailMinutesPattern.FindStringSubmatch(train.TimeEn); matches != nil {
				parsed, err := strconv.ParseFloat(matches[1], 64)
				if err != nil {
					continue
				}
				minutes = parsed
			}
			arrivals = append(arrivals, lightRailArrival{
				minutes:  minutes,
				platform: platform.PlatformID,
				remark:   platformRemark(platform.PlatformID, train.TrainLength),
			})
		}
	}

	sort.SliceStable(arrivals, func(i, j int) bool {
		if arrivals[i].minutes != arrivals[j].minutes {
			return arrivals[i].minutes < arrivals[j].minutes
		}
		return arrivals[i].platform < arrivals[j].platform
	})

	var lines []objects.ETALine
	for _, arrival := range arrivals {
		lines = append(lines, objects.TimeLine(arrival.minutes, arrival.remark))
	}

	return buildResult(objects.OperatorLightRail, lines, query.Typhoon, now), nil
}

// lightRailDestMatches keeps trains heading to the route's terminus, or any
// train on a circular route's loop.
func lightRailDestMatches(route *objects.Route, destZh string) bool {
	if route.LrtCircular != nil && destZh == route.LrtCircular.Zh {
		return true
	}
	return destZh == route.Dest.Zh
}

func platformRemark(platformID int, trainLength int) objects.BilingualText {
	remark := objects.NewBilingualText(
		fmt.Sprintf("%d號月台", platformID),
		fmt.Sprintf("Platform %d", platformID),
	)
	if trainLength > 1 {
		remark = remark.Append(objects.NewBilingualText(
			fmt.Sprintf(" %d卡車", trainLength),
			fmt.Sprintf(" %d cars", trainLength),
		))
	}
	return remark
}
