package eta

import (
	"context"
	"net/http"
	"regexp"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/hktransit/hktransit/pkg/objects"
)

const defaultTyphoonURL = "https://data.weather.gov.hk/weatherAPI/opendata/weather.php?dataType=warnsum&lang=en"

// TyphoonInfo is the current tropical cyclone warning state. Signal eight
// and above suspends most normal timetables, which changes how an empty
// arrival list is reported.
type TyphoonInfo struct {
	IsAboveSignalEight bool
	SignalLevel        int
	WarningTitle       objects.BilingualText
}

// TyphoonMonitor polls the Observatory warning summary and caches the
// parsed state. Safe for concurrent use.
type TyphoonMonitor struct {
	// URL is the warning summary endpoint; overridable for tests.
	URL string

	client *http.Client
	ttl    time.Duration

	mu        sync.Mutex
	current   TyphoonInfo
	fetchedAt time.Time

	clock func() time.Time
}

func NewTyphoonMonitor() *TyphoonMonitor {
	return &TyphoonMonitor{
		URL:    defaultTyphoonURL,
		client: &http.Client{Timeout: 10 * time.Second},
		ttl:    5 * time.Minute,
		clock:  time.Now,
	}
}

var typhoonSignalPattern = regexp.MustCompile(`TC([0-9]+)(.*)`)

type warningSummaryResponse struct {
	TropicalCyclone *struct {
		Code string `json:"code"`
		Type string `json:"type"`
	} `json:"WTCSGNL"`
}

// Current returns the cached warning state, refreshing it when the cache
// has gone stale. A failed refresh keeps the previous state; arrivals keep
// flowing with the older typhoon assessment.
func (m *TyphoonMonitor) Current(ctx context.Context) TyphoonInfo {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock()
	if !m.fetchedAt.IsZero() && now.Sub(m.fetchedAt) < m.ttl {
		return m.current
	}

	var summary warningSummaryResponse
	if err := httpGetJSON(ctx, m.client, m.URL, &summary); err != nil {
		log.Error().Err(err).Msg("Failed to fetch typhoon warning summary")
		return m.current
	}

	m.fetchedAt = now
	m.current = parseTyphoonInfo(summary)
	return m.current
}

func parseTyphoonInfo(summary warningSummaryResponse) TyphoonInfo {
	if summary.TropicalCyclone == nil {
		return TyphoonInfo{}
	}

	matches := typhoonSignalPattern.FindStringSubmatch(summary.TropicalCyclone.Code)
	if matches == nil {
		return TyphoonInfo{}
	}

	signal, err := strconv.Atoi(matches[1])
	if err != nil {
		return TyphoonInfo{}
	}

	return TyphoonInfo{
		IsAboveSignalEight: signal >= 8,
		SignalLevel:        signal,
		WarningTitle: objects.BilingualText{
			Zh: summary.TropicalCyclone.Type + " 現正生效",
			En: summary.TropicalCyclone.Type + " is in force",
		},
	}
}
