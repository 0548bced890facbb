package util

import (
	"time"

	_ "time/tzdata"
)

var hongKongLocation = func() *time.Location {
	location, err := time.LoadLocation("Asia/Hong_Kong")
	if err != nil {
		return time.FixedZone("HKT", 8*60*60)
	}
	return location
}()

// HongKongLocation returns the Asia/Hong_Kong zone used for parsing
// zone-less upstream timestamps.
func HongKongLocation() *time.Location {
	return hongKongLocation
}

// InHongKong converts t to Hong Kong time. Service-day and night-route
// decisions are always made against this zone regardless of host locale.
func InHongKong(t time.Time) time.Time {
	return t.In(hongKongLocation)
}
