package eta

import (
	"testing"
	"time"

	"github.com/hktransit/hktransit/pkg/objects"
)

func TestClosestStopSequence(t *testing.T) {
	tests := []struct {
		name      string
		sequences []int
		stopIndex int
		want      int
	}{
		{"exact match", []int{1, 5, 9}, 5, 5},
		{"nearest below", []int{1, 5, 9}, 4, 5},
		{"nearest above", []int{1, 5, 9}, 7, 5},
		{"single entry", []int{12}, 3, 12},
		{"no entries", nil, 3, -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := closestStopSequence(tt.sequences, tt.stopIndex, func(sequence int) (int, bool) {
				return sequence, true
			})
			if got != tt.want {
				t.Errorf("closestStopSequence(%v, %d) = %d, want %d", tt.sequences, tt.stopIndex, got, tt.want)
			}
		})
	}
}

func TestMinutesUntil(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	if got := minutesUntil(now.Add(5*time.Minute), now); got != 5 {
		t.Errorf("five minutes out = %v, want 5", got)
	}
	if got := minutesUntil(now.Add(-30*time.Second), now); got != 0 {
		t.Errorf("just departed should clamp to 0, got %v", got)
	}
	if got := minutesUntil(now.Add(-15*time.Minute), now); got >= departedCutoffMinutes {
		t.Errorf("long departed = %v, should fall below cutoff", got)
	}
}

func TestParseArrivalInstant(t *testing.T) {
	if _, ok := parseArrivalInstant(""); ok {
		t.Error("empty string should not parse")
	}
	if _, ok := parseArrivalInstant("null"); ok {
		t.Error("literal null should not parse")
	}
	arrival, ok := parseArrivalInstant("2024-06-01T12:30:00+08:00")
	if !ok {
		t.Fatal("valid timestamp failed to parse")
	}
	if arrival.UTC().Hour() != 4 || arrival.UTC().Minute() != 30 {
		t.Errorf("parsed %v, want 04:30 UTC", arrival.UTC())
	}
}

func TestParseArrivalLocal(t *testing.T) {
	arrival, ok := parseArrivalLocal("2024-06-01 12:30:00")
	if !ok {
		t.Fatal("valid timestamp failed to parse")
	}
	// Hong Kong wall time is UTC+8.
	if arrival.UTC().Hour() != 4 {
		t.Errorf("parsed %v, want 04:30 UTC", arrival.UTC())
	}
	if _, ok := parseArrivalLocal("not a time"); ok {
		t.Error("garbage should not parse")
	}
}

func TestNoScheduleLineSentinels(t *testing.T) {
	line := noScheduleLine(TyphoonInfo{})
	if line.Sentinel != objects.ETASentinelNoSchedule {
		t.Errorf("plain empty timetable sentinel = %v, want no-schedule", line.Sentinel)
	}

	line = noScheduleLine(TyphoonInfo{IsAboveSignalEight: true, SignalLevel: 8})
	if line.Sentinel != objects.ETASentinelTyphoonSchedule {
		t.Errorf("typhoon empty timetable sentinel = %v, want typhoon", line.Sentinel)
	}
}

func TestBuildResultSubstitutesSentinelWhenEmpty(t *testing.T) {
	now := time.Now()

	result := buildResult(objects.OperatorKMB, nil, TyphoonInfo{}, now)
	if result.Lines[0].Sentinel != objects.ETASentinelNoSchedule {
		t.Error("empty line list should produce a no-schedule first line")
	}
	if result.NextScheduledBus() != -1 {
		t.Errorf("NextScheduledBus = %d, want -1", result.NextScheduledBus())
	}

	result = buildResult(objects.OperatorKMB, []objects.ETALine{
		objects.TimeLine(7.4, objects.EmptyBilingualText),
	}, TyphoonInfo{}, now)
	if result.NextScheduledBus() != 7 {
		t.Errorf("NextScheduledBus = %d, want 7", result.NextScheduledBus())
	}
}

func TestIsTerminalStop(t *testing.T) {
	stops := []string{"LR010", "LR020", "LR030"}

	if isTerminalStop(stops, "LR010") {
		t.Error("first stop is not terminal")
	}
	if !isTerminalStop(stops, "LR030") {
		t.Error("last stop is terminal")
	}
	if isTerminalStop(stops, "LR999") {
		t.Error("unknown stop is not terminal")
	}
}
