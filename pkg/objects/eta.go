package objects

import (
	"io"
	"time"
)

// ETALineCount is the fixed number of arrival lines in a query result.
const ETALineCount = 3

// ETASentinel marks an arrival line that carries a state instead of a
// countdown. The states are distinct on purpose: "no more departures" and
// "train terminates here" and "typhoon timetable in force" mean different
// things to a rider.
type ETASentinel int32

const (
	ETASentinelNone ETASentinel = iota
	ETASentinelNoSchedule
	ETASentinelEndOfLine
	ETASentinelTyphoonSchedule
	ETASentinelConnectionError
)

// ETALine is one arrival line: either a countdown in minutes (HasTime) or a
// sentinel state with display text.
type ETALine struct {
	Minutes  float64       `json:"minutes"`
	HasTime  bool          `json:"hasTime"`
	Sentinel ETASentinel   `json:"sentinel"`
	Text     BilingualText `json:"text"`
}

// RoundedMinutes returns the countdown floored to whole minutes, or -1 for a
// sentinel line.
func (l ETALine) RoundedMinutes() int64 {
	if !l.HasTime {
		return -1
	}
	return int64(l.Minutes)
}

// ETAQueryResult is the canonical answer to one (stop, route, operator)
// arrival query. Results are immutable once constructed; a fresh value is
// produced per request.
type ETAQueryResult struct {
	Operator  Operator                `json:"co"`
	Lines     [ETALineCount]ETALine   `json:"lines"`
	FetchedAt time.Time               `json:"fetchedAt"`
}

// IsConnectionError reports whether the query failed to reach the upstream
// source. The caller decides retry cadence; this is never an error return.
func (r *ETAQueryResult) IsConnectionError() bool {
	return r.Lines[0].Sentinel == ETASentinelConnectionError
}

// NextScheduledBus returns whole minutes until the first tracked arrival, or
// -1 when the first line is a sentinel.
func (r *ETAQueryResult) NextScheduledBus() int64 {
	return r.Lines[0].RoundedMinutes()
}

// IsStale reports whether the result is older than the given interval.
func (r *ETAQueryResult) IsStale(maxAge time.Duration, now time.Time) bool {
	return now.Sub(r.FetchedAt) > maxAge
}

// TimeLine builds a countdown line.
func TimeLine(minutes float64, text BilingualText) ETALine {
	return ETALine{Minutes: minutes, HasTime: true, Text: text}
}

// SentinelLine builds a stateful line with display text.
func SentinelLine(sentinel ETASentinel, text BilingualText) ETALine {
	return ETALine{Sentinel: sentinel, Text: text}
}

// SentinelResult builds a result whose every line carries the sentinel; used
// for whole-query states like connection errors.
func SentinelResult(operator Operator, sentinel ETASentinel, text BilingualText, now time.Time) *ETAQueryResult {
	result := &ETAQueryResult{Operator: operator, FetchedAt: now}
	result.Lines[0] = SentinelLine(sentinel, text)
	for i := 1; i < ETALineCount; i++ {
		result.Lines[i] = SentinelLine(sentinel, EmptyBilingualText)
	}
	return result
}

func (l ETALine) MarshalBinary(w io.Writer) error {
	if err := writeFloat64(w, l.Minutes); err != nil {
		return err
	}
	if err := writeBool(w, l.HasTime); err != nil {
		return err
	}
	if err := writeInt32(w, int32(l.Sentinel)); err != nil {
		return err
	}
	return l.Text.MarshalBinary(w)
}

func readETALine(r io.Reader) (ETALine, error) {
	var line ETALine

	var err error
	if line.Minutes, err = readFloat64(r); err != nil {
		return line, err
	}
	if line.HasTime, err = readBool(r); err != nil {
		return line, err
	}
	sentinel, err := readInt32(r)
	if err != nil {
		return line, err
	}
	line.Sentinel = ETASentinel(sentinel)
	if line.Text, err = readBilingualText(r); err != nil {
		return line, err
	}

	return line, nil
}

func (r *ETAQueryResult) MarshalBinary(w io.Writer) error {
	if err := writeString(w, r.Operator.Name()); err != nil {
		return err
	}
	for _, line := range r.Lines {
		if err := line.MarshalBinary(w); err != nil {
			return err
		}
	}
	return writeInt64(w, r.FetchedAt.UnixMilli())
}

func ReadETAQueryResult(reader io.Reader) (*ETAQueryResult, error) {
	result := &ETAQueryResult{}

	name, err := readString(reader)
	if err != nil {
		return nil, err
	}
	result.Operator = OperatorFrom(name)
	for i := 0; i < ETALineCount; i++ {
		if result.Lines[i], err = readETALine(reader); err != nil {
			return nil, err
		}
	}
	fetchedAt, err := readInt64(reader)
	if err != nil {
		return nil, err
	}
	result.FetchedAt = time.UnixMilli(fetchedAt).UTC()

	return result, nil
}
