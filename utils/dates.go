// utils/dates.go
package utils

import (
	"fmt"
	"time"
)

// Window modes for ComputeWindow.
const (
	// WindowModeOffset samples the zone offset at now and carries it to the
	// target. Near a DST switch the window can be off by the size of the shift.
	WindowModeOffset = "offset"
	// WindowModeWallClock adds the lookahead to the civil wall clock and
	// resolves the result in the zone, so the target's own offset applies.
	WindowModeWallClock = "wallclock"
)

// Window is an inclusive range of absolute instants.
type Window struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Contains reports whether t lies in [Start, End].
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && !t.After(w.End)
}

func (w Window) String() string {
	return fmt.Sprintf("[%s, %s]", w.Start.Format(time.RFC3339), w.End.Format(time.RFC3339))
}

// ComputeWindow returns the absolute interval for "lookahead from now" in the
// civil zone loc, padded by tolerance on both sides. Start < End holds only for
// a positive tolerance; a negative one is taken by magnitude and zero yields
// the single instant target.
func ComputeWindow(now time.Time, loc *time.Location, lookahead, tolerance time.Duration, mode string) Window {
	if loc == nil {
		loc = time.UTC
	}
	if tolerance < 0 {
		tolerance = -tolerance
	}

	var target time.Time
	switch mode {
	case WindowModeWallClock:
		target = wallClockAdd(now.In(loc), lookahead, loc)
	default:
		nowAsIfUTC := wallClockAsUTC(now, loc)
		offset := now.Sub(nowAsIfUTC)
		target = nowAsIfUTC.Add(lookahead).Add(offset)
	}

	return Window{
		Start: target.Add(-tolerance),
		End:   target.Add(tolerance),
	}
}

// wallClockAsUTC renders t in loc to whole seconds and reads those fields back
// as if they were UTC.
func wallClockAsUTC(t time.Time, loc *time.Location) time.Time {
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(),
		local.Hour(), local.Minute(), local.Second(), 0, time.UTC)
}

func wallClockAdd(local time.Time, d time.Duration, loc *time.Location) time.Time {
	shifted := wallClockAsUTC(local, loc).Add(d)
	return time.Date(shifted.Year(), shifted.Month(), shifted.Day(),
		shifted.Hour(), shifted.Minute(), shifted.Second(), local.Nanosecond(), loc)
}
