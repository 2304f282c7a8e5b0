// Package schedule tracks the recurring daily local-time windows during
// which each need's replenishment action is recognized.
package schedule

import (
	"errors"
	"fmt"
	"sort"

	"github.com/talgya/critterbox/internal/timeconv"
)

// ErrInvalidWindow is returned when a window fails validation at
// registration time.
var ErrInvalidWindow = errors.New("invalid schedule window")

// Window is a recurring daily interval: it opens at Start local time
// and stays open for Duration seconds, every day. A window may cross
// midnight (start + duration past 24h); start and duration must each
// be within [0, 24h).
type Window struct {
	Start    timeconv.TimeOfDay
	Duration int64 // seconds
}

// span is a normalized half-open interval [start, end) within a single
// local day, in seconds since midnight.
type span struct {
	start, end int64
}

// Schedule holds the merged window set per need. Windows for the same
// need are unioned at registration, so "in window" status never double
// counts.
type Schedule struct {
	spans map[string][]span // sorted, disjoint, within [0, 86400]
	daily map[string]int64  // total in-window seconds per day
}

// New creates an empty schedule.
func New() *Schedule {
	return &Schedule{
		spans: make(map[string][]span),
		daily: make(map[string]int64),
	}
}

// Register adds windows for a need, validating and merging them with
// any already registered. Fails with ErrInvalidWindow when a duration
// is zero or negative, or start/duration fall outside the 24h range.
func (s *Schedule) Register(need string, windows ...Window) error {
	fresh := make([]span, 0, len(windows)+1)
	for _, w := range windows {
		if w.Duration <= 0 {
			return fmt.Errorf("%w: need %q duration %ds must be positive", ErrInvalidWindow, need, w.Duration)
		}
		if w.Duration >= timeconv.SecondsPerDay {
			return fmt.Errorf("%w: need %q duration %ds must be under 24h", ErrInvalidWindow, need, w.Duration)
		}
		if w.Start < 0 || int64(w.Start) >= timeconv.SecondsPerDay {
			return fmt.Errorf("%w: need %q start %ds outside [0, 24h)", ErrInvalidWindow, need, w.Start)
		}
		start := int64(w.Start)
		end := start + w.Duration
		if end > timeconv.SecondsPerDay {
			// Crosses midnight: split into the evening and morning parts.
			fresh = append(fresh,
				span{start, timeconv.SecondsPerDay},
				span{0, end - timeconv.SecondsPerDay})
		} else {
			fresh = append(fresh, span{start, end})
		}
	}

	merged := merge(append(fresh, s.spans[need]...))
	s.spans[need] = merged

	var total int64
	for _, sp := range merged {
		total += sp.end - sp.start
	}
	s.daily[need] = total
	return nil
}

// merge sorts spans and unions any that overlap or touch.
func merge(spans []span) []span {
	if len(spans) == 0 {
		return nil
	}
	sort.Slice(spans, func(i, j int) bool { return spans[i].start < spans[j].start })
	out := spans[:1]
	for _, sp := range spans[1:] {
		last := &out[len(out)-1]
		if sp.start <= last.end {
			if sp.end > last.end {
				last.end = sp.end
			}
			continue
		}
		out = append(out, sp)
	}
	return out
}

// Known reports whether any windows are registered for the need.
func (s *Schedule) Known(need string) bool {
	return len(s.spans[need]) > 0
}

// InWindow reports whether the local time of day falls inside one of
// the need's windows.
func (s *Schedule) InWindow(need string, tod timeconv.TimeOfDay) bool {
	t := int64(tod)
	for _, sp := range s.spans[need] {
		if t >= sp.start && t < sp.end {
			return true
		}
	}
	return false
}

// NextStart returns the first window start strictly after the given
// local time of day, wrapping to the next day's earliest window. ok is
// false when the need has no windows.
func (s *Schedule) NextStart(need string, from timeconv.TimeOfDay) (timeconv.TimeOfDay, bool) {
	spans := s.spans[need]
	if len(spans) == 0 {
		return 0, false
	}
	for _, sp := range spans {
		if sp.start > int64(from) {
			return timeconv.TimeOfDay(sp.start), true
		}
	}
	return timeconv.TimeOfDay(spans[0].start), true
}

// Coverage returns the total number of in-window seconds for the need
// across the local span [from, to). The schedule repeats daily, so the
// result is computed from whole-day multiples plus partial edges:
// O(#windows), never O(elapsed time).
func (s *Schedule) Coverage(need string, from, to timeconv.LocalTime) int64 {
	if to <= from {
		return 0
	}
	return s.cumulative(need, to) - s.cumulative(need, from)
}

// DailyCoverage returns the total in-window seconds in one full day.
func (s *Schedule) DailyCoverage(need string) int64 {
	return s.daily[need]
}

// cumulative returns the in-window seconds between the epoch's local
// midnight and t (signed; negative before the epoch).
func (s *Schedule) cumulative(need string, t timeconv.LocalTime) int64 {
	days := int64(t.DayStart()) / timeconv.SecondsPerDay
	partial := int64(0)
	tod := int64(t.TimeOfDay())
	for _, sp := range s.spans[need] {
		if tod <= sp.start {
			break
		}
		if tod >= sp.end {
			partial += sp.end - sp.start
		} else {
			partial += tod - sp.start
		}
	}
	return days*s.daily[need] + partial
}
