// Package timeconv converts between canonical (UTC) instants and the
// user's local wall clock. All engine math runs on canonical seconds;
// local time only exists at the schedule boundary.
package timeconv

import (
	"errors"
	"fmt"
	"time"
)

// SecondsPerDay is the length of a local calendar day in seconds.
const SecondsPerDay int64 = 86400

// CanonicalTime is an absolute point in time, expressed as seconds
// since the Unix epoch, independent of any time zone.
type CanonicalTime int64

// LocalTime is a wall-clock reading in the user's zone, expressed as
// seconds since the Unix epoch shifted by the offset in effect.
type LocalTime int64

// TimeOfDay is seconds since local midnight, in [0, SecondsPerDay).
type TimeOfDay int64

// ErrInvalidZoneRule is returned when a zone rule fails validation.
var ErrInvalidZoneRule = errors.New("invalid zone rule")

// ZoneRule describes the offset from canonical time to the user's
// local time, including an optional daylight-saving rule. Immutable
// after load.
type ZoneRule struct {
	Name          string
	OffsetSeconds int64 // base UTC offset, e.g. +3600 for UTC+1
	DST           *DSTRule
}

// DSTRule describes a yearly daylight-saving period. Start is given in
// standard local time, End in daylight local time, matching how civil
// transition rules are published.
type DSTRule struct {
	OffsetSeconds int64 // extra offset while DST is active, usually 3600
	Start         Transition
	End           Transition
}

// Transition is a local calendar moment at which the offset changes.
type Transition struct {
	Month time.Month
	Day   int
	Hour  int
}

// Validate checks the rule for well-formedness. Offsets outside ±24h,
// non-positive DST deltas, and impossible transition dates are rejected.
func (z ZoneRule) Validate() error {
	if z.OffsetSeconds <= -SecondsPerDay || z.OffsetSeconds >= SecondsPerDay {
		return fmt.Errorf("%w: base offset %ds outside ±24h", ErrInvalidZoneRule, z.OffsetSeconds)
	}
	if z.DST == nil {
		return nil
	}
	if z.DST.OffsetSeconds <= 0 {
		return fmt.Errorf("%w: dst offset must be positive, got %ds", ErrInvalidZoneRule, z.DST.OffsetSeconds)
	}
	total := z.OffsetSeconds + z.DST.OffsetSeconds
	if total <= -SecondsPerDay || total >= SecondsPerDay {
		return fmt.Errorf("%w: combined offset %ds outside ±24h", ErrInvalidZoneRule, total)
	}
	for _, tr := range []Transition{z.DST.Start, z.DST.End} {
		if err := tr.validate(); err != nil {
			return err
		}
	}
	return nil
}

func (t Transition) validate() error {
	if t.Month < time.January || t.Month > time.December {
		return fmt.Errorf("%w: transition month %d", ErrInvalidZoneRule, t.Month)
	}
	if t.Day < 1 || t.Day > 31 {
		return fmt.Errorf("%w: transition day %d", ErrInvalidZoneRule, t.Day)
	}
	// Reject dates the calendar would normalize away (e.g. Feb 30).
	probe := time.Date(2001, t.Month, t.Day, 0, 0, 0, 0, time.UTC)
	if probe.Month() != t.Month || probe.Day() != t.Day {
		return fmt.Errorf("%w: transition date %v %d does not exist", ErrInvalidZoneRule, t.Month, t.Day)
	}
	if t.Hour < 0 || t.Hour > 23 {
		return fmt.Errorf("%w: transition hour %d", ErrInvalidZoneRule, t.Hour)
	}
	return nil
}

// localSeconds returns the transition expressed as local seconds since
// the epoch, for the given year. Leap-day rules are delegated to the
// time package's calendar arithmetic.
func (t Transition) localSeconds(year int) int64 {
	return time.Date(year, t.Month, t.Day, t.Hour, 0, 0, 0, time.UTC).Unix()
}

// transitions returns the canonical instants at which DST starts and
// ends for the year containing c (judged in standard local time).
func (z ZoneRule) transitions(c CanonicalTime) (start, end CanonicalTime) {
	year := time.Unix(int64(c)+z.OffsetSeconds, 0).UTC().Year()
	// Start is published in standard time, end in daylight time.
	start = CanonicalTime(z.DST.Start.localSeconds(year) - z.OffsetSeconds)
	end = CanonicalTime(z.DST.End.localSeconds(year) - z.OffsetSeconds - z.DST.OffsetSeconds)
	return start, end
}

// dstActive reports whether daylight saving is in effect at c.
// Southern-hemisphere rules (end before start within the year) wrap
// across the new year.
func (z ZoneRule) dstActive(c CanonicalTime) bool {
	if z.DST == nil {
		return false
	}
	start, end := z.transitions(c)
	if start <= end {
		return c >= start && c < end
	}
	return c >= start || c < end
}

// offsetAt returns the total offset in effect at canonical instant c.
func (z ZoneRule) offsetAt(c CanonicalTime) int64 {
	if z.dstActive(c) {
		return z.OffsetSeconds + z.DST.OffsetSeconds
	}
	return z.OffsetSeconds
}

// ToLocal maps a canonical instant to the user's wall clock. Pure and
// total over validated rules.
func ToLocal(c CanonicalTime, zone ZoneRule) LocalTime {
	return LocalTime(int64(c) + zone.offsetAt(c))
}

// ToCanonical maps a wall-clock reading back to a canonical instant.
//
// During the spring-forward gap the local reading never appears on a
// real clock; such readings map to the post-transition canonical
// instant (the gap is skipped). During the fall-back overlap the
// reading appears twice; the earlier canonical instant is chosen.
func ToCanonical(l LocalTime, zone ZoneRule) CanonicalTime {
	standard := CanonicalTime(int64(l) - zone.OffsetSeconds)
	if zone.DST == nil {
		return standard
	}
	daylight := CanonicalTime(int64(l) - zone.OffsetSeconds - zone.DST.OffsetSeconds)

	standardOK := !zone.dstActive(standard)
	daylightOK := zone.dstActive(daylight)

	switch {
	case standardOK && daylightOK:
		// Fall-back overlap: both readings are real. The daylight
		// interpretation is the earlier one (positive DST delta).
		if daylight < standard {
			return daylight
		}
		return standard
	case daylightOK:
		return daylight
	case standardOK:
		return standard
	default:
		// Spring-forward gap: snap to the moment the clocks jumped.
		start, _ := zone.transitions(standard)
		return start
	}
}

// NextTransition returns the earliest canonical instant strictly after c
// at which the zone's offset changes. ok is false for fixed-offset zones.
// Callers integrating over a canonical interval split it here so each
// segment has one constant offset.
func (z ZoneRule) NextTransition(c CanonicalTime) (CanonicalTime, bool) {
	if z.DST == nil {
		return 0, false
	}
	year := time.Unix(int64(c)+z.OffsetSeconds, 0).UTC().Year()
	var best CanonicalTime
	found := false
	for _, y := range []int{year - 1, year, year + 1} {
		start := CanonicalTime(z.DST.Start.localSeconds(y) - z.OffsetSeconds)
		end := CanonicalTime(z.DST.End.localSeconds(y) - z.OffsetSeconds - z.DST.OffsetSeconds)
		for _, t := range []CanonicalTime{start, end} {
			if t > c && (!found || t < best) {
				best = t
				found = true
			}
		}
	}
	return best, found
}

// Clock abstracts the wall-clock source so tests can drive the engine
// with a fake.
type Clock interface {
	Now() CanonicalTime
}

// SystemClock reads the operating system clock.
type SystemClock struct{}

// Now returns the current canonical instant.
func (SystemClock) Now() CanonicalTime { return CanonicalTime(time.Now().Unix()) }

// TimeOfDay returns the seconds elapsed since the most recent local
// midnight. Well-defined for readings before the epoch too.
func (l LocalTime) TimeOfDay() TimeOfDay {
	return TimeOfDay(floorMod(int64(l), SecondsPerDay))
}

// DayStart returns the local midnight that begins the day containing l.
func (l LocalTime) DayStart() LocalTime {
	return LocalTime(floorDiv(int64(l), SecondsPerDay) * SecondsPerDay)
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}

func floorMod(a, b int64) int64 {
	return a - floorDiv(a, b)*b
}
