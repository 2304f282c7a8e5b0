package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/critterbox/internal/needs"
	"github.com/talgya/critterbox/internal/schedule"
	"github.com/talgya/critterbox/internal/timeconv"
)

func tod(h, m int) timeconv.TimeOfDay {
	return timeconv.TimeOfDay(int64(h)*3600 + int64(m)*60)
}

// canon builds a canonical instant from hours and minutes past the
// epoch; with a UTC zone rule that is also the local wall clock.
func canon(h, m int) timeconv.CanonicalTime {
	return timeconv.CanonicalTime(int64(h)*3600 + int64(m)*60)
}

func utcZone() timeconv.ZoneRule { return timeconv.ZoneRule{Name: "utc"} }

// hungerEngine builds a one-need engine: hunger with the given rates,
// threshold 0.3, margin 0.05, one 08:00–08:30 window.
func hungerEngine(t *testing.T, decay, replenish float64, start timeconv.CanonicalTime) *Engine {
	t.Helper()
	sched := schedule.New()
	require.NoError(t, sched.Register("hunger", schedule.Window{Start: tod(8, 0), Duration: 1800}))
	ch := needs.NewChannel("hunger", decay, replenish, 0.3, 0.05, 1)
	return New(utcZone(), sched, []*needs.Channel{ch}, start)
}

func TestAdvance_HungerScenario(t *testing.T) {
	// decayRate=0.02/s, replenishRate=0.5/s, window 08:00–08:30,
	// threshold 0.3, level 1.0; one idle hour drains to the floor.
	eng := hungerEngine(t, 0.02, 0.5, 0)
	eng.Advance(canon(1, 0))

	hunger := eng.Needs()[0]
	assert.Equal(t, 0.0, hunger.Level)
	assert.Equal(t, needs.StateCritical, hunger.State())
}

func TestAdvance_Idempotent(t *testing.T) {
	eng := hungerEngine(t, 0.0001, 0.001, 0)
	eng.Advance(canon(1, 0))
	level := eng.Needs()[0].Level

	eng.Advance(canon(1, 0)) // same now, zero elapsed
	assert.Equal(t, level, eng.Needs()[0].Level)
	assert.Equal(t, canon(1, 0), eng.LastUpdate())
}

func TestAdvance_SplitLinearity(t *testing.T) {
	whole := hungerEngine(t, 0.0001, 0.001, 0)
	split := hungerEngine(t, 0.0001, 0.001, 0)

	whole.Advance(canon(1, 30))
	split.Advance(canon(0, 40))
	split.Advance(canon(1, 30))

	assert.InDelta(t, whole.Needs()[0].Level, split.Needs()[0].Level, 1e-12)
}

func TestAdvance_ClockSkewClampsToZero(t *testing.T) {
	eng := hungerEngine(t, 0.0001, 0.001, 0)
	eng.Advance(canon(1, 0))
	level := eng.Needs()[0].Level

	// Clock moved backward: no decay, no state change, no panic.
	eng.Advance(canon(0, 30))
	assert.Equal(t, level, eng.Needs()[0].Level)
	assert.Equal(t, canon(1, 0), eng.LastUpdate(), "last update never moves backward")

	found := false
	for _, e := range eng.Events() {
		if e.Category == "clock" {
			found = true
		}
	}
	assert.True(t, found, "skew is journaled")

	// Time resumes normally afterwards.
	eng.Advance(canon(2, 0))
	assert.Equal(t, canon(2, 0), eng.LastUpdate())
	assert.Less(t, eng.Needs()[0].Level, level)
}

func TestRecordAction_UnknownNeed(t *testing.T) {
	eng := hungerEngine(t, 0.0001, 0.001, 0)
	_, err := eng.RecordAction("ghost", canon(8, 10))
	assert.ErrorIs(t, err, ErrUnknownNeed)
}

func TestRecordAction_OutsideWindowIsIgnored(t *testing.T) {
	acted := hungerEngine(t, 0.0001, 0.001, 0)
	idle := hungerEngine(t, 0.0001, 0.001, 0)

	result, err := acted.RecordAction("hunger", canon(3, 0)) // 03:00, no window
	require.NoError(t, err)
	assert.Equal(t, ActionIgnored, result)

	// The advance interval does cross the 08:00 window, but the action
	// itself fell outside it, so nothing replenishes.
	acted.Advance(canon(9, 0))
	idle.Advance(canon(9, 0))
	assert.Equal(t, idle.Needs()[0].Level, acted.Needs()[0].Level,
		"ignored action produces no level change")
}

func TestRecordAction_InWindowReplenishes(t *testing.T) {
	eng := hungerEngine(t, 0.0001, 0.0002, canon(7, 0))
	snap := eng.Snapshot()
	snap.Levels[0].Level = 0.3
	snap.Levels[0].Critical = true
	eng.Restore(snap)

	result, err := eng.RecordAction("hunger", canon(8, 10))
	require.NoError(t, err)
	assert.Equal(t, ActionAccepted, result)

	// 07:00 → 08:30: dt 5400s, window coverage 1800s.
	eng.Advance(canon(8, 30))
	// 0.3 − 0.0001·5400 + 0.0002·1800 = 0.3 − 0.54 + 0.36
	assert.InDelta(t, 0.12, eng.Needs()[0].Level, 1e-9)
}

func TestRecordAction_EffectWaitsForCoveringAdvance(t *testing.T) {
	eng := hungerEngine(t, 0.0001, 0.0002, canon(7, 0))

	_, err := eng.RecordAction("hunger", canon(8, 10))
	require.NoError(t, err)

	// Advancing to before the action leaves it pending.
	eng.Advance(canon(8, 0))
	afterFirst := eng.Needs()[0].Level
	assert.InDelta(t, 1.0-0.0001*3600, afterFirst, 1e-9, "no replenish yet")

	// The covering advance applies it over the in-window overlap.
	eng.Advance(canon(8, 30))
	// dt 1800, coverage 1800: −0.18 +0.36
	assert.InDelta(t, afterFirst-0.18+0.36, eng.Needs()[0].Level, 1e-9)
}

func TestRecordAction_NotReusedAfterConsumption(t *testing.T) {
	eng := hungerEngine(t, 0.0001, 0.0002, canon(7, 0))
	_, err := eng.RecordAction("hunger", canon(8, 10))
	require.NoError(t, err)

	eng.Advance(canon(8, 15)) // consumes the action
	level := eng.Needs()[0].Level

	// The remaining window minutes decay without replenishment.
	eng.Advance(canon(8, 30))
	assert.InDelta(t, level-0.0001*900, eng.Needs()[0].Level, 1e-9)
}

func TestAdvance_StateTransitionsJournaled(t *testing.T) {
	eng := hungerEngine(t, 0.02, 0.5, 0)
	eng.Advance(canon(1, 0)) // drains to critical

	var stateEvents []Event
	for _, e := range eng.DrainEvents() {
		if e.Category == "state" {
			stateEvents = append(stateEvents, e)
		}
	}
	require.Len(t, stateEvents, 1)
	assert.Contains(t, stateEvents[0].Description, "hunger")
	assert.Contains(t, stateEvents[0].Description, "critical")
	assert.Empty(t, eng.Events(), "drain resets the journal")
}

func TestNeeds_SnapshotIsDetached(t *testing.T) {
	eng := hungerEngine(t, 0.0001, 0.001, 0)
	view := eng.Needs()
	view[0].Level = -99

	assert.Equal(t, 1.0, eng.Needs()[0].Level, "mutating the snapshot never touches the engine")
}

func TestChannel_Lookup(t *testing.T) {
	eng := hungerEngine(t, 0.0001, 0.001, 0)

	c, err := eng.Channel("hunger")
	require.NoError(t, err)
	assert.Equal(t, "hunger", c.Name)

	_, err = eng.Channel("ghost")
	assert.ErrorIs(t, err, ErrUnknownNeed)
}

func TestSnapshotRestore_RoundTrip(t *testing.T) {
	eng := hungerEngine(t, 0.02, 0.5, 0)
	eng.Advance(canon(1, 0))
	snap := eng.Snapshot()

	fresh := hungerEngine(t, 0.02, 0.5, canon(2, 0))
	fresh.Restore(snap)

	assert.Equal(t, canon(1, 0), fresh.LastUpdate())
	got := fresh.Needs()[0]
	assert.Equal(t, 0.0, got.Level)
	assert.Equal(t, needs.StateCritical, got.State())
}

func TestRestore_SkipsUnknownNeeds(t *testing.T) {
	eng := hungerEngine(t, 0.0001, 0.001, canon(2, 0))
	eng.Restore(Snapshot{
		LastUpdate: canon(1, 0),
		Levels: []NeedLevel{
			{Name: "hunger", Level: 0.5, Critical: false},
			{Name: "retired", Level: 0.1, Critical: true},
		},
	})

	assert.Equal(t, canon(1, 0), eng.LastUpdate())
	assert.Equal(t, 0.5, eng.Needs()[0].Level)
}

func TestRestore_FutureSnapshotKeepsStart(t *testing.T) {
	eng := hungerEngine(t, 0.0001, 0.001, canon(1, 0))
	eng.Restore(Snapshot{
		LastUpdate: canon(5, 0),
		Levels:     []NeedLevel{{Name: "hunger", Level: 0.5}},
	})

	assert.Equal(t, canon(1, 0), eng.LastUpdate(), "future timestamps are not trusted")
	assert.Equal(t, 0.5, eng.Needs()[0].Level, "levels still restore")
}

func TestAdvance_WindowResolvedInLocalTime(t *testing.T) {
	// Zone UTC+1: the 08:00 local window is 07:00 canonical.
	zone := timeconv.ZoneRule{Name: "plus1", OffsetSeconds: 3600}
	sched := schedule.New()
	require.NoError(t, sched.Register("hunger", schedule.Window{Start: tod(8, 0), Duration: 1800}))
	ch := needs.NewChannel("hunger", 0.0001, 0.0002, 0.3, 0.05, 1)
	eng := New(zone, sched, []*needs.Channel{ch}, canon(6, 0))

	result, err := eng.RecordAction("hunger", canon(7, 10)) // 08:10 local
	require.NoError(t, err)
	assert.Equal(t, ActionAccepted, result)

	result, err = eng.RecordAction("hunger", canon(8, 10)) // 09:10 local, window closed
	require.NoError(t, err)
	assert.Equal(t, ActionIgnored, result)

	// 06:00 → 07:30 canonical is 07:00 → 08:30 local: 1800s in window.
	eng.Advance(canon(7, 30))
	// 1.0 − 0.0001·5400 + 0.0002·1800
	assert.InDelta(t, 1.0-0.54+0.36, eng.Needs()[0].Level, 1e-9)
}

// dstZone is UTC+1 with a +1h daylight period from March 31 02:00
// standard time to October 27 03:00 daylight time.
func dstZone() timeconv.ZoneRule {
	return timeconv.ZoneRule{
		Name:          "cet-like",
		OffsetSeconds: 3600,
		DST: &timeconv.DSTRule{
			OffsetSeconds: 3600,
			Start:         timeconv.Transition{Month: time.March, Day: 31, Hour: 2},
			End:           timeconv.Transition{Month: time.October, Day: 27, Hour: 3},
		},
	}
}

// dstEngine builds a one-need engine in the dstZone with the given
// window, start instant, and starting level (decay 0.0001/s,
// replenish 0.0002/s, threshold 0.3).
func dstEngine(t *testing.T, window schedule.Window, start timeconv.CanonicalTime, level float64) *Engine {
	t.Helper()
	sched := schedule.New()
	require.NoError(t, sched.Register("hunger", window))
	ch := needs.NewChannel("hunger", 0.0001, 0.0002, 0.3, 0.05, 1)
	eng := New(dstZone(), sched, []*needs.Channel{ch}, start)
	eng.Restore(Snapshot{
		LastUpdate: start,
		Levels:     []NeedLevel{{Name: "hunger", Level: level}},
	})
	return eng
}

func TestAdvance_FallBackHourStillReplenishes(t *testing.T) {
	// October 27 2024: local clocks repeat 02:00–03:00, so the local
	// images of the advance interval collapse onto each other. The
	// 02:00–03:00 window is nonetheless open for the whole elapsed hour.
	transition := timeconv.CanonicalTime(
		time.Date(2024, time.October, 27, 3, 0, 0, 0, time.UTC).Unix() - 7200)
	eng := dstEngine(t, schedule.Window{Start: tod(2, 0), Duration: 3600}, transition-1800, 0.6)

	result, err := eng.RecordAction("hunger", transition-1200) // 02:40 daylight
	require.NoError(t, err)
	assert.Equal(t, ActionAccepted, result)

	eng.Advance(transition + 1800)
	// dt 3600, coverage 3600: 0.6 − 0.0001·3600 + 0.0002·3600
	assert.InDelta(t, 0.96, eng.Needs()[0].Level, 1e-9)
}

func TestAdvance_SpringForwardCoverageBoundedByElapsed(t *testing.T) {
	// March 31 2024: local clocks skip 02:00–03:00, so the local span
	// of the advance looks two hours long while only one canonical hour
	// elapsed. Coverage must count the elapsed hour, not the local span.
	transition := timeconv.CanonicalTime(
		time.Date(2024, time.March, 31, 2, 0, 0, 0, time.UTC).Unix() - 3600)
	eng := dstEngine(t, schedule.Window{Start: tod(1, 0), Duration: 3 * 3600}, transition-1800, 0.5)

	result, err := eng.RecordAction("hunger", transition-900) // 01:45 standard
	require.NoError(t, err)
	assert.Equal(t, ActionAccepted, result)

	eng.Advance(transition + 1800)
	// dt 3600, coverage 3600: 0.5 − 0.0001·3600 + 0.0002·3600
	assert.InDelta(t, 0.86, eng.Needs()[0].Level, 1e-9)
}
