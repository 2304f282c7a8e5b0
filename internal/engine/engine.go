// Package engine owns the need channels and the schedule, advances the
// simulation over elapsed canonical time, and answers action requests.
package engine

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/talgya/critterbox/internal/needs"
	"github.com/talgya/critterbox/internal/schedule"
	"github.com/talgya/critterbox/internal/timeconv"
)

// ErrUnknownNeed is returned when an operation references a need that
// was never registered. Indicates a caller bug, never swallowed.
var ErrUnknownNeed = errors.New("unknown need")

// maxJournal bounds the in-memory event journal.
const maxJournal = 1000

// ActionResult tells the caller whether a recorded action will count.
type ActionResult uint8

const (
	// ActionAccepted means the action fell inside a schedule window and
	// will replenish the need on the covering Advance.
	ActionAccepted ActionResult = iota
	// ActionIgnored means the action fell outside every window for the
	// need: observable, but a no-op for level purposes.
	ActionIgnored
)

// Action is a user self-care event awaiting its covering Advance.
type Action struct {
	ID       uuid.UUID
	Need     string
	At       timeconv.CanonicalTime
	InWindow bool
}

// Event is a notable occurrence, kept in a bounded journal and handed
// to the persistence collaborator.
type Event struct {
	ID          uuid.UUID              `json:"id"`
	At          timeconv.CanonicalTime `json:"at"`
	Category    string                 `json:"category"` // "action", "state", "clock"
	Description string                 `json:"description"`
}

// Engine is the need simulation and temporal scheduling core. It owns
// all channels and the schedule exclusively.
//
// The engine's operations are not safe for concurrent invocation: the
// surrounding shell must funnel all calls through a single goroutine
// (or hold its own lock). Every operation completes in bounded time;
// Advance is O(needs), never O(elapsed time).
type Engine struct {
	zone     timeconv.ZoneRule
	sched    *schedule.Schedule
	channels []*needs.Channel
	index    map[string]*needs.Channel

	lastUpdate timeconv.CanonicalTime
	pending    []Action
	events     []Event
}

// New assembles an engine from validated parts. Channel order is
// preserved for snapshots and display. The zone rule must already have
// passed Validate; config loading guarantees that.
func New(zone timeconv.ZoneRule, sched *schedule.Schedule, channels []*needs.Channel, start timeconv.CanonicalTime) *Engine {
	index := make(map[string]*needs.Channel, len(channels))
	for _, c := range channels {
		index[c.Name] = c
	}
	return &Engine{
		zone:       zone,
		sched:      sched,
		channels:   channels,
		index:      index,
		lastUpdate: start,
	}
}

// LastUpdate returns the canonical instant of the most recent Advance.
func (e *Engine) LastUpdate() timeconv.CanonicalTime { return e.lastUpdate }

// Zone returns the engine's zone rule.
func (e *Engine) Zone() timeconv.ZoneRule { return e.zone }

// Schedule returns the engine's window set (read-only use).
func (e *Engine) Schedule() *schedule.Schedule { return e.sched }

// Advance moves the simulation from the last update to now. Each
// channel decays linearly over the elapsed canonical seconds and
// replenishes over the in-window fraction of the interval, provided a
// recorded action for that need falls inside it.
//
// A backward clock jump is clamped to zero elapsed time and logged as
// a warning; state is never corrupted and the call never panics.
func (e *Engine) Advance(now timeconv.CanonicalTime) {
	if now < e.lastUpdate {
		slog.Warn("clock skew detected, clamping elapsed time to zero",
			"now", int64(now), "last_update", int64(e.lastUpdate))
		e.journal(e.lastUpdate, "clock", fmt.Sprintf("clock moved backward by %ds", int64(e.lastUpdate-now)))
		now = e.lastUpdate
	}

	dt := float64(now - e.lastUpdate)

	for _, c := range e.channels {
		cover := e.coverage(c.Name, e.lastUpdate, now)
		replenish := 0.0
		if cover > 0 && e.actedOn(c.Name, now) {
			replenish = float64(cover)
		}

		before := c.State()
		c.Apply(dt, replenish)
		if after := c.State(); after != before {
			e.journal(now, "state", fmt.Sprintf("%s is now %s (level %.3f)", c.Name, after, c.Level))
		}
	}

	e.consumePending(now)
	e.lastUpdate = now
}

// coverage integrates the need's in-window seconds over the canonical
// interval [from, to). The interval is split at the zone's offset
// transitions so each segment maps onto local time with one constant
// offset; summing per segment keeps the result correct across a DST
// change (a fall-back repeats a local hour, a spring-forward skips one)
// and never exceeds the canonical elapsed time.
func (e *Engine) coverage(need string, from, to timeconv.CanonicalTime) int64 {
	var total int64
	for seg := from; seg < to; {
		next := to
		if t, ok := e.zone.NextTransition(seg); ok && t < to {
			next = t
		}
		lf := timeconv.ToLocal(seg, e.zone)
		lt := lf + timeconv.LocalTime(next-seg)
		total += e.sched.Coverage(need, lf, lt)
		seg = next
	}
	return total
}

// actedOn reports whether a pending in-window action for the need falls
// inside [lastUpdate, now]. The lower bound is inclusive so an action
// recorded at the last update instant is not lost.
func (e *Engine) actedOn(need string, now timeconv.CanonicalTime) bool {
	for _, a := range e.pending {
		if a.Need == need && a.InWindow && a.At >= e.lastUpdate && a.At <= now {
			return true
		}
	}
	return false
}

// consumePending drops actions already covered by an Advance up to now.
func (e *Engine) consumePending(now timeconv.CanonicalTime) {
	kept := e.pending[:0]
	for _, a := range e.pending {
		if a.At > now {
			kept = append(kept, a)
		}
	}
	e.pending = kept
}

// RecordAction registers that the user performed the need's matching
// self-care action at the given canonical instant. The effect only
// materializes on the next Advance covering that instant.
//
// Returns ActionIgnored when the action falls outside every schedule
// window for the need: it is still journaled for observability, but
// will not replenish the level. Unregistered needs fail with
// ErrUnknownNeed.
func (e *Engine) RecordAction(need string, when timeconv.CanonicalTime) (ActionResult, error) {
	if _, ok := e.index[need]; !ok {
		return ActionIgnored, fmt.Errorf("%w: %q", ErrUnknownNeed, need)
	}

	tod := timeconv.ToLocal(when, e.zone).TimeOfDay()
	inWindow := e.sched.InWindow(need, tod)

	e.pending = append(e.pending, Action{
		ID:       uuid.New(),
		Need:     need,
		At:       when,
		InWindow: inWindow,
	})

	if !inWindow {
		e.journal(when, "action", fmt.Sprintf("%s action outside schedule window, ignored", need))
		return ActionIgnored, nil
	}
	e.journal(when, "action", fmt.Sprintf("%s action accepted", need))
	return ActionAccepted, nil
}

// Needs returns a consistent read-only snapshot of all channels, in
// registration order.
func (e *Engine) Needs() []needs.Channel {
	out := make([]needs.Channel, len(e.channels))
	for i, c := range e.channels {
		out[i] = *c
	}
	return out
}

// Channel looks up one channel snapshot by name.
func (e *Engine) Channel(name string) (needs.Channel, error) {
	c, ok := e.index[name]
	if !ok {
		return needs.Channel{}, fmt.Errorf("%w: %q", ErrUnknownNeed, name)
	}
	return *c, nil
}

// Events returns the journal accumulated since the last Drain.
func (e *Engine) Events() []Event { return e.events }

// DrainEvents hands the journal to the caller and resets it. The
// persistence collaborator appends these on save.
func (e *Engine) DrainEvents() []Event {
	out := e.events
	e.events = nil
	return out
}

func (e *Engine) journal(at timeconv.CanonicalTime, category, description string) {
	e.events = append(e.events, Event{
		ID:          uuid.New(),
		At:          at,
		Category:    category,
		Description: description,
	})
	if len(e.events) > maxJournal {
		e.events = e.events[len(e.events)-maxJournal:]
	}
}
