// Snapshot save/restore: the opaque state handed to the persistence
// collaborator across process restarts.
package engine

import (
	"fmt"
	"log/slog"

	"github.com/talgya/critterbox/internal/needs"
	"github.com/talgya/critterbox/internal/timeconv"
)

// NeedLevel is one channel's persisted state.
type NeedLevel struct {
	Name     string
	Level    float64
	Critical bool
}

// Snapshot captures everything that must survive a restart: the last
// update instant and each channel's level and health state.
type Snapshot struct {
	LastUpdate timeconv.CanonicalTime
	Levels     []NeedLevel
}

// Snapshot captures the engine's persistent state in channel order.
func (e *Engine) Snapshot() Snapshot {
	levels := make([]NeedLevel, len(e.channels))
	for i, c := range e.channels {
		levels[i] = NeedLevel{
			Name:     c.Name,
			Level:    c.Level,
			Critical: c.State() == needs.StateCritical,
		}
	}
	return Snapshot{LastUpdate: e.lastUpdate, Levels: levels}
}

// Restore applies a saved snapshot. Levels for needs no longer in the
// configuration are skipped with a warning rather than failing the
// load; a config edit between runs must not strand the saved state.
// A snapshot from the engine's future (clock moved backward between
// runs) keeps the engine's own start instant, same as the in-run
// clock-skew policy.
func (e *Engine) Restore(s Snapshot) {
	for _, lv := range s.Levels {
		c, ok := e.index[lv.Name]
		if !ok {
			slog.Warn("snapshot references unconfigured need, skipping", "need", lv.Name)
			continue
		}
		c.SetLevel(lv.Level, lv.Critical)
	}
	if s.LastUpdate > e.lastUpdate {
		slog.Warn("snapshot is from the future, keeping current start",
			"snapshot", int64(s.LastUpdate), "start", int64(e.lastUpdate))
		e.journal(e.lastUpdate, "clock",
			fmt.Sprintf("saved state was %ds ahead of the clock", int64(s.LastUpdate-e.lastUpdate)))
		return
	}
	e.lastUpdate = s.LastUpdate
}
