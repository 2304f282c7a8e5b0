// Package needs models a single vital stat: a bounded level that decays
// over elapsed time and is replenished while the matching self-care
// action is recognized.
package needs

// State labels a channel as healthy or critical.
type State uint8

const (
	StateHealthy State = iota
	StateCritical
)

// String returns a human-readable state name.
func (s State) String() string {
	if s == StateCritical {
		return "critical"
	}
	return "healthy"
}

// DefaultHysteresisMargin is the extra level rise required above the
// critical threshold before a channel reports healthy again.
const DefaultHysteresisMargin = 0.05

// Channel is one vital stat. Levels live in [MinLevel, MaxLevel] and
// are always clamped. Mutated only by the simulation engine.
type Channel struct {
	Name              string
	Level             float64
	MinLevel          float64
	MaxLevel          float64
	DecayRate         float64 // level lost per canonical second
	ReplenishRate     float64 // level gained per in-window second while acted on
	CriticalThreshold float64
	HysteresisMargin  float64
	Priority          int // tie-break order for display states, lower wins

	state State
}

// NewChannel creates a channel at full level with the default [0, 1]
// bounds, and settles its initial state.
func NewChannel(name string, decayRate, replenishRate, threshold, margin float64, priority int) *Channel {
	c := &Channel{
		Name:              name,
		Level:             1.0,
		MinLevel:          0.0,
		MaxLevel:          1.0,
		DecayRate:         decayRate,
		ReplenishRate:     replenishRate,
		CriticalThreshold: threshold,
		HysteresisMargin:  margin,
		Priority:          priority,
	}
	if c.Level <= c.CriticalThreshold {
		c.state = StateCritical
	}
	return c
}

// Apply advances the channel by dt canonical seconds, of which
// replenishSeconds were spent inside an acted-on schedule window.
// The update is linear and time-homogeneous, so arbitrarily large dt
// is safe without per-second iteration:
//
//	level' = clamp(level − decay·dt + replenish·replenishSeconds)
//
// State transitions honor the hysteresis margin: a critical channel
// only recovers once the level rises strictly above threshold+margin.
func (c *Channel) Apply(dt, replenishSeconds float64) {
	c.Level += -c.DecayRate*dt + c.ReplenishRate*replenishSeconds
	if c.Level < c.MinLevel {
		c.Level = c.MinLevel
	}
	if c.Level > c.MaxLevel {
		c.Level = c.MaxLevel
	}

	switch c.state {
	case StateHealthy:
		if c.Level <= c.CriticalThreshold {
			c.state = StateCritical
		}
	case StateCritical:
		if c.Level > c.CriticalThreshold+c.HysteresisMargin {
			c.state = StateHealthy
		}
	}
}

// State returns the channel's current health state.
func (c *Channel) State() State { return c.state }

// SetLevel restores a persisted level and state, clamping the level
// into bounds. Used when loading a saved snapshot.
func (c *Channel) SetLevel(level float64, critical bool) {
	c.Level = level
	if c.Level < c.MinLevel {
		c.Level = c.MinLevel
	}
	if c.Level > c.MaxLevel {
		c.Level = c.MaxLevel
	}
	if critical {
		c.state = StateCritical
	} else {
		c.state = StateHealthy
	}
}

// Deficit returns level minus threshold: negative when below the
// critical line. The display state picks the lowest deficit.
func (c *Channel) Deficit() float64 {
	return c.Level - c.CriticalThreshold
}
