// Package creature derives the discrete display/sound state from the
// current need vector. Pure functions, recomputed fresh every tick.
package creature

import (
	"github.com/talgya/critterbox/internal/needs"
)

// LabelContent is the state when every need is healthy.
const LabelContent = "content"

// State is the ephemeral display selection handed to the renderer and
// audio collaborators each tick. Label names the most critical need
// (or LabelContent); Intensity grows with how far the level sits below
// its threshold, in [0, 1].
type State struct {
	Label     string
	Intensity float64
}

// Derive selects the single most critical need (lowest level minus
// threshold, ties broken by the configured priority order) and maps
// it to a display state. All-healthy vectors yield the content state.
func Derive(channels []needs.Channel) State {
	var worst *needs.Channel
	for i := range channels {
		c := &channels[i]
		if c.State() != needs.StateCritical {
			continue
		}
		if worst == nil ||
			c.Deficit() < worst.Deficit() ||
			(c.Deficit() == worst.Deficit() && c.Priority < worst.Priority) {
			worst = c
		}
	}
	if worst == nil {
		return State{Label: LabelContent, Intensity: 0}
	}
	return State{Label: worst.Name, Intensity: intensity(worst)}
}

// intensity maps the deficit below threshold onto [0, 1]: zero right
// at the threshold, one at the channel's floor.
func intensity(c *needs.Channel) float64 {
	span := c.CriticalThreshold - c.MinLevel
	if span <= 0 {
		return 1
	}
	v := (c.CriticalThreshold - c.Level) / span
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Mood is an overall happiness scalar in [0, 1]: the priority-weighted
// average satisfaction across all needs, higher-priority needs
// weighing more. Drives the renderer's sadness shading.
func Mood(channels []needs.Channel) float64 {
	if len(channels) == 0 {
		return 1
	}
	maxPriority := 0
	for i := range channels {
		if channels[i].Priority > maxPriority {
			maxPriority = channels[i].Priority
		}
	}
	var sum, weights float64
	for i := range channels {
		c := &channels[i]
		span := c.MaxLevel - c.MinLevel
		if span <= 0 {
			continue
		}
		w := float64(maxPriority - c.Priority + 1)
		sum += w * (c.Level - c.MinLevel) / span
		weights += w
	}
	if weights == 0 {
		return 1
	}
	return sum / weights
}

// Says returns the creature's complaint line for a display state.
func Says(label string) string {
	switch label {
	case LabelContent:
		return ""
	case "hunger":
		return "I'm hungry!"
	case "thirst":
		return "I'm thirsty!"
	case "teeth":
		return "My breath smells!"
	case "hygiene":
		return "I'm stinky!"
	case "rest":
		return "I'm sleepy!"
	case "eyes":
		return "My eyes are tired!"
	case "meds":
		return "I don't feel good >.<"
	default:
		return "I need " + label + "!"
	}
}
