// Package ui is the terminal rendering collaborator. It consumes the
// derived creature state each tick and draws the pet, its complaint,
// and the need levels. Deliberately thin: the engine knows nothing
// about it.
package ui

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/talgya/critterbox/internal/creature"
	"github.com/talgya/critterbox/internal/needs"
	"github.com/talgya/critterbox/internal/schedule"
	"github.com/talgya/critterbox/internal/timeconv"
)

const barWidth = 20

// Renderer draws the pet and status panel with plain ANSI output.
type Renderer struct {
	out       io.Writer
	character string
	fidget    *creature.Fidgeter
}

// New creates a renderer for the given character choice.
func New(out io.Writer, character string) *Renderer {
	return &Renderer{
		out:       out,
		character: character,
		fidget:    creature.NewFidgeter(42, 6, 0.08),
	}
}

// Render clears the screen and redraws one frame.
func (r *Renderer) Render(state creature.State, channels []needs.Channel,
	now timeconv.CanonicalTime, zone timeconv.ZoneRule, sched *schedule.Schedule) {

	fmt.Fprint(r.out, "\033[H\033[2J")

	indent := 8
	if state.Label == creature.LabelContent {
		indent += r.fidget.Offset(int64(now))
		if indent < 0 {
			indent = 0
		}
	}
	pad := strings.Repeat(" ", indent)
	for _, line := range sprite(r.character, state) {
		fmt.Fprintln(r.out, pad+line)
	}

	if says := creature.Says(state.Label); says != "" {
		fmt.Fprintf(r.out, "%s  %s\n", pad, says)
	}
	fmt.Fprintln(r.out)

	local := timeconv.ToLocal(now, zone)
	tod := local.TimeOfDay()
	nowT := time.Unix(int64(now), 0)

	for _, c := range channels {
		marker := " "
		if c.State() == needs.StateCritical {
			marker = "!"
		}
		hint := ""
		if next, ok := sched.NextStart(c.Name, tod); ok && !sched.InWindow(c.Name, tod) {
			wait := int64(next) - int64(tod)
			if wait <= 0 {
				wait += timeconv.SecondsPerDay
			}
			nextT := nowT.Add(time.Duration(wait) * time.Second)
			hint = fmt.Sprintf("  next window %s", humanize.RelTime(nextT, nowT, "ago", "from now"))
		} else if sched.InWindow(c.Name, tod) {
			hint = "  window open"
		}
		fmt.Fprintf(r.out, " %s %-8s %s %3.0f%%%s\n", marker, c.Name, bar(c), c.Level*100, hint)
	}

	fmt.Fprintf(r.out, "\n mood %3.0f%%   local %02d:%02d\n",
		creature.Mood(channels)*100, int64(tod)/3600, int64(tod)%3600/60)
}

func bar(c needs.Channel) string {
	span := c.MaxLevel - c.MinLevel
	filled := 0
	if span > 0 {
		filled = int((c.Level - c.MinLevel) / span * barWidth)
	}
	if filled < 0 {
		filled = 0
	}
	if filled > barWidth {
		filled = barWidth
	}
	return "[" + strings.Repeat("#", filled) + strings.Repeat("-", barWidth-filled) + "]"
}

// sprite picks the ASCII frame for the current state. Sadder frames
// take over as intensity climbs.
func sprite(character string, state creature.State) []string {
	if character == "debug" {
		if state.Label == creature.LabelContent {
			return []string{`[o_o]`, `/| |\`}
		}
		return []string{`[x_x]`, `/| |\`}
	}

	switch {
	case state.Label == creature.LabelContent:
		return []string{
			` /\_/\`,
			`( ^.^ )`,
			` > ^ <`,
		}
	case state.Intensity < 0.5:
		return []string{
			` /\_/\`,
			`( o.o )`,
			` > ~ <`,
		}
	default:
		return []string{
			` /\_/\`,
			`( T.T )`,
			` > ~ <`,
		}
	}
}
