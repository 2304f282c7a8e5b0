// Package config loads and validates the YAML configuration: the zone
// rule, the need definitions, and their daily schedule windows. A
// config that fails validation never constructs an engine.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/talgya/critterbox/internal/needs"
	"github.com/talgya/critterbox/internal/schedule"
	"github.com/talgya/critterbox/internal/timeconv"
)

// Config is the full application configuration.
type Config struct {
	Character string     `yaml:"character"`
	Zone      ZoneSpec   `yaml:"zone"`
	Needs     []NeedSpec `yaml:"needs"`
}

// ZoneSpec declares the user's zone rule.
type ZoneSpec struct {
	Name   string   `yaml:"name"`
	Offset string   `yaml:"offset"` // "±HH:MM"
	DST    *DSTSpec `yaml:"dst,omitempty"`
}

// DSTSpec declares a yearly daylight-saving period.
type DSTSpec struct {
	Offset string         `yaml:"offset"` // e.g. "1h"
	Start  TransitionSpec `yaml:"start"`
	End    TransitionSpec `yaml:"end"`
}

// TransitionSpec is a local calendar moment at which the offset changes.
type TransitionSpec struct {
	Month int `yaml:"month"`
	Day   int `yaml:"day"`
	Hour  int `yaml:"hour"`
}

// NeedSpec declares one vital stat and its replenishment windows.
type NeedSpec struct {
	Name              string       `yaml:"name"`
	DecayRate         float64      `yaml:"decay_rate"`          // level per second
	ReplenishRate     float64      `yaml:"replenish_rate"`      // level per in-window second
	CriticalThreshold float64      `yaml:"critical_threshold"`  // in (0, 1)
	HysteresisMargin  *float64     `yaml:"hysteresis_margin"`   // >= 0, default 0.05
	Priority          int          `yaml:"priority"`            // tie-break, lower wins
	Windows           []WindowSpec `yaml:"windows"`
}

// WindowSpec is a daily window: local start time plus duration.
type WindowSpec struct {
	Start    string `yaml:"start"`    // "HH:MM"
	Duration string `yaml:"duration"` // Go duration, e.g. "45m"
}

// Load reads and validates a config file. An empty path yields the
// built-in defaults.
func Load(path string) (Config, error) {
	if strings.TrimSpace(path) == "" {
		return Defaults(), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the configuration by building every engine part once.
func (c Config) Validate() error {
	if _, err := c.ZoneRule(); err != nil {
		return err
	}
	if len(c.Needs) == 0 {
		return fmt.Errorf("needs must not be empty")
	}
	seen := map[string]bool{}
	for _, n := range c.Needs {
		if strings.TrimSpace(n.Name) == "" {
			return fmt.Errorf("need name must not be empty")
		}
		if seen[n.Name] {
			return fmt.Errorf("duplicate need: %s", n.Name)
		}
		seen[n.Name] = true
		if n.DecayRate <= 0 {
			return fmt.Errorf("need %s: decay_rate must be > 0", n.Name)
		}
		if n.ReplenishRate <= 0 {
			return fmt.Errorf("need %s: replenish_rate must be > 0", n.Name)
		}
		if n.CriticalThreshold <= 0 || n.CriticalThreshold >= 1 {
			return fmt.Errorf("need %s: critical_threshold must be in (0, 1)", n.Name)
		}
		if n.HysteresisMargin != nil && *n.HysteresisMargin < 0 {
			return fmt.Errorf("need %s: hysteresis_margin must be >= 0", n.Name)
		}
		if _, err := n.windows(); err != nil {
			return err
		}
	}
	if _, err := c.Schedule(); err != nil {
		return err
	}
	return nil
}

// ZoneRule builds and validates the zone rule.
func (c Config) ZoneRule() (timeconv.ZoneRule, error) {
	offset, err := parseOffset(c.Zone.Offset)
	if err != nil {
		return timeconv.ZoneRule{}, err
	}
	rule := timeconv.ZoneRule{Name: c.Zone.Name, OffsetSeconds: offset}
	if c.Zone.DST != nil {
		d, err := time.ParseDuration(c.Zone.DST.Offset)
		if err != nil {
			return timeconv.ZoneRule{}, fmt.Errorf("%w: dst offset %q: %v", timeconv.ErrInvalidZoneRule, c.Zone.DST.Offset, err)
		}
		rule.DST = &timeconv.DSTRule{
			OffsetSeconds: int64(d / time.Second),
			Start:         c.Zone.DST.Start.transition(),
			End:           c.Zone.DST.End.transition(),
		}
	}
	if err := rule.Validate(); err != nil {
		return timeconv.ZoneRule{}, err
	}
	return rule, nil
}

func (t TransitionSpec) transition() timeconv.Transition {
	return timeconv.Transition{Month: time.Month(t.Month), Day: t.Day, Hour: t.Hour}
}

// Schedule builds the merged window set for all needs.
func (c Config) Schedule() (*schedule.Schedule, error) {
	sched := schedule.New()
	for _, n := range c.Needs {
		ws, err := n.windows()
		if err != nil {
			return nil, err
		}
		if err := sched.Register(n.Name, ws...); err != nil {
			return nil, err
		}
	}
	return sched, nil
}

// Channels builds the need channels in declaration order.
func (c Config) Channels() []*needs.Channel {
	out := make([]*needs.Channel, 0, len(c.Needs))
	for _, n := range c.Needs {
		margin := needs.DefaultHysteresisMargin
		if n.HysteresisMargin != nil {
			margin = *n.HysteresisMargin
		}
		out = append(out, needs.NewChannel(
			n.Name, n.DecayRate, n.ReplenishRate, n.CriticalThreshold, margin, n.Priority))
	}
	return out
}

func (n NeedSpec) windows() ([]schedule.Window, error) {
	if len(n.Windows) == 0 {
		return nil, fmt.Errorf("%w: need %s has no windows", schedule.ErrInvalidWindow, n.Name)
	}
	out := make([]schedule.Window, 0, len(n.Windows))
	for _, w := range n.Windows {
		start, err := parseTimeOfDay(w.Start)
		if err != nil {
			return nil, fmt.Errorf("need %s: %w", n.Name, err)
		}
		d, err := time.ParseDuration(w.Duration)
		if err != nil {
			return nil, fmt.Errorf("%w: need %s duration %q: %v", schedule.ErrInvalidWindow, n.Name, w.Duration, err)
		}
		out = append(out, schedule.Window{Start: start, Duration: int64(d / time.Second)})
	}
	return out, nil
}

// parseOffset parses a "±HH:MM" UTC offset into seconds.
func parseOffset(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "Z" {
		return 0, nil
	}
	sign := int64(1)
	switch s[0] {
	case '+':
		s = s[1:]
	case '-':
		sign = -1
		s = s[1:]
	}
	var hh, mm int
	if _, err := fmt.Sscanf(s, "%d:%d", &hh, &mm); err != nil {
		return 0, fmt.Errorf("%w: offset %q", timeconv.ErrInvalidZoneRule, s)
	}
	if hh < 0 || mm < 0 || mm > 59 {
		return 0, fmt.Errorf("%w: offset %q", timeconv.ErrInvalidZoneRule, s)
	}
	return sign * (int64(hh)*3600 + int64(mm)*60), nil
}

// parseTimeOfDay parses "HH:MM" into seconds since local midnight.
func parseTimeOfDay(s string) (timeconv.TimeOfDay, error) {
	var hh, mm int
	if _, err := fmt.Sscanf(strings.TrimSpace(s), "%d:%d", &hh, &mm); err != nil {
		return 0, fmt.Errorf("%w: start time %q", schedule.ErrInvalidWindow, s)
	}
	if hh < 0 || hh > 23 || mm < 0 || mm > 59 {
		return 0, fmt.Errorf("%w: start time %q", schedule.ErrInvalidWindow, s)
	}
	return timeconv.TimeOfDay(int64(hh)*3600 + int64(mm)*60), nil
}

// Defaults returns the built-in self-care routine, mirroring a typical
// day: meals, water, teeth, shower, and sleep.
func Defaults() Config {
	return Config{
		Character: "kitty",
		Zone:      ZoneSpec{Name: "local", Offset: "+00:00"},
		Needs: []NeedSpec{
			{
				Name: "hunger", DecayRate: 1.0 / 21600, ReplenishRate: 1.0 / 900,
				CriticalThreshold: 0.3, Priority: 1,
				Windows: []WindowSpec{
					{Start: "07:30", Duration: "1h"},
					{Start: "12:00", Duration: "1h30m"},
					{Start: "18:30", Duration: "1h30m"},
				},
			},
			{
				Name: "thirst", DecayRate: 1.0 / 10800, ReplenishRate: 1.0 / 300,
				CriticalThreshold: 0.4, Priority: 2,
				Windows: []WindowSpec{
					{Start: "08:00", Duration: "14h"},
				},
			},
			{
				Name: "teeth", DecayRate: 1.0 / 43200, ReplenishRate: 1.0 / 180,
				CriticalThreshold: 0.25, Priority: 4,
				Windows: []WindowSpec{
					{Start: "07:00", Duration: "2h"},
					{Start: "21:00", Duration: "2h"},
				},
			},
			{
				Name: "hygiene", DecayRate: 1.0 / 86400, ReplenishRate: 1.0 / 600,
				CriticalThreshold: 0.25, Priority: 5,
				Windows: []WindowSpec{
					{Start: "07:00", Duration: "3h"},
					{Start: "20:00", Duration: "3h"},
				},
			},
			{
				Name: "rest", DecayRate: 1.0 / 57600, ReplenishRate: 1.0 / 28800,
				CriticalThreshold: 0.3, Priority: 3,
				Windows: []WindowSpec{
					// Crosses midnight on purpose.
					{Start: "22:00", Duration: "9h"},
				},
			},
		},
	}
}
