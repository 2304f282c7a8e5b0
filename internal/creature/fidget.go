// Idle fidget motion: smooth deterministic wander for the renderer.
package creature

import (
	opensimplex "github.com/ojrac/opensimplex-go"
)

// Fidgeter produces a smooth horizontal wander offset for the idle
// creature from 1-D noise, so the pet shuffles around its perch without
// a random source the renderer would have to seed.
type Fidgeter struct {
	noise     opensimplex.Noise
	amplitude float64 // max offset in terminal cells
	frequency float64 // wander speed, cycles per second
}

// NewFidgeter creates a fidgeter with the given seed, amplitude, and
// frequency.
func NewFidgeter(seed int64, amplitude, frequency float64) *Fidgeter {
	return &Fidgeter{
		noise:     opensimplex.NewNormalized(seed),
		amplitude: amplitude,
		frequency: frequency,
	}
}

// Offset returns the wander offset in cells for the given second count.
// Deterministic: the same instant always yields the same offset.
func (f *Fidgeter) Offset(seconds int64) int {
	// Normalized noise is in [0, 1]; recenter around the perch.
	n := f.noise.Eval2(float64(seconds)*f.frequency, 0)
	return int((n*2 - 1) * f.amplitude)
}
