package engine

import (
	"time"

	"github.com/IronBasement/drum-lights/internal/colors"
)

// flash is one in-flight visual event. The color is copied from the
// mapping at creation so later table changes cannot reach live flashes.
// peak is the velocity-derived strength at age zero; intensity decays
// linearly from it over the fade duration.
type flash struct {
	color     colors.RGB
	peak      float64
	intensity float64
	age       time.Duration
}

// newFlash builds a flash for a strike of the given MIDI velocity.
func newFlash(c colors.RGB, velocity uint8) flash {
	if velocity > 127 {
		velocity = 127
	}
	peak := float64(velocity) / 127
	return flash{color: c, peak: peak, intensity: peak}
}

// step ages the flash by dt and recomputes its intensity. It reports
// whether the flash is still alive.
func (f *flash) step(dt, fade time.Duration) bool {
	f.age += dt
	decay := 1 - float64(f.age)/float64(fade)
	if decay < 0 {
		decay = 0
	}
	f.intensity = f.peak * decay
	return f.intensity > 0
}

// contribution is the color this flash adds to the accumulator.
func (f *flash) contribution() colors.RGB {
	return f.color.Scale(f.intensity)
}
