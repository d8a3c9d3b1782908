// Package lighting turns the configured lighting mode into zone colors and
// keeps pushing them to the keyboard.
//
// Every effect is a pure function of wall-clock seconds, so restarting the
// daemon (or dropping frames under load) never changes how fast an effect
// runs.
package lighting

import (
	"math"

	"github.com/BitPonyLLC/hp-manager/pkg/state"

	"github.com/lucasb-eyer/go-colorful"
)

const (
	breathingBasePeriod = 8.0
	breathingSpeedStep  = 0.06
	cycleRate           = 0.003
	waveRate            = 0.007
	waveZoneOffset      = 0.15
)

// BreathingPeriod is the length in seconds of one full breath.
func BreathingPeriod(speed int) float64 {
	return breathingBasePeriod - float64(state.ClampSpeed(speed))*breathingSpeedStep
}

// BreathingEnvelope is the brightness factor (0..1) at t seconds.
func BreathingEnvelope(t float64, speed int) float64 {
	return (math.Sin(2*math.Pi*t/BreathingPeriod(speed)) + 1) / 2
}

// CycleHue is the hue (0..1) shared by every zone in cycle mode.
func CycleHue(t float64, speed int) float64 {
	return unit(t * float64(state.ClampSpeed(speed)) * cycleRate)
}

// WaveOffset is the hue offset of a zone. Zone 0 leads a left-to-right wave
// and zone 3 leads a right-to-left one.
func WaveOffset(zone int, dir state.Direction) float64 {
	if dir == state.RightToLeft {
		return float64(state.ZoneCount-1-zone) * waveZoneOffset
	}
	return float64(zone) * waveZoneOffset
}

// WaveHue is the hue (0..1) of a zone in wave mode.
func WaveHue(t float64, speed, zone int, dir state.Direction) float64 {
	base := t * float64(state.ClampSpeed(speed)) * waveRate
	return unit(base + WaveOffset(zone, dir))
}

// Hue converts a fully saturated, full value hue (0..1) to a zone color.
func Hue(h float64) state.Color {
	c := colorful.Hsv(unit(h)*360, 1, 1)
	return state.Color{
		Red:   channel(c.R),
		Green: channel(c.G),
		Blue:  channel(c.B),
	}
}

// Render computes what every zone should show at t seconds: the mode's
// colors scaled by brightness, or black while the keyboard is powered off.
func Render(cfg state.Config, t float64) [state.ZoneCount]state.Color {
	var frame [state.ZoneCount]state.Color
	if !cfg.Power {
		return frame
	}

	switch cfg.Mode {
	case state.Static:
		frame = cfg.Colors
	case state.Breathing:
		c := cfg.Colors[0].Scale(BreathingEnvelope(t, cfg.Speed))
		for i := range frame {
			frame[i] = c
		}
	case state.Cycle:
		c := Hue(CycleHue(t, cfg.Speed))
		for i := range frame {
			frame[i] = c
		}
	case state.Wave:
		for i := range frame {
			frame[i] = Hue(WaveHue(t, cfg.Speed, i, cfg.Direction))
		}
	default:
		frame = cfg.Colors
	}

	return ApplyBrightness(frame, cfg.Brightness)
}

// ApplyBrightness scales every channel by brightness percent, truncating.
func ApplyBrightness(frame [state.ZoneCount]state.Color, brightness int) [state.ZoneCount]state.Color {
	factor := float64(state.ClampBrightness(brightness)) / float64(state.MaxBrightness)
	for i, c := range frame {
		frame[i] = c.Scale(factor)
	}
	return frame
}

//--------------------------------------------------------------------------------
// private

func unit(v float64) float64 {
	v = math.Mod(v, 1)
	if v < 0 {
		v++
	}
	return v
}

func channel(v float64) uint8 {
	switch {
	case v <= 0:
		return 0
	case v >= 1:
		return 255
	}
	return uint8(v * 255)
}
