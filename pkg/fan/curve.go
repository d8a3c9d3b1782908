// Package fan owns the fan mode state machine and, in custom mode, drives
// fan targets from a temperature curve.
package fan

import (
	"errors"
	"fmt"
	"math"
	"strconv"
)

const (
	// DefaultHysteresis is the smallest target change (RPM) worth writing.
	DefaultHysteresis = 300

	StandardCurveName = "standard"
	CustomCurveName   = "custom"
)

var ErrInvalidCurve = errors.New("invalid fan curve")

// Point maps a temperature (°C) to a fan speed in percent of maximum.
type Point struct {
	Temp    float64 `json:"temp"`
	Percent float64 `json:"percent"`
}

// Curve is a named, validated set of control points ordered by temperature.
type Curve struct {
	Name   string  `json:"name"`
	Points []Point `json:"points"`
}

// standardStepWidth is how far below each threshold the previous level is
// held, small enough that averaged readings never land on the ramp.
const standardStepWidth = 0.001

// StandardCurve reproduces the firmware-like stepped table: silent below
// 48°C, then 35%, 60%, 72% and full speed from 85°C.
func StandardCurve() Curve {
	points := []Point{}
	level := 0.0
	for _, step := range []Point{{48, 35}, {58, 60}, {70, 72}, {85, 100}} {
		points = append(points, Point{step.Temp - standardStepWidth, level}, step)
		level = step.Percent
	}
	return Curve{Name: StandardCurveName, Points: points}
}

// DefaultCustomCurve is used when custom is selected without any points.
func DefaultCustomCurve() Curve {
	return Curve{Name: CustomCurveName, Points: []Point{
		{35, 0}, {50, 20}, {65, 50}, {80, 80}, {95, 100},
	}}
}

// NewCurve validates points: at least one, temperatures strictly
// increasing, percents within 0..100.
func NewCurve(name string, points []Point) (Curve, error) {
	if len(points) == 0 {
		return Curve{}, fmt.Errorf("%w: no points", ErrInvalidCurve)
	}

	for i, p := range points {
		if math.IsNaN(p.Temp) || math.IsNaN(p.Percent) {
			return Curve{}, fmt.Errorf("%w: point %d is not a number", ErrInvalidCurve, i)
		}
		if p.Percent < 0 || p.Percent > 100 {
			return Curve{}, fmt.Errorf("%w: point %d percent %v out of range", ErrInvalidCurve, i, p.Percent)
		}
		if i > 0 && p.Temp <= points[i-1].Temp {
			return Curve{}, fmt.Errorf("%w: point %d temperature %v not above %v", ErrInvalidCurve, i, p.Temp, points[i-1].Temp)
		}
	}

	owned := make([]Point, len(points))
	copy(owned, points)
	return Curve{Name: name, Points: owned}, nil
}

// ParsePoints converts a configured list of [temp, percent] pairs, as
// decoded from TOML or JSON, into points.
func ParsePoints(raw []any) ([]Point, error) {
	points := make([]Point, 0, len(raw))
	for i, entry := range raw {
		pair, ok := entry.([]any)
		if !ok || len(pair) != 2 {
			return nil, fmt.Errorf("%w: entry %d is not a [temp, percent] pair", ErrInvalidCurve, i)
		}

		temp, err := toFloat(pair[0])
		if err != nil {
			return nil, fmt.Errorf("%w: entry %d temp: %v", ErrInvalidCurve, i, err)
		}

		pct, err := toFloat(pair[1])
		if err != nil {
			return nil, fmt.Errorf("%w: entry %d percent: %v", ErrInvalidCurve, i, err)
		}

		points = append(points, Point{Temp: temp, Percent: pct})
	}
	return points, nil
}

// Percent interpolates linearly between the points bracketing temp and holds
// the first or last value outside the curve.
func (c Curve) Percent(temp float64) float64 {
	if len(c.Points) == 0 {
		return 100
	}

	first := c.Points[0]
	if temp <= first.Temp {
		return first.Percent
	}

	for i := 1; i < len(c.Points); i++ {
		hi := c.Points[i]
		if temp > hi.Temp {
			continue
		}
		lo := c.Points[i-1]
		return lo.Percent + (temp-lo.Temp)/(hi.Temp-lo.Temp)*(hi.Percent-lo.Percent)
	}

	return c.Points[len(c.Points)-1].Percent
}

// TargetRPM converts a percent of maxRPM into a rounded target.
func TargetRPM(percent float64, maxRPM int) int {
	return int(math.Round(percent / 100 * float64(maxRPM)))
}

// ShouldApply reports whether target differs enough from the last written
// value to be worth writing. Without a known last value it always is.
func ShouldApply(last int, known bool, target, threshold int) bool {
	if !known {
		return true
	}
	delta := target - last
	if delta < 0 {
		delta = -delta
	}
	return delta >= threshold
}

//--------------------------------------------------------------------------------
// private

func toFloat(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case int32:
		return float64(n), nil
	case string:
		return strconv.ParseFloat(n, 64)
	}
	return 0, fmt.Errorf("unexpected %T", v)
}
