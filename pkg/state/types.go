package state

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ZoneCount is the number of independently lit keyboard regions, left to right.
const ZoneCount = 4

const (
	MinSpeed      = 1
	MaxSpeed      = 100
	MinBrightness = 0
	MaxBrightness = 100
)

var (
	ErrInvalidColor     = errors.New("invalid color")
	ErrInvalidMode      = errors.New("invalid lighting mode")
	ErrInvalidDirection = errors.New("invalid direction")
	ErrInvalidFanMode   = errors.New("invalid fan mode")
	ErrInvalidZone      = errors.New("invalid zone")
)

//--------------------------------------------------------------------------------
// lighting mode

// LightingMode selects how the engine computes zone colors.
type LightingMode int

const (
	Static LightingMode = iota
	Breathing
	Cycle
	Wave
)

var lightingModeNames = [...]string{"static", "breathing", "cycle", "wave"}

// LightingModes lists every mode in declaration order.
var LightingModes = []LightingMode{Static, Breathing, Cycle, Wave}

func ParseLightingMode(s string) (LightingMode, error) {
	for i, name := range lightingModeNames {
		if s == name {
			return LightingMode(i), nil
		}
	}
	return Static, fmt.Errorf("%w: %q", ErrInvalidMode, s)
}

func (m LightingMode) String() string {
	if m < 0 || int(m) >= len(lightingModeNames) {
		return fmt.Sprintf("LightingMode(%d)", int(m))
	}
	return lightingModeNames[m]
}

func (m LightingMode) MarshalText() ([]byte, error) {
	if m < 0 || int(m) >= len(lightingModeNames) {
		return nil, fmt.Errorf("%w: %d", ErrInvalidMode, int(m))
	}
	return []byte(m.String()), nil
}

func (m *LightingMode) UnmarshalText(text []byte) error {
	parsed, err := ParseLightingMode(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

//--------------------------------------------------------------------------------
// wave direction

// Direction is the travel direction of the wave effect.
type Direction int

const (
	LeftToRight Direction = iota
	RightToLeft
)

func ParseDirection(s string) (Direction, error) {
	switch s {
	case "ltr":
		return LeftToRight, nil
	case "rtl":
		return RightToLeft, nil
	}
	return LeftToRight, fmt.Errorf("%w: %q", ErrInvalidDirection, s)
}

func (d Direction) String() string {
	switch d {
	case LeftToRight:
		return "ltr"
	case RightToLeft:
		return "rtl"
	}
	return fmt.Sprintf("Direction(%d)", int(d))
}

func (d Direction) MarshalText() ([]byte, error) {
	if d != LeftToRight && d != RightToLeft {
		return nil, fmt.Errorf("%w: %d", ErrInvalidDirection, int(d))
	}
	return []byte(d.String()), nil
}

func (d *Direction) UnmarshalText(text []byte) error {
	parsed, err := ParseDirection(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

//--------------------------------------------------------------------------------
// fan mode

// FanMode is who owns the fan speed: the embedded controller (auto), nobody
// (max), or this daemon (custom).
type FanMode int

const (
	FanAuto FanMode = iota
	FanMax
	FanCustom
)

var fanModeNames = [...]string{"auto", "max", "custom"}

func ParseFanMode(s string) (FanMode, error) {
	for i, name := range fanModeNames {
		if s == name {
			return FanMode(i), nil
		}
	}
	return FanAuto, fmt.Errorf("%w: %q", ErrInvalidFanMode, s)
}

func (m FanMode) String() string {
	if m < 0 || int(m) >= len(fanModeNames) {
		return fmt.Sprintf("FanMode(%d)", int(m))
	}
	return fanModeNames[m]
}

func (m FanMode) MarshalText() ([]byte, error) {
	if m < 0 || int(m) >= len(fanModeNames) {
		return nil, fmt.Errorf("%w: %d", ErrInvalidFanMode, int(m))
	}
	return []byte(m.String()), nil
}

func (m *FanMode) UnmarshalText(text []byte) error {
	parsed, err := ParseFanMode(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

//--------------------------------------------------------------------------------
// colors

// Color represents Red Green and Blue values of a color
type Color struct {
	Red   uint8
	Green uint8
	Blue  uint8
}

const rgbHexFormat = "%02X%02X%02X"

var hexColorRE = regexp.MustCompile(`^[0-9A-F]{6}$`)

var Black = Color{}

// ParseColor accepts six hex digits in either case, with or without a
// leading '#'.
func ParseColor(s string) (Color, error) {
	hex := strings.ToUpper(strings.TrimPrefix(strings.TrimSpace(s), "#"))
	if !hexColorRE.MatchString(hex) {
		return Color{}, fmt.Errorf("%w: %q", ErrInvalidColor, s)
	}

	var c Color
	_, err := fmt.Sscanf(hex, rgbHexFormat, &c.Red, &c.Green, &c.Blue)
	if err != nil {
		return Color{}, fmt.Errorf("%w: %q: %v", ErrInvalidColor, s, err)
	}

	return c, nil
}

// Hex returns the color as six uppercase hex digits, the format the zone
// files accept.
func (c Color) Hex() string {
	return fmt.Sprintf(rgbHexFormat, c.Red, c.Green, c.Blue)
}

func (c Color) String() string {
	return c.Hex()
}

func (c Color) MarshalText() ([]byte, error) {
	return []byte(c.Hex()), nil
}

func (c *Color) UnmarshalText(text []byte) error {
	parsed, err := ParseColor(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// Scale multiplies every channel by factor (0.0 to 1.0), truncating.
func (c Color) Scale(factor float64) Color {
	if factor <= 0 {
		return Black
	}
	if factor >= 1 {
		return c
	}
	return Color{
		Red:   uint8(float64(c.Red) * factor),
		Green: uint8(float64(c.Green) * factor),
		Blue:  uint8(float64(c.Blue) * factor),
	}
}

//--------------------------------------------------------------------------------
// clamping

func ClampSpeed(speed int) int {
	return clamp(speed, MinSpeed, MaxSpeed)
}

func ClampBrightness(brightness int) int {
	return clamp(brightness, MinBrightness, MaxBrightness)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
