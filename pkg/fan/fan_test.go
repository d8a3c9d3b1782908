package fan

import (
	"errors"
	"testing"

	"github.com/BitPonyLLC/hp-manager/pkg/hardware"
	"github.com/BitPonyLLC/hp-manager/pkg/state"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var nopLog = zerolog.Nop()

type fakeFans struct {
	count   int
	max     int
	pwm     hardware.PwmMode
	targets map[int]int
	ops     []string
	fail    error
}

func newFakeFans() *fakeFans {
	return &fakeFans{count: 2, max: 6000, pwm: hardware.PwmAuto, targets: map[int]int{}}
}

func (f *fakeFans) Available() bool                        { return f.count > 0 }
func (f *fakeFans) Count() int                             { return f.count }
func (f *fakeFans) ReadRPM(fan int) int                    { return 2000 + fan }
func (f *fakeFans) ReadMax(int) int                        { return f.max }
func (f *fakeFans) ReadTarget(fan int) int                 { return f.targets[fan] }
func (f *fakeFans) ReadPwmMode() (hardware.PwmMode, error) { return f.pwm, nil }

func (f *fakeFans) WriteTarget(fan, rpm int) (int, error) {
	if f.fail != nil {
		return 0, f.fail
	}
	if rpm > f.max {
		rpm = f.max
	}
	f.targets[fan] = rpm
	f.ops = append(f.ops, "target")
	return rpm, nil
}

func (f *fakeFans) WritePwmMode(mode hardware.PwmMode) error {
	if f.fail != nil {
		return f.fail
	}
	f.pwm = mode
	f.ops = append(f.ops, "pwm="+mode.String())
	return nil
}

type fixedTemp float64

func (t fixedTemp) CPUTemp() float64 { return float64(t) }

func newController(t *testing.T, hw Hardware) (*Controller, *state.Store) {
	t.Helper()
	store := state.NewStore("", &nopLog)
	return NewController(hw, store, fixedTemp(60), &nopLog), store
}

func TestCurveInterpolates(t *testing.T) {
	curve := DefaultCustomCurve()
	assert.InDelta(t, 0, curve.Percent(20), 1e-9)
	assert.InDelta(t, 0, curve.Percent(35), 1e-9)
	assert.InDelta(t, 10, curve.Percent(42.5), 1e-9)
	assert.InDelta(t, 50, curve.Percent(65), 1e-9)
	assert.InDelta(t, 100, curve.Percent(120), 1e-9)
}

func TestStandardCurveSteps(t *testing.T) {
	curve := StandardCurve()
	assert.InDelta(t, 0, curve.Percent(40), 1e-9)
	assert.InDelta(t, 35, curve.Percent(50), 1e-9)
	assert.InDelta(t, 60, curve.Percent(65), 1e-9)
	assert.InDelta(t, 72, curve.Percent(80), 1e-9)
	assert.InDelta(t, 100, curve.Percent(90), 1e-9)

	// thresholds are hard: just below keeps the lower level
	assert.InDelta(t, 0, curve.Percent(47.5), 1e-9)
	assert.InDelta(t, 0, curve.Percent(47.99), 1e-9)
	assert.InDelta(t, 35, curve.Percent(48), 1e-9)
	assert.InDelta(t, 35, curve.Percent(57.9), 1e-9)
	assert.InDelta(t, 60, curve.Percent(58), 1e-9)
	assert.InDelta(t, 72, curve.Percent(84.5), 1e-9)
	assert.InDelta(t, 100, curve.Percent(85), 1e-9)
}

func TestNewCurveValidates(t *testing.T) {
	_, err := NewCurve(CustomCurveName, nil)
	assert.ErrorIs(t, err, ErrInvalidCurve)

	_, err = NewCurve(CustomCurveName, []Point{{50, 10}, {50, 20}})
	assert.ErrorIs(t, err, ErrInvalidCurve)

	_, err = NewCurve(CustomCurveName, []Point{{50, 120}})
	assert.ErrorIs(t, err, ErrInvalidCurve)

	curve, err := NewCurve(CustomCurveName, []Point{{40, 10}, {60, 90}})
	require.NoError(t, err)
	assert.InDelta(t, 50, curve.Percent(50), 1e-9)
}

func TestParsePoints(t *testing.T) {
	points, err := ParsePoints([]any{[]any{int64(40), 10.5}, []any{"60", 90}})
	require.NoError(t, err)
	assert.Equal(t, []Point{{40, 10.5}, {60, 90}}, points)

	_, err = ParsePoints([]any{[]any{40}})
	assert.ErrorIs(t, err, ErrInvalidCurve)
}

func TestTargetRPMRounds(t *testing.T) {
	assert.Equal(t, 2100, TargetRPM(35, 6000))
	assert.Equal(t, 1983, TargetRPM(33.05, 6000))
	assert.Equal(t, 0, TargetRPM(0, 6000))
}

func TestShouldApply(t *testing.T) {
	assert.True(t, ShouldApply(0, false, 100, DefaultHysteresis))
	assert.False(t, ShouldApply(3000, true, 3250, DefaultHysteresis))
	assert.True(t, ShouldApply(3000, true, 3350, DefaultHysteresis))
	assert.True(t, ShouldApply(3000, true, 2700, DefaultHysteresis))
}

func TestStepHonorsHysteresis(t *testing.T) {
	hw := newFakeFans()
	hw.count = 1
	c, store := newController(t, hw)
	require.NoError(t, c.SetMode(state.FanCustom))

	store.SetLastAppliedRPM(1, 3000)
	c.Sample(70)
	hw.ops = nil

	c.SetCurve(Curve{Name: CustomCurveName, Points: []Point{{0, 3250.0 / 60}}})
	c.Step()
	assert.Empty(t, hw.ops)
	last, _ := store.LastAppliedRPM(1)
	assert.Equal(t, 3000, last)

	c.SetCurve(Curve{Name: CustomCurveName, Points: []Point{{0, 3350.0 / 60}}})
	c.Step()
	assert.Equal(t, []string{"target"}, hw.ops)
	last, _ = store.LastAppliedRPM(1)
	assert.Equal(t, 3350, last)
}

func TestStepOnlyInCustomMode(t *testing.T) {
	hw := newFakeFans()
	c, _ := newController(t, hw)
	c.Sample(90)

	c.Step()
	assert.Empty(t, hw.ops)

	require.NoError(t, c.SetMode(state.FanMax))
	c.Step()
	assert.Equal(t, []string{"pwm=max"}, hw.ops)
}

func TestSetModeTransitions(t *testing.T) {
	hw := newFakeFans()
	c, store := newController(t, hw)
	c.Sample(90)

	require.NoError(t, c.SetMode(state.FanCustom))
	assert.Equal(t, state.FanCustom, store.Snapshot().FanMode)
	assert.Equal(t, hardware.PwmManual, hw.pwm)
	assert.Equal(t, []string{"pwm=manual", "target", "target"}, hw.ops, "entering custom applies the curve at once")

	_, known := store.LastAppliedRPM(1)
	assert.True(t, known)

	require.NoError(t, c.SetMode(state.FanAuto))
	assert.Equal(t, state.FanAuto, store.Snapshot().FanMode)
	assert.Equal(t, hardware.PwmAuto, hw.pwm)
	_, known = store.LastAppliedRPM(1)
	assert.False(t, known, "hysteresis memory is reset on mode change")

	assert.ErrorIs(t, c.SetMode(state.FanMode(9)), state.ErrInvalidFanMode)
}

func TestSetModeFailureKeepsState(t *testing.T) {
	hw := newFakeFans()
	hw.fail = errors.New("EACCES")
	c, store := newController(t, hw)

	assert.Error(t, c.SetMode(state.FanMax))
	assert.Equal(t, state.FanAuto, store.Snapshot().FanMode)

	hw.count = 0
	assert.ErrorIs(t, c.SetMode(state.FanMax), hardware.ErrUnavailable)
}

func TestAverageUsesOnlyCollectedSamples(t *testing.T) {
	c, _ := newController(t, newFakeFans())

	_, ok := c.Average()
	assert.False(t, ok)

	c.Sample(50)
	c.Sample(60)
	avg, ok := c.Average()
	require.True(t, ok)
	assert.InDelta(t, 55, avg, 1e-9)

	for _, v := range []float64{70, 70, 70, 70, 70} {
		c.Sample(v)
	}
	avg, _ = c.Average()
	assert.InDelta(t, 70, avg, 1e-9, "older samples roll out of the window")
}

func TestInfoReportsHardware(t *testing.T) {
	hw := newFakeFans()
	hw.pwm = hardware.PwmMax
	hw.targets[2] = 1500
	c, store := newController(t, hw)

	info := c.Info()
	assert.True(t, info.Available)
	assert.Equal(t, 2, info.FanCount)
	assert.Equal(t, "max", info.Mode)
	assert.Equal(t, FanInfo{Current: 2002, Max: 6000, Target: 1500}, info.Fans["2"])
	assert.Equal(t, state.FanMax, store.Snapshot().FanMode, "hardware mode is adopted")

	hw.count = 0
	info = c.Info()
	assert.False(t, info.Available)
	assert.Empty(t, info.Fans)
}

func TestTickSamplesAndApplies(t *testing.T) {
	hw := newFakeFans()
	hw.pwm = hardware.PwmManual
	c, store := newController(t, hw)

	c.tick()
	assert.Equal(t, state.FanCustom, store.Snapshot().FanMode)
	assert.InDelta(t, 60, c.LastAverage(), 1e-9)
	// standard curve: 60°C is in the 60% step
	assert.Equal(t, 3600, hw.targets[1])
	assert.Equal(t, 3600, hw.targets[2])
}

func TestManualTargetSuspendsCurve(t *testing.T) {
	hw := newFakeFans()
	hw.pwm = hardware.PwmManual
	c, store := newController(t, hw)
	require.NoError(t, c.SetMode(state.FanCustom))

	require.NoError(t, c.SetTarget(1, 1000))
	assert.True(t, c.Manual())

	// 60°C on the standard curve would ask for 3600
	c.tick()
	c.tick()
	assert.Equal(t, 1000, hw.targets[1])
	last, _ := store.LastAppliedRPM(1)
	assert.Equal(t, 1000, last)

	require.NoError(t, c.SetMode(state.FanCustom))
	assert.False(t, c.Manual())
	assert.Equal(t, 3600, hw.targets[1])
}

func TestFailedManualTargetKeepsCurve(t *testing.T) {
	hw := newFakeFans()
	c, _ := newController(t, hw)
	require.NoError(t, c.SetMode(state.FanCustom))

	hw.fail = errors.New("write failed")
	assert.Error(t, c.SetTarget(1, 1000))
	assert.False(t, c.Manual())
}

func TestHardwareModeChangeEndsManualOverride(t *testing.T) {
	hw := newFakeFans()
	c, store := newController(t, hw)
	require.NoError(t, c.SetMode(state.FanCustom))
	require.NoError(t, c.SetTarget(2, 1500))

	hw.pwm = hardware.PwmAuto
	c.tick()
	assert.Equal(t, state.FanAuto, store.Snapshot().FanMode)
	assert.False(t, c.Manual())
}
