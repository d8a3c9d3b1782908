package fan

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/BitPonyLLC/hp-manager/internal/metrics"
	"github.com/BitPonyLLC/hp-manager/pkg/hardware"
	"github.com/BitPonyLLC/hp-manager/pkg/state"
	"github.com/BitPonyLLC/hp-manager/pkg/util"

	"github.com/asecurityteam/rolling"
	"github.com/rs/zerolog"
	"go.uber.org/atomic"
)

const (
	DefaultInterval = 1 * time.Second
	DefaultSamples  = 5
)

// Hardware is the part of the fan device the controller drives.
type Hardware interface {
	Available() bool
	Count() int
	ReadRPM(fan int) int
	ReadMax(fan int) int
	ReadTarget(fan int) int
	ReadPwmMode() (hardware.PwmMode, error)
	WriteTarget(fan, rpm int) (int, error)
	WritePwmMode(mode hardware.PwmMode) error
}

// Thermometer reports the CPU temperature in °C, or 0 when unknown.
type Thermometer interface {
	CPUTemp() float64
}

// Info is the GetFanInfo document.
type Info struct {
	Available bool               `json:"available"`
	FanCount  int                `json:"fan_count"`
	Mode      string             `json:"mode"`
	Fans      map[string]FanInfo `json:"fans"`
}

type FanInfo struct {
	Current int `json:"current"`
	Max     int `json:"max"`
	Target  int `json:"target"`
}

// Controller translates fan mode requests into pwm register writes and, in
// custom mode, the averaged temperature into per-fan targets.
type Controller struct {
	hw    Hardware
	store *state.Store
	temp  Thermometer
	log   *zerolog.Logger

	interval   atomic.Duration
	hysteresis atomic.Int64
	average    atomic.Float64
	// set by a manual target; the curve stays off until the next SetMode
	manual atomic.Bool

	// serializes hardware writes so a curve step can't land between the
	// target reset and the mode flip of an auto transition
	writeMutex sync.Mutex

	mutex   sync.Mutex
	curve   Curve
	window  *rolling.PointPolicy
	size    int
	samples int
}

func NewController(hw Hardware, store *state.Store, temp Thermometer, log *zerolog.Logger) *Controller {
	flog := log.With().Str("component", "fan").Logger()
	c := &Controller{
		hw:    hw,
		store: store,
		temp:  temp,
		log:   &flog,
		curve: StandardCurve(),
	}

	c.interval.Store(DefaultInterval)
	c.hysteresis.Store(DefaultHysteresis)
	c.SetSamples(DefaultSamples)
	return c
}

func (c *Controller) SetInterval(interval time.Duration) {
	if interval <= 0 {
		interval = DefaultInterval
	}
	c.interval.Store(interval)
}

func (c *Controller) SetHysteresis(rpm int) {
	if rpm < 0 {
		rpm = 0
	}
	c.hysteresis.Store(int64(rpm))
}

// SetSamples resizes the averaging window, discarding collected samples.
func (c *Controller) SetSamples(n int) {
	if n < 1 {
		n = 1
	}

	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.window = rolling.NewPointPolicy(rolling.NewWindow(n))
	c.size = n
	c.samples = 0
}

func (c *Controller) SetCurve(curve Curve) {
	c.mutex.Lock()
	c.curve = curve
	c.mutex.Unlock()

	c.log.Info().Str("curve", curve.Name).Int("points", len(curve.Points)).Msg("curve set")
}

func (c *Controller) Curve() Curve {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.curve
}

// Sample records one temperature reading.
func (c *Controller) Sample(temp float64) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.window.Append(temp)
	if c.samples < c.size {
		c.samples++
	}
}

// Average returns the mean of the collected samples, or false before the
// first one.
func (c *Controller) Average() (float64, bool) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if c.samples == 0 {
		return 0, false
	}

	// unfilled buckets hold zero so the sum only counts real samples
	return c.window.Reduce(rolling.Sum) / float64(c.samples), true
}

// SetMode switches who owns the fans. Hysteresis memory is dropped so the
// first custom target is always written.
func (c *Controller) SetMode(mode state.FanMode) error {
	pwm, err := pwmFor(mode)
	if err != nil {
		return err
	}

	if !c.hw.Available() {
		return hardware.ErrUnavailable
	}

	c.writeMutex.Lock()
	err = c.hw.WritePwmMode(pwm)
	c.writeMutex.Unlock()
	if err != nil {
		return err
	}

	c.manual.Store(false)
	c.store.ResetAppliedRPM()
	c.store.SetFanMode(mode)
	c.log.Info().Stringer("mode", mode).Msg("fan mode changed")

	if mode == state.FanCustom {
		c.Step()
	}

	return nil
}

// SetTarget writes a target for one fan, clamped by the device. It is a
// manual override: the curve no longer touches the fans until SetMode is
// called again.
func (c *Controller) SetTarget(fan, rpm int) error {
	c.writeMutex.Lock()
	defer c.writeMutex.Unlock()

	err := c.setTarget(fan, rpm)
	if err != nil {
		return err
	}

	if !c.manual.Swap(true) {
		c.log.Info().Int("fan", fan).Int("rpm", rpm).Msg("manual target: curve suspended")
	}
	return nil
}

// Manual reports whether a manual target has suspended the curve.
func (c *Controller) Manual() bool {
	return c.manual.Load()
}

func (c *Controller) Info() Info {
	info := Info{
		Available: c.hw.Available(),
		Mode:      c.refreshMode().String(),
		Fans:      map[string]FanInfo{},
	}

	if !info.Available {
		return info
	}

	info.FanCount = c.hw.Count()
	for i := 1; i <= info.FanCount; i++ {
		info.Fans[strconv.Itoa(i)] = FanInfo{
			Current: c.hw.ReadRPM(i),
			Max:     c.hw.ReadMax(i),
			Target:  c.hw.ReadTarget(i),
		}
	}

	return info
}

// Step applies the curve to the averaged temperature when in custom mode
// and no manual target is in effect.
func (c *Controller) Step() {
	if c.store.Snapshot().FanMode != state.FanCustom || c.manual.Load() || !c.hw.Available() {
		return
	}

	avg, ok := c.Average()
	if !ok {
		return
	}

	percent := c.Curve().Percent(avg)
	threshold := int(c.hysteresis.Load())

	c.writeMutex.Lock()
	defer c.writeMutex.Unlock()

	// the mode may have changed while waiting for the lock
	if c.store.Snapshot().FanMode != state.FanCustom || c.manual.Load() {
		return
	}

	for fan := 1; fan <= c.hw.Count(); fan++ {
		target := TargetRPM(percent, c.hw.ReadMax(fan))
		last, known := c.store.LastAppliedRPM(fan)
		if !ShouldApply(last, known, target, threshold) {
			continue
		}

		err := c.setTarget(fan, target)
		if err != nil {
			c.log.Warn().Err(err).Int("fan", fan).Int("rpm", target).Msg("unable to apply curve")
			continue
		}

		c.log.Debug().Int("fan", fan).Int("rpm", target).Float64("temp", avg).Float64("percent", percent).Msg("curve applied")
	}
}

// Run samples the temperature and tracks the hardware mode every interval
// until ctx is canceled.
func (c *Controller) Run(ctx context.Context) {
	defer util.LogRecover()

	c.log.Info().Msg("started")
	defer c.log.Info().Msg("stopped")

	for {
		c.tick()

		timer := time.NewTimer(c.interval.Load())
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// LastAverage is the temperature the most recent tick worked with.
func (c *Controller) LastAverage() float64 {
	return c.average.Load()
}

//--------------------------------------------------------------------------------
// private

func (c *Controller) tick() {
	defer func() {
		if r := recover(); r != nil {
			c.log.Error().Stack().Err(util.Recovered(r)).Msg("fan tick failed")
		}
	}()

	if !c.hw.Available() {
		return
	}

	c.refreshMode()

	if temp := c.temp.CPUTemp(); temp > 0 {
		c.Sample(temp)
	}

	if avg, ok := c.Average(); ok {
		c.average.Store(avg)
		metrics.Temperature.Set(avg)
	}

	c.Step()
}

// refreshMode adopts the mode the hardware reports: firmware may take the
// fans back on its own, e.g. across suspend.
func (c *Controller) refreshMode() state.FanMode {
	pwm, err := c.hw.ReadPwmMode()
	if err != nil {
		return c.store.Snapshot().FanMode
	}

	mode := modeFor(pwm)
	if mode != c.store.Snapshot().FanMode {
		c.log.Info().Stringer("mode", mode).Msg("fan mode reported by hardware")
		c.manual.Store(false)
		c.store.SetFanMode(mode)
	}
	return mode
}

func (c *Controller) setTarget(fan, rpm int) error {
	written, err := c.hw.WriteTarget(fan, rpm)
	if err != nil {
		return err
	}
	c.store.SetLastAppliedRPM(fan, written)
	return nil
}

func pwmFor(mode state.FanMode) (hardware.PwmMode, error) {
	switch mode {
	case state.FanAuto:
		return hardware.PwmAuto, nil
	case state.FanMax:
		return hardware.PwmMax, nil
	case state.FanCustom:
		return hardware.PwmManual, nil
	}
	return hardware.PwmAuto, fmt.Errorf("%w: %d", state.ErrInvalidFanMode, int(mode))
}

func modeFor(pwm hardware.PwmMode) state.FanMode {
	switch pwm {
	case hardware.PwmMax:
		return state.FanMax
	case hardware.PwmManual:
		return state.FanCustom
	}
	return state.FanAuto
}
