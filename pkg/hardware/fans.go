package hardware

import (
	"fmt"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/BitPonyLLC/hp-manager/internal/metrics"

	"github.com/rs/zerolog"
)

// PwmMode is the value of the global pwm1_enable register.
type PwmMode int

const (
	PwmMax    PwmMode = 0
	PwmManual PwmMode = 1
	PwmAuto   PwmMode = 2
)

func (m PwmMode) String() string {
	switch m {
	case PwmMax:
		return "max"
	case PwmManual:
		return "manual"
	case PwmAuto:
		return "auto"
	}
	return strconv.Itoa(int(m))
}

const (
	// DefaultFanDriver is the hwmon name of the hp-wmi driver.
	DefaultFanDriver = "hp"

	// DefaultMaxRPM stands in for a fan whose fanN_max can't be read.
	DefaultMaxRPM = 6000

	maxFans     = 4
	pwmEnable   = "pwm1_enable"
	unknownRPM  = -1
	fanInputFmt = "fan%d_input"
	fanMaxFmt   = "fan%d_max"
	fanTgtFmt   = "fan%d_target"
)

// Fans reads and drives the fans of a hwmon device:
//
//	fanN_input   current RPM (read-only)
//	fanN_max     maximum RPM (read-only)
//	fanN_target  target RPM (used in manual mode)
//	pwm1_enable  one mode register shared by all fans
type Fans struct {
	path  string
	log   *zerolog.Logger
	write writeFunc

	mutex sync.Mutex
	count int
	max   map[int]int
}

// OpenFans locates the hwmon device named driver under root.
func OpenFans(root, driver string, log *zerolog.Logger) *Fans {
	path, _ := Discover(root, driver)
	return NewFans(path, log)
}

// NewFans uses the hwmon directory at path; an empty path yields an
// unavailable accessor.
func NewFans(path string, log *zerolog.Logger) *Fans {
	flog := log.With().Str("component", "fans").Logger()
	f := &Fans{path: path, log: &flog, write: writeSysfs, max: map[int]int{}}

	if path == "" {
		return f
	}

	for i := 1; i <= maxFans; i++ {
		if exists(f.file(fanInputFmt, i)) {
			f.count = i
		}
	}

	for i := 1; i <= f.count; i++ {
		maxRPM, err := readInt(f.file(fanMaxFmt, i))
		if err != nil || maxRPM <= 0 {
			f.log.Warn().Err(err).Int("fan", i).Int("default", DefaultMaxRPM).Msg("unable to read max speed")
			maxRPM = DefaultMaxRPM
		}
		f.max[i] = maxRPM
	}

	return f
}

func (f *Fans) Available() bool {
	return f.path != "" && f.count > 0
}

func (f *Fans) Path() string {
	return f.path
}

func (f *Fans) Count() int {
	return f.count
}

// ReadRPM returns the current speed, or 0 when it can't be read.
func (f *Fans) ReadRPM(fan int) int {
	if !f.valid(fan) {
		return 0
	}

	rpm, err := readInt(f.file(fanInputFmt, fan))
	if err != nil {
		f.log.Trace().Err(err).Int("fan", fan).Msg("unable to read speed")
		return 0
	}

	return rpm
}

// ReadMax returns the maximum speed read when the device was opened.
func (f *Fans) ReadMax(fan int) int {
	if maxRPM, ok := f.max[fan]; ok {
		return maxRPM
	}
	return DefaultMaxRPM
}

// ReadTarget returns the configured target, -1 without a device, or 0 when
// it can't be read.
func (f *Fans) ReadTarget(fan int) int {
	if !f.valid(fan) {
		return unknownRPM
	}

	rpm, err := readInt(f.file(fanTgtFmt, fan))
	if err != nil {
		return 0
	}

	return rpm
}

func (f *Fans) ReadPwmMode() (PwmMode, error) {
	if !f.Available() {
		return PwmAuto, ErrUnavailable
	}

	val, err := readInt(filepath.Join(f.path, pwmEnable))
	if err != nil {
		return PwmAuto, fmt.Errorf("unable to read %s: %w", pwmEnable, err)
	}

	return PwmMode(val), nil
}

// WriteTarget clamps rpm to [0, max] for the fan and writes it. The value
// actually written is returned.
func (f *Fans) WriteTarget(fan, rpm int) (int, error) {
	if !f.Available() {
		return 0, ErrUnavailable
	}

	if !f.valid(fan) {
		return 0, fmt.Errorf("%w: %d", ErrInvalidFan, fan)
	}

	rpm = clampRPM(rpm, f.ReadMax(fan))

	f.mutex.Lock()
	defer f.mutex.Unlock()

	err := f.writeTarget(fan, rpm)
	if err != nil {
		return 0, err
	}

	return rpm, nil
}

// WritePwmMode writes the global mode register. Entering auto first zeroes
// every fan target: some embedded controllers otherwise stay pinned at the
// last manual target after taking control back.
func (f *Fans) WritePwmMode(mode PwmMode) error {
	if !f.Available() {
		return ErrUnavailable
	}

	if mode != PwmMax && mode != PwmManual && mode != PwmAuto {
		return fmt.Errorf("%w: pwm mode %d", ErrInvalidValue, int(mode))
	}

	f.mutex.Lock()
	defer f.mutex.Unlock()

	if mode == PwmAuto {
		for i := 1; i <= f.count; i++ {
			err := f.writeTarget(i, 0)
			if err != nil {
				f.log.Warn().Err(err).Int("fan", i).Msg("unable to reset target before auto")
			}
		}
	}

	err := f.write(filepath.Join(f.path, pwmEnable), strconv.Itoa(int(mode)))
	metrics.FanWrites.WithLabelValues("mode", metrics.ResultOf(err)).Inc()
	if err != nil {
		return err
	}

	f.log.Info().Stringer("mode", mode).Msg("fan mode set")
	return nil
}

//--------------------------------------------------------------------------------
// private

func (f *Fans) valid(fan int) bool {
	return f.path != "" && fan >= 1 && fan <= f.count
}

func (f *Fans) file(format string, fan int) string {
	return filepath.Join(f.path, fmt.Sprintf(format, fan))
}

func (f *Fans) writeTarget(fan, rpm int) error {
	err := f.write(f.file(fanTgtFmt, fan), strconv.Itoa(rpm))
	metrics.FanWrites.WithLabelValues("target", metrics.ResultOf(err)).Inc()
	return err
}

func clampRPM(rpm, maxRPM int) int {
	if rpm < 0 {
		return 0
	}
	if rpm > maxRPM {
		return maxRPM
	}
	return rpm
}
