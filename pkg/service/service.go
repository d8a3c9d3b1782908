// Package service is the validated command surface of the daemon. Every
// method takes primitive arguments and answers with a status string or a
// JSON document, so any bus binding can expose it unchanged.
//
// Mutating methods validate all of their input before touching the store or
// any hardware: a rejected call leaves nothing half-applied.
package service

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/BitPonyLLC/hp-manager/internal/metrics"
	"github.com/BitPonyLLC/hp-manager/pkg/backends/gpu"
	"github.com/BitPonyLLC/hp-manager/pkg/fan"
	"github.com/BitPonyLLC/hp-manager/pkg/state"
	"github.com/BitPonyLLC/hp-manager/pkg/util"

	"github.com/rs/zerolog"
)

// Status results.
const (
	OK   = "OK"
	FAIL = "FAIL"
)

// AllZones selects every zone in SetColor.
const AllZones = state.ZoneCount

type Fans interface {
	SetMode(mode state.FanMode) error
	SetTarget(fan, rpm int) error
	Info() fan.Info
	Curve() fan.Curve
}

type Power interface {
	Available() bool
	Profiles() []string
	Active() string
	SetActive(profile string) error
}

type GPU interface {
	Available() bool
	Backend() string
	Mode(ctx context.Context) string
	SetMode(ctx context.Context, mode gpu.Mode) string
}

type Installer interface {
	Install(ctx context.Context, name string) string
}

type Thermometers interface {
	CPUTemp() float64
	GPUTemp(ctx context.Context) float64
}

// Components are the collaborators a Service forwards to.
type Components struct {
	Store     *state.Store
	Fans      Fans
	Power     Power
	GPU       GPU
	Installer Installer
	Sensors   Thermometers
}

type Service struct {
	Components
	log *zerolog.Logger
}

func New(c Components, log *zerolog.Logger) *Service {
	slog := log.With().Str("component", "service").Logger()
	return &Service{Components: c, log: &slog}
}

// SetColor sets one zone (0-3) or, with AllZones, every zone. It also
// switches to static mode and powers the keyboard on.
func (s *Service) SetColor(zone int, hex string) (result string) {
	defer s.guard("SetColor", &result)

	color, err := state.ParseColor(hex)
	if err != nil {
		return s.reject("SetColor", err)
	}

	if zone < 0 || zone > AllZones {
		return s.reject("SetColor", state.ErrInvalidZone)
	}

	return s.update("SetColor", func(cfg *state.Config) error {
		cfg.Mode = state.Static
		cfg.Power = true
		if zone == AllZones {
			for i := range cfg.Colors {
				cfg.Colors[i] = color
			}
		} else {
			cfg.Colors[zone] = color
		}
		return nil
	})
}

// SetMode selects a lighting mode and speed (clamped) and powers the
// keyboard on.
func (s *Service) SetMode(mode string, speed int) (result string) {
	defer s.guard("SetMode", &result)

	m, err := state.ParseLightingMode(mode)
	if err != nil {
		return s.reject("SetMode", err)
	}

	return s.update("SetMode", func(cfg *state.Config) error {
		cfg.Mode = m
		cfg.Speed = state.ClampSpeed(speed)
		cfg.Power = true
		return nil
	})
}

func (s *Service) SetGlobal(power bool, brightness int, direction string) (result string) {
	defer s.guard("SetGlobal", &result)

	dir, err := state.ParseDirection(direction)
	if err != nil {
		return s.reject("SetGlobal", err)
	}

	return s.update("SetGlobal", func(cfg *state.Config) error {
		cfg.Power = power
		cfg.Brightness = state.ClampBrightness(brightness)
		cfg.Direction = dir
		return nil
	})
}

func (s *Service) GetState() (result string) {
	defer s.guard("GetState", &result)

	content, err := state.MarshalState(s.Store.Snapshot())
	if err != nil {
		s.log.Error().Err(err).Msg("unable to encode state")
		return FAIL
	}

	return string(content)
}

func (s *Service) SetFanMode(mode string) (result string) {
	defer s.guard("SetFanMode", &result)

	m, err := state.ParseFanMode(mode)
	if err != nil {
		return s.reject("SetFanMode", err)
	}

	return s.status("SetFanMode", s.Fans.SetMode(m))
}

// SetFanTarget writes a target directly; the device clamps it to the fan's
// maximum. The fan curve stays off until the next SetFanMode.
func (s *Service) SetFanTarget(fanID, rpm int) (result string) {
	defer s.guard("SetFanTarget", &result)
	return s.status("SetFanTarget", s.Fans.SetTarget(fanID, rpm))
}

func (s *Service) GetFanInfo() (result string) {
	defer s.guard("GetFanInfo", &result)
	return s.encode(s.Fans.Info())
}

func (s *Service) GetFanCurve() (result string) {
	defer s.guard("GetFanCurve", &result)
	return s.encode(s.Fans.Curve())
}

// SetPowerProfile only accepts a profile the backend currently offers.
func (s *Service) SetPowerProfile(profile string) (result string) {
	defer s.guard("SetPowerProfile", &result)

	if !contains(s.Power.Profiles(), profile) {
		return s.reject("SetPowerProfile", errUnknownProfile(profile))
	}

	return s.status("SetPowerProfile", s.Power.SetActive(profile))
}

type powerInfo struct {
	Available bool     `json:"available"`
	Active    string   `json:"active"`
	Profiles  []string `json:"profiles"`
}

func (s *Service) GetPowerProfile() (result string) {
	defer s.guard("GetPowerProfile", &result)
	return s.encode(powerInfo{
		Available: s.Power.Available(),
		Active:    s.Power.Active(),
		Profiles:  s.Power.Profiles(),
	})
}

// SetGpuMode answers with the backend's own result text.
func (s *Service) SetGpuMode(ctx context.Context, mode string) (result string) {
	defer s.guard("SetGpuMode", &result)

	m, ok := gpu.ParseMode(mode)
	if !ok {
		return s.reject("SetGpuMode", errUnknownGPUMode(mode))
	}

	s.log.Info().Str("mode", mode).Msg("SetGpuMode")
	return s.GPU.SetMode(ctx, m)
}

type gpuInfo struct {
	Available bool   `json:"available"`
	Backend   string `json:"backend"`
	Mode      string `json:"mode"`
}

func (s *Service) GetGpuInfo(ctx context.Context) (result string) {
	defer s.guard("GetGpuInfo", &result)
	return s.encode(gpuInfo{
		Available: s.GPU.Available(),
		Backend:   s.GPU.Backend(),
		Mode:      s.GPU.Mode(ctx),
	})
}

type systemInfo struct {
	Hostname string  `json:"hostname"`
	Kernel   string  `json:"kernel"`
	CPUTemp  float64 `json:"cpu_temp"`
	GPUTemp  float64 `json:"gpu_temp"`
}

func (s *Service) GetSystemInfo(ctx context.Context) (result string) {
	defer s.guard("GetSystemInfo", &result)
	return s.encode(systemInfo{
		Hostname: hostname(),
		Kernel:   kernelRelease(),
		CPUTemp:  s.Sensors.CPUTemp(),
		GPUTemp:  s.Sensors.GPUTemp(ctx),
	})
}

// InstallPackage only installs names from the installer's allow-list.
func (s *Service) InstallPackage(ctx context.Context, name string) (result string) {
	defer s.guard("InstallPackage", &result)
	return s.Installer.Install(ctx, name)
}

// Failed reports whether result is a refusal rather than OK or data.
func Failed(result string) bool {
	return result == FAIL || strings.HasPrefix(result, "Error") || strings.HasPrefix(result, "No ")
}

//--------------------------------------------------------------------------------
// private

// guard must be deferred directly by every exported method: it turns a panic
// into FAIL and counts the call.
func (s *Service) guard(method string, result *string) {
	if r := recover(); r != nil {
		s.log.Error().Stack().Err(util.Recovered(r)).Str("method", method).Msg("call panicked")
		*result = FAIL
	}

	label := metrics.OK
	if Failed(*result) {
		label = metrics.Fail
	}
	metrics.Calls.WithLabelValues(method, label).Inc()
}

func (s *Service) update(method string, fn func(*state.Config) error) string {
	err := s.Store.Update(fn)
	if err != nil {
		return s.reject(method, err)
	}

	s.log.Info().Str("method", method).Msg("state updated")
	return OK
}

func (s *Service) reject(method string, err error) string {
	s.log.Warn().Err(err).Str("method", method).Msg("rejected")
	return FAIL
}

func (s *Service) status(method string, err error) string {
	if err != nil {
		s.log.Error().Err(err).Str("method", method).Msg("failed")
		return FAIL
	}

	s.log.Info().Str("method", method).Msg("applied")
	return OK
}

func (s *Service) encode(v any) string {
	content, err := json.Marshal(v)
	if err != nil {
		s.log.Error().Err(err).Msg("unable to encode result")
		return FAIL
	}
	return string(content)
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
