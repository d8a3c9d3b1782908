// Package sensors reads temperatures on a best-effort basis. Every reading
// is 0 when nothing usable is found.
package sensors

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BitPonyLLC/hp-manager/pkg/hardware"
	"github.com/BitPonyLLC/hp-manager/pkg/util"

	"github.com/rs/zerolog"
)

var DefaultCPUNames = []string{"coretemp", "k10temp", "acpitz"}

const (
	gpuHwmonName = "amdgpu"
	nvidiaSmi    = "nvidia-smi"
	queryTimeout = 5 * time.Second
)

var nvidiaSmiArgs = []string{"--query-gpu=temperature.gpu", "--format=csv,noheader,nounits"}

type Sensors struct {
	root     string
	cpuNames []string
	runner   util.Runner
	log      *zerolog.Logger
}

func New(hwmonRoot string, cpuNames []string, runner util.Runner, log *zerolog.Logger) *Sensors {
	slog := log.With().Str("component", "sensors").Logger()
	if len(cpuNames) == 0 {
		cpuNames = DefaultCPUNames
	}
	return &Sensors{root: hwmonRoot, cpuNames: cpuNames, runner: runner, log: &slog}
}

// CPUTemp reads temp1_input of the first known CPU sensor, falling back to
// the first temperature input of any hwmon device.
func (s *Sensors) CPUTemp() float64 {
	for _, name := range s.cpuNames {
		if path, ok := hardware.Discover(s.root, name); ok {
			if temp, ok := readMilliCelsius(filepath.Join(path, "temp1_input")); ok {
				return temp
			}
		}
	}

	inputs, _ := filepath.Glob(filepath.Join(s.root, "*", "temp*_input"))
	for _, input := range inputs {
		if temp, ok := readMilliCelsius(input); ok {
			return temp
		}
	}

	return 0
}

// GPUTemp asks nvidia-smi when it is installed, otherwise reads the amdgpu
// hwmon sensor.
func (s *Sensors) GPUTemp(ctx context.Context) float64 {
	if s.runner != nil && s.runner.LookPath(nvidiaSmi) {
		ctx, cancel := context.WithTimeout(ctx, queryTimeout)
		defer cancel()

		out, err := s.runner.Run(ctx, nvidiaSmi, nvidiaSmiArgs...)
		if err == nil {
			// one line per GPU
			first, _, _ := strings.Cut(out, "\n")
			var temp float64
			temp, err = strconv.ParseFloat(strings.TrimSpace(first), 64)
			if err == nil {
				return temp
			}
		}
		s.log.Debug().Err(err).Msg("nvidia-smi gave no temperature")
	}

	if path, ok := hardware.Discover(s.root, gpuHwmonName); ok {
		if temp, ok := readMilliCelsius(filepath.Join(path, "temp1_input")); ok {
			return temp
		}
	}

	return 0
}

//--------------------------------------------------------------------------------
// private

func readMilliCelsius(path string) (float64, bool) {
	content, err := os.ReadFile(path)
	if err != nil {
		return 0, false
	}

	milli, err := strconv.Atoi(strings.TrimSpace(string(content)))
	if err != nil {
		return 0, false
	}

	return float64(milli) / 1000, true
}
