// Package gpu forwards GPU mux switches to whichever switching tool is
// installed. A switch takes effect after a reboot.
package gpu

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/BitPonyLLC/hp-manager/pkg/util"

	"github.com/rs/zerolog"
)

// Mode is a GPU routing requested by a client.
type Mode string

const (
	Hybrid     Mode = "hybrid"
	Discrete   Mode = "discrete"
	Integrated Mode = "integrated"
)

var Modes = []Mode{Hybrid, Discrete, Integrated}

func ParseMode(s string) (Mode, bool) {
	for _, m := range Modes {
		if string(m) == s {
			return m, true
		}
	}
	return "", false
}

// Results returned to clients.
const (
	ResultOK        = "OK"
	ResultNoBackend = "No backend"
	UnknownMode     = "unknown"
	NoBackend       = "none"

	DefaultTimeout = 30 * time.Second
)

type tool struct {
	name      string
	queryArgs []string
	setArgs   func(Mode) []string
}

// tools in detection order
var tools = []tool{
	{
		name:      "envycontrol",
		queryArgs: []string{"--query"},
		setArgs:   func(m Mode) []string { return []string{"-s", string(m)} },
	},
	{
		name:      "supergfxctl",
		queryArgs: []string{"-g"},
		setArgs: func(m Mode) []string {
			return []string{"-m", map[Mode]string{Hybrid: "Hybrid", Discrete: "Dedicated", Integrated: "Integrated"}[m]}
		},
	},
	{
		name:      "prime-select",
		queryArgs: []string{"query"},
		setArgs: func(m Mode) []string {
			return []string{map[Mode]string{Hybrid: "on-demand", Discrete: "nvidia", Integrated: "intel"}[m]}
		},
	},
}

type Mux struct {
	// Timeout bounds every tool invocation.
	Timeout time.Duration

	runner util.Runner
	tool   *tool
	log    *zerolog.Logger
}

// Detect picks the first installed switching tool.
func Detect(runner util.Runner, log *zerolog.Logger) *Mux {
	glog := log.With().Str("component", "gpu").Logger()
	m := &Mux{Timeout: DefaultTimeout, runner: runner, log: &glog}

	for i := range tools {
		if runner.LookPath(tools[i].name) {
			m.tool = &tools[i]
			glog.Info().Str("backend", m.tool.name).Msg("gpu mux backend detected")
			break
		}
	}

	return m
}

func (m *Mux) Available() bool {
	return m.tool != nil
}

// Backend is the detected tool name, or "none".
func (m *Mux) Backend() string {
	if m.tool == nil {
		return NoBackend
	}
	return m.tool.name
}

// Mode is the tool's lowercased answer, or "unknown".
func (m *Mux) Mode(ctx context.Context) string {
	if m.tool == nil {
		return UnknownMode
	}

	ctx, cancel := context.WithTimeout(ctx, m.Timeout)
	defer cancel()

	out, err := m.runner.Run(ctx, m.tool.name, m.tool.queryArgs...)
	if err != nil {
		m.log.Warn().Err(err).Msg("unable to query gpu mode")
		return UnknownMode
	}

	return strings.ToLower(strings.TrimSpace(out))
}

// SetMode returns "OK", "No backend", or "Error: " followed by what went
// wrong.
func (m *Mux) SetMode(ctx context.Context, mode Mode) string {
	if m.tool == nil {
		return ResultNoBackend
	}

	ctx, cancel := context.WithTimeout(ctx, m.Timeout)
	defer cancel()

	_, err := m.runner.Run(ctx, m.tool.name, m.tool.setArgs(mode)...)
	if err != nil {
		m.log.Error().Err(err).Str("mode", string(mode)).Msg("gpu mode switch failed")
		return fmt.Sprintf("Error: %v", err)
	}

	m.log.Info().Str("mode", string(mode)).Msg("gpu mode switched; reboot required")
	return ResultOK
}
