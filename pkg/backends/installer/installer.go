// Package installer installs a fixed set of gaming tools through the
// sandboxed package manager. Clients name a package; they never supply a
// package id, a flag or a command line.
package installer

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/BitPonyLLC/hp-manager/pkg/util"

	"github.com/mattn/go-shellwords"
	"github.com/rs/zerolog"
)

const (
	DefaultCommand = "flatpak install -y --noninteractive flathub"
	DefaultTimeout = 10 * time.Minute

	ResultOK          = "OK"
	ResultNotAllowed  = "Error: package_not_allowed"
	ResultNoInstaller = "No supported package manager found"
)

// Allowed maps client-facing names to flatpak application ids.
var Allowed = map[string]string{
	"steam":       "com.valvesoftware.Steam",
	"lutris":      "net.lutris.Lutris",
	"protonup-qt": "net.davidotek.pupgui2",
	"heroic":      "com.heroicgameslauncher.hgl",
	"mangohud":    "org.freedesktop.Platform.VulkanLayer.MangoHud",
}

var ErrEmptyCommand = errors.New("empty installer command")

type Installer struct {
	// Timeout bounds a single installation.
	Timeout time.Duration

	runner  util.Runner
	command []string
	log     *zerolog.Logger
}

// New splits command (shell quoting rules, no shell features) into the argv
// prefix that the package id is appended to.
func New(runner util.Runner, command string, log *zerolog.Logger) (*Installer, error) {
	if command == "" {
		command = DefaultCommand
	}

	argv, err := shellwords.Parse(command)
	if err != nil {
		return nil, fmt.Errorf("unable to parse installer command %q: %w", command, err)
	}

	if len(argv) == 0 {
		return nil, ErrEmptyCommand
	}

	ilog := log.With().Str("component", "installer").Logger()
	return &Installer{Timeout: DefaultTimeout, runner: runner, command: argv, log: &ilog}, nil
}

// Names lists the installable package names.
func Names() []string {
	names := make([]string, 0, len(Allowed))
	for name := range Allowed {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Install returns "OK" or a client-facing failure string. Names outside
// Allowed are rejected before anything is executed.
func (i *Installer) Install(ctx context.Context, name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	id, ok := Allowed[name]
	if !ok {
		i.log.Warn().Str("name", name).Msg("rejected package outside allow-list")
		return ResultNotAllowed
	}

	tool := i.command[0]
	if !i.runner.LookPath(tool) {
		return ResultNoInstaller
	}

	ctx, cancel := context.WithTimeout(ctx, i.Timeout)
	defer cancel()

	args := append(append([]string{}, i.command[1:]...), id)
	i.log.Info().Str("name", name).Str("id", id).Msg("installing")

	_, err := i.runner.Run(ctx, tool, args...)
	if err != nil {
		i.log.Error().Err(err).Str("id", id).Msg("install failed")
		return fmt.Sprintf("Error: %s_install_failed", filepath.Base(tool))
	}

	i.log.Info().Str("id", id).Msg("installed")
	return ResultOK
}
