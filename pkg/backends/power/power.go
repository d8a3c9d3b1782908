// Package power forwards profile requests to power-profiles-daemon.
package power

import (
	"errors"
	"fmt"

	"github.com/godbus/dbus/v5"
	"github.com/rs/zerolog"
)

const (
	BusName    = "net.hadess.PowerProfiles"
	ObjectPath = dbus.ObjectPath("/net/hadess/PowerProfiles")

	propActive   = BusName + ".ActiveProfile"
	propProfiles = BusName + ".Profiles"

	// FallbackActive is reported when the active profile can't be read.
	FallbackActive = "balanced"
)

// FallbackProfiles is reported when the daemon answers but its profile list
// can't be read.
var FallbackProfiles = []string{"power-saver", "balanced", "performance"}

var ErrUnavailable = errors.New("power-profiles-daemon unavailable")

// Properties is the subset of dbus.BusObject used here.
type Properties interface {
	GetProperty(p string) (dbus.Variant, error)
	SetProperty(p string, v interface{}) error
}

type Profiles struct {
	obj Properties
	log *zerolog.Logger
}

// Open binds to power-profiles-daemon on conn. A nil conn or a daemon that
// does not answer yields an unavailable backend.
func Open(conn *dbus.Conn, log *zerolog.Logger) *Profiles {
	if conn == nil {
		return New(nil, log)
	}

	obj := conn.Object(BusName, ObjectPath)
	_, err := obj.GetProperty(propActive)
	if err != nil {
		log.Info().Err(err).Msg("power-profiles-daemon not reachable")
		return New(nil, log)
	}

	return New(obj, log)
}

// New wraps obj directly; nil means unavailable.
func New(obj Properties, log *zerolog.Logger) *Profiles {
	plog := log.With().Str("component", "power").Logger()
	return &Profiles{obj: obj, log: &plog}
}

func (p *Profiles) Available() bool {
	return p.obj != nil
}

// Profiles lists the profile names the daemon offers.
func (p *Profiles) Profiles() []string {
	if !p.Available() {
		return []string{}
	}

	v, err := p.obj.GetProperty(propProfiles)
	if err != nil {
		p.log.Warn().Err(err).Msg("unable to read profiles")
		return append([]string(nil), FallbackProfiles...)
	}

	entries, ok := v.Value().([]map[string]dbus.Variant)
	if !ok {
		p.log.Warn().Str("signature", v.Signature().String()).Msg("unexpected profiles type")
		return append([]string(nil), FallbackProfiles...)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if name, ok := entry["Profile"].Value().(string); ok {
			names = append(names, name)
		}
	}

	return names
}

func (p *Profiles) Active() string {
	if !p.Available() {
		return FallbackActive
	}

	v, err := p.obj.GetProperty(propActive)
	if err != nil {
		return FallbackActive
	}

	name, ok := v.Value().(string)
	if !ok {
		return FallbackActive
	}

	return name
}

func (p *Profiles) SetActive(profile string) error {
	if !p.Available() {
		return ErrUnavailable
	}

	err := p.obj.SetProperty(propActive, dbus.MakeVariant(profile))
	if err != nil {
		return fmt.Errorf("unable to set power profile %q: %w", profile, err)
	}

	p.log.Info().Str("profile", profile).Msg("power profile set")
	return nil
}
