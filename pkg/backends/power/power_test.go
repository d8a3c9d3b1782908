package power

import (
	"errors"
	"testing"

	"github.com/godbus/dbus/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var nopLog = zerolog.Nop()

type fakeDaemon struct {
	active   string
	profiles []map[string]dbus.Variant
	getErr   error
	setErr   error
}

func (f *fakeDaemon) GetProperty(p string) (dbus.Variant, error) {
	if f.getErr != nil {
		return dbus.Variant{}, f.getErr
	}
	switch p {
	case propActive:
		return dbus.MakeVariant(f.active), nil
	case propProfiles:
		return dbus.MakeVariant(f.profiles), nil
	}
	return dbus.Variant{}, errors.New("no such property")
}

func (f *fakeDaemon) SetProperty(p string, v interface{}) error {
	if f.setErr != nil {
		return f.setErr
	}
	if p != propActive {
		return errors.New("read-only")
	}
	f.active = v.(dbus.Variant).Value().(string)
	return nil
}

func profile(name string) map[string]dbus.Variant {
	return map[string]dbus.Variant{
		"Profile": dbus.MakeVariant(name),
		"Driver":  dbus.MakeVariant("platform_profile"),
	}
}

func TestProfiles(t *testing.T) {
	daemon := &fakeDaemon{
		active:   "balanced",
		profiles: []map[string]dbus.Variant{profile("power-saver"), profile("balanced"), profile("performance")},
	}
	p := New(daemon, &nopLog)

	require.True(t, p.Available())
	assert.Equal(t, []string{"power-saver", "balanced", "performance"}, p.Profiles())
	assert.Equal(t, "balanced", p.Active())

	require.NoError(t, p.SetActive("performance"))
	assert.Equal(t, "performance", p.Active())
}

func TestFallbacks(t *testing.T) {
	daemon := &fakeDaemon{getErr: errors.New("timeout"), setErr: errors.New("denied")}
	p := New(daemon, &nopLog)

	assert.Equal(t, FallbackProfiles, p.Profiles())
	assert.Equal(t, FallbackActive, p.Active())
	assert.Error(t, p.SetActive("performance"))
}

func TestUnavailable(t *testing.T) {
	p := New(nil, &nopLog)

	assert.False(t, p.Available())
	assert.Empty(t, p.Profiles())
	assert.Equal(t, FallbackActive, p.Active())
	assert.ErrorIs(t, p.SetActive("balanced"), ErrUnavailable)

	assert.False(t, Open(nil, &nopLog).Available())
}
