package installer

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var nopLog = zerolog.Nop()

type call struct {
	name string
	args []string
}

type fakeRunner struct {
	installed bool
	err       error
	calls     []call
}

func (f *fakeRunner) LookPath(string) bool { return f.installed }

func (f *fakeRunner) Run(_ context.Context, name string, args ...string) (string, error) {
	f.calls = append(f.calls, call{name: name, args: args})
	return "", f.err
}

func newInstaller(t *testing.T, runner *fakeRunner) *Installer {
	t.Helper()
	i, err := New(runner, "", &nopLog)
	require.NoError(t, err)
	return i
}

func TestRejectsNamesOutsideAllowList(t *testing.T) {
	runner := &fakeRunner{installed: true}
	i := newInstaller(t, runner)

	for _, name := range []string{"rm -rf /", "steam; reboot", "com.valvesoftware.Steam", "", "--help"} {
		assert.Equal(t, ResultNotAllowed, i.Install(context.Background(), name), name)
	}
	assert.Empty(t, runner.calls, "installer must never run for rejected names")
}

func TestInstallsMappedID(t *testing.T) {
	runner := &fakeRunner{installed: true}
	i := newInstaller(t, runner)

	assert.Equal(t, ResultOK, i.Install(context.Background(), "  Steam "))
	require.Len(t, runner.calls, 1)
	assert.Equal(t, "flatpak", runner.calls[0].name)
	assert.Equal(t, []string{"install", "-y", "--noninteractive", "flathub", "com.valvesoftware.Steam"}, runner.calls[0].args)
}

func TestInstallFailures(t *testing.T) {
	runner := &fakeRunner{}
	i := newInstaller(t, runner)
	assert.Equal(t, ResultNoInstaller, i.Install(context.Background(), "lutris"))
	assert.Empty(t, runner.calls)

	runner.installed = true
	runner.err = errors.New("exit status 1")
	assert.Equal(t, "Error: flatpak_install_failed", i.Install(context.Background(), "lutris"))
}

func TestCustomCommand(t *testing.T) {
	runner := &fakeRunner{installed: true}
	i, err := New(runner, `flatpak --user install -y "flathub beta"`, &nopLog)
	require.NoError(t, err)

	assert.Equal(t, ResultOK, i.Install(context.Background(), "heroic"))
	assert.Equal(t, []string{"--user", "install", "-y", "flathub beta", "com.heroicgameslauncher.hgl"}, runner.calls[0].args)

	_, err = New(runner, `flatpak "unterminated`, &nopLog)
	assert.Error(t, err)
}

func TestNamesSorted(t *testing.T) {
	assert.Equal(t, []string{"heroic", "lutris", "mangohud", "protonup-qt", "steam"}, Names())
}
