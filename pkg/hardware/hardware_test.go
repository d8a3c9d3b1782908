package hardware

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var nopLog = zerolog.Nop()

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

type recordedWrite struct {
	path  string
	value string
}

type writeRecorder struct {
	writes []recordedWrite
	fail   error
}

func (wr *writeRecorder) write(path, value string) error {
	if wr.fail != nil {
		return wr.fail
	}
	wr.writes = append(wr.writes, recordedWrite{path: path, value: value})
	return writeSysfs(path, value)
}

func fakeHwmon(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "hwmon0", "name"), "acpitz\n")
	writeFile(t, filepath.Join(root, "hwmon1", "name"), "coretemp\n")
	hp := filepath.Join(root, "hwmon2")
	writeFile(t, filepath.Join(hp, "name"), "HP\n")
	writeFile(t, filepath.Join(hp, "fan1_input"), "2400\n")
	writeFile(t, filepath.Join(hp, "fan1_max"), "5800\n")
	writeFile(t, filepath.Join(hp, "fan1_target"), "0\n")
	writeFile(t, filepath.Join(hp, "fan2_input"), "2600\n")
	writeFile(t, filepath.Join(hp, "fan2_max"), "garbage\n")
	writeFile(t, filepath.Join(hp, "fan2_target"), "0\n")
	writeFile(t, filepath.Join(hp, "pwm1_enable"), "1\n")
	return root
}

func fakePlatform(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "serial8250"), 0755))
	for i := 0; i < ZoneCount; i++ {
		writeFile(t, filepath.Join(root, "hp-omen-core", "zone"+string(rune('0'+i))), "000000\n")
	}
	return root
}

func TestDiscover(t *testing.T) {
	root := fakeHwmon(t)

	path, ok := Discover(root, "hp")
	require.True(t, ok)
	assert.Equal(t, filepath.Join(root, "hwmon2"), path)

	path, ok = Discover(root, "k10temp", "coretemp")
	require.True(t, ok)
	assert.Equal(t, filepath.Join(root, "hwmon1"), path)

	_, ok = Discover(root, "amdgpu")
	assert.False(t, ok)

	_, ok = Discover(filepath.Join(root, "missing"), "hp")
	assert.False(t, ok)
}

func TestDiscoverPlatformDeviceByEntryName(t *testing.T) {
	root := fakePlatform(t)

	path, ok := Discover(root, DefaultRGBNames...)
	require.True(t, ok)
	assert.Equal(t, filepath.Join(root, "hp-omen-core"), path)
}

func TestRGBSkipsUnchangedWrites(t *testing.T) {
	rgb := OpenRGB(fakePlatform(t), DefaultRGBNames, &nopLog)
	require.True(t, rgb.Available())

	rec := &writeRecorder{}
	rgb.write = rec.write

	require.NoError(t, rgb.WriteZoneColor(0, "00FF00"))
	require.NoError(t, rgb.WriteZoneColor(0, "00FF00"))
	assert.Len(t, rec.writes, 1)

	got, err := rgb.ReadZoneColor(0)
	require.NoError(t, err)
	assert.Equal(t, "00FF00", got)

	require.NoError(t, rgb.WriteZoneColor(0, "0000FF"))
	assert.Len(t, rec.writes, 2)

	rgb.Invalidate()
	require.NoError(t, rgb.WriteZoneColor(0, "0000FF"))
	assert.Len(t, rec.writes, 3)
}

func TestRGBFailedWriteIsRetried(t *testing.T) {
	rgb := OpenRGB(fakePlatform(t), DefaultRGBNames, &nopLog)
	rec := &writeRecorder{fail: errors.New("EIO")}
	rgb.write = rec.write

	assert.Error(t, rgb.WriteZoneColor(1, "123456"))

	rec.fail = nil
	require.NoError(t, rgb.WriteZoneColor(1, "123456"))
	assert.Len(t, rec.writes, 1)
}

func TestRGBValidation(t *testing.T) {
	rgb := OpenRGB(fakePlatform(t), DefaultRGBNames, &nopLog)

	assert.ErrorIs(t, rgb.WriteZoneColor(4, "FFFFFF"), ErrInvalidZone)
	assert.ErrorIs(t, rgb.WriteZoneColor(-1, "FFFFFF"), ErrInvalidZone)
	assert.ErrorIs(t, rgb.WriteZoneColor(0, "ffffff"), ErrInvalidValue)

	missing := OpenRGB(t.TempDir(), DefaultRGBNames, &nopLog)
	assert.False(t, missing.Available())
	assert.ErrorIs(t, missing.WriteZoneColor(0, "FFFFFF"), ErrUnavailable)
}

func TestFansRead(t *testing.T) {
	fans := OpenFans(fakeHwmon(t), DefaultFanDriver, &nopLog)
	require.True(t, fans.Available())

	assert.Equal(t, 2, fans.Count())
	assert.Equal(t, 2400, fans.ReadRPM(1))
	assert.Equal(t, 5800, fans.ReadMax(1))
	assert.Equal(t, DefaultMaxRPM, fans.ReadMax(2), "unparsable max falls back")
	assert.Equal(t, 0, fans.ReadRPM(3))
	assert.Equal(t, -1, fans.ReadTarget(3))

	mode, err := fans.ReadPwmMode()
	require.NoError(t, err)
	assert.Equal(t, PwmManual, mode)
}

func TestFansWriteTargetClamps(t *testing.T) {
	fans := OpenFans(fakeHwmon(t), DefaultFanDriver, &nopLog)

	rpm, err := fans.WriteTarget(1, 9000)
	require.NoError(t, err)
	assert.Equal(t, 5800, rpm)
	assert.Equal(t, 5800, fans.ReadTarget(1))

	rpm, err = fans.WriteTarget(1, -10)
	require.NoError(t, err)
	assert.Equal(t, 0, rpm)

	_, err = fans.WriteTarget(3, 1000)
	assert.ErrorIs(t, err, ErrInvalidFan)
}

func TestFansAutoZeroesTargetsFirst(t *testing.T) {
	root := fakeHwmon(t)
	fans := OpenFans(root, DefaultFanDriver, &nopLog)
	rec := &writeRecorder{}
	fans.write = rec.write

	hp := filepath.Join(root, "hwmon2")
	require.NoError(t, fans.WritePwmMode(PwmAuto))
	assert.Equal(t, []recordedWrite{
		{path: filepath.Join(hp, "fan1_target"), value: "0"},
		{path: filepath.Join(hp, "fan2_target"), value: "0"},
		{path: filepath.Join(hp, "pwm1_enable"), value: "2"},
	}, rec.writes)

	rec.writes = nil
	require.NoError(t, fans.WritePwmMode(PwmMax))
	assert.Equal(t, []recordedWrite{{path: filepath.Join(hp, "pwm1_enable"), value: "0"}}, rec.writes)

	assert.ErrorIs(t, fans.WritePwmMode(PwmMode(7)), ErrInvalidValue)
}

func TestFansUnavailable(t *testing.T) {
	fans := OpenFans(t.TempDir(), DefaultFanDriver, &nopLog)
	assert.False(t, fans.Available())
	assert.ErrorIs(t, fans.WritePwmMode(PwmAuto), ErrUnavailable)
	_, err := fans.WriteTarget(1, 100)
	assert.ErrorIs(t, err, ErrUnavailable)
	_, err = fans.ReadPwmMode()
	assert.ErrorIs(t, err, ErrUnavailable)
}
