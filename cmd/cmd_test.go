package cmd

import (
	"bytes"
	"errors"
	"sync"
	"testing"

	"github.com/BitPonyLLC/hp-manager/pkg/fan"
	"github.com/BitPonyLLC/hp-manager/pkg/ipc"
	"github.com/BitPonyLLC/hp-manager/pkg/service"
	"github.com/BitPonyLLC/hp-manager/pkg/termwrap"

	"github.com/godbus/dbus/v5"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDescribeFlattensState(t *testing.T) {
	rows, err := describe(`{"mode":"wave","colors":["FF0000","00FF00"],"power":true,"fan_mode":"auto"}`)
	require.NoError(t, err)

	assert.Equal(t, []termwrap.KeyValue{
		{Key: "Colors", Value: "FF0000, 00FF00"},
		{Key: "Fan Mode", Value: "auto"},
		{Key: "Mode", Value: "wave"},
		{Key: "Power", Value: "true"},
	}, rows)
}

func TestDescribeNestsObjects(t *testing.T) {
	rows, err := describe(`{"fans":{"1":{"current":2100,"max":5800}},"points":[{"temp":47,"percent":0.5}]}`)
	require.NoError(t, err)

	assert.Equal(t, []termwrap.KeyValue{
		{Key: "Fans 1 Current", Value: "2100"},
		{Key: "Fans 1 Max", Value: "5800"},
		{Key: "Points 1 Percent", Value: "0.5"},
		{Key: "Points 1 Temp", Value: "47"},
	}, rows)
}

func TestDescribeRejectsGarbage(t *testing.T) {
	_, err := describe("OK")
	assert.Error(t, err)
}

func TestParseZone(t *testing.T) {
	zone, err := parseZone("all")
	require.NoError(t, err)
	assert.Equal(t, service.AllZones, zone)

	zone, err = parseZone("3")
	require.NoError(t, err)
	assert.Equal(t, 3, zone)

	for _, bad := range []string{"4", "-1", "left"} {
		_, err = parseZone(bad)
		assert.Error(t, err, bad)
	}
}

func TestConfiguredCurve(t *testing.T) {
	defer viper.Reset()
	setDefaults()

	curve, err := configuredCurve()
	require.NoError(t, err)
	assert.Equal(t, fan.StandardCurve(), curve)

	viper.Set("fan.curve", fan.CustomCurveName)
	curve, err = configuredCurve()
	require.NoError(t, err)
	assert.Equal(t, fan.DefaultCustomCurve(), curve)

	viper.Set("fan.points", []any{[]any{40, 10}, []any{80, 90}})
	curve, err = configuredCurve()
	require.NoError(t, err)
	assert.Equal(t, []fan.Point{{Temp: 40, Percent: 10}, {Temp: 80, Percent: 90}}, curve.Points)

	viper.Set("fan.points", []any{[]any{80, 10}, []any{40, 90}})
	_, err = configuredCurve()
	assert.ErrorIs(t, err, fan.ErrInvalidCurve)

	viper.Set("fan.curve", "turbo")
	_, err = configuredCurve()
	assert.ErrorIs(t, err, fan.ErrInvalidCurve)
}

func TestDumpDefaults(t *testing.T) {
	defer viper.Reset()
	setDefaults()

	var out bytes.Buffer
	require.NoError(t, dump("state", &out))
	assert.Contains(t, out.String(), `"colors":["FF0000","FF0000","FF0000","FF0000"]`)

	out.Reset()
	require.NoError(t, dump("curve", &out))
	assert.Contains(t, out.String(), `"name": "standard"`)

	assert.Error(t, dump("pidpath", &out))
}

func TestConfigHooksAddedWhileRunning(t *testing.T) {
	defer func() { configHooks = nil }()

	var mutex sync.Mutex
	calls := 0
	hook := func() {
		mutex.Lock()
		calls++
		mutex.Unlock()
	}

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			addConfigHook(hook)
		}()
		go func() {
			defer wg.Done()
			runConfigHooks()
		}()
	}
	wg.Wait()

	mutex.Lock()
	calls = 0
	mutex.Unlock()

	runConfigHooks()
	assert.Equal(t, 10, calls)
}

func TestPowerBusSharesOrDials(t *testing.T) {
	shared := &dbus.Conn{}
	dialed := &dbus.Conn{}

	noDial := func(string) (*dbus.Conn, error) {
		t.Fatal("dialed although already on the system bus")
		return nil, nil
	}
	sys, owned := powerBus(ipc.SystemBus, shared, noDial)
	assert.Same(t, shared, sys)
	assert.False(t, owned, "the served connection is closed by serve itself")

	dial := func(bus string) (*dbus.Conn, error) {
		assert.Equal(t, ipc.SystemBus, bus)
		return dialed, nil
	}
	sys, owned = powerBus(ipc.SessionBus, shared, dial)
	assert.Same(t, dialed, sys)
	assert.True(t, owned)

	failDial := func(string) (*dbus.Conn, error) { return nil, errors.New("no bus") }
	sys, owned = powerBus(ipc.SessionBus, shared, failDial)
	assert.Nil(t, sys)
	assert.False(t, owned)
}
