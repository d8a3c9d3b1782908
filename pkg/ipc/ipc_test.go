package ipc

import (
	"context"
	"testing"

	"github.com/BitPonyLLC/hp-manager/pkg/service"
	"github.com/BitPonyLLC/hp-manager/pkg/state"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newHandler(t *testing.T) (*handler, *state.Store) {
	t.Helper()
	log := zerolog.Nop()
	store := state.NewStore("", &log)
	svc := service.New(service.Components{Store: store}, &log)
	return &handler{ctx: context.Background(), svc: svc}, store
}

func TestIntrospectionListsEveryMethod(t *testing.T) {
	h, _ := newHandler(t)
	n := node(h)

	require.Len(t, n.Interfaces, 2)
	iface := n.Interfaces[1]
	assert.Equal(t, Name(), iface.Name)

	names := map[string]bool{}
	for _, m := range iface.Methods {
		names[m.Name] = true
	}

	for _, want := range []string{
		"SetColor", "SetMode", "SetGlobal", "GetState",
		"SetFanMode", "SetFanTarget", "GetFanInfo", "GetFanCurve",
		"SetPowerProfile", "GetPowerProfile",
		"SetGpuMode", "GetGpuInfo", "GetSystemInfo", "InstallPackage",
	} {
		assert.True(t, names[want], want)
	}
	assert.Len(t, names, 14)
}

func TestHandlerConvertsArguments(t *testing.T) {
	h, store := newHandler(t)

	resp, dbusErr := h.SetColor(4, "00FF00")
	require.Nil(t, dbusErr)
	assert.Equal(t, service.OK, resp)
	assert.Equal(t, "00FF00", store.Snapshot().Colors[3].Hex())

	resp, dbusErr = h.SetMode("wave", 1000)
	require.Nil(t, dbusErr)
	assert.Equal(t, service.OK, resp)
	assert.Equal(t, state.MaxSpeed, store.Snapshot().Speed)

	resp, dbusErr = h.SetGlobal(true, 20, "sideways")
	require.Nil(t, dbusErr, "bad input is a result, not a bus error")
	assert.Equal(t, service.FAIL, resp)
}

func TestConnectRejectsUnknownBus(t *testing.T) {
	_, err := Connect("tcp")
	assert.Error(t, err)
}
