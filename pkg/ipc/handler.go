package ipc

import (
	"context"

	"github.com/BitPonyLLC/hp-manager/pkg/service"

	"github.com/godbus/dbus/v5"
)

// handler adapts service methods to D-Bus signatures. Bad input is never a
// D-Bus error: it comes back as a FAIL or "Error: ..." string.
type handler struct {
	ctx context.Context
	svc *service.Service
}

func (h *handler) SetColor(zone int32, hex string) (string, *dbus.Error) {
	return h.svc.SetColor(int(zone), hex), nil
}

func (h *handler) SetMode(mode string, speed int32) (string, *dbus.Error) {
	return h.svc.SetMode(mode, int(speed)), nil
}

func (h *handler) SetGlobal(power bool, brightness int32, direction string) (string, *dbus.Error) {
	return h.svc.SetGlobal(power, int(brightness), direction), nil
}

func (h *handler) GetState() (string, *dbus.Error) {
	return h.svc.GetState(), nil
}

func (h *handler) SetFanMode(mode string) (string, *dbus.Error) {
	return h.svc.SetFanMode(mode), nil
}

func (h *handler) SetFanTarget(fan, rpm int32) (string, *dbus.Error) {
	return h.svc.SetFanTarget(int(fan), int(rpm)), nil
}

func (h *handler) GetFanInfo() (string, *dbus.Error) {
	return h.svc.GetFanInfo(), nil
}

func (h *handler) GetFanCurve() (string, *dbus.Error) {
	return h.svc.GetFanCurve(), nil
}

func (h *handler) SetPowerProfile(profile string) (string, *dbus.Error) {
	return h.svc.SetPowerProfile(profile), nil
}

func (h *handler) GetPowerProfile() (string, *dbus.Error) {
	return h.svc.GetPowerProfile(), nil
}

func (h *handler) SetGpuMode(mode string) (string, *dbus.Error) {
	return h.svc.SetGpuMode(h.ctx, mode), nil
}

func (h *handler) GetGpuInfo() (string, *dbus.Error) {
	return h.svc.GetGpuInfo(h.ctx), nil
}

func (h *handler) GetSystemInfo() (string, *dbus.Error) {
	return h.svc.GetSystemInfo(h.ctx), nil
}

func (h *handler) InstallPackage(name string) (string, *dbus.Error) {
	return h.svc.InstallPackage(h.ctx, name), nil
}
