package cmd

import (
	"fmt"

	"github.com/BitPonyLLC/hp-manager/buildinfo"
	"github.com/BitPonyLLC/hp-manager/pkg/backends/gpu"
	"github.com/BitPonyLLC/hp-manager/pkg/backends/installer"
	"github.com/BitPonyLLC/hp-manager/pkg/fan"
	"github.com/BitPonyLLC/hp-manager/pkg/hardware"
	"github.com/BitPonyLLC/hp-manager/pkg/lighting"
	"github.com/BitPonyLLC/hp-manager/pkg/sensors"

	"github.com/spf13/viper"
)

func setDefaults() {
	viper.SetDefault("nice", 0)
	viper.SetDefault("state-path", "/etc/"+buildinfo.App.Name+"/state.json")

	viper.SetDefault("rgb.root", "/sys/devices/platform")
	viper.SetDefault("rgb.names", hardware.DefaultRGBNames)

	viper.SetDefault("hwmon.root", "/sys/class/hwmon")
	viper.SetDefault("sensors.cpu", sensors.DefaultCPUNames)

	viper.SetDefault("fan.driver", hardware.DefaultFanDriver)
	viper.SetDefault("fan.interval", fan.DefaultInterval)
	viper.SetDefault("fan.samples", fan.DefaultSamples)
	viper.SetDefault("fan.hysteresis", fan.DefaultHysteresis)
	viper.SetDefault("fan.curve", fan.StandardCurveName)

	viper.SetDefault("engine.frame", lighting.DefaultFrameInterval)
	viper.SetDefault("engine.idle", lighting.DefaultIdleInterval)
	viper.SetDefault("engine.recover", lighting.DefaultRecoverInterval)

	viper.SetDefault("gpu.timeout", gpu.DefaultTimeout)
	viper.SetDefault("installer.command", installer.DefaultCommand)
	viper.SetDefault("installer.timeout", installer.DefaultTimeout)

	viper.SetDefault("metrics.listen", "")
}

// configuredCurve resolves fan.curve and fan.points. A custom curve without
// points falls back to the default custom points.
func configuredCurve() (fan.Curve, error) {
	name := viper.GetString("fan.curve")
	switch name {
	case fan.StandardCurveName:
		return fan.StandardCurve(), nil
	case fan.CustomCurveName:
	default:
		return fan.Curve{}, fmt.Errorf("%w: unknown curve %q", fan.ErrInvalidCurve, name)
	}

	raw := viper.Get("fan.points")
	if raw == nil {
		return fan.DefaultCustomCurve(), nil
	}

	entries, ok := raw.([]any)
	if !ok {
		return fan.Curve{}, fmt.Errorf("%w: fan.points must be a list of [temp, percent] pairs", fan.ErrInvalidCurve)
	}

	points, err := fan.ParsePoints(entries)
	if err != nil {
		return fan.Curve{}, err
	}

	return fan.NewCurve(fan.CustomCurveName, points)
}
