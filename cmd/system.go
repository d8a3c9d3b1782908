package cmd

import (
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

func init() {
	fanCmd.AddCommand(fanModeCmd, fanTargetCmd)
	powerCmd.AddCommand(powerSetCmd)
	gpuCmd.AddCommand(gpuSetCmd)
	rootCmd.AddCommand(fanCmd, powerCmd, gpuCmd, installCmd)
}

var fanCmd = &cobra.Command{
	Use:   "fan",
	Short: "Controls the fans",
}

var fanModeCmd = &cobra.Command{
	Use:       "mode MODE",
	Short:     "Sets the fan mode: auto, max or custom",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"auto", "max", "custom"},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCall(cmd, "SetFanMode", strings.ToLower(args[0]))
	},
}

var fanTargetCmd = &cobra.Command{
	Use:   "target FAN RPM",
	Short: "Sets one fan's target speed (fans are numbered from 1)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		fan, err := strconv.Atoi(args[0])
		if err != nil {
			return fail(13, "invalid fan number %q", args[0])
		}

		rpm, err := strconv.Atoi(args[1])
		if err != nil {
			return fail(13, "invalid RPM %q", args[1])
		}

		return runCall(cmd, "SetFanTarget", int32(fan), int32(rpm))
	},
}

var powerCmd = &cobra.Command{
	Use:   "power",
	Short: "Controls the power profile",
}

var powerSetCmd = &cobra.Command{
	Use:   "set PROFILE",
	Short: "Switches the power profile (see: get power)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCall(cmd, "SetPowerProfile", args[0])
	},
}

var gpuCmd = &cobra.Command{
	Use:   "gpu",
	Short: "Controls the GPU mux",
}

var gpuSetCmd = &cobra.Command{
	Use:       "set MODE",
	Short:     "Switches the GPU mux: hybrid, discrete or integrated (needs a reboot)",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"hybrid", "discrete", "integrated"},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCall(cmd, "SetGpuMode", strings.ToLower(args[0]))
	},
}

var installCmd = &cobra.Command{
	Use:   "install PACKAGE",
	Short: "Installs one of the supported companion applications",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCall(cmd, "InstallPackage", args[0])
	},
}
