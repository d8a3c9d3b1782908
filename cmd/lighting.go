package cmd

import (
	"strconv"
	"strings"

	"github.com/BitPonyLLC/hp-manager/pkg/service"
	"github.com/BitPonyLLC/hp-manager/pkg/state"

	"github.com/spf13/cobra"
)

func init() {
	modeCmd.Flags().Int("speed", 0, "animation speed from 1 to 100 (default: unchanged)")

	globalCmd.Flags().Bool("power", true, "turn the keyboard lighting on or off")
	globalCmd.Flags().Int("brightness", 0, "brightness from 0 to 100")
	globalCmd.Flags().String("direction", "", "wave direction: ltr or rtl")

	rootCmd.AddCommand(colorCmd, modeCmd, globalCmd)
}

var colorCmd = &cobra.Command{
	Use:   "color ZONE HEX",
	Short: "Sets a zone (0-3, or all) to a static color",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		zone, err := parseZone(args[0])
		if err != nil {
			return fail(12, err)
		}

		return runCall(cmd, "SetColor", int32(zone), strings.TrimPrefix(args[1], "#"))
	},
}

var modeCmd = &cobra.Command{
	Use:       "mode MODE",
	Short:     "Selects the lighting mode: static, breathing, wave or cycle",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"static", "breathing", "wave", "cycle"},
	RunE: func(cmd *cobra.Command, args []string) error {
		speed, _ := cmd.Flags().GetInt("speed")
		if !cmd.Flags().Changed("speed") {
			st, err := currentState(cmd)
			if err != nil {
				return err
			}
			speed = intField(st, "speed", state.Defaults().Speed)
		}

		return runCall(cmd, "SetMode", strings.ToLower(args[0]), int32(speed))
	},
}

var globalCmd = &cobra.Command{
	Use:   "global",
	Short: "Changes power, brightness or wave direction, keeping whatever is not given",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		flags := cmd.Flags()
		if !flags.Changed("power") && !flags.Changed("brightness") && !flags.Changed("direction") {
			return fail(12, "nothing to change: pass --power, --brightness or --direction")
		}

		st, err := currentState(cmd)
		if err != nil {
			return err
		}

		power, _ := st["power"].(bool)
		if flags.Changed("power") {
			power, _ = flags.GetBool("power")
		}

		brightness := intField(st, "brightness", state.Defaults().Brightness)
		if flags.Changed("brightness") {
			brightness, _ = flags.GetInt("brightness")
		}

		direction, _ := st["direction"].(string)
		if flags.Changed("direction") {
			direction, _ = flags.GetString("direction")
		}

		return runCall(cmd, "SetGlobal", power, int32(brightness), strings.ToLower(direction))
	},
}

func parseZone(arg string) (int, error) {
	if strings.EqualFold(arg, "all") {
		return service.AllZones, nil
	}

	zone, err := strconv.Atoi(arg)
	if err != nil || zone < 0 || zone >= state.ZoneCount {
		return 0, state.ErrInvalidZone
	}

	return zone, nil
}

func intField(st map[string]any, key string, fallback int) int {
	v, ok := st[key].(float64)
	if !ok {
		return fallback
	}
	return int(v)
}
