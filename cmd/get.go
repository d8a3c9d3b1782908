package cmd

import (
	"fmt"
	"strings"

	"github.com/BitPonyLLC/hp-manager/pkg/termwrap"

	"github.com/spf13/cobra"
)

// what get can report, mapped to the daemon method answering it
var getMethods = map[string]string{
	"state":  "GetState",
	"fan":    "GetFanInfo",
	"curve":  "GetFanCurve",
	"power":  "GetPowerProfile",
	"gpu":    "GetGpuInfo",
	"system": "GetSystemInfo",
}

var getJSON = false

func init() {
	getCmd.Flags().BoolVar(&getJSON, "json", getJSON, "print the daemon's JSON answer unchanged")
	rootCmd.AddCommand(getCmd)
}

var getCmd = &cobra.Command{
	Use:       "get [state|fan|curve|power|gpu|system]",
	Short:     "Reports what the daemon knows (state by default)",
	Args:      cobra.MaximumNArgs(1),
	ValidArgs: []string{"state", "fan", "curve", "power", "gpu", "system"},
	RunE: func(cmd *cobra.Command, args []string) error {
		what := "state"
		if len(args) > 0 {
			what = strings.ToLower(args[0])
		}

		method, ok := getMethods[what]
		if !ok {
			return fail(10, "unknown report %q", what)
		}

		result, err := callDaemon(cmd, method)
		if err != nil {
			return err
		}

		if getJSON {
			cmd.Println(result)
			return nil
		}

		rows, err := describe(result)
		if err != nil {
			return fail(11, fmt.Errorf("unable to decode %s: %w", what, err))
		}

		tw := termwrap.NewTermWrap(80, 24)
		cmd.Print(tw.KeyValues(rows))
		return nil
	},
}
