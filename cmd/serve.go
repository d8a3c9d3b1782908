package cmd

import (
	"os"
	"sync"
	"time"

	"github.com/BitPonyLLC/hp-manager/internal/metrics"
	"github.com/BitPonyLLC/hp-manager/pkg/backends/gpu"
	"github.com/BitPonyLLC/hp-manager/pkg/backends/installer"
	"github.com/BitPonyLLC/hp-manager/pkg/backends/power"
	"github.com/BitPonyLLC/hp-manager/pkg/fan"
	"github.com/BitPonyLLC/hp-manager/pkg/hardware"
	"github.com/BitPonyLLC/hp-manager/pkg/ipc"
	"github.com/BitPonyLLC/hp-manager/pkg/lighting"
	"github.com/BitPonyLLC/hp-manager/pkg/sensors"
	"github.com/BitPonyLLC/hp-manager/pkg/service"
	"github.com/BitPonyLLC/hp-manager/pkg/state"
	"github.com/BitPonyLLC/hp-manager/pkg/util"

	"github.com/godbus/dbus/v5"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	wokeCheckDelay = 5 * time.Second
	wokeMinDiff    = 5 * time.Second
)

var allowUnprivileged = false
var ipcServer *ipc.Server

func init() {
	serveCmd.Flags().BoolVar(&allowUnprivileged, "allow-unprivileged", allowUnprivileged,
		"run without root (for development against the session bus)")

	serveCmd.Flags().Int("nice", 0, "the priority level of the process")
	viper.BindPFlag("nice", serveCmd.Flags().Lookup("nice"))

	serveCmd.Flags().String("state-path", "", "pathname of the persisted lighting state")
	viper.BindPFlag("state-path", serveCmd.Flags().Lookup("state-path"))

	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Runs the daemon that owns the keyboard and fans",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if os.Geteuid() != 0 && !allowUnprivileged {
			return fail(5, "the daemon must run as root")
		}

		if nice := viper.GetInt("nice"); nice != 0 {
			err := util.BeNice(nice)
			if err != nil {
				log.Warn().Err(err).Msg("keeping default priority")
			}
		}

		ctx := cmd.Context()
		logger := &log.Logger

		store := state.NewStore(viper.GetString("state-path"), logger)
		err := store.Load()
		if err != nil {
			log.Warn().Err(err).Str("path", store.Path()).Msg("state not fully restored")
		}

		rgb := hardware.OpenRGB(viper.GetString("rgb.root"), viper.GetStringSlice("rgb.names"), logger)
		fans := hardware.OpenFans(viper.GetString("hwmon.root"), viper.GetString("fan.driver"), logger)
		runner := &util.ExecRunner{Log: logger}
		temps := sensors.New(viper.GetString("hwmon.root"), viper.GetStringSlice("sensors.cpu"), runner, logger)

		fanCtl := fan.NewController(fans, store, temps, logger)
		fanCtl.SetSamples(viper.GetInt("fan.samples"))
		applyFanConfig(fanCtl)
		addConfigHook(func() { applyFanConfig(fanCtl) })

		conn, err := ipc.Connect(viper.GetString("bus"))
		if err != nil {
			return fail(6, "unable to connect to the %s bus: %w", viper.GetString("bus"), err)
		}
		defer conn.Close()

		sysConn, owned := powerBus(viper.GetString("bus"), conn, ipc.Connect)
		if owned {
			defer sysConn.Close()
		}
		profiles := power.Open(sysConn, logger)

		mux := gpu.Detect(runner, logger)
		mux.Timeout = viper.GetDuration("gpu.timeout")

		inst, err := installer.New(runner, viper.GetString("installer.command"), logger)
		if err != nil {
			return fail(7, err)
		}
		inst.Timeout = viper.GetDuration("installer.timeout")

		svc := service.New(service.Components{
			Store:     store,
			Fans:      fanCtl,
			Power:     profiles,
			GPU:       mux,
			Installer: inst,
			Sensors:   temps,
		}, logger)

		ipcServer = &ipc.Server{}
		err = ipcServer.Start(ctx, logger, conn, svc)
		if err != nil {
			return fail(8, err)
		}
		defer ipcServer.Stop()

		var wg sync.WaitGroup

		if rgb.Available() {
			engine := lighting.NewEngine(store, rgb, logger)
			engine.FrameInterval = viper.GetDuration("engine.frame")
			engine.IdleInterval = viper.GetDuration("engine.idle")
			engine.RecoverInterval = viper.GetDuration("engine.recover")

			wg.Add(1)
			go func() {
				defer wg.Done()
				engine.Run(ctx)
			}()
		} else {
			log.Warn().Msg("keyboard lighting device not found")
		}

		if fans.Available() {
			wg.Add(1)
			go func() {
				defer wg.Done()
				fanCtl.Run(ctx)
			}()
		} else {
			log.Warn().Msg("fan control device not found")
		}

		util.StartWokeWatch(ctx, wokeCheckDelay, wokeMinDiff, func(diff time.Duration) {
			log.Info().Dur("diff", diff).Msg("resumed: repainting keyboard")
			rgb.Invalidate()
		})

		if addr := viper.GetString("metrics.listen"); addr != "" {
			go func() {
				defer util.LogRecover()
				err := metrics.Serve(ctx, logger, addr)
				if err != nil {
					log.Err(err).Str("addr", addr).Msg("metrics server failed")
				}
			}()
		}

		log.Info().Str("state", store.Path()).Str("rgb", rgb.Path()).Str("hwmon", fans.Path()).
			Str("gpu", mux.Backend()).Bool("power_profiles", profiles.Available()).Msg("started")

		<-ctx.Done()
		wg.Wait()
		return nil
	},
}

// applyFanConfig pushes the tunables that may change while running. A bad
// curve keeps the one in effect.
func applyFanConfig(c *fan.Controller) {
	c.SetInterval(viper.GetDuration("fan.interval"))
	c.SetHysteresis(viper.GetInt("fan.hysteresis"))

	curve, err := configuredCurve()
	if err != nil {
		log.Err(err).Msg("ignoring configured fan curve")
		return
	}

	c.SetCurve(curve)
}

// powerBus picks the connection for power-profiles-daemon, which only lives
// on the system bus. When the daemon itself serves another bus a separate
// connection is dialed; owned tells the caller to close it.
func powerBus(bus string, conn *dbus.Conn, dial func(string) (*dbus.Conn, error)) (sys *dbus.Conn, owned bool) {
	if bus == ipc.SystemBus {
		return conn, false
	}

	sys, err := dial(ipc.SystemBus)
	if err != nil {
		log.Info().Err(err).Msg("no system bus: power profiles unavailable")
		return nil, false
	}

	return sys, true
}
