// Package metrics exposes daemon counters in the Prometheus text format.
// Nothing is served unless the daemon is configured with a listen address.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

var (
	// FramesRendered counts animation loop iterations that reached the hardware
	FramesRendered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hpmanager_frames_rendered_total",
			Help: "Animation frames rendered by lighting mode",
		},
		[]string{"mode"},
	)

	// EngineFailures counts iterations that errored or panicked
	EngineFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "hpmanager_engine_failures_total",
			Help: "Animation iterations that failed and were skipped",
		},
	)

	// ZoneWrites counts zone color writes that actually reached sysfs
	ZoneWrites = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "hpmanager_zone_writes_total",
			Help: "Keyboard zone color writes issued to the driver",
		},
	)

	// ZoneWriteErrors counts failed zone color writes
	ZoneWriteErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "hpmanager_zone_write_errors_total",
			Help: "Keyboard zone color writes rejected by the driver",
		},
	)

	// FanWrites counts fan target and mode writes by kind and result
	FanWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hpmanager_fan_writes_total",
			Help: "Fan control writes by kind (target, mode) and result",
		},
		[]string{"kind", "result"},
	)

	// Temperature is the averaged CPU temperature driving the fan curve
	Temperature = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "hpmanager_fan_curve_temperature_celsius",
			Help: "Averaged CPU temperature used by the custom fan curve",
		},
	)

	// Calls counts IPC method calls by method and result
	Calls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hpmanager_ipc_calls_total",
			Help: "D-Bus method calls by method and result",
		},
		[]string{"method", "result"},
	)
)

// Result labels
const (
	OK   = "ok"
	Fail = "fail"
)

// ResultOf maps an error to a result label.
func ResultOf(err error) string {
	if err != nil {
		return Fail
	}
	return OK
}

// Serve exposes /metrics on addr until ctx is canceled.
func Serve(ctx context.Context, log *zerolog.Logger, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	log.Info().Str("addr", addr).Msg("serving metrics")
	err := srv.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}
