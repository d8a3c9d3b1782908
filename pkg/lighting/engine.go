package lighting

import (
	"context"
	"time"

	"github.com/BitPonyLLC/hp-manager/internal/metrics"
	"github.com/BitPonyLLC/hp-manager/pkg/state"
	"github.com/BitPonyLLC/hp-manager/pkg/util"

	"github.com/rs/zerolog"
)

const (
	DefaultFrameInterval   = 33 * time.Millisecond
	DefaultIdleInterval    = 500 * time.Millisecond
	DefaultRecoverInterval = 1 * time.Second

	minimumSleep = 1 * time.Millisecond
)

// ZoneWriter is the part of the keyboard device the engine drives.
type ZoneWriter interface {
	WriteZoneColor(zone int, hex string) error
}

// Engine renders the store's configuration to the keyboard until its
// context is canceled.
type Engine struct {
	// FrameInterval is the target cadence of the animated modes.
	FrameInterval time.Duration
	// IdleInterval is the sleep used for static mode and while powered off.
	IdleInterval time.Duration
	// RecoverInterval is the pause after a failed iteration.
	RecoverInterval time.Duration

	store *state.Store
	zones ZoneWriter
	log   *zerolog.Logger

	now     func() time.Time
	started time.Time
	failing bool
}

func NewEngine(store *state.Store, zones ZoneWriter, log *zerolog.Logger) *Engine {
	elog := log.With().Str("component", "engine").Logger()
	return &Engine{
		FrameInterval:   DefaultFrameInterval,
		IdleInterval:    DefaultIdleInterval,
		RecoverInterval: DefaultRecoverInterval,
		store:           store,
		zones:           zones,
		log:             &elog,
		now:             time.Now,
	}
}

// Run loops until ctx is canceled. A change committed to the store cuts the
// current sleep short so new settings show up immediately.
func (e *Engine) Run(ctx context.Context) {
	defer util.LogRecover()

	watcher := e.store.Watch()
	defer watcher.Stop()

	e.started = e.now()
	e.log.Info().Msg("started")
	defer e.log.Info().Msg("stopped")

	for {
		delay := e.Step()

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-watcher.Ch:
			timer.Stop()
		case <-timer.C:
		}
	}
}

// Step renders and writes one frame and returns how long to sleep before the
// next. It never panics.
func (e *Engine) Step() (delay time.Duration) {
	defer func() {
		if r := recover(); r != nil {
			metrics.EngineFailures.Inc()
			e.log.Error().Stack().Err(util.Recovered(r)).Msg("frame failed")
			delay = e.RecoverInterval
		}
	}()

	began := e.now()
	cfg := e.store.Snapshot()
	frame := Render(cfg, began.Sub(e.started).Seconds())

	var writeErr error
	for zone, c := range frame {
		if werr := e.zones.WriteZoneColor(zone, c.Hex()); werr != nil {
			writeErr = werr
		}
	}

	e.noteWrite(writeErr)
	metrics.FramesRendered.WithLabelValues(cfg.Mode.String()).Inc()

	if !cfg.Power || cfg.Mode == state.Static {
		return e.IdleInterval
	}

	delay = e.FrameInterval - e.now().Sub(began)
	if delay < minimumSleep {
		delay = minimumSleep
	}

	return delay
}

//--------------------------------------------------------------------------------
// private

// log only the transitions so a missing driver doesn't flood the journal at
// frame rate
func (e *Engine) noteWrite(err error) {
	switch {
	case err != nil && !e.failing:
		e.failing = true
		e.log.Warn().Err(err).Msg("unable to write zone colors")
	case err == nil && e.failing:
		e.failing = false
		e.log.Info().Msg("zone writes recovered")
	}
}
