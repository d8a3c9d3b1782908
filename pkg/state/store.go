// Package state holds the daemon's single source of truth: the lighting
// configuration plus the fan bookkeeping shared by the fan controller and the
// command service.
package state

import (
	"sync"

	"github.com/BitPonyLLC/hp-manager/pkg/events"

	"github.com/rs/zerolog"
)

// Config is the lighting configuration plus the hardware-reported fan mode.
type Config struct {
	Mode       LightingMode
	Colors     [ZoneCount]Color
	Speed      int
	Brightness int
	Direction  Direction
	Power      bool
	FanMode    FanMode
}

// Defaults returns the configuration used before anything is loaded.
func Defaults() Config {
	red := Color{Red: 255}
	return Config{
		Mode:       Static,
		Colors:     [ZoneCount]Color{red, red, red, red},
		Speed:      50,
		Brightness: 100,
		Direction:  LeftToRight,
		Power:      true,
		FanMode:    FanAuto,
	}
}

// ChangeEvent is emitted to watchers after every committed update.
type ChangeEvent struct {
	Config Config
}

// Store guards a Config with a single mutex. Readers get copies; writers go
// through Update so a rejected change never leaves a partial mutation.
type Store struct {
	path string
	log  *zerolog.Logger

	mutex   sync.Mutex
	cfg     Config
	applied map[int]int

	saveMutex sync.Mutex
	changes   events.Manager
}

// NewStore creates a store holding Defaults that persists to path. An empty
// path disables persistence.
func NewStore(path string, log *zerolog.Logger) *Store {
	slog := log.With().Str("component", "state").Logger()
	return &Store{
		path:    path,
		log:     &slog,
		cfg:     Defaults(),
		applied: map[int]int{},
	}
}

// Path is where the state file lives.
func (s *Store) Path() string {
	return s.path
}

// Snapshot returns a copy of the current configuration.
func (s *Store) Snapshot() Config {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.cfg
}

// Update runs fn against a copy of the configuration. When fn returns nil the
// copy is clamped, committed, persisted and announced; otherwise nothing
// changes and fn's error is returned. A failed save is logged, not returned.
func (s *Store) Update(fn func(*Config) error) error {
	s.mutex.Lock()
	next := s.cfg
	err := fn(&next)
	if err != nil {
		s.mutex.Unlock()
		return err
	}

	next.Speed = ClampSpeed(next.Speed)
	next.Brightness = ClampBrightness(next.Brightness)
	s.cfg = next
	s.mutex.Unlock()

	if err := s.Save(); err != nil {
		s.log.Err(err).Str("path", s.path).Msg("unable to save state")
	}

	s.changes.Emit(ChangeEvent{Config: next})
	return nil
}

// SetFanMode records the mode read back from the fan hardware. It is not
// persisted: the hardware register is authoritative across restarts.
func (s *Store) SetFanMode(mode FanMode) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.cfg.FanMode = mode
}

// LastAppliedRPM reports the target most recently written to a fan.
func (s *Store) LastAppliedRPM(fan int) (int, bool) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	rpm, ok := s.applied[fan]
	return rpm, ok
}

func (s *Store) SetLastAppliedRPM(fan, rpm int) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.applied[fan] = rpm
}

// ResetAppliedRPM forgets all hysteresis memory so the next computed target
// is always written.
func (s *Store) ResetAppliedRPM() {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.applied = map[int]int{}
}

// Watch returns a watcher that is signaled after every committed update.
func (s *Store) Watch() *events.Watcher {
	return s.changes.Watch()
}
