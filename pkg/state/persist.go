package state

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// StateFileMode lets the unprivileged front-end read the state file directly
// while the daemon is still starting.
const StateFileMode = 0666

// fileState is exactly what is written to the state file.
type fileState struct {
	Mode       LightingMode     `json:"mode"`
	Colors     [ZoneCount]Color `json:"colors"`
	Speed      int              `json:"speed"`
	Brightness int              `json:"brightness"`
	Direction  Direction        `json:"direction"`
	Power      bool             `json:"power"`
}

// stateView is what GetState reports: the persisted fields plus the fan mode.
type stateView struct {
	fileState
	FanMode FanMode `json:"fan_mode"`
}

func toFileState(cfg Config) fileState {
	return fileState{
		Mode:       cfg.Mode,
		Colors:     cfg.Colors,
		Speed:      cfg.Speed,
		Brightness: cfg.Brightness,
		Direction:  cfg.Direction,
		Power:      cfg.Power,
	}
}

// MarshalState renders the full configuration as reported over IPC.
func MarshalState(cfg Config) ([]byte, error) {
	return json.Marshal(stateView{fileState: toFileState(cfg), FanMode: cfg.FanMode})
}

// Load overlays the persisted file onto the current configuration. Each field
// is accepted only when it passes the same validation as the IPC commands;
// a bad field keeps its current value and the others still load. A missing
// file is not an error. Any error returned is informational: the store is
// always left usable.
func (s *Store) Load() error {
	if s.path == "" {
		return nil
	}

	content, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("unable to read %s: %w", s.path, err)
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	cfg, rejected, err := decodeState(content, s.cfg)
	if err != nil {
		return fmt.Errorf("unable to parse %s: %w", s.path, err)
	}

	s.cfg = cfg

	if len(rejected) > 0 {
		return fmt.Errorf("ignored invalid fields in %s: %v", s.path, rejected)
	}

	return nil
}

// Save writes the persisted subset of the current configuration, replacing
// the file atomically.
func (s *Store) Save() error {
	if s.path == "" {
		return nil
	}

	s.saveMutex.Lock()
	defer s.saveMutex.Unlock()

	content, err := json.Marshal(toFileState(s.Snapshot()))
	if err != nil {
		return fmt.Errorf("unable to encode state: %w", err)
	}

	dir := filepath.Dir(s.path)
	err = os.MkdirAll(dir, 0755)
	if err != nil {
		return fmt.Errorf("unable to create %s: %w", dir, err)
	}

	tf, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+"-*")
	if err != nil {
		return fmt.Errorf("unable to create temporary state file: %w", err)
	}

	defer os.Remove(tf.Name()) // no-op after a successful rename

	_, err = tf.Write(append(content, '\n'))
	if err != nil {
		tf.Close()
		return fmt.Errorf("unable to write %s: %w", tf.Name(), err)
	}

	err = tf.Close()
	if err != nil {
		return fmt.Errorf("unable to close %s: %w", tf.Name(), err)
	}

	// explicit chmod: the umask would otherwise strip group/other write
	err = os.Chmod(tf.Name(), StateFileMode)
	if err != nil {
		return fmt.Errorf("unable to change permissions of %s: %w", tf.Name(), err)
	}

	err = os.Rename(tf.Name(), s.path)
	if err != nil {
		return fmt.Errorf("unable to replace %s: %w", s.path, err)
	}

	return nil
}

//--------------------------------------------------------------------------------
// private

func decodeState(content []byte, base Config) (Config, []string, error) {
	var fields map[string]json.RawMessage
	err := json.Unmarshal(content, &fields)
	if err != nil {
		return base, nil, err
	}

	cfg := base
	rejected := []string{}
	reject := func(name string) { rejected = append(rejected, name) }

	if raw, ok := fields["mode"]; ok {
		var mode LightingMode
		if decodeField(raw, &mode) {
			cfg.Mode = mode
		} else {
			reject("mode")
		}
	}

	if raw, ok := fields["colors"]; ok {
		var colors []json.RawMessage
		if decodeField(raw, &colors) {
			for i := 0; i < len(colors) && i < ZoneCount; i++ {
				var c Color
				if decodeField(colors[i], &c) {
					cfg.Colors[i] = c
				} else {
					reject(fmt.Sprintf("colors[%d]", i))
				}
			}
		} else {
			reject("colors")
		}
	}

	if raw, ok := fields["speed"]; ok {
		var speed int
		if decodeField(raw, &speed) {
			cfg.Speed = ClampSpeed(speed)
		} else {
			reject("speed")
		}
	}

	if raw, ok := fields["brightness"]; ok {
		var brightness int
		if decodeField(raw, &brightness) {
			cfg.Brightness = ClampBrightness(brightness)
		} else {
			reject("brightness")
		}
	}

	if raw, ok := fields["direction"]; ok {
		var direction Direction
		if decodeField(raw, &direction) {
			cfg.Direction = direction
		} else {
			reject("direction")
		}
	}

	if raw, ok := fields["power"]; ok {
		var power bool
		if decodeField(raw, &power) {
			cfg.Power = power
		} else {
			reject("power")
		}
	}

	return cfg, rejected, nil
}

// decodeField treats an explicit null like any other invalid value, which
// json.Unmarshal would otherwise accept as "leave unchanged"/zero.
func decodeField(raw json.RawMessage, v any) bool {
	if bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return false
	}
	return json.Unmarshal(raw, v) == nil
}
