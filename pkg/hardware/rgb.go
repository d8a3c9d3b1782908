package hardware

import (
	"fmt"
	"path/filepath"
	"regexp"
	"sync"

	"github.com/BitPonyLLC/hp-manager/internal/metrics"

	"github.com/rs/zerolog"
)

// ZoneCount is the number of zone files the driver exposes (zone0..zone3).
const ZoneCount = 4

// DefaultRGBNames are the platform device names registered by the known
// keyboard drivers.
var DefaultRGBNames = []string{"hp-omen-core", "hp-omen-rgb"}

var zoneValueRE = regexp.MustCompile(`^[0-9A-F]{6}$`)

// RGB writes keyboard zone colors. It remembers what it last wrote to each
// zone and skips identical writes so the animation loop can call it every
// frame without flooding the driver.
type RGB struct {
	path  string
	log   *zerolog.Logger
	write writeFunc

	mutex sync.Mutex
	last  [ZoneCount]string
}

// OpenRGB locates the keyboard device under root. The result is always
// usable; check Available before starting anything that depends on it.
func OpenRGB(root string, names []string, log *zerolog.Logger) *RGB {
	path, ok := Discover(root, names...)
	if ok && !exists(filepath.Join(path, "zone0")) {
		log.Warn().Str("path", path).Msg("keyboard device has no zone files")
		path = ""
	}

	return NewRGB(path, log)
}

// NewRGB uses the device directory at path; an empty path yields an
// unavailable accessor.
func NewRGB(path string, log *zerolog.Logger) *RGB {
	rlog := log.With().Str("component", "rgb").Logger()
	return &RGB{path: path, log: &rlog, write: writeSysfs}
}

func (r *RGB) Available() bool {
	return r.path != ""
}

func (r *RGB) Path() string {
	return r.path
}

// WriteZoneColor writes six uppercase hex digits to a zone. Writing the
// value already on the zone does nothing.
func (r *RGB) WriteZoneColor(zone int, hex string) error {
	if !r.Available() {
		return ErrUnavailable
	}

	if zone < 0 || zone >= ZoneCount {
		return fmt.Errorf("%w: %d", ErrInvalidZone, zone)
	}

	if !zoneValueRE.MatchString(hex) {
		return fmt.Errorf("%w: %q", ErrInvalidValue, hex)
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()

	if r.last[zone] == hex {
		return nil
	}

	err := r.write(r.zonePath(zone), hex)
	if err != nil {
		metrics.ZoneWriteErrors.Inc()
		return err
	}

	metrics.ZoneWrites.Inc()
	r.last[zone] = hex
	return nil
}

// ReadZoneColor reports what the driver currently holds for a zone.
func (r *RGB) ReadZoneColor(zone int) (string, error) {
	if !r.Available() {
		return "", ErrUnavailable
	}

	if zone < 0 || zone >= ZoneCount {
		return "", fmt.Errorf("%w: %d", ErrInvalidZone, zone)
	}

	return readString(r.zonePath(zone))
}

// Invalidate forgets the last written values so the next write of every zone
// reaches the driver, e.g. after the firmware reset the keyboard on resume.
func (r *RGB) Invalidate() {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	r.last = [ZoneCount]string{}
	r.log.Debug().Msg("zone cache cleared")
}

//--------------------------------------------------------------------------------
// private

func (r *RGB) zonePath(zone int) string {
	return filepath.Join(r.path, fmt.Sprintf("zone%d", zone))
}
