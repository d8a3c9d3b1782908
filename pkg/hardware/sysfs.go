// Package hardware is the only code that touches the kernel control files:
// the keyboard zone nodes of the hp-omen-core platform device and the fan
// nodes of the hp-wmi hwmon device. Reads fall back to safe defaults; writes
// return errors for the caller to log. Nothing here panics on a missing or
// misbehaving device.
package hardware

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

var (
	ErrUnavailable  = errors.New("device unavailable")
	ErrInvalidZone  = errors.New("invalid zone")
	ErrInvalidFan   = errors.New("invalid fan")
	ErrInvalidValue = errors.New("invalid value")
)

// Discover scans the entries of root for a device whose `name` file matches
// one of names, ignoring case. Platform devices carry no `name` file, so for
// those the entry's own name is compared instead. Absence is a normal
// outcome (driver not loaded) and is reported only through ok.
func Discover(root string, names ...string) (path string, ok bool) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return "", false
	}

	for _, entry := range entries {
		dir := filepath.Join(root, entry.Name())

		id := entry.Name()
		content, err := os.ReadFile(filepath.Join(dir, "name"))
		if err == nil {
			id = strings.TrimSpace(string(content))
		}

		for _, name := range names {
			if strings.EqualFold(id, name) {
				return dir, true
			}
		}
	}

	return "", false
}

//--------------------------------------------------------------------------------
// private

type writeFunc func(path, value string) error

func writeSysfs(path, value string) error {
	f, err := os.OpenFile(path, os.O_WRONLY, 0)
	if err != nil {
		return fmt.Errorf("can't open %s: %w", path, err)
	}

	_, err = f.WriteString(value)
	if err != nil {
		f.Close()
		return fmt.Errorf("can't write %q to %s: %w", value, path, err)
	}

	return f.Close()
}

func readString(path string) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(content)), nil
}

func readInt(path string) (int, error) {
	s, err := readString(path)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(s)
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
