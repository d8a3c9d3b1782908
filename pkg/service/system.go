package service

import (
	"errors"
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

var (
	ErrUnknownProfile = errors.New("unknown power profile")
	ErrUnknownGPUMode = errors.New("unknown gpu mode")
)

func errUnknownProfile(profile string) error {
	return fmt.Errorf("%w: %q", ErrUnknownProfile, profile)
}

func errUnknownGPUMode(mode string) error {
	return fmt.Errorf("%w: %q", ErrUnknownGPUMode, mode)
}

func hostname() string {
	name, err := os.Hostname()
	if err != nil {
		return ""
	}
	return name
}

func kernelRelease() string {
	var uts unix.Utsname
	if err := unix.Uname(&uts); err != nil {
		return ""
	}
	return unix.ByteSliceToString(uts.Release[:])
}
