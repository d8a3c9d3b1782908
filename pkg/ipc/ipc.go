// Package ipc publishes the command service on D-Bus and lets the CLI call
// it.
package ipc

import (
	"context"
	"errors"
	"fmt"

	"github.com/BitPonyLLC/hp-manager/buildinfo"
	"github.com/BitPonyLLC/hp-manager/pkg/service"

	"github.com/godbus/dbus/v5"
	"github.com/godbus/dbus/v5/introspect"
	"github.com/rs/zerolog"
)

const (
	SystemBus  = "system"
	SessionBus = "session"

	introspectable = "org.freedesktop.DBus.Introspectable"
)

var ErrNameTaken = errors.New("bus name already owned")

// Name is the well-known bus name, also used as the interface name.
func Name() string {
	return buildinfo.App.ReverseDNS
}

// Path is the object path the service is exported on.
func Path() dbus.ObjectPath {
	return dbus.ObjectPath(buildinfo.App.ObjectPath)
}

// Connect opens a private connection to the system or session bus.
func Connect(bus string) (*dbus.Conn, error) {
	switch bus {
	case SystemBus:
		return dbus.ConnectSystemBus()
	case SessionBus:
		return dbus.ConnectSessionBus()
	}
	return nil, fmt.Errorf("unknown bus %q: use %s or %s", bus, SystemBus, SessionBus)
}

type Server struct {
	log  *zerolog.Logger
	conn *dbus.Conn
}

// Start exports svc and claims the well-known name. Owning the name is what
// keeps a second daemon from starting: the request is not queued.
func (s *Server) Start(ctx context.Context, log *zerolog.Logger, conn *dbus.Conn, svc *service.Service) error {
	ilog := log.With().Str("component", "ipc").Logger()
	s.log = &ilog
	s.conn = conn

	h := &handler{ctx: ctx, svc: svc}
	err := conn.Export(h, Path(), Name())
	if err != nil {
		return fmt.Errorf("unable to export %s: %w", Path(), err)
	}

	err = conn.Export(introspect.NewIntrospectable(node(h)), Path(), introspectable)
	if err != nil {
		return fmt.Errorf("unable to export introspection data: %w", err)
	}

	reply, err := conn.RequestName(Name(), dbus.NameFlagDoNotQueue)
	if err != nil {
		return fmt.Errorf("unable to request %s: %w", Name(), err)
	}

	if reply != dbus.RequestNameReplyPrimaryOwner {
		return fmt.Errorf("%w: %s", ErrNameTaken, Name())
	}

	s.log.Info().Str("name", Name()).Str("path", string(Path())).Msg("listening")
	return nil
}

// Stop releases the name and withdraws the exported objects. Only the first
// call does anything.
func (s *Server) Stop() {
	if s.conn == nil {
		return
	}

	_, err := s.conn.ReleaseName(Name())
	if err != nil {
		s.log.Warn().Err(err).Msg("unable to release bus name")
	}

	s.conn.Export(nil, Path(), Name())
	s.conn.Export(nil, Path(), introspectable)
	s.conn = nil
	s.log.Info().Msg("stopped")
}

//--------------------------------------------------------------------------------
// private

func node(h *handler) *introspect.Node {
	return &introspect.Node{
		Name: string(Path()),
		Interfaces: []introspect.Interface{
			introspect.IntrospectData,
			{
				Name:    Name(),
				Methods: introspect.Methods(h),
			},
		},
	}
}
