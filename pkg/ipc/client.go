package ipc

import (
	"context"
	"fmt"

	"github.com/godbus/dbus/v5"
)

// Client calls a running daemon.
type Client struct {
	conn *dbus.Conn
	obj  dbus.BusObject
}

// Dial connects to bus and binds to the daemon's object. Nothing is sent
// until the first Call.
func Dial(bus string) (*Client, error) {
	conn, err := Connect(bus)
	if err != nil {
		return nil, err
	}

	return &Client{conn: conn, obj: conn.Object(Name(), Path())}, nil
}

// Call invokes method (e.g. "GetState") and returns its string result.
// Integer arguments must be int32 to match the exported signatures.
func (c *Client) Call(ctx context.Context, method string, args ...any) (string, error) {
	var result string
	err := c.obj.CallWithContext(ctx, Name()+"."+method, 0, args...).Store(&result)
	if err != nil {
		return "", fmt.Errorf("unable to call %s: %w", method, err)
	}
	return result, nil
}

func (c *Client) Close() error {
	return c.conn.Close()
}
