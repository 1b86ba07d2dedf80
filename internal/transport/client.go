package transport

import (
	"errors"
	"fmt"
	"net"
	"syscall"
	"time"

	"github.com/drgolem/pcmcast/internal/wire"
)

const connectBackoff = 100 * time.Millisecond

// Client connects to a Server and decodes frames from it one at a time.
type Client struct {
	conn net.Conn
	buf  []byte
}

// Connect attempts a TCP connection to addr, retrying on connection-refused
// errors with a small backoff until it succeeds or deadline is reached.
// Any other dial error fails immediately.
func Connect(addr string, deadline time.Time) (*Client, error) {
	for {
		conn, err := net.Dial("tcp", addr)
		if err == nil {
			return &Client{conn: conn}, nil
		}
		if !isConnectionRefused(err) || time.Now().After(deadline) {
			return nil, fmt.Errorf("%w: %v", ErrConnect, err)
		}
		time.Sleep(connectBackoff)
	}
}

func isConnectionRefused(err error) bool {
	return errors.Is(err, syscall.ECONNREFUSED)
}

// Receive decodes and returns one frame's payload, blocking until it
// arrives. The returned slice is only valid until the next call to
// Receive.
func (c *Client) Receive() ([]byte, error) {
	payload, err := wire.Decode(c.conn, c.buf)
	if err != nil {
		return nil, mapDecodeErr(err)
	}
	c.buf = payload[:0:cap(payload)]
	return payload, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

func mapDecodeErr(err error) error {
	switch {
	case errors.Is(err, wire.ErrConnectionClosed):
		return wire.ErrConnectionClosed
	case errors.Is(err, wire.ErrFrameTooLarge):
		return wire.ErrFrameTooLarge
	default:
		return fmt.Errorf("transport: io: %w", err)
	}
}
