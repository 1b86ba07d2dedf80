package transport

import "errors"

// Sentinel errors, wrapped with %w so callers can classify with errors.Is.
var (
	ErrListen  = errors.New("transport: listen")
	ErrAccept  = errors.New("transport: accept")
	ErrConnect = errors.New("transport: connect")
)
