package transport

import "errors"

// ErrNotConnected is returned by Send when there is no live connection.
var ErrNotConnected = errors.New("not connected to sensor backend")

// ErrClosed is returned by operations on a client after Close.
var ErrClosed = errors.New("transport client is closed")
