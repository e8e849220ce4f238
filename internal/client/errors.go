package client

import "errors"

var (
	// ErrDaemonNotRunning is returned when the daemon socket does not
	// exist.
	ErrDaemonNotRunning = errors.New("daemon not running")

	// ErrPermissionDenied is returned when the user may not open the
	// daemon socket.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrNotFound is returned when the daemon answers 404.
	ErrNotFound = errors.New("404 not found")
)
