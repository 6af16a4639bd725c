package snes

import (
	"errors"
	"fmt"
)

var (
	// ErrLinkUnavailable reports that no websocket session to the device server is open.
	ErrLinkUnavailable = errors.New("snes: device link unavailable")
	// ErrDeviceNotFound reports that the requested device is not in the server's list.
	ErrDeviceNotFound = errors.New("snes: device not found")
	// ErrAmbiguousDevice reports that more than one listed device matches the requested URI.
	ErrAmbiguousDevice = errors.New("snes: more than one device matches")
	// ErrNotConfigured reports a read or write attempted before a device was bound.
	ErrNotConfigured = errors.New("snes: no device bound")
	// ErrShortRead reports a device reply carrying fewer bytes than requested.
	ErrShortRead = errors.New("snes: short read")
)

// LinkError wraps a transport failure on the device link. Callers treat any
// LinkError as fatal for the current session and rebuild the link from scratch.
type LinkError struct {
	Op  string
	Err error
}

func (e *LinkError) Error() string {
	return fmt.Sprintf("snes: %s: %v", e.Op, e.Err)
}

func (e *LinkError) Unwrap() error {
	return e.Err
}

func linkErr(op string, err error) error {
	return &LinkError{Op: op, Err: err}
}
