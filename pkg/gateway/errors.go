package gateway

import "errors"

// Sentinel errors for device connections.
var (
	// ErrDisconnected is returned when writing to a device that has gone away.
	ErrDisconnected = errors.New("gateway: device disconnected")

	// ErrDeviceNotFound is returned for an unknown device ID.
	ErrDeviceNotFound = errors.New("gateway: device not found")

	// ErrDuplicateDevice is returned when a device ID is already connected.
	ErrDuplicateDevice = errors.New("gateway: device already connected")
)

// RemoteError is a failure reported by the device.
type RemoteError struct {
	Op      string
	Message string
}

// Error implements the error interface.
func (e *RemoteError) Error() string {
	return "gateway: device " + e.Op + ": " + e.Message
}
