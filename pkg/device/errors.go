package device

import "errors"

var (
	ErrDeviceNotReady  = errors.New("device: not ready to accept commands")
	ErrDeviceBusy      = errors.New("device: busy, command does not allow running while busy")
	ErrDeviceStopped   = errors.New("device: stopped")
	ErrDeviceError     = errors.New("device: in error state")
	ErrDeviceShutdown  = errors.New("device: shut down")
	ErrNotConnected    = errors.New("device: not connected")
	ErrUnknownChannel  = errors.New("device: unknown channel")
	ErrAlreadyShutdown = errors.New("device: already shut down")
)
