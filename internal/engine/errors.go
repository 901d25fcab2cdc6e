package engine

import "errors"

// Errors surfaced to callers of Press and BatteryQuery. Recoverable
// transport blips (a missed scan cycle, a single failed write under the
// fail-open policy) are handled internally; anything that leaves the session
// in an indeterminate state tears the operation down and surfaces here.
var (
	// ErrBusy is returned when an operation is requested while another is
	// still running. Requests are rejected, never queued.
	ErrBusy = errors.New("engine: operation already in progress")

	// ErrDeviceNotFound is returned when every scan attempt is exhausted
	// without seeing the configured address.
	ErrDeviceNotFound = errors.New("engine: device not found")

	// ErrMissingWriteCharacteristic is returned when the peripheral lacks
	// the write characteristic. Fatal for the operation, not retried.
	ErrMissingWriteCharacteristic = errors.New("engine: write characteristic missing")

	// ErrConnectionTimeout is returned when the connect stage exceeds its
	// deadline.
	ErrConnectionTimeout = errors.New("engine: connection timed out")

	// ErrOperationTimeout is returned when the overall operation deadline
	// expires at any stage.
	ErrOperationTimeout = errors.New("engine: operation timed out")

	// ErrUnexpectedDisconnect is returned when the peripheral drops the
	// connection before the sequence completes.
	ErrUnexpectedDisconnect = errors.New("engine: unexpected disconnect")
)
