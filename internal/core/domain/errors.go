package domain

import "errors"

var (
	// ErrConnectivity means the target database or schema is missing or unreachable.
	ErrConnectivity = errors.New("database unreachable or missing")

	// ErrUnsupportedDriver means no sniffer is registered for a driver and no override is configured.
	ErrUnsupportedDriver = errors.New("unsupported database driver")

	// ErrUnknownConnection means a connection name is not part of the active set.
	ErrUnknownConnection = errors.New("unrecognized connection")

	// ErrStaleCollector means the dirty table collector vanished, usually
	// because the session holding a temporary collector was recycled.
	// Sniffers recover by restarting; it is only returned when that fails.
	ErrStaleCollector = errors.New("dirty table collector is missing")

	// ErrNotTriggerBased means an operation needs triggers the sniffer does not manage.
	ErrNotTriggerBased = errors.New("sniffer is not trigger based")

	ErrInvalidMode   = errors.New("invalid collector mode")
	ErrInvalidDriver = errors.New("invalid driver")
)
