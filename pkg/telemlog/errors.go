package telemlog

import "errors"

// Engine errors returned by the public API. All of them can be matched with
// errors.Is; I/O failures are returned as wrapped os errors instead.
var (
	// ErrInvalidSize is returned by Register for a record size below one byte.
	ErrInvalidSize = errors.New("telemlog: record size must be at least one byte")

	// ErrAlreadyRegistered is returned by Register when the module already
	// has a different record size on record, in memory or on disk.
	ErrAlreadyRegistered = errors.New("telemlog: module registered with a different record size")

	// ErrNotRegistered is returned by Lookup for an unknown module name.
	ErrNotRegistered = errors.New("telemlog: module not registered")

	// ErrInvalidSetting is returned by EditSetting for a value outside
	// [1, hard limit] or an unknown setting field.
	ErrInvalidSetting = errors.New("telemlog: setting value out of range")

	// ErrCapacity is returned by Append when the payload does not fit the
	// module's record size.
	ErrCapacity = errors.New("telemlog: payload exceeds record size")

	// ErrCorruption is returned by RetrieveLatest when a frame's delimiters
	// do not match. The payload of such a frame is never returned.
	ErrCorruption = errors.New("telemlog: frame delimiter mismatch")

	// ErrRotation is returned by Append when rotation could not complete.
	// If the failure was eviction of the oldest file, the record has still
	// been written durably to the new active file.
	ErrRotation = errors.New("telemlog: log rotation incomplete")

	// ErrInsufficientLogs is returned by RetrieveLatest when fewer records
	// than requested are retained.
	ErrInsufficientLogs = errors.New("telemlog: fewer records retained than requested")
)
