package history

import "errors"

// Sentinel errors for the history package.
var (
	// ErrInvalidSpeed is returned by Replay for a speed multiplier that is
	// not positive.
	ErrInvalidSpeed = errors.New("invalid replay speed")

	// ErrUnknownCodec is returned by CodecByName.
	ErrUnknownCodec = errors.New("unknown codec")
)
