package engine

import "errors"

var (
	// ErrStaleSequence indicates a sequence finished after its session epoch
	// was superseded by Initialize or Reset.
	ErrStaleSequence = errors.New("sequence belongs to a superseded session")
)
