package realitybench

import "errors"

var (
	// ErrConfiguration marks invalid participant counts, faction sizes or game types.
	ErrConfiguration = errors.New("configuration error")
	// ErrProvider marks a Decision Provider failure or an unusable response.
	ErrProvider = errors.New("provider error")
	// ErrMalformedReplay marks a persisted log that cannot rebuild game state.
	ErrMalformedReplay = errors.New("malformed replay")
)
