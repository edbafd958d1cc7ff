package llm

import "errors"

var (
	// ErrGeneration is returned when the generation provider is unreachable
	// or returns an error.
	ErrGeneration = errors.New("generation failed")
)
