package agent

import "errors"

var (
	// ErrNoAgents is returned when routing is attempted with an empty registry.
	ErrNoAgents = errors.New("no agents registered")

	// ErrUnknownStrategy is returned for an unrecognized routing strategy.
	ErrUnknownStrategy = errors.New("unknown routing strategy")

	// ErrAgentNotFound is returned when a named agent is not registered.
	ErrAgentNotFound = errors.New("agent not found")

	// ErrShutdown is returned when submitting to an agent that has shut down.
	ErrShutdown = errors.New("agent is shut down")

	// ErrResultTimeout is returned when waiting for a result times out.
	// The underlying task may still be running; its result stays indexed
	// and a later wait can succeed.
	ErrResultTimeout = errors.New("timed out waiting for result")
)
