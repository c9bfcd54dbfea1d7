package mcpclient

import (
	"errors"
	"fmt"
)

var (
	ErrNotConnected = errors.New("session not initialized")
	ErrUnknownTool  = errors.New("unknown tool")
)

// ConnectionError reports a failure to start the transport, complete the
// handshake or fetch the tool catalog. The connection is closed when it is
// returned.
type ConnectionError struct {
	Op  string
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("mcp %s: %v", e.Op, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// ToolExecutionError is carried by a Result when a tool could not be run or
// the provider reported a failure.
type ToolExecutionError struct {
	Tool string
	Err  error
}

func (e *ToolExecutionError) Error() string {
	return fmt.Sprintf("tool %s: %v", e.Tool, e.Err)
}

func (e *ToolExecutionError) Unwrap() error { return e.Err }
