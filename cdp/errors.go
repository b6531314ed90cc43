package cdp

import (
	"fmt"
	"time"
)

// ConnectionError indicates the WebSocket never opened.
type ConnectionError struct {
	URL string
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("cdp: connect %s: %v", e.URL, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// CommandTimeoutError indicates a sent command got no response within
// its deadline. Other in-flight commands are unaffected.
type CommandTimeoutError struct {
	Method  string
	Timeout time.Duration
}

func (e *CommandTimeoutError) Error() string {
	return fmt.Sprintf("cdp: command %s timeout after %s", e.Method, e.Timeout)
}

// ProtocolError is a CDP error response to a command.
type ProtocolError struct {
	Code    int64
	Message string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("CDP Error %d: %s", e.Code, e.Message)
}

// ConnectionClosedError rejects pending commands when the socket
// closes, carrying the close code and reason when known.
type ConnectionClosedError struct {
	Code   int
	Reason string
}

func (e *ConnectionClosedError) Error() string {
	if e.Code == 0 && e.Reason == "" {
		return "cdp: connection closed"
	}
	return fmt.Sprintf("cdp: connection closed (%d): %s", e.Code, e.Reason)
}

// Retryable marks the closed connection as worth a fresh session.
func (e *ConnectionClosedError) Retryable() bool { return true }

// NavigationError indicates Page.navigate reported a failure or the
// load event never fired.
type NavigationError struct {
	URL    string
	Reason string
}

func (e *NavigationError) Error() string {
	return fmt.Sprintf("cdp: navigate %s: %s", e.URL, e.Reason)
}

// SelectorTimeoutError indicates a waited-for selector never appeared.
type SelectorTimeoutError struct {
	Selector string
	Timeout  time.Duration
}

func (e *SelectorTimeoutError) Error() string {
	return fmt.Sprintf("cdp: selector %q not found within %s", e.Selector, e.Timeout)
}

// EvalError carries a page-side exception raised during evaluation.
type EvalError struct {
	Description string
}

func (e *EvalError) Error() string {
	return fmt.Sprintf("cdp: page exception: %s", e.Description)
}
