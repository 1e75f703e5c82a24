package i2c

import (
	"errors"
	"fmt"
	"time"
)

// ErrNotConfigured is returned by Transmit and Receive when no transaction
// has been configured since the last one was consumed.
var ErrNotConfigured = errors.New("i2c: no transaction configured")

// MissingEndpointError indicates a pipe-mode receive was requested on a
// controller whose endpoint map does not route the pipe endpoints. It is
// reported before any register traffic is issued.
type MissingEndpointError struct {
	Name string
}

func (e *MissingEndpointError) Error() string {
	return fmt.Sprintf("i2c: endpoint %s required for pipe transfer is not configured", e.Name)
}

// TimeoutError indicates the engine's done flag was not observed within
// the poll budget. The hardware transaction is left as-is: there is no
// automatic retry, and the caller may pulse Reset to recover the engine.
type TimeoutError struct {
	Op       string
	Attempts int
	Interval time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("i2c: %s timed out after %d polls at %v intervals", e.Op, e.Attempts, e.Interval)
}
