package facilitator

import (
	"errors"
	"fmt"
)

// ErrUnavailable marks transport-level failures: the facilitator could not
// be reached at all. Distinct from APIError so callers can tell "my
// dependency is down" from "my request was rejected".
var ErrUnavailable = errors.New("facilitator: unreachable")

// APIError is a structured failure reported by the facilitator itself.
type APIError struct {
	Op         string
	StatusCode int
	Reason     string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("facilitator %s failed: %s", e.Op, e.Reason)
}
