package inference

import (
	"fmt"
	"strings"
)

// Error describes a failed inference call. Status is the HTTP status
// returned by the API, or 0 for transport failures.
type Error struct {
	Op     string
	Model  string
	Status int
	Body   string
	Err    error
}

func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "inference %s (%s)", e.Op, e.Model)
	if e.Status != 0 {
		fmt.Fprintf(&b, ": status %d", e.Status)
	}
	if e.Body != "" {
		fmt.Fprintf(&b, ": %s", e.Body)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Code implements the error-code convention used by handler logging.
func (e *Error) Code() string {
	if e.Status != 0 {
		return fmt.Sprintf("HF_%d", e.Status)
	}
	return "HF_TRANSPORT"
}
