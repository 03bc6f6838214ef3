// internal/dispatch/errors.go
package dispatch

import (
	"fmt"
	"strings"
)

// PermissionError is a predicate-level signal: the rule would have matched,
// but the caller lacks the required permission. The engine routes it to the
// permission responder instead of trying further rules.
type PermissionError struct {
	Reason string
}

func (e *PermissionError) Error() string {
	if e.Reason == "" {
		return "permission required"
	}
	return "permission required: " + e.Reason
}

// NotFoundError reports a missing issue, project, or user.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.ID)
}

// ValidationError carries the tracker's field or business-rule validation
// messages, rendered back to the user verbatim.
type ValidationError struct {
	Messages []string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Messages, "; ")
}

// UpstreamError wraps a transport or API failure from the tracker or the
// messaging platform.
type UpstreamError struct {
	Op  string
	Err error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }
