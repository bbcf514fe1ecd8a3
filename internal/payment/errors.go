package payment

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidPayload = errors.New("invalid payment payload")
	ErrConfiguration  = errors.New("payment signing misconfigured")
)

// InvalidPayloadError reports a monetary field that could not be normalized
// to a fixed-point string. Field is the dotted path from the payload root.
type InvalidPayloadError struct {
	Field  string
	Value  any
	Reason string
}

func (e *InvalidPayloadError) Error() string {
	return fmt.Sprintf("invalid payment payload: field %q (%v): %s", e.Field, e.Value, e.Reason)
}

func (e *InvalidPayloadError) Is(target error) bool { return target == ErrInvalidPayload }

// withPrefix returns a copy of e whose Field is nested under prefix.
func (e *InvalidPayloadError) withPrefix(prefix string) *InvalidPayloadError {
	cp := *e
	cp.Field = prefix + "." + e.Field
	return &cp
}

// ConfigurationError means signing credentials are missing. It points at the
// deployment, not at the request.
type ConfigurationError struct {
	Missing string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("payment signing misconfigured: %s is empty", e.Missing)
}

func (e *ConfigurationError) Is(target error) bool { return target == ErrConfiguration }
