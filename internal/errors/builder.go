package errors

import (
	"encoding/json"
	"maps"

	"github.com/cockroachdb/errors"
)

// SafeDetailsPrefix tags the JSON payload that the error handler may return to clients
const SafeDetailsPrefix = "__json__:"

// ErrorBuilder assembles an error in steps. It is not an error itself:
// Mark ends the chain and returns the finished error.
type ErrorBuilder struct {
	err     error
	details map[string]any
}

// NewError starts a chain from a new internal message
func NewError(msg string) *ErrorBuilder {
	return &ErrorBuilder{err: errors.New(msg)}
}

// WithError starts a chain that wraps err
func WithError(err error) *ErrorBuilder {
	return &ErrorBuilder{err: err}
}

// WithMessage adds internal context. It is logged but never shown to clients.
func (b *ErrorBuilder) WithMessage(msg string) *ErrorBuilder {
	b.err = errors.WithMessage(b.err, msg)
	return b
}

func (b *ErrorBuilder) WithMessagef(format string, args ...any) *ErrorBuilder {
	b.err = errors.WithMessagef(b.err, format, args...)
	return b
}

// WithHint sets the message shown to clients
func (b *ErrorBuilder) WithHint(hint string) *ErrorBuilder {
	b.err = errors.WithHint(b.err, hint)
	return b
}

func (b *ErrorBuilder) WithHintf(format string, args ...any) *ErrorBuilder {
	b.err = errors.WithHintf(b.err, format, args...)
	return b
}

// WithReportableDetails adds fields that are safe to return to clients.
// Repeated calls merge; later keys win.
func (b *ErrorBuilder) WithReportableDetails(details map[string]any) *ErrorBuilder {
	if b.details == nil {
		b.details = make(map[string]any, len(details))
	}
	maps.Copy(b.details, details)
	return b
}

// Mark tags the error with a sentinel and returns it. It must be the last
// call in the chain.
func (b *ErrorBuilder) Mark(reference error) error {
	if len(b.details) > 0 {
		if marshaled, err := json.Marshal(b.details); err == nil {
			b.err = errors.WithSafeDetails(b.err, SafeDetailsPrefix+"%s", errors.Safe(string(marshaled)))
		}
	}
	return errors.Mark(b.err, reference)
}
