package logging

import (
	"context"
	"log/slog"
)

// Structured keys shared by every courier log line.
const (
	FieldComponent     = "component"
	FieldConfiguration = "configuration"
	FieldDeliveryID    = "delivery_id"
	FieldRecipient     = "recipient"
	FieldStreamID      = "stream_id"
	FieldStatus        = "status"
	// FieldEventType classifies warnings and errors for filtering.
	FieldEventType = "event_type"
	// FieldErrorHint tells the operator what to check next.
	FieldErrorHint = "error_hint"
	// FieldImpact is the user-facing consequence of a warning.
	FieldImpact = "impact"
)

type callKey struct{}

// call is the per-delivery scope carried on a context.
type call struct {
	configuration string
	deliveryID    string
}

func callFrom(ctx context.Context) call {
	if ctx == nil {
		return call{}
	}
	c, _ := ctx.Value(callKey{}).(call)
	return c
}

// WithConfiguration annotates ctx with the gateway configuration name.
func WithConfiguration(ctx context.Context, name string) context.Context {
	c := callFrom(ctx)
	c.configuration = name
	return context.WithValue(ctx, callKey{}, c)
}

// WithDeliveryID annotates ctx with a delivery call identifier.
func WithDeliveryID(ctx context.Context, id string) context.Context {
	c := callFrom(ctx)
	c.deliveryID = id
	return context.WithValue(ctx, callKey{}, c)
}

// WithContext returns logger tagged with the configuration and delivery id
// carried by ctx, if any.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	c := callFrom(ctx)
	var args []any
	if c.configuration != "" {
		args = append(args, Configuration(c.configuration))
	}
	if c.deliveryID != "" {
		args = append(args, String(FieldDeliveryID, c.deliveryID))
	}
	if len(args) == 0 {
		return logger
	}
	return logger.With(args...)
}

// NewComponentLogger tags logger with a component name. A nil logger yields a
// no-op logger.
func NewComponentLogger(logger *slog.Logger, component string) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	return logger.With(String(FieldComponent, component))
}
