package push

import (
	"context"
	"errors"
	"time"
)

// Metrics receives engine events. internal/metrics provides the Prometheus
// implementation.
type Metrics interface {
	StreamCreated(configuration string)
	StreamReused(configuration string)
	StreamDiscarded(configuration, reason string)
	RequestCompleted(configuration string, status int, elapsed time.Duration)
	TransportRetried(configuration string)
	DeliveryAborted(configuration string)
}

// Delivery summarizes one completed delivery call.
type Delivery struct {
	ID            string
	Configuration string
	Topic         string
	PushType      PushType
	Payload       []byte
	Recipients    []string
	Responses     []Response
	StartedAt     time.Time
	Duration      time.Duration
}

// Aggregated reports whether the call collapsed into a single failure.
func (d Delivery) Aggregated() bool {
	if len(d.Recipients) > 0 && len(d.Responses) != len(d.Recipients) {
		return true
	}
	return len(d.Responses) == 1 && errors.Is(d.Responses[0].Err, ErrAggregate)
}

// Recorder persists completed deliveries. internal/deliverylog provides the
// SQLite implementation.
type Recorder interface {
	Record(ctx context.Context, delivery Delivery) error
}

type nopMetrics struct{}

func (nopMetrics) StreamCreated(string)                        {}
func (nopMetrics) StreamReused(string)                         {}
func (nopMetrics) StreamDiscarded(string, string)              {}
func (nopMetrics) RequestCompleted(string, int, time.Duration) {}
func (nopMetrics) TransportRetried(string)                     {}
func (nopMetrics) DeliveryAborted(string)                      {}
