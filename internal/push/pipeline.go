package push

import (
	"context"
	"log/slog"

	"courier/internal/logging"
)

// delivery is one call's walk over its recipients.
type delivery struct {
	engine  *Engine
	entry   *configuration
	note    Notification
	payload []byte
	logger  *slog.Logger
}

func (d *delivery) run(ctx context.Context, recipients []string) []Response {
	p := d.entry.pool
	current, err := p.acquire(ctx)
	if err != nil {
		return []Response{aggregateFailure(Wrap(ErrAggregate, "pipeline", "acquire", d.entry.settings.Name, err))}
	}

	responses := make([]Response, 0, len(recipients))
	for i, recipient := range recipients {
		resp := d.send(ctx, current, recipient)
		if !resp.TransportFailed() {
			responses = append(responses, resp)
			continue
		}

		// The failed stream is never reused.
		p.discard(current, "send failed")
		current = nil

		var retryErr error
		if ctx.Err() == nil {
			d.engine.metrics.TransportRetried(p.name)
			logging.WarnWithContext(d.logger, "send failed, retrying on a fresh stream", "transport_retry",
				logging.Recipient(recipient),
				logging.Error(resp.Err),
				logging.String(logging.FieldErrorHint, "check gateway reachability"),
				logging.String(logging.FieldImpact, "recipient is retried once"),
			)
			current, retryErr = p.acquire(ctx)
			if retryErr == nil {
				retried := d.send(ctx, current, recipient)
				if !retried.TransportFailed() {
					responses = append(responses, retried)
					continue
				}
				resp = retried
				p.discard(current, "send failed")
				current = nil
			}
		}

		responses = d.abort(responses, resp, len(recipients)-i, retryErr)
		break
	}

	if current != nil {
		p.release(current)
	}
	if len(responses) != len(recipients) {
		return []Response{aggregateFailure(Wrap(ErrAggregate, "pipeline", "collect", "response count does not match recipients", nil))}
	}
	return responses
}

// abort appends count identical failures, one for the recipient that could
// not be delivered and one for each recipient not yet attempted.
func (d *delivery) abort(responses []Response, last Response, count int, retryErr error) []Response {
	d.engine.metrics.DeliveryAborted(d.entry.settings.Name)
	attrs := []logging.Attr{
		logging.Int("unsent", count),
		logging.Error(last.Err),
		logging.String(logging.FieldErrorHint, "check gateway reachability and TLS credentials"),
		logging.String(logging.FieldImpact, "remaining recipients were not notified"),
	}
	if retryErr != nil {
		attrs = append(attrs, logging.String("retry_error", retryErr.Error()))
	}
	logging.ErrorWithContext(d.logger, "delivery aborted after retry", "delivery_aborted", attrs...)

	for range count {
		responses = append(responses, cloneFailure(last))
	}
	return responses
}

func (d *delivery) send(ctx context.Context, s *stream, recipient string) Response {
	if d.entry.limiter != nil {
		if err := d.entry.limiter.Wait(ctx); err != nil {
			return transportFailure(Wrap(ErrTransport, "pipeline", "rate limit", recipient, err))
		}
	}

	var bearer string
	if d.entry.tokens != nil {
		if tok, ok := d.entry.tokens.Token(); ok {
			bearer = tok
		}
	}

	started := d.engine.now()
	req := d.note.request(recipient, d.payload, started, bearer)
	reply, err := s.conn.RoundTrip(ctx, req)
	if err != nil {
		return transportFailure(Wrap(ErrTransport, "pipeline", "send", "stream "+formatID(s.id), err))
	}
	d.engine.metrics.RequestCompleted(d.entry.settings.Name, reply.Status, d.engine.now().Sub(started))
	d.logger.Debug("reply received",
		logging.Recipient(recipient),
		logging.StreamID(s.id),
		logging.Status(reply.Status),
	)
	return Response{
		Status: reply.Status,
		Body:   reply.Body,
		APNsID: reply.Header.Get("apns-id"),
	}
}
