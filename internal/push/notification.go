package push

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"courier/internal/transport"
)

// Expiration tells the gateway how long to keep an undeliverable
// notification.
type Expiration struct {
	after time.Duration
	at    time.Time
}

// ExpireImmediately asks the gateway to attempt delivery once and drop the
// notification if the device is offline.
func ExpireImmediately() Expiration { return Expiration{} }

// ExpireAfter keeps the notification for d from the time it is sent.
func ExpireAfter(d time.Duration) Expiration { return Expiration{after: d} }

// ExpireAt keeps the notification until t.
func ExpireAt(t time.Time) Expiration { return Expiration{at: t} }

// HeaderValue is the apns-expiration value for a request sent at now.
func (e Expiration) HeaderValue(now time.Time) string {
	switch {
	case !e.at.IsZero():
		return strconv.FormatInt(e.at.Unix(), 10)
	case e.after > 0:
		return strconv.FormatInt(now.Add(e.after).Unix(), 10)
	default:
		return "0"
	}
}

// Priority is the apns-priority value.
type Priority int

const (
	PriorityImmediate  Priority = 10
	PriorityBackground Priority = 5
)

// PushType is the apns-push-type value.
type PushType string

const (
	PushTypeAlert        PushType = "alert"
	PushTypeBackground   PushType = "background"
	PushTypeVoIP         PushType = "voip"
	PushTypeComplication PushType = "complication"
	PushTypeFileProvider PushType = "fileprovider"
	PushTypeMDM          PushType = "mdm"
)

// ParsePushType accepts the header spelling of a push type. The empty string
// means no header.
func ParsePushType(raw string) (PushType, error) {
	value := PushType(strings.ToLower(strings.TrimSpace(raw)))
	switch value {
	case "", PushTypeAlert, PushTypeBackground, PushTypeVoIP, PushTypeComplication, PushTypeFileProvider, PushTypeMDM:
		return value, nil
	default:
		return "", fmt.Errorf("unknown push type %q", raw)
	}
}

// Notification holds the per-call header settings shared by every recipient.
type Notification struct {
	Topic      string
	Expiration Expiration
	// Priority defaults to PriorityImmediate.
	Priority   Priority
	CollapseID string
	PushType   PushType
	// GenerateID sends a fresh apns-id UUID with every request.
	GenerateID bool
}

const devicePathPrefix = "/3/device/"

func (n Notification) header(now time.Time, bearer string) http.Header {
	h := make(http.Header, 8)
	h.Set("content-type", "application/json; charset=utf-8")
	h.Set("apns-expiration", n.Expiration.HeaderValue(now))
	priority := n.Priority
	if priority == 0 {
		priority = PriorityImmediate
	}
	h.Set("apns-priority", strconv.Itoa(int(priority)))
	h.Set("apns-topic", n.Topic)
	if n.CollapseID != "" {
		h.Set("apns-collapse-id", n.CollapseID)
	}
	if n.PushType != "" {
		h.Set("apns-push-type", string(n.PushType))
	}
	if n.GenerateID {
		h.Set("apns-id", uuid.NewString())
	}
	if bearer != "" {
		h.Set("authorization", "bearer "+bearer)
	}
	return h
}

func (n Notification) request(recipient string, payload []byte, now time.Time, bearer string) *transport.Request {
	return &transport.Request{
		Method: http.MethodPost,
		Path:   devicePathPrefix + recipient,
		Header: n.header(now, bearer),
		Body:   payload,
	}
}
