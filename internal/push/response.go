package push

import (
	"encoding/json"
	"net/http"
	"time"
)

// StatusTransportFailure marks a Response for which no reply was received.
// The gateway never answers with it.
const StatusTransportFailure = 0

const couldNotConnect = "Could not connect"

// Response is the outcome for one recipient.
type Response struct {
	Status int
	Body   []byte
	// APNsID is the apns-id header echoed by the gateway.
	APNsID string
	// Err is set for transport failures and aggregate failures.
	Err error
}

// OK reports a 200 reply.
func (r Response) OK() bool { return r.Status == http.StatusOK }

// TransportFailed reports that no reply was received.
func (r Response) TransportFailed() bool { return r.Status == StatusTransportFailure }

func (r Response) String() string { return string(r.Body) }

// ErrorReason is the JSON body the gateway sends with non-200 replies.
type ErrorReason struct {
	Reason    string `json:"reason"`
	Timestamp int64  `json:"timestamp,omitempty"`
}

// Unregistered returns the time the gateway learned the token was no longer
// valid, when the reply carried one.
func (e ErrorReason) Unregistered() (time.Time, bool) {
	if e.Timestamp <= 0 {
		return time.Time{}, false
	}
	return time.UnixMilli(e.Timestamp), true
}

// Reason decodes the gateway's error body.
func (r Response) Reason() (ErrorReason, bool) {
	if r.TransportFailed() || len(r.Body) == 0 {
		return ErrorReason{}, false
	}
	var reason ErrorReason
	if err := json.Unmarshal(r.Body, &reason); err != nil || reason.Reason == "" {
		return ErrorReason{}, false
	}
	return reason, true
}

func transportFailure(err error) Response {
	body := couldNotConnect
	if err != nil {
		body = err.Error()
	}
	return Response{Status: StatusTransportFailure, Body: []byte(body), Err: err}
}

func aggregateFailure(err error) Response {
	return Response{Status: StatusTransportFailure, Err: err}
}

// cloneFailure copies r so that synthesized responses never share a body.
func cloneFailure(r Response) Response {
	body := r.Body
	if len(body) == 0 {
		body = []byte(couldNotConnect)
	}
	return Response{Status: StatusTransportFailure, Body: append([]byte(nil), body...), Err: r.Err}
}
