package push

import (
	"errors"
	"net/http"
	"testing"
	"time"
)

func TestNotificationHeaders(t *testing.T) {
	now := time.Unix(1700000000, 0)
	note := Notification{
		Topic:      "com.example.app",
		Expiration: ExpireAfter(time.Hour),
		Priority:   PriorityBackground,
		CollapseID: "score",
		PushType:   PushTypeBackground,
		GenerateID: true,
	}
	req := note.request("abcd", []byte(`{}`), now, "tok")

	if req.Method != http.MethodPost || req.Path != "/3/device/abcd" {
		t.Fatalf("unexpected request line %s %s", req.Method, req.Path)
	}
	want := map[string]string{
		"content-type":     "application/json; charset=utf-8",
		"apns-expiration":  "1700003600",
		"apns-priority":    "5",
		"apns-topic":       "com.example.app",
		"apns-collapse-id": "score",
		"apns-push-type":   "background",
		"authorization":    "bearer tok",
	}
	for key, value := range want {
		if got := req.Header.Get(key); got != value {
			t.Fatalf("%s = %q, want %q", key, got, value)
		}
	}
	if len(req.Header.Get("apns-id")) != 36 {
		t.Fatalf("expected a UUID apns-id, got %q", req.Header.Get("apns-id"))
	}
}

func TestNotificationDefaults(t *testing.T) {
	h := Notification{}.header(time.Unix(1700000000, 0), "")
	if h.Get("apns-expiration") != "0" || h.Get("apns-priority") != "10" {
		t.Fatalf("unexpected defaults %v", h)
	}
	if _, ok := h["Apns-Topic"]; !ok {
		t.Fatal("expected apns-topic to be sent even when empty")
	}
	for _, key := range []string{"apns-collapse-id", "apns-push-type", "apns-id", "authorization"} {
		if h.Get(key) != "" {
			t.Fatalf("expected %s to be omitted", key)
		}
	}
}

func TestExpirationHeaderValue(t *testing.T) {
	now := time.Unix(1000, 0)
	if got := ExpireImmediately().HeaderValue(now); got != "0" {
		t.Fatalf("immediate: %q", got)
	}
	if got := ExpireAt(time.Unix(5000, 0)).HeaderValue(now); got != "5000" {
		t.Fatalf("at: %q", got)
	}
	if got := ExpireAfter(10 * time.Second).HeaderValue(now); got != "1010" {
		t.Fatalf("after: %q", got)
	}
}

func TestParsePushType(t *testing.T) {
	if got, err := ParsePushType(" VoIP "); err != nil || got != PushTypeVoIP {
		t.Fatalf("unexpected %q, %v", got, err)
	}
	if got, err := ParsePushType(""); err != nil || got != "" {
		t.Fatalf("unexpected %q, %v", got, err)
	}
	if _, err := ParsePushType("liveactivity"); err == nil {
		t.Fatal("expected error for unknown push type")
	}
}

func TestParseEnvironment(t *testing.T) {
	for raw, want := range map[string]Environment{"": Development, "sandbox": Development, "Production": Production, "test": Test} {
		got, err := ParseEnvironment(raw)
		if err != nil || got != want {
			t.Fatalf("ParseEnvironment(%q) = %v, %v", raw, got, err)
		}
	}
	if _, err := ParseEnvironment("staging"); err == nil {
		t.Fatal("expected error")
	}
}

func TestFailureResponses(t *testing.T) {
	err := errors.New("stream reset")
	if got := transportFailure(err); got.String() != "stream reset" || !got.TransportFailed() {
		t.Fatalf("unexpected transport failure %+v", got)
	}
	if got := cloneFailure(Response{}); got.String() != "Could not connect" {
		t.Fatalf("expected placeholder body, got %q", got.String())
	}
	if got := aggregateFailure(err); len(got.Body) != 0 || got.Err != err {
		t.Fatalf("unexpected aggregate failure %+v", got)
	}
	if _, ok := (Response{Status: 400, Body: []byte("not json")}).Reason(); ok {
		t.Fatal("expected no reason for a non-JSON body")
	}
	if _, ok := (ErrorReason{Reason: "BadTopic"}).Unregistered(); ok {
		t.Fatal("expected no timestamp")
	}
}
