package testsupport

import (
	"encoding/json"
	"encoding/pem"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
)

// Gateway is an HTTP/2 TLS server that answers like the push gateway.
type Gateway struct {
	Server *httptest.Server
	Host   string
	Port   int
	// CAFile holds the server certificate in PEM form for clients to trust.
	CAFile string

	mu       sync.Mutex
	requests []GatewayRequest
}

// GatewayRequest is what the gateway saw for one delivery.
type GatewayRequest struct {
	Token         string
	Topic         string
	Authorization string
	Body          string
}

// NewGateway starts a gateway. Tokens starting with "bad" get a 400
// BadDeviceToken reply, tokens starting with "gone" a 410 Unregistered reply,
// and everything else a 200.
func NewGateway(t testing.TB) *Gateway {
	t.Helper()

	gw := &Gateway{}
	srv := httptest.NewUnstartedServer(http.HandlerFunc(gw.serve))
	srv.EnableHTTP2 = true
	srv.StartTLS()
	t.Cleanup(srv.Close)
	gw.Server = srv

	host, portText, err := net.SplitHostPort(srv.Listener.Addr().String())
	if err != nil {
		t.Fatalf("split addr: %v", err)
	}
	port, err := strconv.Atoi(portText)
	if err != nil {
		t.Fatalf("parse port: %v", err)
	}
	gw.Host, gw.Port = host, port

	gw.CAFile = filepath.Join(t.TempDir(), "gateway-ca.pem")
	data := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: srv.Certificate().Raw})
	if err := os.WriteFile(gw.CAFile, data, 0o600); err != nil {
		t.Fatalf("write ca file: %v", err)
	}
	return gw
}

// Requests returns every request served so far.
func (g *Gateway) Requests() []GatewayRequest {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]GatewayRequest(nil), g.requests...)
}

func (g *Gateway) serve(w http.ResponseWriter, r *http.Request) {
	token, ok := strings.CutPrefix(r.URL.Path, "/3/device/")
	if r.Method != http.MethodPost || !ok {
		http.NotFound(w, r)
		return
	}
	body, _ := io.ReadAll(r.Body)
	g.mu.Lock()
	g.requests = append(g.requests, GatewayRequest{
		Token:         token,
		Topic:         r.Header.Get("apns-topic"),
		Authorization: r.Header.Get("authorization"),
		Body:          string(body),
	})
	g.mu.Unlock()

	id := r.Header.Get("apns-id")
	if id == "" {
		id = "00000000-0000-0000-0000-" + strconv.FormatInt(int64(len(token)), 10)
	}
	w.Header().Set("apns-id", id)
	switch {
	case strings.HasPrefix(token, "bad"):
		writeReason(w, http.StatusBadRequest, map[string]any{"reason": "BadDeviceToken"})
	case strings.HasPrefix(token, "gone"):
		writeReason(w, http.StatusGone, map[string]any{"reason": "Unregistered", "timestamp": int64(1700000000000)})
	default:
		w.WriteHeader(http.StatusOK)
	}
}

func writeReason(w http.ResponseWriter, status int, body map[string]any) {
	w.Header().Set("content-type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
