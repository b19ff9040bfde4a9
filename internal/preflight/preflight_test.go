package preflight

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"courier/internal/config"
	"courier/internal/push"
	"courier/internal/testsupport"
	"courier/internal/transport"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if !strings.Contains(result.Detail, "does not exist") {
		t.Fatalf("unexpected detail: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDirectoryAccess("test", f)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckDeliveryLog(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "deliveries.db")

	result := CheckDeliveryLog(path)
	if !result.Passed || !strings.Contains(result.Detail, "will be created") {
		t.Fatalf("missing log in writable dir: %+v", result)
	}

	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	result = CheckDeliveryLog(path)
	if !result.Passed || !strings.Contains(result.Detail, "read/write ok") {
		t.Fatalf("existing log: %+v", result)
	}

	result = CheckDeliveryLog(filepath.Join(dir, "missing", "deliveries.db"))
	if result.Passed {
		t.Fatal("expected failure when the parent directory is missing")
	}
}

func TestCheckCredentials_Token(t *testing.T) {
	dir := t.TempDir()
	keyPath := testsupport.WriteSigningKey(t, dir)
	cfg := push.TokenConfiguration("prod", push.Production, "ABC123DEFG", "DEF123GHIJ", keyPath)

	result := CheckCredentials(cfg)
	if !result.Passed {
		t.Fatalf("expected valid key to pass, got: %s", result.Detail)
	}
	if result.Name != "prod credentials" {
		t.Fatalf("unexpected name %q", result.Name)
	}

	garbage := filepath.Join(dir, "garbage.p8")
	if err := os.WriteFile(garbage, []byte("not a key"), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg.PrivateKeyPath = garbage
	if result := CheckCredentials(cfg); result.Passed {
		t.Fatal("expected unparsable key to fail")
	}

	cfg.PrivateKeyPath = filepath.Join(dir, "missing.p8")
	if result := CheckCredentials(cfg); result.Passed {
		t.Fatal("expected missing key to fail")
	}
}

func TestCheckCredentials_CertificateMissing(t *testing.T) {
	cfg := push.CertificateConfiguration("legacy", push.Development, filepath.Join(t.TempDir(), "missing.p12"), "")
	result := CheckCredentials(cfg)
	if result.Passed {
		t.Fatal("expected missing certificate to fail")
	}
}

func TestCheckGateway_Reachable(t *testing.T) {
	gw := testsupport.NewGateway(t)
	cfg := push.TestConfiguration("local", gw.Host, gw.Port)
	cfg.CAFile = gw.CAFile

	result := CheckGateway(context.Background(), cfg, transport.NewHTTP2Dialer())
	if !result.Passed {
		t.Fatalf("expected reachable gateway to pass, got: %s", result.Detail)
	}
	if !strings.Contains(result.Detail, "HTTP/2 ok") {
		t.Fatalf("unexpected detail: %s", result.Detail)
	}
}

func TestCheckGateway_Untrusted(t *testing.T) {
	gw := testsupport.NewGateway(t)
	cfg := push.TestConfiguration("local", gw.Host, gw.Port)

	result := CheckGateway(context.Background(), cfg, transport.NewHTTP2Dialer())
	if result.Passed {
		t.Fatal("expected untrusted certificate to fail")
	}
}

func TestCheckGateway_Unreachable(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := ln.Addr().(*net.TCPAddr)
	ln.Close()

	cfg := push.TestConfiguration("local", "127.0.0.1", addr.Port)
	result := CheckGateway(context.Background(), cfg, transport.NewHTTP2Dialer())
	if result.Passed {
		t.Fatal("expected closed port to fail")
	}
	if !strings.Contains(result.Detail, addr.String()) {
		t.Fatalf("detail should name the address, got: %s", result.Detail)
	}
}

func TestRunAll(t *testing.T) {
	gw := testsupport.NewGateway(t)
	cfg := testsupport.NewConfig(t,
		testsupport.WithGateway("local", gw),
		testsupport.WithTokenGateway("signed", gw),
	)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatal(err)
	}

	results := RunAll(context.Background(), cfg, Options{})
	names := make([]string, 0, len(results))
	for _, r := range results {
		names = append(names, r.Name)
	}
	want := []string{
		"Log directory",
		"State directory",
		"Delivery log",
		"local credentials",
		"local gateway",
		"signed credentials",
		"signed gateway",
	}
	if strings.Join(names, ",") != strings.Join(want, ",") {
		t.Fatalf("results = %v, want %v", names, want)
	}
	if n := Failed(results); n != 0 {
		t.Fatalf("expected every check to pass, %d failed: %+v", n, results)
	}
}

func TestRunAll_OfflineSkipsGateways(t *testing.T) {
	gw := testsupport.NewGateway(t)
	cfg := testsupport.NewConfig(t, testsupport.WithGateway("local", gw), testsupport.WithoutDeliveryLog())

	results := RunAll(context.Background(), cfg, Options{Offline: true})
	for _, r := range results {
		if strings.HasSuffix(r.Name, " gateway") {
			t.Fatalf("offline run dialed a gateway: %+v", r)
		}
		if r.Name == "Delivery log" {
			t.Fatal("disabled delivery log should not be checked")
		}
	}
	// LogDir was never created.
	if n := Failed(results); n != 1 {
		t.Fatalf("expected only the log directory to fail, got %d: %+v", n, results)
	}
}

func TestRunAll_InvalidEntry(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.APNs = append(cfg.APNs, config.APNs{Name: "broken", Environment: "staging", SignatureFormat: "der"})

	results := RunAll(context.Background(), cfg, Options{Offline: true})
	last := results[len(results)-1]
	if last.Name != "broken credentials" || last.Passed {
		t.Fatalf("expected broken entry to fail, got %+v", last)
	}
}

func TestRunAll_NilConfig(t *testing.T) {
	if results := RunAll(context.Background(), nil, Options{}); results != nil {
		t.Fatalf("expected nil results, got %+v", results)
	}
}
