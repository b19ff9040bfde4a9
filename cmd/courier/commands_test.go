package main

import (
	"encoding/json"
	"strconv"
	"strings"
	"testing"

	"courier/internal/testsupport"
)

func TestConfigsCommand(t *testing.T) {
	env := setupCLITestEnv(t, func(gw *testsupport.Gateway) testsupport.ConfigOption {
		return testsupport.WithTokenGateway("signed", gw)
	})

	out, _, err := runCLI(t, []string{"configs", "--json"}, env.configPath)
	if err != nil {
		t.Fatalf("configs: %v", err)
	}
	var summaries []configSummary
	if err := json.Unmarshal([]byte(out), &summaries); err != nil {
		t.Fatalf("decode configs: %v\n%s", err, out)
	}
	if len(summaries) != 2 {
		t.Fatalf("expected 2 configurations, got %d", len(summaries))
	}
	address := env.gateway.Host + ":" + strconv.Itoa(env.gateway.Port)
	if s := summaries[0]; s.Name != "local" || s.Auth != "none" || s.Environment != "test" || s.Address != address || !s.Default {
		t.Fatalf("unexpected local summary %+v", s)
	}
	if s := summaries[1]; s.Name != "signed" || s.Auth != "token" || s.Default {
		t.Fatalf("unexpected signed summary %+v", s)
	}

	out, _, err = runCLI(t, []string{"configs"}, env.configPath)
	if err != nil {
		t.Fatalf("configs: %v", err)
	}
	requireContains(t, out, "signed")
	requireContains(t, out, address)
}

func TestTokenCommand(t *testing.T) {
	env := setupCLITestEnv(t, func(gw *testsupport.Gateway) testsupport.ConfigOption {
		return testsupport.WithTokenGateway("signed", gw)
	})

	out, _, err := runCLI(t, []string{"token", "signed"}, env.configPath)
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	if strings.Count(strings.TrimSpace(out), ".") != 2 {
		t.Fatalf("expected a three-segment token, got %q", out)
	}

	out, _, err = runCLI(t, []string{"token", "signed", "--decode"}, env.configPath)
	if err != nil {
		t.Fatalf("token --decode: %v", err)
	}
	requireContains(t, out, `"alg":"ES256"`)
	requireContains(t, out, `"kid":"ABC123DEFG"`)
	requireContains(t, out, `"iss":"DEF123GHIJ"`)

	if _, _, err := runCLI(t, []string{"token", "local"}, env.configPath); err == nil {
		t.Fatal("expected error for a configuration without token auth")
	}
	if _, _, err := runCLI(t, []string{"token", "nope"}, env.configPath); err == nil {
		t.Fatal("expected error for an unknown configuration")
	}
}

func TestHistoryEmptyAndPrune(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"history"}, env.configPath)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	requireContains(t, out, "No deliveries recorded")

	out, _, err = runCLI(t, []string{"history", "--json"}, env.configPath)
	if err != nil {
		t.Fatalf("history --json: %v", err)
	}
	if strings.TrimSpace(out) != "[]" {
		t.Fatalf("expected empty JSON array, got %q", out)
	}

	if _, _, err := runCLI(t, []string{"send", "aaaa"}, env.configPath); err != nil {
		t.Fatalf("send: %v", err)
	}
	out, _, err = runCLI(t, []string{"history", "prune"}, env.configPath)
	if err != nil {
		t.Fatalf("history prune: %v", err)
	}
	requireContains(t, out, "Removed 0 deliveries")

	if _, _, err := runCLI(t, []string{"history", "show", "missing"}, env.configPath); err == nil {
		t.Fatal("expected error for an unknown delivery id")
	}
}

func TestHistoryDisabled(t *testing.T) {
	env := setupCLITestEnv(t, func(*testsupport.Gateway) testsupport.ConfigOption {
		return testsupport.WithoutDeliveryLog()
	})
	if _, _, err := runCLI(t, []string{"history"}, env.configPath); err == nil {
		t.Fatal("expected error when the delivery log is disabled")
	}
	if _, _, err := runCLI(t, []string{"send", "aaaa"}, env.configPath); err != nil {
		t.Fatalf("send without delivery log: %v", err)
	}
}

func TestSendWithMetricsListener(t *testing.T) {
	env := setupCLITestEnv(t)
	if _, _, err := runCLI(t, []string{"send", "aaaa", "--metrics-bind", "127.0.0.1:0"}, env.configPath); err != nil {
		t.Fatalf("send with metrics: %v", err)
	}
}
