package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLogsCommand(t *testing.T) {
	env := setupCLITestEnv(t)

	records := []string{
		`{"ts":"2026-01-02T03:04:05Z","level":"info","msg":"configuration registered","configuration":"local"}`,
		`{"ts":"2026-01-02T03:04:06Z","level":"warn","msg":"send failed, retrying on a fresh stream","configuration":"local","delivery_id":"d-1"}`,
		`{"ts":"2026-01-02T03:04:07Z","level":"info","msg":"delivery complete","configuration":"other","delivery_id":"d-2"}`,
	}
	if err := os.MkdirAll(env.cfg.Paths.LogDir, 0o755); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(env.cfg.Paths.LogDir, "courier.log")
	if err := os.WriteFile(path, []byte(strings.Join(records, "\n")+"\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	out, _, err := runCLI(t, []string{"logs", "-n", "2"}, env.configPath)
	if err != nil {
		t.Fatalf("logs: %v", err)
	}
	if strings.Contains(out, "configuration registered") {
		t.Fatalf("expected only the last two lines:\n%s", out)
	}
	requireContains(t, out, "delivery complete")

	out, _, err = runCLI(t, []string{"logs", "-C", "local", "--level", "warn"}, env.configPath)
	if err != nil {
		t.Fatalf("logs filtered: %v", err)
	}
	if got := strings.Count(out, "\n"); got != 1 {
		t.Fatalf("expected one filtered line, got %d:\n%s", got, out)
	}
	requireContains(t, out, "retrying on a fresh stream")

	out, _, err = runCLI(t, []string{"logs", "--delivery", "d-2"}, env.configPath)
	if err != nil {
		t.Fatalf("logs --delivery: %v", err)
	}
	requireContains(t, out, `"configuration":"other"`)

	if _, _, err := runCLI(t, []string{"logs", "--level", "loud"}, env.configPath); err == nil {
		t.Fatal("expected invalid level to fail")
	}
}
