package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"courier/internal/payload"
	"courier/internal/testsupport"
)

func TestSendDeliversAndRecordsHistory(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"send", "aaaa", "bbbb", "--body", "Hello", "--badge", "2"}, env.configPath)
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	requireContains(t, out, "aaaa")
	requireContains(t, out, "[OK] 2 of 2")

	seen := env.gateway.Requests()
	if len(seen) != 2 {
		t.Fatalf("expected 2 gateway requests, got %d", len(seen))
	}
	if seen[0].Topic != "com.example.app" || seen[0].Body != `{"aps":{"badge":2,"alert":"Hello"}}` {
		t.Fatalf("unexpected request %+v", seen[0])
	}

	out, _, err = runCLI(t, []string{"history", "--json"}, env.configPath)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	var entries []struct {
		ID         string `json:"id"`
		Recipients int    `json:"recipients"`
		Delivered  int    `json:"delivered"`
	}
	if err := json.Unmarshal([]byte(out), &entries); err != nil {
		t.Fatalf("decode history: %v\n%s", err, out)
	}
	if len(entries) != 1 || entries[0].Recipients != 2 || entries[0].Delivered != 2 {
		t.Fatalf("unexpected history %+v", entries)
	}

	out, _, err = runCLI(t, []string{"history", "show", entries[0].ID}, env.configPath)
	if err != nil {
		t.Fatalf("history show: %v", err)
	}
	requireContains(t, out, "== Delivery "+entries[0].ID+" ==")
	requireContains(t, out, "bbbb")
	requireContains(t, out, `"alert":"Hello"`)

	out, _, err = runCLI(t, []string{"history"}, env.configPath)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	requireContains(t, out, entries[0].ID)
}

func TestSendReportsGatewayRejections(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"send", "aaaa", "gone1", "bad1", "--body", "x"}, env.configPath)
	if err == nil {
		t.Fatal("expected an error when some notifications fail")
	}
	requireContains(t, err.Error(), "2 of 3 notifications failed")
	requireContains(t, out, "Unregistered")
	requireContains(t, out, "BadDeviceToken")
	requireContains(t, out, "[WARN] 1 of 3")

	out, _, err = runCLI(t, []string{"history", "unregistered"}, env.configPath)
	if err != nil {
		t.Fatalf("history unregistered: %v", err)
	}
	if strings.TrimSpace(out) != "gone1" {
		t.Fatalf("expected only gone1, got %q", out)
	}
}

func TestSendJSONAndTokensFile(t *testing.T) {
	env := setupCLITestEnv(t)
	tokens := filepath.Join(env.baseDir, "tokens.txt")
	if err := os.WriteFile(tokens, []byte("# devices\naaaa\n\nbbbb\n"), 0o644); err != nil {
		t.Fatalf("write tokens: %v", err)
	}

	out, _, err := runCLI(t, []string{"send", "cccc", "--tokens-file", tokens, "--content-available", "--json"}, env.configPath)
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	var results []sendResult
	if err := json.Unmarshal([]byte(out), &results); err != nil {
		t.Fatalf("decode results: %v\n%s", err, out)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	for i, want := range []string{"cccc", "aaaa", "bbbb"} {
		if results[i].Recipient != want || results[i].Status != 200 || results[i].Configuration != "local" {
			t.Fatalf("result %d: unexpected %+v", i, results[i])
		}
	}
}

func TestSendUnknownConfigurationIsAggregate(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"send", "aaaa", "bbbb", "-C", "nope", "--json"}, env.configPath)
	if err == nil {
		t.Fatal("expected failure for an unknown configuration")
	}
	var results []sendResult
	if err := json.Unmarshal([]byte(out), &results); err != nil {
		t.Fatalf("decode results: %v\n%s", err, out)
	}
	if len(results) != 1 || results[0].Recipient != "*" || results[0].Status != 0 {
		t.Fatalf("expected one aggregate result, got %+v", results)
	}
	requireContains(t, results[0].Body, "unknown configuration")
	if len(env.gateway.Requests()) != 0 {
		t.Fatal("expected nothing sent")
	}
}

func TestSendFansOutAcrossConfigurations(t *testing.T) {
	env := setupCLITestEnv(t, func(gw *testsupport.Gateway) testsupport.ConfigOption {
		return testsupport.WithTokenGateway("signed", gw)
	})

	out, _, err := runCLI(t, []string{"send", "aaaa", "-C", "local", "-C", "signed", "--json"}, env.configPath)
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	var results []sendResult
	if err := json.Unmarshal([]byte(out), &results); err != nil {
		t.Fatalf("decode results: %v", err)
	}
	if len(results) != 2 || results[0].Configuration != "local" || results[1].Configuration != "signed" {
		t.Fatalf("unexpected results %+v", results)
	}
	bearer := 0
	for _, req := range env.gateway.Requests() {
		if strings.HasPrefix(req.Authorization, "bearer ") {
			bearer++
		}
	}
	if bearer != 1 {
		t.Fatalf("expected exactly one token-authenticated request, got %d", bearer)
	}
}

func TestSendValidatesInput(t *testing.T) {
	env := setupCLITestEnv(t)

	cases := map[string][]string{
		"no tokens":      {"send", "--body", "x"},
		"bad priority":   {"send", "aaaa", "--priority", "7"},
		"bad push type":  {"send", "aaaa", "--push-type", "liveactivity"},
		"bad data":       {"send", "aaaa", "--data", "novalue"},
		"bad data json":  {"send", "aaaa", "--data-json", "k={"},
		"long collapse":  {"send", "aaaa", "--collapse-id", strings.Repeat("x", 65)},
		"missing tokens": {"send", "--tokens-file", filepath.Join(env.baseDir, "none.txt")},
	}
	for name, args := range cases {
		t.Run(name, func(t *testing.T) {
			if _, _, err := runCLI(t, args, env.configPath); err == nil {
				t.Fatalf("expected error for %v", args)
			}
		})
	}
	if len(env.gateway.Requests()) != 0 {
		t.Fatal("expected nothing sent for invalid input")
	}
}

func TestSendCustomDataAndHeaders(t *testing.T) {
	env := setupCLITestEnv(t)

	args := []string{
		"send", "aaaa",
		"--title", "T",
		"--body", "B",
		"--data", "kind=score",
		"--data-json", `meta={"b":1,"a":[true,null,1.5]}`,
		"--push-type", "alert",
		"--expiration", "1h",
	}
	if _, _, err := runCLI(t, args, env.configPath); err != nil {
		t.Fatalf("send: %v", err)
	}
	seen := env.gateway.Requests()
	if len(seen) != 1 {
		t.Fatalf("expected one request, got %d", len(seen))
	}
	want := `{"kind":"score","meta":{"a":[true,null,1.5],"b":1},"aps":{"alert":{"title":"T","body":"B"}}}`
	if seen[0].Body != want {
		t.Fatalf("unexpected payload\n got %s\nwant %s", seen[0].Body, want)
	}
}

func TestValueFromJSON(t *testing.T) {
	var decoded any
	dec := json.NewDecoder(strings.NewReader(`{"z":"s","n":12,"f":0.5}`))
	dec.UseNumber()
	if err := dec.Decode(&decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	got := payload.Render([]payload.Item{payload.Custom("x", valueFromJSON(decoded))})
	if string(got) != `{"x":{"f":0.5,"n":12,"z":"s"},"aps":{}}` {
		t.Fatalf("unexpected render %s", got)
	}
}

func TestShortToken(t *testing.T) {
	if got := shortToken("abcd"); got != "abcd" {
		t.Fatalf("short token changed: %q", got)
	}
	long := strings.Repeat("a", 8) + strings.Repeat("x", 48) + strings.Repeat("b", 8)
	if got := shortToken(long); got != "aaaaaaaa…bbbbbbbb" {
		t.Fatalf("unexpected %q", got)
	}
}
