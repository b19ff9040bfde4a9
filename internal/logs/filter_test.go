package logs

import "testing"

func TestFilterMatch(t *testing.T) {
	info := `{"ts":"2026-01-02T03:04:05Z","level":"info","msg":"delivery complete","configuration":"prod","delivery_id":"d-1"}`
	warn := `{"ts":"2026-01-02T03:04:06Z","level":"warn","msg":"send failed","configuration":"dev","delivery_id":"d-2"}`
	plain := "not json at all"

	tests := []struct {
		name   string
		filter Filter
		line   string
		want   bool
	}{
		{"empty matches json", Filter{}, info, true},
		{"empty matches text", Filter{}, plain, true},
		{"level below minimum", Filter{MinLevel: "warn"}, info, false},
		{"level at minimum", Filter{MinLevel: "warn"}, warn, true},
		{"configuration match", Filter{Configuration: "prod"}, info, true},
		{"configuration mismatch", Filter{Configuration: "prod"}, warn, false},
		{"delivery match", Filter{DeliveryID: "d-2"}, warn, true},
		{"structured filter skips text", Filter{Configuration: "prod"}, plain, false},
		{"contains", Filter{Contains: "send failed"}, warn, true},
		{"contains miss", Filter{Contains: "send failed"}, info, false},
		{"contains on text", Filter{Contains: "json"}, plain, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.filter.Match(tt.line); got != tt.want {
				t.Fatalf("Match = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFilterApply(t *testing.T) {
	lines := []string{
		`{"level":"debug","msg":"a"}`,
		`{"level":"error","msg":"b"}`,
	}
	if got := (Filter{}).Apply(lines); len(got) != 2 {
		t.Fatalf("empty filter dropped lines: %#v", got)
	}
	got := Filter{MinLevel: "error"}.Apply(lines)
	if len(got) != 1 || got[0] != lines[1] {
		t.Fatalf("unexpected filtered lines: %#v", got)
	}
	if len(lines) != 2 {
		t.Fatal("Apply modified its input")
	}
}
