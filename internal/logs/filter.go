package logs

import (
	"encoding/json"
	"strings"

	"courier/internal/logging"
)

var levelRank = map[string]int{
	"debug": 0,
	"info":  1,
	"warn":  2,
	"error": 3,
}

// Filter selects log lines. Zero-valued fields match everything.
type Filter struct {
	// MinLevel drops records below debug, info, warn, or error.
	MinLevel      string
	Configuration string
	DeliveryID    string
	Contains      string
}

// Empty reports whether f matches every line.
func (f Filter) Empty() bool {
	return f == Filter{}
}

// Match reports whether line passes the filter. Lines that are not JSON
// records only match text filters.
func (f Filter) Match(line string) bool {
	if f.Contains != "" && !strings.Contains(line, f.Contains) {
		return false
	}
	if f.MinLevel == "" && f.Configuration == "" && f.DeliveryID == "" {
		return true
	}

	var record map[string]any
	if err := json.Unmarshal([]byte(line), &record); err != nil {
		return false
	}
	if f.MinLevel != "" {
		level, _ := record["level"].(string)
		have, ok := levelRank[strings.ToLower(level)]
		if !ok || have < levelRank[strings.ToLower(f.MinLevel)] {
			return false
		}
	}
	if f.Configuration != "" && stringField(record, logging.FieldConfiguration) != f.Configuration {
		return false
	}
	if f.DeliveryID != "" && stringField(record, logging.FieldDeliveryID) != f.DeliveryID {
		return false
	}
	return true
}

// Apply returns the lines that pass f.
func (f Filter) Apply(lines []string) []string {
	if f.Empty() {
		return lines
	}
	out := lines[:0:0]
	for _, line := range lines {
		if f.Match(line) {
			out = append(out, line)
		}
	}
	return out
}

func stringField(record map[string]any, key string) string {
	value, _ := record[key].(string)
	return value
}
