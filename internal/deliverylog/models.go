package deliverylog

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Entry summarises one stored delivery call.
type Entry struct {
	ID            string        `json:"id"`
	Configuration string        `json:"configuration"`
	Topic         string        `json:"topic,omitempty"`
	PushType      string        `json:"push_type,omitempty"`
	Payload       string        `json:"payload"`
	Recipients    int           `json:"recipients"`
	Delivered     int           `json:"delivered"`
	Failed        int           `json:"failed"`
	Aggregated    bool          `json:"aggregated"`
	StartedAt     time.Time     `json:"started_at"`
	Duration      time.Duration `json:"duration_ns"`
}

// Outcome is one stored response.
type Outcome struct {
	DeliveryID string `json:"delivery_id"`
	Position   int    `json:"position"`
	Recipient  string `json:"recipient"`
	Status     int    `json:"status"`
	Reason     string `json:"reason,omitempty"`
	APNsID     string `json:"apns_id,omitempty"`
	Body       string `json:"body,omitempty"`
}

// timeLayout is fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

const entryColumns = "id, configuration, topic, push_type, payload, recipients, delivered, failed, aggregated, started_at, duration_ms"

var outcomeColumnList = []string{"delivery_id", "position", "recipient", "status", "reason", "apns_id", "body"}

var outcomeColumns = strings.Join(outcomeColumnList, ", ")

func prefixed(prefix string, columns []string) string {
	out := make([]string, len(columns))
	for i, col := range columns {
		out[i] = prefix + col
	}
	return strings.Join(out, ", ")
}

func scanEntry(scanner interface{ Scan(dest ...any) error }) (*Entry, error) {
	var (
		entry      Entry
		topic      sql.NullString
		pushType   sql.NullString
		aggregated int64
		startedRaw string
		durationMS int64
	)
	if err := scanner.Scan(
		&entry.ID,
		&entry.Configuration,
		&topic,
		&pushType,
		&entry.Payload,
		&entry.Recipients,
		&entry.Delivered,
		&entry.Failed,
		&aggregated,
		&startedRaw,
		&durationMS,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan delivery: %w", err)
	}
	entry.Topic = topic.String
	entry.PushType = pushType.String
	entry.Aggregated = aggregated != 0
	entry.StartedAt = parseTime(startedRaw)
	entry.Duration = time.Duration(durationMS) * time.Millisecond
	return &entry, nil
}

func scanOutcomes(rows *sql.Rows) ([]Outcome, error) {
	var outcomes []Outcome
	for rows.Next() {
		var (
			out    Outcome
			reason sql.NullString
			apnsID sql.NullString
			body   sql.NullString
		)
		if err := rows.Scan(&out.DeliveryID, &out.Position, &out.Recipient, &out.Status, &reason, &apnsID, &body); err != nil {
			return nil, fmt.Errorf("scan response: %w", err)
		}
		out.Reason = reason.String
		out.APNsID = apnsID.String
		out.Body = body.String
		outcomes = append(outcomes, out)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate responses: %w", err)
	}
	return outcomes, nil
}

func parseTime(raw string) time.Time {
	if raw == "" {
		return time.Time{}
	}
	t, err := time.Parse(timeLayout, raw)
	if err != nil {
		return time.Time{}
	}
	return t
}

func nullableString(value string) any {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return value
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
