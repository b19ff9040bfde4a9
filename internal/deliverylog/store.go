package deliverylog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"courier/internal/config"
	"courier/internal/push"
)

// AggregateRecipient marks the single response row of a call that collapsed
// into one aggregate failure.
const AggregateRecipient = "*"

// Store manages delivery history backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
	now  func() time.Time
}

// Open initializes or connects to the delivery log configured in cfg.
func Open(cfg *config.Config) (*Store, error) {
	return OpenPath(cfg.DeliveryLog.Path)
}

// OpenPath initializes or connects to the delivery log at path.
func OpenPath(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create delivery log dir: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: path, now: time.Now}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Path returns the database file location.
func (s *Store) Path() string { return s.path }

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Record stores one delivery call and its responses.
func (s *Store) Record(ctx context.Context, d push.Delivery) error {
	if d.ID == "" {
		return errors.New("delivery id is empty")
	}
	delivered, failed := 0, 0
	for _, resp := range d.Responses {
		if resp.OK() {
			delivered++
		} else {
			failed++
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin record tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(
		ctx,
		`INSERT INTO deliveries (
            id, configuration, topic, push_type, payload, recipients,
            delivered, failed, aggregated, started_at, duration_ms
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ID,
		d.Configuration,
		nullableString(d.Topic),
		nullableString(string(d.PushType)),
		string(d.Payload),
		len(d.Recipients),
		delivered,
		failed,
		boolToInt(d.Aggregated()),
		d.StartedAt.UTC().Format(timeLayout),
		d.Duration.Milliseconds(),
	); err != nil {
		return fmt.Errorf("insert delivery: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO responses (
            delivery_id, position, recipient, status, reason, apns_id, body
        ) VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare response insert: %w", err)
	}
	defer stmt.Close()

	for i, resp := range d.Responses {
		recipient := AggregateRecipient
		if !d.Aggregated() && i < len(d.Recipients) {
			recipient = d.Recipients[i]
		}
		var reason string
		if decoded, ok := resp.Reason(); ok {
			reason = decoded.Reason
		}
		body := string(resp.Body)
		if body == "" && resp.Err != nil {
			body = resp.Err.Error()
		}
		if _, err := stmt.ExecContext(ctx,
			d.ID,
			i,
			recipient,
			resp.Status,
			nullableString(reason),
			nullableString(resp.APNsID),
			nullableString(body),
		); err != nil {
			return fmt.Errorf("insert response %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delivery: %w", err)
	}
	return nil
}

// Recent returns up to limit deliveries, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+entryColumns+` FROM deliveries ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list deliveries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate deliveries: %w", err)
	}
	return entries, nil
}

// Get returns one delivery and its responses in recipient order. A missing
// delivery returns nil without error.
func (s *Store) Get(ctx context.Context, id string) (*Entry, []Outcome, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+entryColumns+` FROM deliveries WHERE id = ?`, id)
	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+outcomeColumns+` FROM responses WHERE delivery_id = ? ORDER BY position`, id)
	if err != nil {
		return nil, nil, fmt.Errorf("list responses: %w", err)
	}
	defer rows.Close()
	outcomes, err := scanOutcomes(rows)
	if err != nil {
		return nil, nil, err
	}
	return entry, outcomes, nil
}

// Unregistered returns the recipients the gateway reported as no longer
// valid (status 410), newest first.
func (s *Store) Unregistered(ctx context.Context, configuration string) ([]Outcome, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+prefixed("r.", outcomeColumnList)+`
         FROM responses r JOIN deliveries d ON d.id = r.delivery_id
         WHERE r.status = 410 AND (? = '' OR d.configuration = ?)
         ORDER BY d.started_at DESC, r.position`,
		configuration, configuration)
	if err != nil {
		return nil, fmt.Errorf("list unregistered: %w", err)
	}
	defer rows.Close()
	return scanOutcomes(rows)
}

// Prune deletes deliveries started before cutoff and returns how many were
// removed.
func (s *Store) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM deliveries WHERE started_at < ?`, cutoff.UTC().Format(timeLayout))
	if err != nil {
		return 0, fmt.Errorf("prune deliveries: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}

// PruneRetention applies a retention window in days; zero or less keeps
// everything.
func (s *Store) PruneRetention(ctx context.Context, days int) (int64, error) {
	if days <= 0 {
		return 0, nil
	}
	return s.Prune(ctx, s.now().Add(-time.Duration(days)*24*time.Hour))
}
