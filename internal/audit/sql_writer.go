package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"regexp"
	"sync"
	"time"
)

var tableName = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// SQLWriter inserts records into a postgres table. Records are staged and
// inserted in one transaction per flush.
type SQLWriter struct {
	db      *sql.DB
	table   string
	timeout time.Duration

	mu      sync.Mutex
	pending []*Record
}

// NewSQLWriter creates a sink writing to table. The db handle is owned by
// the caller.
func NewSQLWriter(db *sql.DB, table string) (*SQLWriter, error) {
	if !tableName.MatchString(table) {
		return nil, fmt.Errorf("invalid audit table name: %q", table)
	}
	return &SQLWriter{
		db:      db,
		table:   table,
		timeout: 5 * time.Second,
	}, nil
}

// EnsureSchema creates the audit table when it does not exist.
func (w *SQLWriter) EnsureSchema(ctx context.Context) error {
	_, err := w.db.ExecContext(ctx, fmt.Sprintf(`create table if not exists %s (
	id text primary key,
	created_at timestamptz not null,
	tenant_id text,
	branch_id text,
	user_id text,
	action text not null,
	entity_type text not null,
	entity_id text,
	changes jsonb,
	request_path text,
	request_method text,
	ip_address text,
	user_agent text,
	response_status integer,
	duration_ms bigint
)`, w.table))
	if err != nil {
		return fmt.Errorf("create audit table: %w", err)
	}
	return nil
}

func (w *SQLWriter) Write(record *Record) error {
	if record == nil {
		return nil
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.pending = append(w.pending, record)
	return nil
}

func (w *SQLWriter) Flush() error {
	w.mu.Lock()
	batch := w.pending
	w.pending = nil
	w.mu.Unlock()

	if len(batch) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
	defer cancel()

	if err := w.insert(ctx, batch); err != nil {
		return fmt.Errorf("insert %d audit records: %w", len(batch), err)
	}
	return nil
}

func (w *SQLWriter) insert(ctx context.Context, batch []*Record) error {
	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(`insert into %s
	(id, created_at, tenant_id, branch_id, user_id, action, entity_type, entity_id, changes,
	 request_path, request_method, ip_address, user_agent, response_status, duration_ms)
	values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`, w.table))
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, r := range batch {
		var changes []byte
		if len(r.Changes) > 0 {
			if changes, err = json.Marshal(r.Changes); err != nil {
				return err
			}
		}
		_, err = stmt.ExecContext(ctx,
			r.ID, r.Timestamp,
			nullString(r.TenantID), nullString(r.BranchID), nullString(r.UserID),
			string(r.Action), r.EntityType, nullString(r.EntityID), changes,
			nullString(r.RequestPath), nullString(r.RequestMethod),
			nullString(r.IPAddress), nullString(r.UserAgent),
			nullInt(r.ResponseStatus), nullInt64(r.DurationMs),
		)
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (w *SQLWriter) Close(context.Context) error {
	return w.Flush()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func nullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}
