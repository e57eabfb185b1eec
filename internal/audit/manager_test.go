package audit

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/resoniratech-svg/school-erp-manoj-sub004/internal/logger"
	"github.com/resoniratech-svg/school-erp-manoj-sub004/internal/persistence"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManagerDisabledIsNoop(t *testing.T) {
	mgr, err := NewManager(Config{Enabled: false}, logger.NewNop(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if mgr.Enabled() {
		t.Fatal("expected disabled manager")
	}

	if _, err := mgr.Record(context.Background(), &Record{Action: ActionCreate, EntityType: "user"}); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if err := mgr.Shutdown(context.Background()); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}

func TestManagerFileSinkWritesRecords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "audit.log")

	mgr, err := NewManager(Config{
		Enabled:       true,
		Sink:          "file",
		FilePath:      path,
		BufferSize:    8,
		FlushInterval: 5 * time.Millisecond,
		DropPolicy:    DropPolicyBlock,
	}, logger.NewNop(), nil)
	if err != nil {
		t.Fatalf("failed to create manager: %v", err)
	}

	id, err := mgr.Record(context.Background(), &Record{
		TenantID:   "t1",
		Action:     ActionCreate,
		EntityType: "student",
		EntityID:   "s1",
		Changes:    Changes{"name": {Old: nil, New: "Ravi"}},
	})
	if err != nil {
		t.Fatalf("record failed: %v", err)
	}
	if len(id) != 26 {
		t.Errorf("expected ULID id, got %q", id)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := mgr.Shutdown(ctx); err != nil {
		t.Fatalf("shutdown failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read audit log: %v", err)
	}

	var got Record
	if err := json.Unmarshal(bytes.TrimSpace(data), &got); err != nil {
		t.Fatalf("audit log line is not JSON: %v", err)
	}
	if got.ID != id || got.Action != ActionCreate || got.EntityType != "student" {
		t.Errorf("unexpected record %+v", got)
	}
	if !strings.Contains(string(data), `"changes":{"name":{"old":null,"new":"Ravi"}}`) {
		t.Errorf("changes not serialized as expected: %s", data)
	}
}

func TestManagerRejectsWritesAfterShutdown(t *testing.T) {
	mgr, err := NewManager(Config{
		Enabled:       true,
		Sink:          "file",
		FilePath:      filepath.Join(t.TempDir(), "audit.log"),
		BufferSize:    1,
		FlushInterval: 5 * time.Millisecond,
		DropPolicy:    DropPolicyBlock,
	}, logger.NewNop(), nil)
	if err != nil {
		t.Fatalf("failed to create manager: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := mgr.Shutdown(ctx); err != nil {
		t.Fatalf("shutdown failed: %v", err)
	}

	if _, err := mgr.Record(context.Background(), &Record{Action: ActionDelete}); !errors.Is(err, ErrManagerClosed) {
		t.Fatalf("expected ErrManagerClosed, got %v", err)
	}
}

func TestManagerRejectsNilRecord(t *testing.T) {
	mgr, err := NewManager(Config{Enabled: true, Sink: "stdout"}, logger.NewNop(), nil)
	require.NoError(t, err)
	defer mgr.Shutdown(context.Background())

	_, err = mgr.Record(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNilRecord)
}

type blockingWriter struct {
	release chan struct{}
}

func (w *blockingWriter) Write(*Record) error {
	<-w.release
	return nil
}

func (w *blockingWriter) Flush() error { return nil }

func (w *blockingWriter) Close(context.Context) error { return nil }

func TestManagerDropPolicyWhenBufferFull(t *testing.T) {
	w := &blockingWriter{release: make(chan struct{})}
	mgr, err := NewManager(Config{
		Enabled:       true,
		Sink:          "blocking",
		BufferSize:    1,
		FlushInterval: time.Hour,
		DropPolicy:    DropPolicyDrop,
	}, logger.NewNop(), w)
	require.NoError(t, err)

	var dropped bool
	for i := 0; i < 10 && !dropped; i++ {
		if _, err := mgr.Record(context.Background(), &Record{Action: ActionRead}); errors.Is(err, ErrBufferFull) {
			dropped = true
		}
	}
	assert.True(t, dropped, "a full buffer must drop instead of blocking the caller")

	close(w.release)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, mgr.Shutdown(ctx))
}

func TestManagerBlockPolicyHonoursContext(t *testing.T) {
	w := &blockingWriter{release: make(chan struct{})}
	mgr, err := NewManager(Config{
		Enabled:       true,
		Sink:          "blocking",
		BufferSize:    1,
		FlushInterval: time.Hour,
		DropPolicy:    DropPolicyBlock,
	}, logger.NewNop(), w)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	var lastErr error
	for i := 0; i < 3; i++ {
		_, lastErr = mgr.Record(ctx, &Record{Action: ActionRead})
	}
	assert.ErrorIs(t, lastErr, context.DeadlineExceeded)

	close(w.release)
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), time.Second)
	defer shutdownCancel()
	require.NoError(t, mgr.Shutdown(shutdownCtx))
}

func TestNewManagerUnknownSink(t *testing.T) {
	_, err := NewManager(Config{Enabled: true, Sink: "kafka"}, logger.NewNop(), nil)
	assert.Error(t, err)
}

func TestJSONLinesWriter(t *testing.T) {
	var buf bytes.Buffer
	w := NewJSONLinesWriter(&buf, nil)

	require.NoError(t, w.Write(&Record{ID: "1", Action: ActionLogin, EntityType: "session"}))
	require.NoError(t, w.Write(&Record{ID: "2", Action: ActionLogout, EntityType: "session"}))
	require.NoError(t, w.Write(nil))
	assert.Zero(t, buf.Len(), "records stay buffered until flush")

	require.NoError(t, w.Close(context.Background()))

	scanner := bufio.NewScanner(&buf)
	var lines int
	for scanner.Scan() {
		lines++
	}
	assert.Equal(t, 2, lines)
}

func TestStoreWriter(t *testing.T) {
	engine := persistence.NewMemoryEngine()
	w := NewStoreWriter(engine)

	first := &Record{ID: NewID(), TenantID: "t1", Action: ActionCreate, EntityType: "user"}
	second := &Record{ID: NewID(), TenantID: "t1", Action: ActionUpdate, EntityType: "user"}
	orphan := &Record{ID: NewID(), Action: ActionLogin, EntityType: "session"}

	require.NoError(t, w.Write(first))
	require.NoError(t, w.Write(second))
	require.NoError(t, w.Write(orphan))

	keys, _ := engine.List("audit/")
	assert.Empty(t, keys, "nothing persisted before flush")

	require.NoError(t, w.Flush())

	keys, err := engine.List("audit/t1/")
	require.NoError(t, err)
	require.Equal(t, []string{StoreKey(first), StoreKey(second)}, keys, "ULID keys list in insertion order")

	raw, err := engine.Get(StoreKey(orphan))
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"action":"login"`)
	assert.True(t, strings.HasPrefix(StoreKey(orphan), "audit/_/"))
}

func TestSQLWriter(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	w, err := NewSQLWriter(db, "audit_logs")
	require.NoError(t, err)

	mock.ExpectExec("create table if not exists audit_logs").WillReturnResult(sqlmock.NewResult(0, 0))
	require.NoError(t, w.EnsureSchema(context.Background()))

	record := &Record{
		ID:             NewID(),
		Timestamp:      time.Now().UTC(),
		TenantID:       "t1",
		UserID:         "u1",
		Action:         ActionUpdate,
		EntityType:     "student",
		EntityID:       "s1",
		Changes:        Changes{"name": {Old: "A", New: "B"}},
		ResponseStatus: Status(200),
		DurationMs:     Millis(12 * time.Millisecond),
	}

	mock.ExpectBegin()
	prep := mock.ExpectPrepare("insert into audit_logs")
	prep.ExpectExec().
		WithArgs(record.ID, sqlmock.AnyArg(), "t1", nil, "u1", "update", "student", "s1",
			sqlmock.AnyArg(), nil, nil, nil, nil, int64(200), int64(12)).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	require.NoError(t, w.Write(record))
	require.NoError(t, w.Flush())
	require.NoError(t, w.Flush(), "empty flush is a no-op")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLWriterFailureIsReported(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	w, err := NewSQLWriter(db, "audit_logs")
	require.NoError(t, err)

	mock.ExpectBegin().WillReturnError(errors.New("connection refused"))

	require.NoError(t, w.Write(&Record{ID: NewID(), Action: ActionCreate, EntityType: "user"}))
	assert.Error(t, w.Flush())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNewSQLWriterRejectsBadTableName(t *testing.T) {
	_, err := NewSQLWriter(nil, "audit; drop table users")
	assert.Error(t, err)
}
