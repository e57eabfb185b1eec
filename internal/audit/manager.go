package audit

import (
	"context"
	"errors"
	mathrand "math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/resoniratech-svg/school-erp-manoj-sub004/internal/logger"
	"github.com/resoniratech-svg/school-erp-manoj-sub004/internal/metrics"
)

var (
	// ErrManagerClosed is returned when writes occur after shutdown.
	ErrManagerClosed = errors.New("audit manager closed")
	// ErrNilRecord is returned when callers attempt to record a nil record.
	ErrNilRecord = errors.New("audit record is nil")
	// ErrBufferFull is returned under the drop policy when the buffer is full.
	ErrBufferFull = errors.New("audit buffer full")
)

// DropPolicy determines how the manager handles a full channel.
type DropPolicy string

const (
	DropPolicyDrop  DropPolicy = "drop"
	DropPolicyBlock DropPolicy = "block"
)

// Config mirrors the public audit configuration.
type Config struct {
	Enabled       bool
	Sink          string
	FilePath      string
	BufferSize    int
	FlushInterval time.Duration
	DropPolicy    DropPolicy
}

// Writer defines the sink contract for audit records.
type Writer interface {
	Write(record *Record) error
	Flush() error
	Close(ctx context.Context) error
}

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(mathrand.New(mathrand.NewSource(time.Now().UnixNano())), 0)
)

// NewID returns a lexicographically sortable record id.
func NewID() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}

// Manager buffers records and delivers them to a Writer on a background
// goroutine, so callers never wait on the sink.
type Manager struct {
	cfg    Config
	log    logger.Logger
	writer Writer

	records chan *Record
	wg      sync.WaitGroup

	flushTicker *time.Ticker
	stopOnce    sync.Once

	enabled bool
	closed  bool
	mu      sync.RWMutex
}

// NewManager builds a manager. writer may be nil, in which case the sink is
// built from cfg (stdout or file). When disabled, the manager is a no-op.
func NewManager(cfg Config, log logger.Logger, writer Writer) (*Manager, error) {
	if log == nil {
		log = logger.GetDefault()
	}

	if !cfg.Enabled {
		return &Manager{cfg: cfg, log: log}, nil
	}

	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1024
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = time.Second
	}
	if cfg.DropPolicy == "" {
		cfg.DropPolicy = DropPolicyDrop
	}

	if writer == nil {
		var err error
		writer, err = newWriter(cfg)
		if err != nil {
			return nil, err
		}
	}

	m := &Manager{
		cfg:         cfg,
		log:         log,
		writer:      writer,
		records:     make(chan *Record, cfg.BufferSize),
		flushTicker: time.NewTicker(cfg.FlushInterval),
		enabled:     true,
	}

	m.wg.Add(1)
	go m.run()

	return m, nil
}

// Enabled indicates whether audit logging is active.
func (m *Manager) Enabled() bool {
	return m != nil && m.enabled
}

// Record buffers an audit record for asynchronous delivery and returns its id.
func (m *Manager) Record(ctx context.Context, record *Record) (string, error) {
	if m == nil || !m.enabled {
		return "", nil
	}
	if record == nil {
		return "", ErrNilRecord
	}

	if record.ID == "" {
		record.ID = NewID()
	}
	if record.Timestamp.IsZero() {
		record.Timestamp = time.Now().UTC()
	}

	// the read lock keeps Shutdown from closing the channel mid-send
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		metrics.AuditEventsDroppedTotal.WithLabelValues(m.cfg.Sink, "manager_closed").Inc()
		return "", ErrManagerClosed
	}

	select {
	case m.records <- record:
		return record.ID, nil
	default:
		if m.cfg.DropPolicy == DropPolicyDrop {
			metrics.AuditEventsDroppedTotal.WithLabelValues(m.cfg.Sink, "buffer_full").Inc()
			return "", ErrBufferFull
		}
		select {
		case m.records <- record:
			return record.ID, nil
		case <-ctx.Done():
			metrics.AuditEventsDroppedTotal.WithLabelValues(m.cfg.Sink, "context_cancelled").Inc()
			return "", ctx.Err()
		}
	}
}

func (m *Manager) run() {
	defer m.wg.Done()

	for {
		select {
		case record, ok := <-m.records:
			if !ok {
				m.flush()
				return
			}
			m.write(record)
		case <-m.flushTicker.C:
			m.flush()
		}
	}
}

// Shutdown drains the buffer, flushes the writer, and closes resources.
func (m *Manager) Shutdown(ctx context.Context) error {
	if m == nil || !m.enabled {
		return nil
	}

	m.stopOnce.Do(func() {
		m.mu.Lock()
		m.closed = true
		m.mu.Unlock()
		close(m.records)
	})

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	m.flushTicker.Stop()
	return m.writer.Close(ctx)
}

func (m *Manager) write(record *Record) {
	if err := m.writer.Write(record); err != nil {
		m.log.Error("Failed to write audit record",
			logger.String("record_id", record.ID),
			logger.String("action", string(record.Action)),
			logger.String("entity_type", record.EntityType),
			logger.Error(err))
		metrics.AuditEventsTotal.WithLabelValues(m.cfg.Sink, "error").Inc()
		return
	}
	metrics.AuditEventsTotal.WithLabelValues(m.cfg.Sink, "written").Inc()
}

func (m *Manager) flush() {
	start := time.Now()
	if err := m.writer.Flush(); err != nil {
		m.log.Error("Failed to flush audit writer", logger.Error(err))
		metrics.AuditEventsTotal.WithLabelValues(m.cfg.Sink, "flush_error").Inc()
		return
	}
	metrics.AuditWriterFlushDuration.WithLabelValues(m.cfg.Sink).Observe(time.Since(start).Seconds())
}
