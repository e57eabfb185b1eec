package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/resoniratech-svg/school-erp-manoj-sub004/internal/persistence"
)

const storePrefix = "audit/"

// StoreWriter appends records to the persistence engine under
// audit/<tenant>/<id>. Record ids are ULIDs, so keys list in time order.
// Records are staged in memory and committed in one batch per flush.
type StoreWriter struct {
	engine  persistence.Engine
	mu      sync.Mutex
	pending map[string][]byte
}

// NewStoreWriter creates a sink on engine. The engine is owned by the
// caller and is not closed by the writer.
func NewStoreWriter(engine persistence.Engine) *StoreWriter {
	return &StoreWriter{
		engine:  engine,
		pending: make(map[string][]byte),
	}
}

func (w *StoreWriter) Write(record *Record) error {
	if record == nil {
		return nil
	}
	payload, err := json.Marshal(record)
	if err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	w.pending[StoreKey(record)] = payload
	return nil
}

func (w *StoreWriter) Flush() error {
	w.mu.Lock()
	batch := w.pending
	w.pending = make(map[string][]byte)
	w.mu.Unlock()

	if len(batch) == 0 {
		return nil
	}
	if err := w.engine.BatchSet(batch); err != nil {
		return fmt.Errorf("persist %d audit records: %w", len(batch), err)
	}
	return nil
}

func (w *StoreWriter) Close(context.Context) error {
	return w.Flush()
}

// StoreKey returns the engine key of a record.
func StoreKey(record *Record) string {
	tenant := record.TenantID
	if tenant == "" {
		tenant = "_"
	}
	return storePrefix + tenant + "/" + record.ID
}
