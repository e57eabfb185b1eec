package audit

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
)

// newWriter builds the sinks that need nothing beyond Config. The badger
// and postgres sinks are constructed by the caller and passed to NewManager.
func newWriter(cfg Config) (Writer, error) {
	switch cfg.Sink {
	case "", "stdout":
		return NewJSONLinesWriter(os.Stdout, nil), nil
	case "file":
		return newFileWriter(cfg.FilePath)
	default:
		return nil, fmt.Errorf("unsupported audit sink: %s", cfg.Sink)
	}
}

// JSONLinesWriter encodes one record per line onto a buffered stream.
type JSONLinesWriter struct {
	mu     sync.Mutex
	buf    *bufio.Writer
	closer io.Closer
}

// NewJSONLinesWriter wraps w. closer, if not nil, is closed with the writer.
func NewJSONLinesWriter(w io.Writer, closer io.Closer) *JSONLinesWriter {
	return &JSONLinesWriter{
		buf:    bufio.NewWriter(w),
		closer: closer,
	}
}

func newFileWriter(path string) (*JSONLinesWriter, error) {
	if path == "" {
		return nil, fmt.Errorf("audit file path cannot be empty")
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create audit log directory: %w", err)
		}
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o640)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit log file: %w", err)
	}
	return NewJSONLinesWriter(file, file), nil
}

func (w *JSONLinesWriter) Write(record *Record) error {
	if record == nil {
		return nil
	}
	payload, err := json.Marshal(record)
	if err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if _, err := w.buf.Write(payload); err != nil {
		return err
	}
	return w.buf.WriteByte('\n')
}

func (w *JSONLinesWriter) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.buf.Flush()
}

func (w *JSONLinesWriter) Close(ctx context.Context) error {
	done := make(chan error, 1)

	go func() {
		err := w.Flush()
		if w.closer != nil {
			if cerr := w.closer.Close(); cerr != nil && err == nil {
				err = cerr
			}
		}
		done <- err
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
