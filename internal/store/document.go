package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/resoniratech-svg/school-erp-manoj-sub004/internal/metrics"
	"github.com/resoniratech-svg/school-erp-manoj-sub004/internal/persistence"
)

// cleanString trims s and optionally lower-cases it.
func cleanString(s string, lower ...bool) string {
	s = strings.TrimSpace(s)
	if len(lower) > 0 && lower[0] {
		return strings.ToLower(s)
	}
	return s
}

func docKey(entity, tenantID, id string) string {
	return entity + "/" + tenantID + "/" + id
}

func indexKey(entity, field, tenantID, value string) string {
	return "idx/" + entity + "/" + field + "/" + tenantID + "/" + value
}

func record(entity, op string, err error) {
	status := "success"
	switch {
	case err == nil:
	case IsNotFound(err):
		status = "not_found"
	case IsDuplicate(err), IsVersionConflict(err):
		status = "conflict"
	default:
		status = "error"
	}
	metrics.StoreOperationsTotal.WithLabelValues(entity, op, status).Inc()
}

func load(engine persistence.Engine, entity, key string, out any) error {
	raw, err := engine.Get(key)
	if errors.Is(err, persistence.ErrNotFound) {
		return &NotFoundError{Type: entity, Key: key[strings.LastIndex(key, "/")+1:]}
	}
	if err != nil {
		return fmt.Errorf("load %s: %w", key, err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}

func loadAll[T any](engine persistence.Engine, prefix string) ([]T, error) {
	keys, err := engine.List(prefix)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", prefix, err)
	}
	out := make([]T, 0, len(keys))
	for _, k := range keys {
		raw, err := engine.Get(k)
		if errors.Is(err, persistence.ErrNotFound) {
			// removed between List and Get
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", k, err)
		}
		var v T
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("decode %s: %w", k, err)
		}
		out = append(out, v)
	}
	return out, nil
}

// Timestamps are stored in UTC at millisecond precision so documents
// compare equal after a round trip through JSON.
func stamp(now func() time.Time) time.Time {
	return now().UTC().Truncate(time.Millisecond)
}
