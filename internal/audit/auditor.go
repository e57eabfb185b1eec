package audit

import (
	"context"
	"time"

	"github.com/resoniratech-svg/school-erp-manoj-sub004/internal/logger"
)

// Recorder accepts finished records. *Manager implements it.
type Recorder interface {
	Record(ctx context.Context, record *Record) (string, error)
}

// Auditor writes one record per significant action. It is best-effort:
// a failed write is logged and swallowed, so the business operation being
// described is never failed or rolled back because of it.
type Auditor struct {
	recorder Recorder
	log      logger.Logger
	now      func() time.Time
}

// NewAuditor creates an auditor on top of recorder.
func NewAuditor(recorder Recorder, log logger.Logger) *Auditor {
	if log == nil {
		log = logger.GetDefault()
	}
	return &Auditor{
		recorder: recorder,
		log:      log,
		now:      time.Now,
	}
}

// Log merges the active audit context of ctx with entry and hands the
// record to the recorder. It never returns an error and never panics on
// recorder failure.
func (a *Auditor) Log(ctx context.Context, entry Entry) {
	if a == nil || a.recorder == nil {
		return
	}

	record := a.build(ctx, entry)

	defer func() {
		if r := recover(); r != nil {
			a.log.Error("Audit recorder panicked",
				logger.String("action", string(record.Action)),
				logger.String("entity_type", record.EntityType),
				logger.String("panic", stringify(r)))
		}
	}()

	if _, err := a.recorder.Record(ctx, record); err != nil {
		a.log.Error("Failed to record audit entry",
			logger.String("action", string(record.Action)),
			logger.String("entity_type", record.EntityType),
			logger.String("entity_id", record.EntityID),
			logger.String("tenant_id", record.TenantID),
			logger.String("user_id", record.UserID),
			logger.Error(err))
	}
}

func (a *Auditor) build(ctx context.Context, entry Entry) *Record {
	ac := GetContext(ctx)
	action := entry.Action
	if !action.Valid() {
		action = ActionOther
	}
	return &Record{
		Timestamp:      a.now().UTC(),
		TenantID:       ac.TenantID,
		BranchID:       ac.BranchID,
		UserID:         ac.UserID,
		Action:         action,
		EntityType:     entry.EntityType,
		EntityID:       entry.EntityID,
		Changes:        entry.Changes,
		RequestPath:    ac.RequestPath,
		RequestMethod:  ac.RequestMethod,
		IPAddress:      ac.IPAddress,
		UserAgent:      ac.UserAgent,
		ResponseStatus: entry.ResponseStatus,
		DurationMs:     entry.DurationMs,
	}
}

// Track runs op and, when it succeeds, logs entry with the elapsed time.
// op's result and error are returned exactly as produced; the audit write
// has no influence on them.
func Track[T any](ctx context.Context, a *Auditor, entry Entry, op func(context.Context) (T, error)) (T, error) {
	start := time.Now()
	result, err := op(ctx)
	if err != nil {
		return result, err
	}
	if entry.DurationMs == nil {
		entry.DurationMs = Millis(time.Since(start))
	}
	a.Log(ctx, entry)
	return result, err
}

func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case error:
		return t.Error()
	default:
		return "non-string panic value"
	}
}
