package audit

import (
	"fmt"
	"time"
)

// Action is the kind of operation an audit record describes.
type Action string

const (
	ActionCreate Action = "create"
	ActionRead   Action = "read"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
	ActionLogin  Action = "login"
	ActionLogout Action = "logout"
	ActionExport Action = "export"
	ActionOther  Action = "other"
)

var validActions = map[Action]bool{
	ActionCreate: true,
	ActionRead:   true,
	ActionUpdate: true,
	ActionDelete: true,
	ActionLogin:  true,
	ActionLogout: true,
	ActionExport: true,
	ActionOther:  true,
}

// ParseAction validates s against the closed set of actions.
func ParseAction(s string) (Action, error) {
	a := Action(s)
	if !validActions[a] {
		return "", fmt.Errorf("invalid audit action: %q", s)
	}
	return a, nil
}

// Valid reports whether a is one of the known actions.
func (a Action) Valid() bool {
	return validActions[a]
}

// Change is the before and after value of one field.
type Change struct {
	Old any `json:"old"`
	New any `json:"new"`
}

// Changes maps field names to their change.
type Changes map[string]Change

// Record is one immutable audit row.
type Record struct {
	ID             string    `json:"id"`
	Timestamp      time.Time `json:"timestamp"`
	TenantID       string    `json:"tenantId,omitempty"`
	BranchID       string    `json:"branchId,omitempty"`
	UserID         string    `json:"userId,omitempty"`
	Action         Action    `json:"action"`
	EntityType     string    `json:"entityType"`
	EntityID       string    `json:"entityId,omitempty"`
	Changes        Changes   `json:"changes,omitempty"`
	RequestPath    string    `json:"requestPath,omitempty"`
	RequestMethod  string    `json:"requestMethod,omitempty"`
	IPAddress      string    `json:"ipAddress,omitempty"`
	UserAgent      string    `json:"userAgent,omitempty"`
	ResponseStatus *int      `json:"responseStatus,omitempty"`
	DurationMs     *int64    `json:"durationMs,omitempty"`
}

// Entry is what callers supply; the rest of a Record comes from the
// request's audit context.
type Entry struct {
	Action         Action
	EntityType     string
	EntityID       string
	Changes        Changes
	ResponseStatus *int
	DurationMs     *int64
}

// Status returns a pointer to status for optional record fields.
func Status(status int) *int {
	return &status
}

// Millis converts d to a pointer to whole milliseconds.
func Millis(d time.Duration) *int64 {
	ms := d.Milliseconds()
	return &ms
}
