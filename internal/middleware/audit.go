package middleware

import (
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/resoniratech-svg/school-erp-manoj-sub004/internal/audit"
)

const auditAnnotationKey = "audit_annotation"

type auditAnnotation struct {
	action     audit.Action
	entityType string
	entityID   string
	changes    audit.Changes
	skip       bool
}

// AnnotateAudit attaches the entity a handler acted on to the request's
// audit record. An empty action keeps the one derived from the method.
func AnnotateAudit(c *fiber.Ctx, action audit.Action, entityType, entityID string, changes audit.Changes) {
	c.Locals(auditAnnotationKey, &auditAnnotation{
		action:     action,
		entityType: entityType,
		entityID:   entityID,
		changes:    changes,
	})
}

// SkipAudit suppresses the request-level record, for handlers that log
// their own entries.
func SkipAudit(c *fiber.Ctx) {
	c.Locals(auditAnnotationKey, &auditAnnotation{skip: true})
}

// AuditMiddleware writes one audit record for every state-changing request
// and for any request a handler annotated. Reads that nobody annotated are
// not recorded.
func AuditMiddleware(auditor *audit.Auditor) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if auditor == nil {
			return c.Next()
		}

		start := time.Now()
		err := c.Next()

		ann, _ := c.Locals(auditAnnotationKey).(*auditAnnotation)
		if ann != nil && ann.skip {
			return err
		}
		if ann == nil && !isMutating(c.Method()) {
			return err
		}

		entry := audit.Entry{
			Action:         deriveAction(c.Method()),
			ResponseStatus: audit.Status(responseStatus(c, err)),
			DurationMs:     audit.Millis(time.Since(start)),
		}
		entry.EntityType, entry.EntityID = entityFromPath(c.Path())
		if ann != nil {
			if ann.action != "" {
				entry.Action = ann.action
			}
			if ann.entityType != "" {
				entry.EntityType = ann.entityType
			}
			if ann.entityID != "" {
				entry.EntityID = ann.entityID
			}
			entry.Changes = ann.changes
		}

		auditor.Log(c.UserContext(), entry)
		return err
	}
}

func isMutating(method string) bool {
	switch method {
	case fiber.MethodPost, fiber.MethodPut, fiber.MethodPatch, fiber.MethodDelete:
		return true
	}
	return false
}

func deriveAction(method string) audit.Action {
	switch method {
	case fiber.MethodPost:
		return audit.ActionCreate
	case fiber.MethodPut, fiber.MethodPatch:
		return audit.ActionUpdate
	case fiber.MethodDelete:
		return audit.ActionDelete
	case fiber.MethodGet, fiber.MethodHead:
		return audit.ActionRead
	default:
		return audit.ActionOther
	}
}

// responseStatus is the status the client will see. An error still on its
// way to the app's error handler has not been written to the response yet.
func responseStatus(c *fiber.Ctx, err error) int {
	if err == nil {
		return c.Response().StatusCode()
	}
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return fe.Code
	}
	return fiber.StatusInternalServerError
}

// entityFromPath maps /v1/students/42 to ("students", "42").
func entityFromPath(path string) (string, string) {
	segments := strings.Split(strings.Trim(path, "/"), "/")
	if len(segments) > 0 && segments[0] == "v1" {
		segments = segments[1:]
	}
	switch len(segments) {
	case 0:
		return "", ""
	case 1:
		return segments[0], ""
	default:
		return segments[0], segments[1]
	}
}
