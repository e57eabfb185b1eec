package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/resoniratech-svg/school-erp-manoj-sub004/internal/audit"
	"github.com/resoniratech-svg/school-erp-manoj-sub004/internal/featureflag"
	"github.com/resoniratech-svg/school-erp-manoj-sub004/internal/logger"
	"github.com/resoniratech-svg/school-erp-manoj-sub004/internal/middleware"
	"github.com/resoniratech-svg/school-erp-manoj-sub004/internal/navigation"
)

// FeatureHandler exposes the tenant's feature flags and the menu they
// shape.
type FeatureHandler struct {
	registry *featureflag.Registry
}

func NewFeatureHandler(registry *featureflag.Registry) *FeatureHandler {
	return &FeatureHandler{registry: registry}
}

// FeaturesResponse is the effective flag set of a tenant.
type FeaturesResponse struct {
	TenantID string          `json:"tenantId"`
	State    string          `json:"state"`
	Source   string          `json:"source"`
	Flags    map[string]bool `json:"flags"`
	Error    string          `json:"error,omitempty"`
}

// UpdateFeaturesRequest replaces the stored flags of the tenant. Keys may
// be bare module names.
type UpdateFeaturesRequest struct {
	Flags map[string]bool `json:"flags" validate:"required"`
}

// NavigationResponse is the menu visible to the actor.
type NavigationResponse struct {
	State string            `json:"state"`
	Items []navigation.Item `json:"items"`
}

// List returns the effective flags for the actor's tenant.
func (h *FeatureHandler) List(c *fiber.Ctx) error {
	tenantID := middleware.GetTenantID(c)
	if tenantID == "" {
		return middleware.Unauthorized(c, "authentication required")
	}
	gate := h.registry.Gate(c.UserContext(), tenantID)
	return c.JSON(h.describe(tenantID, gate))
}

// Refresh reloads the tenant's flags from the source.
func (h *FeatureHandler) Refresh(c *fiber.Ctx) error {
	tenantID := middleware.GetTenantID(c)
	if tenantID == "" {
		return middleware.Unauthorized(c, "authentication required")
	}
	gate := h.registry.Refresh(c.UserContext(), tenantID)
	middleware.AnnotateAudit(c, audit.ActionOther, "features", tenantID, nil)
	return c.JSON(h.describe(tenantID, gate))
}

// Update stores a new flag set for the tenant. Only a writable source
// (the document store) supports it.
func (h *FeatureHandler) Update(c *fiber.Ctx) error {
	tenantID := middleware.GetTenantID(c)
	if tenantID == "" {
		return middleware.Unauthorized(c, "authentication required")
	}

	writable, ok := h.registry.Source().(*featureflag.StoreSource)
	if !ok {
		return middleware.Conflict(c, "feature source "+h.registry.Source().Name()+" is read-only")
	}

	var req UpdateFeaturesRequest
	if ok, err := bind(c, &req); !ok {
		return err
	}

	before, _ := h.registry.Gate(c.UserContext(), tenantID).Snapshot()
	next := featureflag.Set(req.Flags).Normalized()
	if err := writable.Save(tenantID, next); err != nil {
		middleware.GetLogger(c).Error("Failed to save feature flags",
			logger.String("tenant_id", tenantID), logger.Error(err))
		return middleware.InternalServerError(c, "failed to save feature flags")
	}
	gate := h.registry.Refresh(c.UserContext(), tenantID)
	after, _ := gate.Snapshot()

	changes, _ := audit.Diff(before, after)
	middleware.AnnotateAudit(c, audit.ActionUpdate, "features", tenantID, changes)
	return c.JSON(h.describe(tenantID, gate))
}

// Navigation returns the menu entries the actor may see. Until the flags
// have been loaded once the list is empty.
func (h *FeatureHandler) Navigation(c *fiber.Ctx) error {
	actor := middleware.GetActor(c)
	if actor == nil {
		return middleware.Unauthorized(c, "authentication required")
	}
	gate := h.registry.Gate(c.UserContext(), actor.TenantID)
	state := gate.State()
	return c.JSON(NavigationResponse{
		State: string(state),
		Items: navigation.Visible(navigation.Menu, actor, gate, !gate.Resolved()),
	})
}

func (h *FeatureHandler) describe(tenantID string, gate *featureflag.Gate) FeaturesResponse {
	flags, state := gate.Snapshot()
	resp := FeaturesResponse{
		TenantID: tenantID,
		State:    string(state),
		Source:   h.registry.Source().Name(),
		Flags:    flags,
	}
	if err := gate.LastError(); err != nil {
		resp.Error = err.Error()
	}
	return resp
}
