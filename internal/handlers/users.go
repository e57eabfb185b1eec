package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/resoniratech-svg/school-erp-manoj-sub004/internal/audit"
	"github.com/resoniratech-svg/school-erp-manoj-sub004/internal/auth"
	"github.com/resoniratech-svg/school-erp-manoj-sub004/internal/authz"
	"github.com/resoniratech-svg/school-erp-manoj-sub004/internal/logger"
	"github.com/resoniratech-svg/school-erp-manoj-sub004/internal/middleware"
	"github.com/resoniratech-svg/school-erp-manoj-sub004/internal/pagination"
	"github.com/resoniratech-svg/school-erp-manoj-sub004/internal/store"
)

const userEntityType = "user"

// UserHandler manages the accounts of the actor's tenant.
type UserHandler struct {
	users *store.UserStore
}

func NewUserHandler(users *store.UserStore) *UserHandler {
	return &UserHandler{users: users}
}

// CreateUserRequest represents the user creation body
type CreateUserRequest struct {
	Email       string   `json:"email" validate:"required,email"`
	Name        string   `json:"name" validate:"required,notblank,max=120"`
	Password    string   `json:"password" validate:"required,min=8,max=72"`
	BranchID    string   `json:"branchId" validate:"omitempty,max=64"`
	Roles       []string `json:"roles" validate:"required,min=1,dive,role"`
	Permissions []string `json:"permissions" validate:"omitempty,dive,permission"`
}

// UpdateUserRequest carries the fields to change; absent fields are kept.
type UpdateUserRequest struct {
	Email       *string   `json:"email" validate:"omitempty,email"`
	Name        *string   `json:"name" validate:"omitempty,notblank,max=120"`
	Password    *string   `json:"password" validate:"omitempty,min=8,max=72"`
	BranchID    *string   `json:"branchId" validate:"omitempty,max=64"`
	Roles       *[]string `json:"roles" validate:"omitempty,min=1,dive,role"`
	Permissions *[]string `json:"permissions" validate:"omitempty,dive,permission"`
	Active      *bool     `json:"active"`
}

// List returns the tenant's users, paginated.
func (h *UserHandler) List(c *fiber.Ctx) error {
	tenantID := middleware.GetTenantID(c)
	users, err := h.users.List(tenantID)
	if err != nil {
		return storeError(c, err)
	}
	for i := range users {
		users[i] = users[i].Public()
	}
	params := pagination.Parse(c.Query("page"), c.Query("limit"))
	return c.JSON(pagination.Slice(users, params))
}

// Get returns one user. Holders of user:read:own may read themselves.
func (h *UserHandler) Get(c *fiber.Ctx) error {
	actor := middleware.GetActor(c)
	id := c.Params("id")
	if !authz.HasPermission(actor, authz.UserRead) &&
		!(authz.HasPermission(actor, authz.UserReadOwn) && actor.ID == id) {
		return middleware.Forbidden(c, "insufficient permissions")
	}

	user, err := h.users.Get(actor.TenantID, id)
	if err != nil {
		return storeError(c, err)
	}
	setETag(c, user.Version)
	return c.JSON(user.Public())
}

// Create adds a user to the tenant. The actor cannot grant permissions it
// does not hold itself unless it may manage roles.
func (h *UserHandler) Create(c *fiber.Ctx) error {
	actor := middleware.GetActor(c)

	var req CreateUserRequest
	if ok, err := bind(c, &req); !ok {
		return err
	}
	if err := checkGrant(c, actor, req.Roles, req.Permissions); err != nil {
		return err
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return middleware.ValidationFailed(c, map[string]string{"password": err.Error()})
	}

	created, err := h.users.Create(store.User{
		TenantID:     actor.TenantID,
		BranchID:     req.BranchID,
		Email:        req.Email,
		Name:         req.Name,
		Roles:        req.Roles,
		Permissions:  req.Permissions,
		PasswordHash: hash,
		Active:       true,
	})
	if err != nil {
		return storeError(c, err)
	}

	changes, _ := audit.Diff(nil, created)
	middleware.AnnotateAudit(c, audit.ActionCreate, userEntityType, created.ID, changes)
	middleware.GetLogger(c).Info("User created",
		logger.String("tenant_id", created.TenantID),
		logger.String("created_user_id", created.ID))

	setETag(c, created.Version)
	return c.Status(fiber.StatusCreated).JSON(created.Public())
}

// Update applies a partial change. An If-Match header pins the version.
func (h *UserHandler) Update(c *fiber.Ctx) error {
	actor := middleware.GetActor(c)
	id := c.Params("id")

	version, err := expectedVersion(c)
	if err != nil {
		return err
	}

	var req UpdateUserRequest
	if ok, err := bind(c, &req); !ok {
		return err
	}

	current, err := h.users.Get(actor.TenantID, id)
	if err != nil {
		return storeError(c, err)
	}

	next := current
	if req.Email != nil {
		next.Email = *req.Email
	}
	if req.Name != nil {
		next.Name = *req.Name
	}
	if req.BranchID != nil {
		next.BranchID = *req.BranchID
	}
	if req.Roles != nil {
		next.Roles = *req.Roles
	}
	if req.Permissions != nil {
		next.Permissions = *req.Permissions
	}
	if req.Active != nil {
		if !*req.Active && id == actor.ID {
			return middleware.BadRequest(c, "cannot deactivate your own account")
		}
		next.Active = *req.Active
	}
	if req.Roles != nil || req.Permissions != nil {
		if err := checkGrant(c, actor, next.Roles, next.Permissions); err != nil {
			return err
		}
	}
	if req.Password != nil {
		hash, err := auth.HashPassword(*req.Password)
		if err != nil {
			return middleware.ValidationFailed(c, map[string]string{"password": err.Error()})
		}
		next.PasswordHash = hash
	}

	updated, err := h.users.Update(next, version)
	if err != nil {
		return storeError(c, err)
	}

	changes, _ := audit.Diff(current, updated)
	middleware.AnnotateAudit(c, audit.ActionUpdate, userEntityType, updated.ID, changes)

	setETag(c, updated.Version)
	return c.JSON(updated.Public())
}

// Delete removes a user. Actors cannot delete themselves.
func (h *UserHandler) Delete(c *fiber.Ctx) error {
	actor := middleware.GetActor(c)
	id := c.Params("id")
	if id == actor.ID {
		return middleware.BadRequest(c, "cannot delete your own account")
	}

	if err := h.users.Delete(actor.TenantID, id); err != nil {
		return storeError(c, err)
	}
	middleware.AnnotateAudit(c, audit.ActionDelete, userEntityType, id, nil)
	return c.SendStatus(fiber.StatusNoContent)
}

// checkGrant refuses to hand out permissions the actor lacks. Holders of
// role:manage:tenant may grant anything in the catalogue.
func checkGrant(c *fiber.Ctx, actor *authz.Actor, roles, extra []string) error {
	perms, err := authz.ExpandRoles(roles, extra)
	if err != nil {
		return middleware.BadRequest(c, err.Error())
	}
	if authz.HasPermission(actor, authz.RoleManage) {
		return nil
	}
	for _, p := range perms {
		if !authz.HasPermission(actor, authz.Permission(p)) {
			middleware.GetLogger(c).Warn("Refused permission grant",
				logger.String("user_id", actor.ID),
				logger.String("permission", p))
			return middleware.Forbidden(c, "cannot grant "+p)
		}
	}
	return nil
}
