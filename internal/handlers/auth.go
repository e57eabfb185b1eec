package handlers

import (
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/resoniratech-svg/school-erp-manoj-sub004/internal/audit"
	"github.com/resoniratech-svg/school-erp-manoj-sub004/internal/auth"
	"github.com/resoniratech-svg/school-erp-manoj-sub004/internal/authz"
	"github.com/resoniratech-svg/school-erp-manoj-sub004/internal/logger"
	"github.com/resoniratech-svg/school-erp-manoj-sub004/internal/metrics"
	"github.com/resoniratech-svg/school-erp-manoj-sub004/internal/middleware"
	"github.com/resoniratech-svg/school-erp-manoj-sub004/internal/store"
)

type AuthHandler struct {
	jwtService  *auth.JWTService
	users       *store.UserStore
	revocations *auth.RevocationList
}

func NewAuthHandler(jwtService *auth.JWTService, users *store.UserStore, revocations *auth.RevocationList) *AuthHandler {
	return &AuthHandler{
		jwtService:  jwtService,
		users:       users,
		revocations: revocations,
	}
}

// LoginRequest represents the login request body
type LoginRequest struct {
	TenantID string `json:"tenantId" validate:"required,notblank"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse represents the login response body
type LoginResponse struct {
	Token        string     `json:"token"`
	RefreshToken string     `json:"refreshToken"`
	TokenType    string     `json:"tokenType"`
	ExpiresIn    int64      `json:"expiresIn"`
	User         store.User `json:"user"`
}

// RefreshRequest represents the refresh token request body
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken" validate:"required"`
}

// LogoutRequest optionally names a refresh token to revoke with the
// access token.
type LogoutRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// MeResponse describes the authenticated actor.
type MeResponse struct {
	UserID      string    `json:"userId"`
	Email       string    `json:"email"`
	TenantID    string    `json:"tenantId"`
	BranchID    string    `json:"branchId,omitempty"`
	Roles       []string  `json:"roles"`
	Permissions []string  `json:"permissions"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

// CanResponse reports an authorization check.
type CanResponse struct {
	Mode        authz.Mode `json:"mode"`
	Permissions []string   `json:"permissions"`
	Allowed     bool       `json:"allowed"`
}

// Login checks credentials and issues an access and refresh token pair.
// Every attempt is audited as a login, successful or not.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req LoginRequest
	if ok, err := bind(c, &req); !ok {
		return err
	}

	middleware.AnnotateAudit(c, audit.ActionLogin, "user", "", nil)

	user, err := h.users.GetByEmail(req.TenantID, req.Email)
	if err != nil && !store.IsNotFound(err) {
		return storeError(c, err)
	}
	if err != nil || !user.Active || auth.CheckPassword(user.PasswordHash, req.Password) != nil {
		metrics.LoginAttemptsTotal.WithLabelValues("failure").Inc()
		return middleware.Unauthorized(c, "invalid credentials")
	}

	resp, actor, err := h.issue(user)
	if err != nil {
		middleware.GetLogger(c).Error("Failed to issue tokens", logger.Error(err))
		return middleware.InternalServerError(c, "failed to generate token")
	}

	metrics.LoginAttemptsTotal.WithLabelValues("success").Inc()
	middleware.SetActor(c, actor)
	middleware.AnnotateAudit(c, audit.ActionLogin, "user", user.ID, nil)

	middleware.GetLogger(c).Info("User logged in",
		logger.String("tenant_id", user.TenantID),
		logger.String("user_id", user.ID))
	return c.JSON(resp)
}

// Refresh exchanges a refresh token for a new pair. The user record is
// re-read, so role changes and deactivation take effect here. The old
// refresh token is revoked.
func (h *AuthHandler) Refresh(c *fiber.Ctx) error {
	var req RefreshRequest
	if ok, err := bind(c, &req); !ok {
		return err
	}

	claims, err := h.jwtService.ValidateRefreshToken(req.RefreshToken)
	if err != nil {
		if errors.Is(err, auth.ErrTokenExpired) {
			return middleware.Unauthorized(c, "refresh token expired")
		}
		return middleware.Unauthorized(c, "invalid refresh token")
	}

	revoked, err := h.revocations.IsRevoked(claims.ID)
	if err != nil {
		middleware.GetLogger(c).Error("Revocation lookup failed", logger.Error(err))
		return middleware.InternalServerError(c, "failed to refresh token")
	}
	if revoked {
		return middleware.Unauthorized(c, "refresh token revoked")
	}

	user, err := h.users.Get(claims.TenantID, claims.Subject)
	if err != nil {
		if store.IsNotFound(err) {
			return middleware.Unauthorized(c, "invalid refresh token")
		}
		return storeError(c, err)
	}
	if !user.Active {
		return middleware.Unauthorized(c, "account disabled")
	}

	resp, actor, err := h.issue(user)
	if err != nil {
		middleware.GetLogger(c).Error("Failed to issue tokens", logger.Error(err))
		return middleware.InternalServerError(c, "failed to refresh token")
	}
	if err := h.revocations.Revoke(claims.ID, claims.ExpiresAt.Time); err != nil {
		middleware.GetLogger(c).Error("Failed to revoke refresh token", logger.Error(err))
		return middleware.InternalServerError(c, "failed to refresh token")
	}

	middleware.SetActor(c, actor)
	middleware.AnnotateAudit(c, audit.ActionOther, "session", user.ID, nil)
	return c.JSON(resp)
}

// Logout revokes the presented access token and, if supplied, the refresh
// token.
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	claims := middleware.GetClaims(c)
	if claims == nil {
		return middleware.Unauthorized(c, "authentication required")
	}

	if err := h.revocations.Revoke(claims.ID, claims.ExpiresAt.Time); err != nil {
		middleware.GetLogger(c).Error("Failed to revoke token", logger.Error(err))
		return middleware.InternalServerError(c, "failed to log out")
	}

	var req LogoutRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return middleware.BadRequest(c, "invalid request body")
		}
	}
	if req.RefreshToken != "" {
		refresh, err := h.jwtService.ValidateRefreshToken(req.RefreshToken)
		if err == nil && refresh.Subject == claims.UserID {
			if err := h.revocations.Revoke(refresh.ID, refresh.ExpiresAt.Time); err != nil {
				middleware.GetLogger(c).Error("Failed to revoke refresh token", logger.Error(err))
			}
		}
	}

	middleware.AnnotateAudit(c, audit.ActionLogout, "session", claims.UserID, nil)
	return c.SendStatus(fiber.StatusNoContent)
}

// Me returns the authenticated actor and its permissions.
func (h *AuthHandler) Me(c *fiber.Ctx) error {
	claims := middleware.GetClaims(c)
	if claims == nil {
		return middleware.Unauthorized(c, "authentication required")
	}
	actor := middleware.GetActor(c)

	roles := claims.Roles
	if roles == nil {
		roles = []string{}
	}
	return c.JSON(MeResponse{
		UserID:      claims.UserID,
		Email:       claims.Email,
		TenantID:    claims.TenantID,
		BranchID:    claims.BranchID,
		Roles:       roles,
		Permissions: actor.Permissions(),
		ExpiresAt:   claims.ExpiresAt.Time,
	})
}

// Can evaluates ?permission=a,b against the actor. mode is any (default)
// or all. Malformed permission strings are rejected.
func (h *AuthHandler) Can(c *fiber.Ctx) error {
	actor := middleware.GetActor(c)
	if actor == nil {
		return middleware.Unauthorized(c, "authentication required")
	}

	var requested []string
	for _, raw := range strings.Split(c.Query("permission"), ",") {
		if raw = strings.TrimSpace(raw); raw != "" {
			requested = append(requested, raw)
		}
	}
	if len(requested) == 0 {
		return middleware.BadRequest(c, "permission query parameter is required")
	}
	perms, err := authz.ParsePermissions(requested)
	if err != nil {
		return middleware.BadRequest(c, err.Error())
	}

	var req authz.Requirement
	switch c.Query("mode", string(authz.ModeAny)) {
	case string(authz.ModeAny):
		req = authz.RequireAny(perms...)
	case string(authz.ModeAll):
		req = authz.RequireAll(perms...)
	default:
		return middleware.BadRequest(c, "mode must be any or all")
	}

	return c.JSON(CanResponse{
		Mode:        req.Mode,
		Permissions: req.Strings(),
		Allowed:     req.Allows(actor),
	})
}

func (h *AuthHandler) issue(user store.User) (LoginResponse, *authz.Actor, error) {
	perms, err := authz.ExpandRoles(user.Roles, user.Permissions)
	if err != nil {
		return LoginResponse{}, nil, err
	}
	identity := auth.Identity{
		UserID:      user.ID,
		Email:       user.Email,
		TenantID:    user.TenantID,
		BranchID:    user.BranchID,
		Roles:       user.Roles,
		Permissions: perms,
	}
	token, err := h.jwtService.GenerateToken(identity)
	if err != nil {
		return LoginResponse{}, nil, err
	}
	refresh, err := h.jwtService.GenerateRefreshToken(user.ID, user.TenantID)
	if err != nil {
		return LoginResponse{}, nil, err
	}

	actor := authz.NewActor(user.ID, user.TenantID, user.BranchID, perms)
	actor.Email = user.Email
	actor.Roles = user.Roles

	return LoginResponse{
		Token:        token,
		RefreshToken: refresh,
		TokenType:    "Bearer",
		ExpiresIn:    int64(h.jwtService.TokenExpiry().Seconds()),
		User:         user.Public(),
	}, actor, nil
}
