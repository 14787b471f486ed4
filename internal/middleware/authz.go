package middleware

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/clinicore/clinic-api/internal/model"
	"github.com/clinicore/clinic-api/internal/service/access"
	"github.com/clinicore/clinic-api/internal/service/audit"
	"github.com/clinicore/clinic-api/pkg/errors"
	"github.com/clinicore/clinic-api/pkg/logger"
	"github.com/clinicore/clinic-api/pkg/metrics"
)

const (
	HeaderClinicID = "x-clinic-id"

	ContextAuth     = "auth_context"
	ContextClinicID = "clinic_id"
)

// Error codes returned on authorization rejections.
const (
	CodeAuthRequired           = "AUTH_REQUIRED"
	CodeClinicRequired         = "CLINIC_REQUIRED"
	CodeClinicAccessDenied     = "CLINIC_ACCESS_DENIED"
	CodeCustomPermissionDenied = "CUSTOM_PERMISSION_DENIED"
	CodePermissionDenied       = "PERMISSION_DENIED"
	CodeRoleDenied             = "ROLE_DENIED"
	CodePermissionCheckError   = "PERMISSION_CHECK_ERROR"
)

// Operator selects how multiple required permissions or roles combine.
type Operator string

const (
	OperatorAND Operator = "AND"
	OperatorOR  Operator = "OR"
)

// AuthContext is the resolved authorization state for one request. It is
// attached to the gin context under ContextAuth once the clinic gate passes,
// so handlers never re-resolve permissions.
type AuthContext struct {
	UserID               uuid.UUID
	ClinicID             uuid.UUID
	IsAdmin              bool
	Membership           *model.UserClinicMembership
	EffectivePermissions []string
	EffectiveRoles       []string
}

// HasPermission reports whether the resolved effective set contains the
// named permission.
func (a *AuthContext) HasPermission(name string) bool {
	for _, p := range a.EffectivePermissions {
		if p == name {
			return true
		}
	}
	return false
}

// HasRole reports whether the membership carries the named role.
func (a *AuthContext) HasRole(name string) bool {
	for _, r := range a.EffectiveRoles {
		if r == name {
			return true
		}
	}
	return false
}

// AccessConfig declares what a route requires. Build it from
// DefaultAccessConfig so the clinic gate and admin bypass keep their
// defaults; a zero-value literal disables both.
type AccessConfig struct {
	Permissions         []string
	Roles               []string
	Operator            Operator
	RequireClinicAccess bool
	AdminBypass         bool
	CustomCheck         func(c *gin.Context, auth *AuthContext) bool
}

func DefaultAccessConfig() AccessConfig {
	return AccessConfig{
		Operator:            OperatorOR,
		RequireClinicAccess: true,
		AdminBypass:         true,
	}
}

// AccessMiddleware runs the authorization gate sequence for protected
// routes: authentication, clinic context, admin bypass, custom check,
// permission check, role check. Every decision is audited and counted.
type AccessMiddleware struct {
	resolver *access.Resolver
	auditor  *audit.Service
	metrics  *metrics.Metrics
	logger   *logger.Logger
}

func NewAccessMiddleware(resolver *access.Resolver, auditor *audit.Service, m *metrics.Metrics, logger *logger.Logger) *AccessMiddleware {
	return &AccessMiddleware{
		resolver: resolver,
		auditor:  auditor,
		metrics:  m,
		logger:   logger,
	}
}

// RequireAccess enforces the given access configuration. Gates run in a
// fixed order and the first failing gate determines the error code; a panic
// anywhere in the check is downgraded to a 500 with PERMISSION_CHECK_ERROR
// rather than falling through to an allow.
func (m *AccessMiddleware) RequireAccess(cfg AccessConfig) gin.HandlerFunc {
	if cfg.Operator == "" {
		cfg.Operator = OperatorOR
	}

	return func(c *gin.Context) {
		start := time.Now()
		defer func() {
			if r := recover(); r != nil {
				m.logger.Error(fmt.Errorf("panic: %v", r), "authorization check panicked",
					"path", c.Request.URL.Path, "method", c.Request.Method)
				m.reject(c, cfg, nil, http.StatusInternalServerError, CodePermissionCheckError,
					"Permission check failed", nil)
			}
			m.metrics.AccessCheckLatency.Observe(time.Since(start).Seconds())
		}()

		claims := currentClaims(c)
		if claims == nil {
			m.reject(c, cfg, nil, http.StatusUnauthorized, CodeAuthRequired,
				"Authentication required", nil)
			return
		}

		auth := &AuthContext{
			UserID:  claims.UserID,
			IsAdmin: claims.IsAdmin,
		}

		if cfg.RequireClinicAccess {
			clinicID, err := requestClinicID(c, claims)
			if err != nil {
				m.reject(c, cfg, auth, http.StatusBadRequest, CodeClinicRequired,
					"Clinic context required", nil)
				return
			}
			auth.ClinicID = clinicID

			membership, err := m.resolver.GetActiveMembership(c.Request.Context(), claims.UserID, clinicID)
			if err != nil {
				if isNotFound(err) {
					m.reject(c, cfg, auth, http.StatusForbidden, CodeClinicAccessDenied,
						"No active membership for this clinic", nil)
					return
				}
				m.checkError(c, cfg, auth, err)
				return
			}
			auth.Membership = membership

			perms, err := m.resolver.EffectivePermissions(c.Request.Context(), membership)
			if err != nil {
				m.checkError(c, cfg, auth, err)
				return
			}
			auth.EffectivePermissions = perms
			auth.EffectiveRoles = m.resolver.EffectiveRoles(membership)
			auth.IsAdmin = auth.IsAdmin || m.resolver.IsAdmin(membership)

			m.metrics.EffectiveSetSize.Observe(float64(len(perms)))
			c.Set(ContextClinicID, clinicID)
		}

		c.Set(ContextAuth, auth)

		if cfg.AdminBypass && auth.IsAdmin {
			m.metrics.AdminBypassTotal.Inc()
			m.allow(c, cfg, auth)
			return
		}

		if cfg.CustomCheck != nil && !cfg.CustomCheck(c, auth) {
			m.reject(c, cfg, auth, http.StatusForbidden, CodeCustomPermissionDenied,
				"Access denied", nil)
			return
		}

		if len(cfg.Permissions) > 0 && !matches(cfg.Operator, cfg.Permissions, auth.EffectivePermissions) {
			m.reject(c, cfg, auth, http.StatusForbidden, CodePermissionDenied,
				"Insufficient permissions", gin.H{
					"required_permissions": cfg.Permissions,
					"user_permissions":     auth.EffectivePermissions,
					"operator":             string(cfg.Operator),
				})
			return
		}

		if len(cfg.Roles) > 0 && !matches(cfg.Operator, cfg.Roles, auth.EffectiveRoles) {
			m.reject(c, cfg, auth, http.StatusForbidden, CodeRoleDenied,
				"Insufficient role", gin.H{
					"required_roles": cfg.Roles,
					"user_roles":     auth.EffectiveRoles,
					"operator":       string(cfg.Operator),
				})
			return
		}

		m.allow(c, cfg, auth)
	}
}

// RequireAdmin restricts a route to admin users. The bypass is the only
// gate, so a non-admin always fails the role check.
func (m *AccessMiddleware) RequireAdmin() gin.HandlerFunc {
	cfg := DefaultAccessConfig()
	cfg.Roles = []string{model.RoleAdmin, model.RoleSuperAdmin}
	return m.RequireAccess(cfg)
}

func (m *AccessMiddleware) RequireRole(role string) gin.HandlerFunc {
	cfg := DefaultAccessConfig()
	cfg.Roles = []string{role}
	return m.RequireAccess(cfg)
}

func (m *AccessMiddleware) RequireAnyRole(roles ...string) gin.HandlerFunc {
	cfg := DefaultAccessConfig()
	cfg.Roles = roles
	return m.RequireAccess(cfg)
}

func (m *AccessMiddleware) RequireAllRoles(roles ...string) gin.HandlerFunc {
	cfg := DefaultAccessConfig()
	cfg.Roles = roles
	cfg.Operator = OperatorAND
	return m.RequireAccess(cfg)
}

func (m *AccessMiddleware) RequirePermission(permission string) gin.HandlerFunc {
	cfg := DefaultAccessConfig()
	cfg.Permissions = []string{permission}
	return m.RequireAccess(cfg)
}

func (m *AccessMiddleware) RequirePermissions(permissions ...string) gin.HandlerFunc {
	cfg := DefaultAccessConfig()
	cfg.Permissions = permissions
	return m.RequireAccess(cfg)
}

func (m *AccessMiddleware) RequireAllPermissions(permissions ...string) gin.HandlerFunc {
	cfg := DefaultAccessConfig()
	cfg.Permissions = permissions
	cfg.Operator = OperatorAND
	return m.RequireAccess(cfg)
}

// RequireAuthenticated only checks that a valid identity is present. Used
// for routes that operate across clinics, like listing the caller's own
// memberships.
func (m *AccessMiddleware) RequireAuthenticated() gin.HandlerFunc {
	cfg := DefaultAccessConfig()
	cfg.RequireClinicAccess = false
	return m.RequireAccess(cfg)
}

func (m *AccessMiddleware) allow(c *gin.Context, cfg AccessConfig, auth *AuthContext) {
	m.metrics.AccessChecksTotal.WithLabelValues("allowed", "").Inc()
	m.audit(c, cfg, auth, true, "")
	c.Next()
}

func (m *AccessMiddleware) reject(c *gin.Context, cfg AccessConfig, auth *AuthContext, status int, code, message string, extra gin.H) {
	m.metrics.AccessChecksTotal.WithLabelValues("denied", code).Inc()
	m.audit(c, cfg, auth, false, code)

	body := gin.H{
		"success":    false,
		"message":    message,
		"error_code": code,
	}
	for k, v := range extra {
		body[k] = v
	}
	c.AbortWithStatusJSON(status, body)
}

// checkError handles infrastructure failures during resolution. These are
// not policy denials, so they map to a 500 instead of a 403.
func (m *AccessMiddleware) checkError(c *gin.Context, cfg AccessConfig, auth *AuthContext, err error) {
	m.logger.Error(err, "authorization check failed",
		"path", c.Request.URL.Path, "method", c.Request.Method)
	m.reject(c, cfg, auth, http.StatusInternalServerError, CodePermissionCheckError,
		"Permission check failed", nil)
}

func (m *AccessMiddleware) audit(c *gin.Context, cfg AccessConfig, auth *AuthContext, allowed bool, code string) {
	var userID, clinicID uuid.UUID
	var userPerms, userRoles []string
	if auth != nil {
		userID = auth.UserID
		clinicID = auth.ClinicID
		userPerms = auth.EffectivePermissions
		userRoles = auth.EffectiveRoles
	}

	decision := &model.AccessDecision{
		Endpoint:            c.FullPath(),
		Method:              c.Request.Method,
		Allowed:             allowed,
		ErrorCode:           code,
		Operator:            string(cfg.Operator),
		RequiredPermissions: cfg.Permissions,
		UserPermissions:     userPerms,
		RequiredRoles:       cfg.Roles,
		UserRoles:           userRoles,
		CheckedAt:           time.Now(),
	}
	m.auditor.LogAccessDecision(c.Request.Context(), userID, clinicID, decision, &audit.LogOptions{
		IPAddress: c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	})
}

// requestClinicID resolves the clinic the request targets: the x-clinic-id
// header wins, the identity's default clinic is the fallback.
func requestClinicID(c *gin.Context, claims *model.TokenClaims) (uuid.UUID, error) {
	if raw := strings.TrimSpace(c.GetHeader(HeaderClinicID)); raw != "" {
		return uuid.Parse(raw)
	}
	if claims.DefaultClinicID != nil {
		return *claims.DefaultClinicID, nil
	}
	return uuid.Nil, fmt.Errorf("no clinic context")
}

func matches(op Operator, required, held []string) bool {
	set := make(map[string]bool, len(held))
	for _, h := range held {
		set[h] = true
	}
	if op == OperatorAND {
		for _, r := range required {
			if !set[r] {
				return false
			}
		}
		return true
	}
	for _, r := range required {
		if set[r] {
			return true
		}
	}
	return false
}

func isNotFound(err error) bool {
	var appErr *errors.AppError
	return errors.As(err, &appErr) && appErr.Code == errors.ErrNotFound
}
