package membership

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/clinicore/clinic-api/internal/handler"
	"github.com/clinicore/clinic-api/internal/middleware"
	"github.com/clinicore/clinic-api/internal/model"
	"github.com/clinicore/clinic-api/internal/service/access"
	membershipService "github.com/clinicore/clinic-api/internal/service/membership"
	"github.com/clinicore/clinic-api/pkg/errors"
	"github.com/clinicore/clinic-api/pkg/httputil"
)

type Handler struct {
	service  *membershipService.Service
	resolver *access.Resolver
	emitter  *handler.Emitter
}

func NewHandler(service *membershipService.Service, resolver *access.Resolver, emitter *handler.Emitter) *Handler {
	return &Handler{service: service, resolver: resolver, emitter: emitter}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup, access *middleware.AccessMiddleware) {
	memberships := r.Group("/memberships")
	{
		memberships.POST("", access.RequirePermission("users.create"), h.CreateMembership)
		memberships.GET("", access.RequirePermission("users.view"), h.ListClinicMemberships)
		memberships.GET("/:id", access.RequirePermission("users.view"), h.GetMembership)
		memberships.GET("/:id/permissions", access.RequirePermission("users.view"), h.EffectivePermissions)
		memberships.POST("/:id/roles", access.RequirePermission("users.manage_permissions"), h.AssignRole)
		memberships.DELETE("/:id/roles/:roleId", access.RequirePermission("users.manage_permissions"), h.RemoveRole)
		memberships.POST("/:id/activate", access.RequirePermission("users.edit"), h.Activate)
		memberships.POST("/:id/deactivate", access.RequirePermission("users.edit"), h.Deactivate)
	}

	// A user can always inspect their own access.
	me := r.Group("/me")
	{
		me.GET("/memberships", access.RequireAuthenticated(), h.ListOwnMemberships)
		me.GET("/permissions", access.RequireAccess(middleware.DefaultAccessConfig()), h.OwnEffectivePermissions)
	}
}

type createMembershipRequest struct {
	UserID      string   `json:"user_id" binding:"required"`
	ClinicID    string   `json:"clinic_id" binding:"required"`
	RoleIDs     []string `json:"role_ids"`
	Permissions []string `json:"permissions"`
}

func (h *Handler) CreateMembership(c *gin.Context) {
	var req createMembershipRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, errors.BadRequest(err.Error(), err))
		return
	}

	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		httputil.RespondWithError(c, errors.BadRequest("invalid user ID", err))
		return
	}
	clinicID, err := uuid.Parse(req.ClinicID)
	if err != nil {
		httputil.RespondWithError(c, errors.BadRequest("invalid clinic ID", err))
		return
	}

	auth := middleware.CurrentAuth(c)

	m := &model.UserClinicMembership{
		UserID:      userID,
		ClinicID:    clinicID,
		Permissions: pq.StringArray(req.Permissions),
		IsActive:    true,
	}
	m.ID = uuid.New()
	for i, raw := range req.RoleIDs {
		roleID, err := uuid.Parse(raw)
		if err != nil {
			httputil.RespondWithError(c, errors.BadRequest("invalid role ID", err))
			return
		}
		m.Roles = append(m.Roles, model.RoleAssignment{
			RoleID:     roleID,
			AssignedBy: &auth.UserID,
			IsPrimary:  i == 0,
		})
	}

	if err := h.service.Create(c.Request.Context(), m, auth.UserID); err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	h.emitter.Emit(c.Request.Context(), model.EventMembershipCreated, m)
	c.JSON(http.StatusCreated, httputil.Response{Success: true, Data: m})
}

func (h *Handler) GetMembership(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, errors.BadRequest("invalid membership ID", err))
		return
	}

	m, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, m)
}

// EffectivePermissions resolves the full permission set a membership
// grants, inheritance included.
func (h *Handler) EffectivePermissions(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, errors.BadRequest("invalid membership ID", err))
		return
	}

	m, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	perms, err := h.resolver.EffectivePermissions(c.Request.Context(), m)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, gin.H{
		"membership_id": m.ID,
		"roles":         h.resolver.EffectiveRoles(m),
		"permissions":   perms,
	})
}

func (h *Handler) ListClinicMemberships(c *gin.Context) {
	auth := middleware.CurrentAuth(c)

	memberships, err := h.service.ListByClinic(c.Request.Context(), auth.ClinicID)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, memberships)
}

type assignRoleRequest struct {
	RoleID    string `json:"role_id" binding:"required"`
	IsPrimary bool   `json:"is_primary"`
}

func (h *Handler) AssignRole(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, errors.BadRequest("invalid membership ID", err))
		return
	}

	var req assignRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, errors.BadRequest(err.Error(), err))
		return
	}
	roleID, err := uuid.Parse(req.RoleID)
	if err != nil {
		httputil.RespondWithError(c, errors.BadRequest("invalid role ID", err))
		return
	}

	auth := middleware.CurrentAuth(c)
	if err := h.service.AssignRole(c.Request.Context(), id, roleID, req.IsPrimary, &auth.UserID); err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	h.emitter.Emit(c.Request.Context(), model.EventRoleAssigned, gin.H{
		"membership_id": id,
		"role_id":       roleID,
		"assigned_by":   auth.UserID,
	})
	httputil.RespondWithSuccess(c, gin.H{"assigned": true})
}

func (h *Handler) RemoveRole(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, errors.BadRequest("invalid membership ID", err))
		return
	}
	roleID, err := uuid.Parse(c.Param("roleId"))
	if err != nil {
		httputil.RespondWithError(c, errors.BadRequest("invalid role ID", err))
		return
	}

	auth := middleware.CurrentAuth(c)
	if err := h.service.RemoveRole(c.Request.Context(), id, roleID, auth.UserID); err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	h.emitter.Emit(c.Request.Context(), model.EventRoleUnassigned, gin.H{
		"membership_id": id,
		"role_id":       roleID,
		"removed_by":    auth.UserID,
	})
	httputil.RespondWithSuccess(c, gin.H{"removed": true})
}

func (h *Handler) Activate(c *gin.Context) {
	h.setActive(c, true)
}

func (h *Handler) Deactivate(c *gin.Context) {
	h.setActive(c, false)
}

func (h *Handler) setActive(c *gin.Context, active bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, errors.BadRequest("invalid membership ID", err))
		return
	}

	auth := middleware.CurrentAuth(c)
	if active {
		err = h.service.Activate(c.Request.Context(), id, auth.UserID)
	} else {
		err = h.service.Deactivate(c.Request.Context(), id, auth.UserID)
	}
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	h.emitter.Emit(c.Request.Context(), model.EventMembershipUpdated, gin.H{
		"membership_id": id,
		"is_active":     active,
	})
	httputil.RespondWithSuccess(c, gin.H{"is_active": active})
}

func (h *Handler) ListOwnMemberships(c *gin.Context) {
	auth := middleware.CurrentAuth(c)

	memberships, err := h.service.ListByUser(c.Request.Context(), auth.UserID)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, memberships)
}

// OwnEffectivePermissions reports the caller's resolved access within the
// current clinic. The middleware already resolved everything, so this just
// echoes the authorization context.
func (h *Handler) OwnEffectivePermissions(c *gin.Context) {
	auth := middleware.CurrentAuth(c)
	httputil.RespondWithSuccess(c, gin.H{
		"clinic_id":   auth.ClinicID,
		"is_admin":    auth.IsAdmin,
		"roles":       auth.EffectiveRoles,
		"permissions": auth.EffectivePermissions,
	})
}
