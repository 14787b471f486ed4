package role

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/clinicore/clinic-api/internal/handler"
	"github.com/clinicore/clinic-api/internal/middleware"
	"github.com/clinicore/clinic-api/internal/model"
	roleService "github.com/clinicore/clinic-api/internal/service/role"
	"github.com/clinicore/clinic-api/pkg/errors"
	"github.com/clinicore/clinic-api/pkg/httputil"
)

type Handler struct {
	service *roleService.Service
	emitter *handler.Emitter
}

func NewHandler(service *roleService.Service, emitter *handler.Emitter) *Handler {
	return &Handler{service: service, emitter: emitter}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup, access *middleware.AccessMiddleware) {
	roles := r.Group("/roles")
	{
		roles.POST("", access.RequirePermission("roles.create"), h.CreateRole)
		roles.GET("", access.RequirePermission("roles.view"), h.ListRoles)
		roles.GET("/:id", access.RequirePermission("roles.view"), h.GetRole)
		roles.PUT("/:id", access.RequirePermission("roles.edit"), h.UpdateRole)
		roles.DELETE("/:id", access.RequirePermission("roles.delete"), h.DeleteRole)

		roles.GET("/:id/permissions", access.RequirePermission("roles.view"), h.ListEffectivePermissions)
		roles.POST("/:id/permissions", access.RequirePermission("roles.manage_roles"), h.AddPermission)
		roles.DELETE("/:id/permissions/:permission", access.RequirePermission("roles.manage_roles"), h.RemovePermission)
		roles.POST("/:id/copy-from/:source", access.RequirePermission("roles.manage_roles"), h.CopyFromRole)
	}
}

type createRoleRequest struct {
	Name         string  `json:"name" binding:"required,role_name"`
	DisplayName  string  `json:"display_name"`
	Description  string  `json:"description"`
	ClinicID     *string `json:"clinic_id"`
	IsSystemRole bool    `json:"is_system_role"`
	InheritsFrom *string `json:"inherits_from"`
	Color        string  `json:"color"`
	Icon         string  `json:"icon"`
	Priority     int     `json:"priority"`
}

func (h *Handler) CreateRole(c *gin.Context) {
	var req createRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, errors.BadRequest(err.Error(), err))
		return
	}

	clinicID, err := parseOptionalUUID(req.ClinicID)
	if err != nil {
		httputil.RespondWithError(c, errors.BadRequest("invalid clinic ID", err))
		return
	}
	inheritsFrom, err := parseOptionalUUID(req.InheritsFrom)
	if err != nil {
		httputil.RespondWithError(c, errors.BadRequest("invalid parent role ID", err))
		return
	}

	role := &model.Role{
		Name:         req.Name,
		DisplayName:  req.DisplayName,
		Description:  req.Description,
		ClinicID:     clinicID,
		IsSystemRole: req.IsSystemRole,
		InheritsFrom: inheritsFrom,
		Color:        req.Color,
		Icon:         req.Icon,
		Priority:     req.Priority,
	}
	role.ID = uuid.New()

	auth := middleware.CurrentAuth(c)
	if err := h.service.CreateRole(c.Request.Context(), role, auth.UserID); err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	h.emitter.Emit(c.Request.Context(), model.EventRoleCreated, role)
	c.JSON(http.StatusCreated, httputil.Response{Success: true, Data: role})
}

func (h *Handler) GetRole(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, errors.BadRequest("invalid role ID", err))
		return
	}

	role, err := h.service.GetRole(c.Request.Context(), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, role)
}

// ListRoles returns the clinic's roles plus the system roles visible to
// every clinic. The clinic comes from the authorization context, not from
// a query parameter.
func (h *Handler) ListRoles(c *gin.Context) {
	auth := middleware.CurrentAuth(c)

	var roles []*model.Role
	var err error
	if auth != nil && auth.ClinicID != uuid.Nil {
		roles, err = h.service.FindClinicRoles(c.Request.Context(), auth.ClinicID)
	} else {
		roles, err = h.service.FindSystemRoles(c.Request.Context())
	}
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, roles)
}

type updateRoleRequest struct {
	DisplayName  *string `json:"display_name"`
	Description  *string `json:"description"`
	InheritsFrom *string `json:"inherits_from"`
	IsActive     *bool   `json:"is_active"`
	Color        *string `json:"color"`
	Icon         *string `json:"icon"`
	Priority     *int    `json:"priority"`
}

func (h *Handler) UpdateRole(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, errors.BadRequest("invalid role ID", err))
		return
	}

	var req updateRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, errors.BadRequest(err.Error(), err))
		return
	}

	role, err := h.service.GetRole(c.Request.Context(), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	if req.DisplayName != nil {
		role.DisplayName = *req.DisplayName
	}
	if req.Description != nil {
		role.Description = *req.Description
	}
	if req.InheritsFrom != nil {
		parent, err := parseOptionalUUID(req.InheritsFrom)
		if err != nil {
			httputil.RespondWithError(c, errors.BadRequest("invalid parent role ID", err))
			return
		}
		role.InheritsFrom = parent
	}
	if req.IsActive != nil {
		role.IsActive = *req.IsActive
	}
	if req.Color != nil {
		role.Color = *req.Color
	}
	if req.Icon != nil {
		role.Icon = *req.Icon
	}
	if req.Priority != nil {
		role.Priority = *req.Priority
	}

	auth := middleware.CurrentAuth(c)
	if err := h.service.UpdateRole(c.Request.Context(), role, auth.UserID); err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	h.emitter.Emit(c.Request.Context(), model.EventRoleUpdated, role)
	httputil.RespondWithSuccess(c, role)
}

func (h *Handler) DeleteRole(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, errors.BadRequest("invalid role ID", err))
		return
	}

	auth := middleware.CurrentAuth(c)
	if err := h.service.DeleteRole(c.Request.Context(), id, auth.UserID); err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	h.emitter.Emit(c.Request.Context(), model.EventRoleDeleted, gin.H{"role_id": id})
	httputil.RespondWithSuccess(c, gin.H{"deleted": true})
}

func (h *Handler) ListEffectivePermissions(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, errors.BadRequest("invalid role ID", err))
		return
	}

	role, err := h.service.GetRole(c.Request.Context(), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	effective, err := h.service.GetEffectivePermissions(c.Request.Context(), role)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, gin.H{
		"role_id":               role.ID,
		"direct_permissions":    role.GrantedNames(),
		"effective_permissions": effective,
	})
}

type addPermissionRequest struct {
	Permission string `json:"permission" binding:"required,permission_name"`
}

func (h *Handler) AddPermission(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, errors.BadRequest("invalid role ID", err))
		return
	}

	var req addPermissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, errors.BadRequest(err.Error(), err))
		return
	}

	auth := middleware.CurrentAuth(c)
	if err := h.service.AddPermission(c.Request.Context(), id, req.Permission, &auth.UserID); err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	h.emitter.Emit(c.Request.Context(), model.EventPermissionGranted, gin.H{
		"role_id":    id,
		"permission": req.Permission,
		"granted_by": auth.UserID,
	})
	httputil.RespondWithSuccess(c, gin.H{"granted": true})
}

func (h *Handler) RemovePermission(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, errors.BadRequest("invalid role ID", err))
		return
	}
	permission := c.Param("permission")

	auth := middleware.CurrentAuth(c)
	if err := h.service.RemovePermission(c.Request.Context(), id, permission, auth.UserID); err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	h.emitter.Emit(c.Request.Context(), model.EventPermissionRevoked, gin.H{
		"role_id":    id,
		"permission": permission,
		"revoked_by": auth.UserID,
	})
	httputil.RespondWithSuccess(c, gin.H{"revoked": true})
}

func (h *Handler) CopyFromRole(c *gin.Context) {
	targetID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, errors.BadRequest("invalid role ID", err))
		return
	}
	sourceID, err := uuid.Parse(c.Param("source"))
	if err != nil {
		httputil.RespondWithError(c, errors.BadRequest("invalid source role ID", err))
		return
	}

	auth := middleware.CurrentAuth(c)
	if err := h.service.CopyFromRole(c.Request.Context(), targetID, sourceID, &auth.UserID); err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	h.emitter.Emit(c.Request.Context(), model.EventRoleUpdated, gin.H{
		"role_id":     targetID,
		"copied_from": sourceID,
	})
	httputil.RespondWithSuccess(c, gin.H{"copied": true})
}

func parseOptionalUUID(raw *string) (*uuid.UUID, error) {
	if raw == nil || *raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(*raw)
	if err != nil {
		return nil, err
	}
	return &id, nil
}
