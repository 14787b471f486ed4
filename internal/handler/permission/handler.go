package permission

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"github.com/clinicore/clinic-api/internal/middleware"
	"github.com/clinicore/clinic-api/internal/model"
	permissionService "github.com/clinicore/clinic-api/internal/service/permission"
	"github.com/clinicore/clinic-api/pkg/errors"
	"github.com/clinicore/clinic-api/pkg/httputil"
)

const (
	catalogCacheTTL     = 5 * time.Minute
	catalogCacheCleanup = 10 * time.Minute
)

// Handler serves the permission catalog. The catalog only changes on
// seeding, so listings are cached briefly; grant checks always read
// through.
type Handler struct {
	service *permissionService.Service
	cache   *cache.Cache
}

func NewHandler(service *permissionService.Service) *Handler {
	return &Handler{
		service: service,
		cache:   cache.New(catalogCacheTTL, catalogCacheCleanup),
	}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup, access *middleware.AccessMiddleware) {
	permissions := r.Group("/permissions")
	{
		permissions.GET("", access.RequirePermission("roles.view"), h.ListPermissions)
		permissions.GET("/:id", access.RequirePermission("roles.view"), h.GetPermission)
		permissions.POST("/check-grant", access.RequirePermission("roles.manage_roles"), h.CheckGrant)
	}
}

// ListPermissions returns the catalog, optionally filtered by module and
// sub-module.
func (h *Handler) ListPermissions(c *gin.Context) {
	module := c.Query("module")
	subModule := c.Query("sub_module")
	systemOnly := c.Query("system") == "true"

	key := fmt.Sprintf("catalog:%s:%s:%t", module, subModule, systemOnly)
	if cached, ok := h.cache.Get(key); ok {
		httputil.RespondWithSuccess(c, cached)
		return
	}

	var perms []*model.Permission
	var err error
	switch {
	case systemOnly:
		perms, err = h.service.FindSystemPermissions(c.Request.Context())
	case module != "":
		perms, err = h.service.FindByModule(c.Request.Context(), model.PermissionModule(module), subModule)
	default:
		perms, err = h.service.ListPermissions(c.Request.Context())
	}
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	h.cache.Set(key, perms, cache.DefaultExpiration)
	httputil.RespondWithSuccess(c, perms)
}

func (h *Handler) GetPermission(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, errors.BadRequest("invalid permission ID", err))
		return
	}

	perm, err := h.service.GetPermission(c.Request.Context(), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, perm)
}

type checkGrantRequest struct {
	Permission string   `json:"permission" binding:"required,permission_name"`
	Granted    []string `json:"granted"`
}

// CheckGrant answers whether a permission could be granted on top of an
// existing grant set, without mutating anything. Role editors use it to
// surface dependency and conflict problems before submitting.
func (h *Handler) CheckGrant(c *gin.Context) {
	var req checkGrantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, errors.BadRequest(err.Error(), err))
		return
	}

	perm, err := h.service.GetPermissionByName(c.Request.Context(), req.Permission)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	check := h.service.CanBeGranted(perm, req.Granted)
	httputil.RespondWithSuccess(c, check)
}
