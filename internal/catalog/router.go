package catalog

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/millworks/backoffice/internal/httpapi"
	"github.com/millworks/backoffice/utils"
)

type PackagingRouter struct {
	svc *PackagingService
}

func NewPackagingRouter(svc *PackagingService) *PackagingRouter {
	return &PackagingRouter{svc: svc}
}

func (r *PackagingRouter) Register(rg *gin.RouterGroup) {
	g := rg.Group("/packaging")
	g.GET("", r.HandleList)
	g.GET("/:id", r.HandleGet)
	g.POST("", r.HandleCreate)
	g.PATCH("/:id", r.HandleUpdate)
	g.PUT("/:id", r.HandleUpdate)
	g.DELETE("/:id", r.HandleDelete)
}

// HandleList handles GET /packaging
// Query params: page, limit, sortBy, sortOrder, search, isActive
func (r *PackagingRouter) HandleList(c *gin.Context) {
	filter := PackagingFilter{Search: c.Query("search")}
	if active, ok := utils.ParseBool(c.Query("isActive")); ok {
		filter.IsActive = &active
	}
	page := utils.GetPaginationParams(c.Query("page"), c.Query("limit"))

	result, err := r.svc.List(c.Request.Context(), filter, page, r.svc.SortParams(c.Query("sortBy"), c.Query("sortOrder")))
	if err != nil {
		httpapi.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (r *PackagingRouter) HandleGet(c *gin.Context) {
	id, ok := httpapi.ParseID(c, "id")
	if !ok {
		return
	}
	packaging, err := r.svc.Get(c.Request.Context(), id)
	if err != nil {
		httpapi.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, packaging)
}

func (r *PackagingRouter) HandleCreate(c *gin.Context) {
	var req CreatePackagingRequest
	if !httpapi.BindJSON(c, &req) {
		return
	}
	packaging, err := r.svc.Create(c.Request.Context(), &req)
	if err != nil {
		httpapi.WriteError(c, err)
		return
	}
	c.JSON(http.StatusCreated, packaging)
}

func (r *PackagingRouter) HandleUpdate(c *gin.Context) {
	id, ok := httpapi.ParseID(c, "id")
	if !ok {
		return
	}
	var req UpdatePackagingRequest
	if !httpapi.BindJSON(c, &req) {
		return
	}
	packaging, err := r.svc.Update(c.Request.Context(), id, &req)
	if err != nil {
		httpapi.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, packaging)
}

func (r *PackagingRouter) HandleDelete(c *gin.Context) {
	id, ok := httpapi.ParseID(c, "id")
	if !ok {
		return
	}
	if err := r.svc.Delete(c.Request.Context(), id); err != nil {
		httpapi.WriteError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// YarnRouter exposes the yarn lookups; yarns are maintained elsewhere.
type YarnRouter struct {
	svc *YarnService
}

func NewYarnRouter(svc *YarnService) *YarnRouter {
	return &YarnRouter{svc: svc}
}

func (r *YarnRouter) Register(rg *gin.RouterGroup) {
	g := rg.Group("/yarns")
	g.GET("", r.HandleList)
	g.GET("/:id", r.HandleGet)
}

func (r *YarnRouter) HandleList(c *gin.Context) {
	page := utils.GetPaginationParams(c.Query("page"), c.Query("limit"))
	result, err := r.svc.List(c.Request.Context(), c.Query("search"), page, r.svc.SortParams(c.Query("sortBy"), c.Query("sortOrder")))
	if err != nil {
		httpapi.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (r *YarnRouter) HandleGet(c *gin.Context) {
	id, ok := httpapi.ParseID(c, "id")
	if !ok {
		return
	}
	yarn, err := r.svc.Get(c.Request.Context(), id)
	if err != nil {
		httpapi.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, yarn)
}
