package notification

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/millworks/backoffice/internal/httpapi"
	"github.com/millworks/backoffice/utils"
)

type Router struct {
	svc *Service
}

func NewRouter(svc *Service) *Router {
	return &Router{svc: svc}
}

func (r *Router) Register(rg *gin.RouterGroup) {
	g := rg.Group("/email-notifications")
	g.GET("", r.HandleList)
	g.GET("/active", r.HandleActive)
	g.GET("/:id", r.HandleGet)
	g.POST("", r.HandleCreate)
	g.PATCH("/:id", r.HandleUpdate)
	g.PUT("/:id", r.HandleUpdate)
	g.DELETE("/:id", r.HandleDelete)
}

// HandleList handles GET /email-notifications
// Query params: page, limit, sortBy, sortOrder, status, search
func (r *Router) HandleList(c *gin.Context) {
	filter := Filter{Status: Status(c.Query("status")), Search: c.Query("search")}
	page := utils.GetPaginationParams(c.Query("page"), c.Query("limit"))

	result, err := r.svc.List(c.Request.Context(), filter, page, r.svc.SortParams(c.Query("sortBy"), c.Query("sortOrder")))
	if err != nil {
		httpapi.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// HandleActive handles GET /email-notifications/active
func (r *Router) HandleActive(c *gin.Context) {
	rows, err := r.svc.Active(c.Request.Context())
	if err != nil {
		httpapi.WriteError(c, err)
		return
	}
	if rows == nil {
		rows = []EmailNotification{}
	}
	c.JSON(http.StatusOK, rows)
}

func (r *Router) HandleGet(c *gin.Context) {
	id, ok := httpapi.ParseID(c, "id")
	if !ok {
		return
	}
	n, err := r.svc.Get(c.Request.Context(), id)
	if err != nil {
		httpapi.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, n)
}

func (r *Router) HandleCreate(c *gin.Context) {
	var req CreateRequest
	if !httpapi.BindJSON(c, &req) {
		return
	}
	n, err := r.svc.Create(c.Request.Context(), &req)
	if err != nil {
		httpapi.WriteError(c, err)
		return
	}
	c.JSON(http.StatusCreated, n)
}

func (r *Router) HandleUpdate(c *gin.Context) {
	id, ok := httpapi.ParseID(c, "id")
	if !ok {
		return
	}
	var req UpdateRequest
	if !httpapi.BindJSON(c, &req) {
		return
	}
	n, err := r.svc.Update(c.Request.Context(), id, &req)
	if err != nil {
		httpapi.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, n)
}

func (r *Router) HandleDelete(c *gin.Context) {
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
