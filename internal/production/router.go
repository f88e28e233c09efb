package production

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/millworks/backoffice/internal/httpapi"
	"github.com/millworks/backoffice/utils"
)

type lineService[T, C, U any] interface {
	SortParams(sortBy, sortOrder string) utils.SortParams
	List(ctx context.Context, filter LineFilter, page utils.PageParams, sort utils.SortParams) (utils.Page[T], error)
	Get(ctx context.Context, id uint) (*T, error)
	Create(ctx context.Context, req *C) (*T, error)
	Update(ctx context.Context, id uint, req *U) (*T, error)
	Delete(ctx context.Context, id uint) error
}

// Router serves one kind of production order line item. T is the row,
// C and U its create and update bodies.
type Router[T, C, U any] struct {
	path string
	svc  lineService[T, C, U]
}

func NewBodyColorRouter(svc *BodyColorService) *Router[BodyColor, CreateBodyColorRequest, UpdateBodyColorRequest] {
	return &Router[BodyColor, CreateBodyColorRequest, UpdateBodyColorRequest]{path: "/production-orders-body-colors", svc: svc}
}

func NewKnitColorRouter(svc *KnitColorService) *Router[KnitColor, CreateKnitColorRequest, UpdateKnitColorRequest] {
	return &Router[KnitColor, CreateKnitColorRequest, UpdateKnitColorRequest]{path: "/production-orders-knit-colors", svc: svc}
}

func NewPackagingRouter(svc *PackagingService) *Router[Packaging, CreatePackagingRequest, UpdatePackagingRequest] {
	return &Router[Packaging, CreatePackagingRequest, UpdatePackagingRequest]{path: "/production-orders-packaging", svc: svc}
}

func (r *Router[T, C, U]) Register(rg *gin.RouterGroup) {
	g := rg.Group(r.path)
	g.GET("", r.HandleList)
	g.GET("/:id", r.HandleGet)
	g.POST("", r.HandleCreate)
	g.PATCH("/:id", r.HandleUpdate)
	g.PUT("/:id", r.HandleUpdate)
	g.DELETE("/:id", r.HandleDelete)
}

// HandleList handles GET on the collection
// Query params: page, limit, sortBy, sortOrder, productionOrderId, itemId
func (r *Router[T, C, U]) HandleList(c *gin.Context) {
	orderID, _ := utils.ParseUint(c.Query("productionOrderId"))
	itemID, _ := utils.ParseUint(c.Query("itemId"))
	filter := LineFilter{ProductionOrderID: orderID, ItemID: itemID}
	page := utils.GetPaginationParams(c.Query("page"), c.Query("limit"))

	result, err := r.svc.List(c.Request.Context(), filter, page, r.svc.SortParams(c.Query("sortBy"), c.Query("sortOrder")))
	if err != nil {
		httpapi.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (r *Router[T, C, U]) HandleGet(c *gin.Context) {
	id, ok := httpapi.ParseID(c, "id")
	if !ok {
		return
	}
	row, err := r.svc.Get(c.Request.Context(), id)
	if err != nil {
		httpapi.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, row)
}

func (r *Router[T, C, U]) HandleCreate(c *gin.Context) {
	var req C
	if !httpapi.BindJSON(c, &req) {
		return
	}
	row, err := r.svc.Create(c.Request.Context(), &req)
	if err != nil {
		httpapi.WriteError(c, err)
		return
	}
	c.JSON(http.StatusCreated, row)
}

func (r *Router[T, C, U]) HandleUpdate(c *gin.Context) {
	id, ok := httpapi.ParseID(c, "id")
	if !ok {
		return
	}
	var req U
	if !httpapi.BindJSON(c, &req) {
		return
	}
	row, err := r.svc.Update(c.Request.Context(), id, &req)
	if err != nil {
		httpapi.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, row)
}

func (r *Router[T, C, U]) HandleDelete(c *gin.Context) {
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
