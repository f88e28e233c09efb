package shipping

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/millworks/backoffice/internal/httpapi"
	"github.com/millworks/backoffice/utils"
)

type crudService[T, F, C, U any] interface {
	SortParams(sortBy, sortOrder string) utils.SortParams
	List(ctx context.Context, filter F, page utils.PageParams, sort utils.SortParams) (utils.Page[T], error)
	Get(ctx context.Context, id uint) (*T, error)
	Create(ctx context.Context, req *C) (*T, error)
	Update(ctx context.Context, id uint, req *U) (*T, error)
	Delete(ctx context.Context, id uint) error
}

// Router serves one shipping resource. F is its list filter, read from the query string by filter.
type Router[T, F, C, U any] struct {
	path   string
	svc    crudService[T, F, C, U]
	filter func(c *gin.Context) F
}

func NewDimensionPresetRouter(svc *DimensionPresetService) *Router[DimensionPreset, PresetFilter, CreateDimensionPresetRequest, UpdateDimensionPresetRequest] {
	return &Router[DimensionPreset, PresetFilter, CreateDimensionPresetRequest, UpdateDimensionPresetRequest]{
		path:   "/shipping-dimension-presets",
		svc:    svc,
		filter: presetFilterFrom,
	}
}

func NewWeightPresetRouter(svc *WeightPresetService) *Router[WeightPreset, PresetFilter, CreateWeightPresetRequest, UpdateWeightPresetRequest] {
	return &Router[WeightPreset, PresetFilter, CreateWeightPresetRequest, UpdateWeightPresetRequest]{
		path:   "/shipping-weight-presets",
		svc:    svc,
		filter: presetFilterFrom,
	}
}

func NewPackageSpecItemRouter(svc *PackageSpecItemService) *Router[PackageSpecItem, PackageSpecItemFilter, CreatePackageSpecItemRequest, UpdatePackageSpecItemRequest] {
	return &Router[PackageSpecItem, PackageSpecItemFilter, CreatePackageSpecItemRequest, UpdatePackageSpecItemRequest]{
		path:   "/shipping-package-spec-items",
		svc:    svc,
		filter: specItemFilterFrom,
	}
}

// Query params: search, isActive, measurementUnit
func presetFilterFrom(c *gin.Context) PresetFilter {
	filter := PresetFilter{
		Search:          c.Query("search"),
		MeasurementUnit: MeasurementUnit(c.Query("measurementUnit")),
	}
	if active, ok := utils.ParseBool(c.Query("isActive")); ok {
		filter.IsActive = &active
	}
	return filter
}

// Query params: packageSpecId, itemId
func specItemFilterFrom(c *gin.Context) PackageSpecItemFilter {
	specID, _ := utils.ParseUint(c.Query("packageSpecId"))
	itemID, _ := utils.ParseUint(c.Query("itemId"))
	return PackageSpecItemFilter{PackageSpecID: specID, ItemID: itemID}
}

func (r *Router[T, F, C, U]) Register(rg *gin.RouterGroup) {
	g := rg.Group(r.path)
	g.GET("", r.HandleList)
	g.GET("/:id", r.HandleGet)
	g.POST("", r.HandleCreate)
	g.PATCH("/:id", r.HandleUpdate)
	g.PUT("/:id", r.HandleUpdate)
	g.DELETE("/:id", r.HandleDelete)
}

func (r *Router[T, F, C, U]) HandleList(c *gin.Context) {
	page := utils.GetPaginationParams(c.Query("page"), c.Query("limit"))
	result, err := r.svc.List(c.Request.Context(), r.filter(c), page, r.svc.SortParams(c.Query("sortBy"), c.Query("sortOrder")))
	if err != nil {
		httpapi.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (r *Router[T, F, C, U]) HandleGet(c *gin.Context) {
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

func (r *Router[T, F, C, U]) HandleCreate(c *gin.Context) {
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

func (r *Router[T, F, C, U]) HandleUpdate(c *gin.Context) {
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

func (r *Router[T, F, C, U]) HandleDelete(c *gin.Context) {
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
