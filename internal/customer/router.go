package customer

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/millworks/backoffice/internal/auth"
	"github.com/millworks/backoffice/internal/httpapi"
	"github.com/millworks/backoffice/utils"
)

type AddressRouter struct {
	svc *AddressService
}

func NewAddressRouter(svc *AddressService) *AddressRouter {
	return &AddressRouter{svc: svc}
}

func (r *AddressRouter) Register(rg *gin.RouterGroup) {
	g := rg.Group("/customers-addresses")
	g.GET("", r.HandleList)
	g.GET("/:id", r.HandleGet)
	g.POST("", r.HandleCreate)
	g.PATCH("/:id", r.HandleUpdate)
	g.PUT("/:id", r.HandleUpdate)
	g.DELETE("/:id", r.HandleDelete)
}

// HandleList handles GET /customers-addresses
// Query params: page, limit, sortBy, sortOrder, customerId, addressType
func (r *AddressRouter) HandleList(c *gin.Context) {
	customerID, _ := utils.ParseUint(c.Query("customerId"))
	filter := AddressFilter{
		CustomerID:  customerID,
		AddressType: c.Query("addressType"),
	}
	page := utils.GetPaginationParams(c.Query("page"), c.Query("limit"))

	result, err := r.svc.List(c.Request.Context(), filter, page, r.svc.SortParams(c.Query("sortBy"), c.Query("sortOrder")))
	if err != nil {
		httpapi.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (r *AddressRouter) HandleGet(c *gin.Context) {
	id, ok := httpapi.ParseID(c, "id")
	if !ok {
		return
	}
	address, err := r.svc.Get(c.Request.Context(), id)
	if err != nil {
		httpapi.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, address)
}

func (r *AddressRouter) HandleCreate(c *gin.Context) {
	var req CreateAddressRequest
	if !httpapi.BindJSON(c, &req) {
		return
	}
	address, err := r.svc.Create(c.Request.Context(), &req)
	if err != nil {
		httpapi.WriteError(c, err)
		return
	}
	c.JSON(http.StatusCreated, address)
}

func (r *AddressRouter) HandleUpdate(c *gin.Context) {
	id, ok := httpapi.ParseID(c, "id")
	if !ok {
		return
	}
	var req UpdateAddressRequest
	if !httpapi.BindJSON(c, &req) {
		return
	}
	address, err := r.svc.Update(c.Request.Context(), id, &req)
	if err != nil {
		httpapi.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, address)
}

func (r *AddressRouter) HandleDelete(c *gin.Context) {
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

type FileRouter struct {
	svc            *FileService
	maxUploadBytes int64
}

func NewFileRouter(svc *FileService, maxUploadBytes int64) *FileRouter {
	if maxUploadBytes <= 0 {
		maxUploadBytes = 32 << 20
	}
	return &FileRouter{svc: svc, maxUploadBytes: maxUploadBytes}
}

// Register mounts the customer file routes. DELETE /:id archives, matching /:id/soft,
// so that only archived files can ever be removed.
func (r *FileRouter) Register(rg *gin.RouterGroup) {
	g := rg.Group("/customer-files")
	g.GET("", r.HandleList)
	g.POST("", r.HandleCreate)
	g.POST("/upload", r.HandleUpload)
	g.GET("/:id", r.HandleGet)
	g.GET("/:id/download-url", r.HandleDownloadURL)
	g.PATCH("/:id", r.HandleUpdate)
	g.PUT("/:id", r.HandleUpdate)
	g.PATCH("/:id/restore", r.HandleRestore)
	g.DELETE("/:id", r.HandleSoftDelete)
	g.DELETE("/:id/soft", r.HandleSoftDelete)
	g.DELETE("/:id/permanent", r.HandlePermanentDelete)
}

// HandleList handles GET /customer-files
// Query params: page, limit, sortBy, sortOrder, customerId, mimeType, search, showArchived, onlyArchived
func (r *FileRouter) HandleList(c *gin.Context) {
	customerID, _ := utils.ParseUint(c.Query("customerId"))
	showArchived, _ := utils.ParseBool(c.Query("showArchived"))
	onlyArchived, _ := utils.ParseBool(c.Query("onlyArchived"))
	filter := FileFilter{
		CustomerID:   customerID,
		MimeType:     c.Query("mimeType"),
		Search:       c.Query("search"),
		ShowArchived: showArchived,
		OnlyArchived: onlyArchived,
	}
	page := utils.GetPaginationParams(c.Query("page"), c.Query("limit"))

	result, err := r.svc.List(c.Request.Context(), filter, page, r.svc.SortParams(c.Query("sortBy"), c.Query("sortOrder")))
	if err != nil {
		httpapi.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (r *FileRouter) HandleGet(c *gin.Context) {
	id, ok := httpapi.ParseID(c, "id")
	if !ok {
		return
	}
	file, err := r.svc.Get(c.Request.Context(), id)
	if err != nil {
		httpapi.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, file)
}

func (r *FileRouter) HandleCreate(c *gin.Context) {
	var req CreateFileRequest
	if !httpapi.BindJSON(c, &req) {
		return
	}
	if req.UploadedBy == "" {
		req.UploadedBy = auth.ActorEmail(c.Request.Context())
	}
	file, err := r.svc.Create(c.Request.Context(), &req)
	if err != nil {
		httpapi.WriteError(c, err)
		return
	}
	c.JSON(http.StatusCreated, file)
}

// HandleUpload handles POST /customer-files/upload
// Multipart fields: file (required), customer_id (required), description
func (r *FileRouter) HandleUpload(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, r.maxUploadBytes)

	customerID, ok := utils.ParseUint(c.PostForm("customer_id"))
	if !ok {
		httpapi.Abort(c, http.StatusBadRequest, httpapi.CodeValidationFailed, "customer_id is required",
			map[string]any{"fields": map[string]string{"customer_id": "required"}})
		return
	}
	header, err := c.FormFile("file")
	if err != nil {
		httpapi.Abort(c, http.StatusBadRequest, httpapi.CodeValidationFailed, "file is required",
			map[string]any{"fields": map[string]string{"file": "required"}})
		return
	}
	content, err := header.Open()
	if err != nil {
		httpapi.Abort(c, http.StatusBadRequest, httpapi.CodeValidationFailed, "failed to read file", nil)
		return
	}
	defer content.Close()

	var description *string
	if d := c.PostForm("description"); d != "" {
		description = &d
	}

	file, err := r.svc.Upload(c.Request.Context(), customerID, header.Filename, content,
		header.Header.Get("Content-Type"), auth.ActorEmail(c.Request.Context()), description)
	if err != nil {
		httpapi.WriteError(c, err)
		return
	}
	c.JSON(http.StatusCreated, file)
}

func (r *FileRouter) HandleUpdate(c *gin.Context) {
	id, ok := httpapi.ParseID(c, "id")
	if !ok {
		return
	}
	var req UpdateFileRequest
	if !httpapi.BindJSON(c, &req) {
		return
	}
	file, err := r.svc.Update(c.Request.Context(), id, &req)
	if err != nil {
		httpapi.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, file)
}

func (r *FileRouter) HandleSoftDelete(c *gin.Context) {
	id, ok := httpapi.ParseID(c, "id")
	if !ok {
		return
	}
	if err := r.svc.SoftDelete(c.Request.Context(), id); err != nil {
		httpapi.WriteError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (r *FileRouter) HandleRestore(c *gin.Context) {
	id, ok := httpapi.ParseID(c, "id")
	if !ok {
		return
	}
	file, err := r.svc.Restore(c.Request.Context(), id)
	if err != nil {
		httpapi.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, file)
}

func (r *FileRouter) HandlePermanentDelete(c *gin.Context) {
	id, ok := httpapi.ParseID(c, "id")
	if !ok {
		return
	}
	if err := r.svc.PermanentDelete(c.Request.Context(), id); err != nil {
		httpapi.WriteError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (r *FileRouter) HandleDownloadURL(c *gin.Context) {
	id, ok := httpapi.ParseID(c, "id")
	if !ok {
		return
	}
	url, err := r.svc.DownloadURL(c.Request.Context(), id)
	if err != nil {
		httpapi.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, url)
}
