package uploads

import (
	"errors"
	"io"
	"io/fs"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/millworks/backoffice/internal/httpapi"
)

type HTTPHandler struct {
	Service        *UploadService
	MaxUploadBytes int64
}

func NewHTTPHandler(service *UploadService, maxUploadBytes int64) *HTTPHandler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = 32 << 20
	}
	return &HTTPHandler{Service: service, MaxUploadBytes: maxUploadBytes}
}

// Register mounts the handlers under /uploads
func (h *HTTPHandler) Register(rg *gin.RouterGroup) {
	g := rg.Group("/uploads")
	g.POST("", h.HandleUpload)
	g.GET("/:key", h.HandleDownload)
	g.DELETE("/:key", h.HandleDelete)
}

// HandleUpload handles POST /uploads (multipart field "file")
func (h *HTTPHandler) HandleUpload(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.MaxUploadBytes)

	header, err := c.FormFile("file")
	if err != nil {
		httpapi.Abort(c, http.StatusBadRequest, httpapi.CodeValidationFailed, "file is required", nil)
		return
	}
	file, err := header.Open()
	if err != nil {
		httpapi.Abort(c, http.StatusBadRequest, httpapi.CodeValidationFailed, "failed to read file", nil)
		return
	}
	defer file.Close()

	stored, err := h.Service.Upload(c.Request.Context(), header.Filename, file, header.Header.Get("Content-Type"))
	if err != nil {
		httpapi.WriteError(c, err)
		return
	}

	c.JSON(http.StatusCreated, stored)
}

// HandleDownload handles GET /uploads/:key
func (h *HTTPHandler) HandleDownload(c *gin.Context) {
	reader, info, err := h.Service.Download(c.Request.Context(), c.Param("key"))
	if err != nil {
		if errors.Is(err, ErrInvalidKey) {
			httpapi.Abort(c, http.StatusBadRequest, httpapi.CodeValidationFailed, "invalid key", nil)
			return
		}
		if !errors.Is(err, fs.ErrNotExist) {
			slog.WarnContext(c.Request.Context(), "download failed", "key", c.Param("key"), "error", err)
		}
		httpapi.Abort(c, http.StatusNotFound, httpapi.CodeNotFound, "file not found", nil)
		return
	}
	defer reader.Close()

	c.Header("Content-Type", info.ContentType)
	c.Header("Content-Disposition", info.ContentDisposition())
	c.Status(http.StatusOK)
	if _, err := io.Copy(c.Writer, reader); err != nil {
		slog.WarnContext(c.Request.Context(), "failed to stream file", "key", c.Param("key"), "error", err)
	}
}

// HandleDelete handles DELETE /uploads/:key
func (h *HTTPHandler) HandleDelete(c *gin.Context) {
	if err := h.Service.Delete(c.Request.Context(), c.Param("key")); err != nil {
		if errors.Is(err, ErrInvalidKey) {
			httpapi.Abort(c, http.StatusBadRequest, httpapi.CodeValidationFailed, "invalid key", nil)
			return
		}
		httpapi.WriteError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
