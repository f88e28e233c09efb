// Package httpapi holds the request and response helpers shared by every gin router.
package httpapi

import (
	"errors"
	"log/slog"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/millworks/backoffice/internal/apperr"
)

const (
	CodeValidationFailed = "VALIDATION_FAILED"
	CodeNotFound         = "NOT_FOUND"
	CodeConflict         = "CONFLICT"
	CodeInvalidState     = "INVALID_STATE"
	CodeGone             = "GONE"
	CodeUnauthorized     = "UNAUTHORIZED"
	CodeForbidden        = "FORBIDDEN"
	CodeTooManyRequests  = "TOO_MANY_REQUESTS"
	CodeInternal         = "INTERNAL_ERROR"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Meta    map[string]any `json:"meta,omitempty"`
}

// Abort writes an error envelope and stops the handler chain.
func Abort(c *gin.Context, status int, code, message string, meta map[string]any) {
	c.AbortWithStatusJSON(status, ErrorResponse{Code: code, Message: message, Meta: meta})
}

// WriteError maps an error returned by a service onto the HTTP error envelope.
// Unclassified errors are logged and answered with a generic 500.
func WriteError(c *gin.Context, err error) {
	var appErr *apperr.Error
	if !errors.As(err, &appErr) {
		slog.ErrorContext(c.Request.Context(), "request failed",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"error", err,
		)
		Abort(c, http.StatusInternalServerError, CodeInternal, "internal server error", nil)
		return
	}

	status, code := http.StatusInternalServerError, CodeInternal
	switch {
	case errors.Is(appErr, apperr.ErrNotFound):
		status, code = http.StatusNotFound, CodeNotFound
	case errors.Is(appErr, apperr.ErrConflict):
		status, code = http.StatusConflict, CodeConflict
	case errors.Is(appErr, apperr.ErrInvalidInput):
		status, code = http.StatusBadRequest, CodeValidationFailed
	case errors.Is(appErr, apperr.ErrInvalidState):
		status, code = http.StatusConflict, CodeInvalidState
	case errors.Is(appErr, apperr.ErrGone):
		status, code = http.StatusGone, CodeGone
	}
	Abort(c, status, code, appErr.Message, appErr.Meta)
}

// BindJSON decodes and validates the request body into obj. On failure it writes a
// 400 VALIDATION_FAILED response listing the offending fields and returns false.
func BindJSON(c *gin.Context, obj any) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		abortValidation(c, err)
		return false
	}
	return true
}

// BindQuery is BindJSON for query strings.
func BindQuery(c *gin.Context, obj any) bool {
	if err := c.ShouldBindQuery(obj); err != nil {
		abortValidation(c, err)
		return false
	}
	return true
}

func abortValidation(c *gin.Context, err error) {
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		fields := make(map[string]string, len(validationErrs))
		for _, fe := range validationErrs {
			fields[fieldName(fe)] = fe.Tag()
		}
		Abort(c, http.StatusBadRequest, CodeValidationFailed, "request validation failed", map[string]any{"fields": fields})
		return
	}
	Abort(c, http.StatusBadRequest, CodeValidationFailed, "malformed request body", nil)
}

// UseJSONFieldNames makes validation errors report json tag names instead of Go field names.
func UseJSONFieldNames() {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return
	}
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return fld.Name
		}
		return name
	})
}

func fieldName(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		ns = ns[i+1:]
	}
	return ns
}

// ParseID reads a positive integer path parameter, writing a 400 when it is malformed.
func ParseID(c *gin.Context, name string) (uint, bool) {
	raw := c.Param(name)
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		Abort(c, http.StatusBadRequest, CodeValidationFailed, "invalid "+name+": "+raw, nil)
		return 0, false
	}
	return uint(id), true
}
