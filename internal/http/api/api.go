package api

import (
	"database/sql"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/Nixie-Tech-LLC/medusa-scheduler/internal/control"
	"github.com/Nixie-Tech-LLC/medusa-scheduler/internal/http/middleware"
	"github.com/Nixie-Tech-LLC/medusa-scheduler/internal/model"
)

// APIError is rendered as {"error": Message} with status Code.
type APIError struct {
	Code    int
	Message string
}

func (e *APIError) Error() string { return e.Message }

func BadRequest(msg string) *APIError { return &APIError{Code: http.StatusBadRequest, Message: msg} }
func NotFound(msg string) *APIError   { return &APIError{Code: http.StatusNotFound, Message: msg} }
func Forbidden() *APIError            { return &APIError{Code: http.StatusForbidden, Message: "forbidden"} }

// FromError maps a store or control-plane error onto a response: missing
// rows are 404, validation failures 400, anything else 500.
func FromError(err error, what string) *APIError {
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return NotFound(what + " not found")
	case control.IsValidation(err):
		return BadRequest(err.Error())
	default:
		log.Error().Err(err).Str("resource", what).Msg("request failed")
		return &APIError{Code: http.StatusInternalServerError, Message: "internal error"}
	}
}

type HandlerFuncWithAuth func(ctx *gin.Context, user *model.User) (any, *APIError)
type HandlerFunc func(ctx *gin.Context) (any, *APIError)

func ResolveEndpointWithAuth(h HandlerFuncWithAuth) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		user, ok := middleware.GetCurrentUser(ctx)
		if !ok {
			ctx.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		result, apiErr := h(ctx, user)
		if apiErr != nil {
			ctx.JSON(apiErr.Code, gin.H{"error": apiErr.Message})
			return
		}
		if result == nil {
			ctx.Status(http.StatusNoContent)
			return
		}
		ctx.JSON(http.StatusOK, result)
	}
}

func ResolveEndpoint(h HandlerFunc) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		result, apiErr := h(ctx)
		if apiErr != nil {
			ctx.JSON(apiErr.Code, gin.H{"error": apiErr.Message})
			return
		}
		ctx.JSON(http.StatusOK, result)
	}
}

// Controller is the router group a Module registers on. The verb helpers
// take authenticated handlers; Public registers one that needs no user.
type Controller struct {
	Group *gin.RouterGroup
}

func (c *Controller) GET(path string, h HandlerFuncWithAuth) {
	c.Group.GET(path, ResolveEndpointWithAuth(h))
}

func (c *Controller) POST(path string, h HandlerFuncWithAuth) {
	c.Group.POST(path, ResolveEndpointWithAuth(h))
}

func (c *Controller) PUT(path string, h HandlerFuncWithAuth) {
	c.Group.PUT(path, ResolveEndpointWithAuth(h))
}

func (c *Controller) DELETE(path string, h HandlerFuncWithAuth) {
	c.Group.DELETE(path, ResolveEndpointWithAuth(h))
}

func (c *Controller) Public(method, path string, h HandlerFunc) {
	c.Group.Handle(method, path, ResolveEndpoint(h))
}

// Raw registers a plain gin handler, for endpoints that take over the
// connection.
func (c *Controller) Raw(method, path string, h gin.HandlerFunc) {
	c.Group.Handle(method, path, h)
}
