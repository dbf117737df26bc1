package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/zedfleet/zedfleet/common"
)

type Response struct {
	Status  string      `json:"status"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// Respond sends a standardized JSON response.
func Respond(c *gin.Context, httpStatus int, status string, message string, data interface{}) {
	c.JSON(httpStatus, Response{Status: status, Message: message, Data: data})
}

// RespondSuccess sends a success response with data.
func RespondSuccess(c *gin.Context, data interface{}) {
	Respond(c, http.StatusOK, "success", "", data)
}

// RespondSuccessMessage sends a success response with message and data.
func RespondSuccessMessage(c *gin.Context, message string, data interface{}) {
	Respond(c, http.StatusOK, "success", message, data)
}

// RespondError sends an error response with message.
func RespondError(c *gin.Context, httpStatus int, message string) {
	Respond(c, httpStatus, "error", message, nil)
}

// RespondWithError maps the error taxonomy onto HTTP statuses.
func RespondWithError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, common.ErrNotFound):
		RespondError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, common.ErrInvalidState):
		RespondError(c, http.StatusConflict, err.Error())
	case errors.Is(err, common.ErrQuotaExceeded):
		RespondError(c, http.StatusForbidden, err.Error())
	case errors.Is(err, common.ErrTransportFailure):
		RespondError(c, http.StatusBadGateway, err.Error())
	case errors.Is(err, common.ErrBackendUnavailable):
		RespondError(c, http.StatusServiceUnavailable, err.Error())
	default:
		RespondError(c, http.StatusInternalServerError, err.Error())
	}
}
