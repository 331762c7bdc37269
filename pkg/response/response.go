package response

import (
	"errors"
	"net/http"

	appErr "triad-service/pkg/errors"

	"github.com/gin-gonic/gin"
)

// Body is the envelope of every REST reply; Code mirrors the HTTP status.
type Body struct {
	Code int         `json:"code"`
	Data interface{} `json:"data"`
	Msg  string      `json:"msg"`
}

func Success(c *gin.Context, data interface{}) {
	JSON(c, http.StatusOK, data, "")
}

func Created(c *gin.Context, data interface{}) {
	JSON(c, http.StatusCreated, data, "")
}

func Error(c *gin.Context, status int, msg string) {
	JSON(c, status, gin.H{}, msg)
}

// Fail replies with the status StatusFor picks for err.
func Fail(c *gin.Context, err error) int {
	status := StatusFor(err)
	Error(c, status, err.Error())
	return status
}

func Abort(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, Body{Code: status, Data: gin.H{}, Msg: msg})
}

func JSON(c *gin.Context, status int, data interface{}, msg string) {
	if data == nil {
		data = gin.H{}
	}
	c.JSON(status, Body{Code: status, Data: data, Msg: msg})
}

// StatusFor maps service errors onto HTTP status codes. Rejected commands
// are client errors; anything unrecognised is a collaborator failure.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, appErr.ErrMatchNotFound), errors.Is(err, appErr.ErrUserNotFound):
		return http.StatusNotFound
	case errors.Is(err, appErr.ErrNotImplemented):
		return http.StatusNotImplemented
	case errors.Is(err, appErr.ErrUnauthorized), errors.Is(err, appErr.ErrInvalidTicket),
		errors.Is(err, appErr.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, appErr.ErrNotParticipant):
		return http.StatusForbidden
	case errors.Is(err, appErr.ErrNameTaken), errors.Is(err, appErr.ErrTooManyPending),
		errors.Is(err, appErr.ErrMatchFull), errors.Is(err, appErr.ErrSpaceOccupied):
		return http.StatusConflict
	case appErr.IsValidation(err):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
