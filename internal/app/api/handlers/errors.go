package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/fatflowers/iftar/pkg/response"
	"github.com/fatflowers/iftar/pkg/types"
)

// codeFor maps a service error class to the envelope code.
func codeFor(err error) response.APIResponseCode {
	switch {
	case errors.Is(err, types.ErrInvalidInput):
		return response.APIResponseCodeBadRequest
	case errors.Is(err, types.ErrUnauthorized):
		return response.APIResponseCodeUnauthorized
	case errors.Is(err, types.ErrNotFound):
		return response.APIResponseCodeNotFound
	case errors.Is(err, types.ErrConflict):
		return response.APIResponseCodeConflict
	default:
		return response.APIResponseCodeError
	}
}

const internalErrorMessage = "internal error"

// writeError answers with HTTP 200 and the envelope code of err. Internal errors only reach the access
// log through the gin context; the client gets a fixed message.
func writeError(c *gin.Context, err error) {
	code := codeFor(err)
	if code == response.APIResponseCodeError {
		_ = c.Error(err)
		c.JSON(http.StatusOK, response.ErrorT[any](code, internalErrorMessage))
		return
	}
	c.JSON(http.StatusOK, response.ErrorT[any](code, err.Error()))
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, msg))
}
