package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/openmined/dossier/internal/store"
)

func AbortWithError(ctx *gin.Context, status int, code string, err error) {
	ctx.Abort()
	ctx.Error(err)
	ctx.PureJSON(status, APIError{
		Code:    code,
		Message: err.Error(),
	})
}

// AbortWithStoreError maps store sentinels to a status and code.
// Unrecognized errors fall back to fallbackCode with a 500.
func AbortWithStoreError(ctx *gin.Context, fallbackCode string, err error) {
	switch {
	case errors.Is(err, store.ErrInvalidPath), errors.Is(err, store.ErrInvalidName):
		AbortWithError(ctx, http.StatusBadRequest, CodeFileInvalidPath, err)
	case errors.Is(err, store.ErrNotFound):
		AbortWithError(ctx, http.StatusNotFound, CodeFileNotFound, err)
	case errors.Is(err, store.ErrAlreadyExists):
		AbortWithError(ctx, http.StatusConflict, CodeFileExists, err)
	case errors.Is(err, store.ErrDeleted):
		AbortWithError(ctx, http.StatusConflict, CodeFileDeleted, err)
	default:
		AbortWithError(ctx, http.StatusInternalServerError, fallbackCode, err)
	}
}
