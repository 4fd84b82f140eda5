package files

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/openmined/dossier/internal/files"
	"github.com/openmined/dossier/internal/server/handlers/api"
	"github.com/openmined/dossier/internal/store"
)

var errChunkTooLarge = errors.New("chunk exceeds maximum size")

type FilesHandler struct {
	files *files.Service
}

func New(svc *files.Service) *FilesHandler {
	return &FilesHandler{files: svc}
}

// WriteChunk appends the raw request body to a file
func (h *FilesHandler) WriteChunk(ctx *gin.Context) {
	var req ChunkRequest
	if err := ctx.ShouldBindQuery(&req); err != nil {
		api.AbortWithError(ctx, http.StatusBadRequest, api.CodeInvalidRequest, fmt.Errorf("invalid query: %w", err))
		return
	}

	data, err := io.ReadAll(io.LimitReader(ctx.Request.Body, files.MaxChunkSize+1))
	if err != nil {
		api.AbortWithError(ctx, http.StatusBadRequest, api.CodeInvalidRequest, fmt.Errorf("read body: %w", err))
		return
	}
	if len(data) > files.MaxChunkSize {
		api.AbortWithError(ctx, http.StatusRequestEntityTooLarge, api.CodeInvalidRequest, errChunkTooLarge)
		return
	}

	d, err := h.files.WriteChunk(ctx.Request.Context(), &files.Chunk{
		Path:  req.Path,
		Data:  data,
		Start: req.Start,
		Final: req.Final,
	})
	if err != nil {
		api.AbortWithStoreError(ctx, api.CodeFileWriteFailed, err)
		return
	}

	ctx.PureJSON(http.StatusOK, &ChunkResponse{
		Path:   req.Path,
		Digest: d,
	})
}

// List returns the digest of every finalized file under a prefix
func (h *FilesHandler) List(ctx *gin.Context) {
	var req ListRequest
	if err := ctx.ShouldBindQuery(&req); err != nil {
		api.AbortWithError(ctx, http.StatusBadRequest, api.CodeInvalidRequest, fmt.Errorf("invalid query: %w", err))
		return
	}

	prefix := store.NormalizeDir(req.Prefix)
	listed, err := h.files.ListFiles(ctx.Request.Context(), prefix)
	if err != nil {
		api.AbortWithStoreError(ctx, api.CodeFileListFailed, err)
		return
	}

	ctx.PureJSON(http.StatusOK, &ListResponse{Files: listed})
}

func (h *FilesHandler) Delete(ctx *gin.Context) {
	var req DeleteRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		api.AbortWithError(ctx, http.StatusBadRequest, api.CodeInvalidRequest, fmt.Errorf("invalid body: %w", err))
		return
	}

	deleted, err := h.files.DeleteFile(ctx.Request.Context(), req.Path)
	if err != nil {
		api.AbortWithStoreError(ctx, api.CodeInternalError, err)
		return
	}

	ctx.PureJSON(http.StatusOK, &DeleteResponse{Deleted: deleted})
}
