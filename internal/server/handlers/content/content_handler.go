package content

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/openmined/dossier/internal/digest"
	"github.com/openmined/dossier/internal/store"
	"github.com/openmined/dossier/internal/utils"
)

const (
	allowedMethods = "OPTIONS, GET, HEAD"
	indexPrefix    = "index."
)

// ContentHandler serves store files over HTTP, using the stored digest as a strong ETag
type ContentHandler struct {
	store store.Store
}

func New(st store.Store) *ContentHandler {
	return &ContentHandler{store: st}
}

func (h *ContentHandler) Serve(ctx *gin.Context) {
	switch ctx.Request.Method {
	case http.MethodGet, http.MethodHead:
	case http.MethodOptions:
		ctx.Header("Allow", allowedMethods)
		writeStatus(ctx, http.StatusOK)
		return
	default:
		ctx.Header("Allow", allowedMethods)
		ctx.Error(fmt.Errorf("unsupported method: %s", ctx.Request.Method))
		ctx.String(http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	path, err := DecodePath(ctx.Request.URL.EscapedPath())
	if err != nil {
		ctx.Error(err)
		ctx.String(http.StatusBadRequest, err.Error())
		return
	}

	file, err := h.resolve(ctx, path)
	if errors.Is(err, errRedirect) {
		// the location keeps the request's escaping so names with % or ? survive
		ctx.Redirect(http.StatusTemporaryRedirect, ctx.Request.URL.EscapedPath()+"/")
		return
	} else if errors.Is(err, store.ErrNotFound) || errors.Is(err, store.ErrDeleted) {
		ctx.String(http.StatusNotFound, "Not found")
		return
	} else if errors.Is(err, store.ErrInvalidPath) || errors.Is(err, store.ErrInvalidName) {
		ctx.Error(err)
		ctx.String(http.StatusBadRequest, err.Error())
		return
	} else if err != nil {
		serverError(ctx, err)
		return
	}

	if err := h.serveFile(ctx, file); err != nil {
		if errors.Is(err, store.ErrDeleted) {
			ctx.String(http.StatusNotFound, "Not found")
			return
		}
		serverError(ctx, err)
	}
}

var errRedirect = errors.New("redirect to directory")

// resolve loads path, falling back to an index.* file when path names a directory
func (h *ContentHandler) resolve(ctx *gin.Context, path string) (store.FileHandle, error) {
	reqCtx := ctx.Request.Context()

	if !strings.HasSuffix(path, store.Separator) {
		file, err := h.store.Load(reqCtx, path)
		if !errors.Is(err, store.ErrNotFound) {
			return file, err
		}
	}

	dir := store.NormalizeDir(path)
	if err := store.ValidateDir(dir); err != nil {
		return nil, err
	}
	entries, err := h.store.List(reqCtx, dir)
	if err != nil {
		return nil, err
	}
	for _, entry := range entries {
		if !strings.HasPrefix(entry.Name, indexPrefix) {
			continue
		}
		if !strings.HasSuffix(path, store.Separator) {
			return nil, errRedirect
		}
		return h.store.Load(reqCtx, entry.Path)
	}
	return nil, store.ErrNotFound
}

func (h *ContentHandler) serveFile(ctx *gin.Context, file store.FileHandle) error {
	reqCtx := ctx.Request.Context()

	md, err := file.Metadata(reqCtx)
	if err != nil {
		return err
	}
	size, err := file.Size(reqCtx)
	if err != nil {
		return err
	}

	ctx.Header("Content-Type", utils.DetectContentType(file.Name()))
	if md != nil {
		ctx.Header("ETag", md.Digest.ETag())
		if digest.MatchesETags(ctx.GetHeader("If-None-Match"), md.Digest) {
			writeStatus(ctx, http.StatusNotModified)
			return nil
		}
	}

	if ctx.Request.Method == http.MethodHead {
		ctx.Header("Content-Length", strconv.FormatInt(size, 10))
		writeStatus(ctx, http.StatusOK)
		return nil
	}

	contents, err := file.Contents(reqCtx)
	if err != nil {
		return err
	}
	defer contents.Close()

	ctx.Header("Content-Length", strconv.FormatInt(size, 10))
	ctx.Status(http.StatusOK)
	if _, err := io.Copy(ctx.Writer, contents); err != nil {
		// headers are gone, the client sees a short body
		ctx.Error(fmt.Errorf("stream %s: %w", file.Path(), err))
	}
	return nil
}

// writeStatus commits a bodiless response. NoRoute handlers start out as 404
// and gin writes its default body unless the header is already sent.
func writeStatus(ctx *gin.Context, code int) {
	ctx.Status(code)
	ctx.Writer.WriteHeaderNow()
}

func serverError(ctx *gin.Context, err error) {
	ctx.Error(err)
	ctx.String(http.StatusInternalServerError, "an error occurred: %s", err)
}
