package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/openmined/dossier/internal/server/handlers/content"
	"github.com/openmined/dossier/internal/server/handlers/files"
	"github.com/openmined/dossier/internal/server/middlewares"
	"github.com/openmined/dossier/internal/version"
)

func SetupRoutes(config *Config, svc *Services) (http.Handler, error) {
	r := gin.New()

	filesH := files.New(svc.Files)
	contentH := content.New(svc.Store)

	r.Use(middlewares.Logger())
	r.Use(gin.Recovery())
	if config.HTTP.HSTS {
		r.Use(middlewares.HSTS())
	}

	r.GET("/healthz", HealthHandler)

	v1 := r.Group("/api/v1")
	v1.Use(middlewares.GZIP())
	v1.Use(middlewares.CORS())
	if config.HTTP.RateLimit != "" {
		limiter, err := middlewares.RateLimiter(config.HTTP.RateLimit)
		if err != nil {
			return nil, err
		}
		v1.Use(limiter)
	}
	{
		v1.GET("/version", VersionHandler)

		v1.PUT("/files/chunk", filesH.WriteChunk)
		v1.GET("/files/list", filesH.List)
		v1.POST("/files/delete", filesH.Delete)
	}

	// every other path is store content
	r.NoRoute(contentH.Serve)

	return r.Handler(), nil
}

func HealthHandler(ctx *gin.Context) {
	ctx.PureJSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}

func VersionHandler(ctx *gin.Context) {
	ctx.PureJSON(http.StatusOK, version.Current())
}

func init() {
	gin.SetMode(gin.ReleaseMode)
}
