package middlewares

import (
	"time"

	"github.com/gin-contrib/secure"
	"github.com/gin-gonic/gin"
)

const hstsMaxAge = 365 * 24 * time.Hour

// HSTS pins clients to https and redirects plain requests.
// It is only installed when the server terminates TLS itself.
func HSTS() gin.HandlerFunc {
	return secure.New(secure.Config{
		SSLRedirect:          true,
		STSSeconds:           int64(hstsMaxAge / time.Second),
		STSIncludeSubdomains: true,
		ContentTypeNosniff:   true,
		SSLProxyHeaders:      map[string]string{"X-Forwarded-Proto": "https"},
	})
}
