package api

import (
	"fmt"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"
)

// AllowedOrigins holds the parsed set of allowed origins for CORS and
// websocket checks, adapted from the teacher's api/cors.go.
type AllowedOrigins struct {
	origins map[string]struct{}
}

// IsAllowed reports whether origin may access the API. An empty origin
// (non-browser clients) is always allowed; an empty allowlist allows every
// origin, matching CORS_ORIGINS unset meaning "no restriction" in dev.
func (ao *AllowedOrigins) IsAllowed(origin string) bool {
	if origin == "" || len(ao.origins) == 0 {
		return true
	}
	_, ok := ao.origins[origin]
	return ok
}

// ParseAllowedOrigins validates each configured origin (scheme://host only,
// no path/query/fragment) and normalizes it.
func ParseAllowedOrigins(configured []string) (*AllowedOrigins, error) {
	origins := make(map[string]struct{})
	for _, origin := range configured {
		if origin == "" {
			continue
		}
		parsed, err := url.Parse(origin)
		if err != nil {
			return nil, fmt.Errorf("invalid origin %q: %w", origin, err)
		}
		if parsed.Scheme == "" || parsed.Host == "" {
			return nil, fmt.Errorf("invalid origin %q: must have scheme and host", origin)
		}
		origins[fmt.Sprintf("%s://%s", parsed.Scheme, parsed.Host)] = struct{}{}
	}
	return &AllowedOrigins{origins: origins}, nil
}

// CORSMiddleware enforces the origin allowlist and sets CORS headers.
func CORSMiddleware(allowed *AllowedOrigins) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin != "" {
			if !allowed.IsAllowed(origin) {
				c.AbortWithStatus(http.StatusForbidden)
				return
			}
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Vary", "Origin")
			c.Header("Access-Control-Allow-Credentials", "true")
			if c.Request.Method == http.MethodOptions {
				c.Header("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
				c.Header("Access-Control-Allow-Headers", "Authorization,Content-Type")
				c.AbortWithStatus(http.StatusNoContent)
				return
			}
		}
		c.Next()
	}
}

// CheckWebSocketOrigin adapts the allowlist to gorilla/websocket's
// Upgrader.CheckOrigin hook.
func CheckWebSocketOrigin(allowed *AllowedOrigins) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		return allowed.IsAllowed(r.Header.Get("Origin"))
	}
}
