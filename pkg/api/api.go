package api

import (
	"github.com/gin-gonic/gin"
)

// servicePaths are served outside the authentication and authorization filters.
var servicePaths = []string{
	"/health",
	"/healthz",
	"/ready",
	"/readiness",
	"/metrics",
	"/status",
	"/swagger/",
	"/authzen/",
	"/.well-known/",
}

// RegisterAPIRoutes registers all API endpoints on the given Gin router using ServerContext.
//
// The PDP service endpoint is only registered when enabled, and both decision
// endpoints go through the rate limiter when one is configured.
func RegisterAPIRoutes(r *gin.Engine, serverCtx *ServerContext) {
	r.GET("/status", StatusHandler(serverCtx))
	r.GET("/.well-known/authzen-configuration", WellKnownHandler(serverCtx))

	limited := func(h gin.HandlerFunc) []gin.HandlerFunc {
		if serverCtx.RateLimiter == nil {
			return []gin.HandlerFunc{h}
		}
		return []gin.HandlerFunc{serverCtx.RateLimiter.Middleware(), h}
	}

	r.POST("/authzen/decision", limited(AuthZENDecisionHandler(serverCtx))...)

	serverCtx.RLock()
	pdpEnabled := serverCtx.PDPService.Enabled
	contextPath := serverCtx.ContextPath
	serverCtx.RUnlock()

	if pdpEnabled {
		path := serverCtx.PDPServicePath()
		handlers := limited(PDPServiceHandler(serverCtx))
		r.GET(path, handlers...)
		r.POST(path, handlers...)
	}

	r.GET(contextPath+"/whoami", WhoAmIHandler(serverCtx))
}

// PublicPaths returns the path prefixes the filters must leave alone: the
// service endpoints registered by this package, the PDP service when
// enabled, and any extra paths.
func PublicPaths(serverCtx *ServerContext, extra ...string) []string {
	paths := make([]string, 0, len(servicePaths)+len(extra)+1)
	paths = append(paths, servicePaths...)

	serverCtx.RLock()
	pdpEnabled := serverCtx.PDPService.Enabled
	serverCtx.RUnlock()
	if pdpEnabled {
		paths = append(paths, serverCtx.PDPServicePath())
	}

	return append(paths, extra...)
}
