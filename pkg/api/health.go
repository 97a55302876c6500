package api

import (
	"time"

	"github.com/OPENDAP/hyrax-auth/pkg/logging"
	"github.com/OPENDAP/hyrax-auth/pkg/pdp"
	"github.com/gin-gonic/gin"
)

// HealthResponse represents the response from health check endpoints
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// ReadinessResponse represents the response from the readiness endpoint
type ReadinessResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Providers int       `json:"providers"`
	PDP       string    `json:"pdp,omitempty"`
	Ready     bool      `json:"ready"`
	Message   string    `json:"message,omitempty"`
}

// RegisterHealthEndpoints registers health check endpoints on the given Gin router.
// These endpoints are useful for Kubernetes liveness and readiness probes, load balancers,
// and monitoring systems.
//
// Endpoints:
//
//	GET /health       - Liveness probe: returns 200 if the server is running
//	GET /healthz      - Alias for /health
//	GET /ready        - Readiness probe: returns 200 if server is ready to accept traffic
//	GET /readiness    - Alias for /ready
//
// The /ready endpoint initializes the filters if they are not yet
// initialized and returns 503 Service Unavailable while that fails.
func RegisterHealthEndpoints(r *gin.Engine, serverCtx *ServerContext) {
	r.GET("/health", HealthHandler(serverCtx))
	r.GET("/healthz", HealthHandler(serverCtx))
	r.GET("/ready", ReadinessHandler(serverCtx))
	r.GET("/readiness", ReadinessHandler(serverCtx))

	serverCtx.Logger.Info("Health check endpoints registered",
		logging.F("endpoints", []string{"/health", "/healthz", "/ready", "/readiness"}))
}

// HealthHandler godoc
// @Summary Liveness check
// @Description Returns OK if the server is running and able to handle requests
// @Tags Health
// @Produce json
// @Success 200 {object} HealthResponse
// @Router /health [get]
// @Router /healthz [get]
func HealthHandler(serverCtx *ServerContext) gin.HandlerFunc {
	return func(c *gin.Context) {
		serverCtx.Logger.Debug("Health check requested",
			logging.F("remote_ip", c.ClientIP()),
			logging.F("endpoint", c.Request.URL.Path))

		c.JSON(200, HealthResponse{
			Status:    "ok",
			Timestamp: time.Now(),
		})
	}
}

// ReadinessHandler godoc
// @Summary Readiness check
// @Description Returns ready once identity providers and the policy decision point are configured
// @Tags Health
// @Produce json
// @Success 200 {object} ReadinessResponse "Service is ready"
// @Failure 503 {object} ReadinessResponse "Service is not ready"
// @Router /ready [get]
// @Router /readiness [get]
func ReadinessHandler(serverCtx *ServerContext) gin.HandlerFunc {
	return func(c *gin.Context) {
		response := ReadinessResponse{Timestamp: time.Now()}

		if serverCtx.Filters == nil {
			response.Status = "not_ready"
			response.Message = "Filters are not configured"
			c.JSON(503, response)
			return
		}

		s, err := serverCtx.Filters.Get()
		if err != nil {
			response.Status = "not_ready"
			response.Message = "Filter initialization failed: " + err.Error()

			serverCtx.Logger.Warn("Readiness check failed",
				logging.F("remote_ip", c.ClientIP()),
				logging.F("endpoint", c.Request.URL.Path),
				logging.F("reason", response.Message))

			c.JSON(503, response)
			return
		}

		response.Status = "ready"
		response.Ready = true
		response.Providers = s.Registry.Len()
		response.PDP = pdp.Kind(s.PDP)
		response.Message = "Service is ready to accept traffic"

		serverCtx.Logger.Debug("Readiness check passed",
			logging.F("remote_ip", c.ClientIP()),
			logging.F("endpoint", c.Request.URL.Path),
			logging.F("providers", response.Providers))

		c.JSON(200, response)
	}
}
