package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/OPENDAP/hyrax-auth/pkg/authzen"
	"github.com/OPENDAP/hyrax-auth/pkg/filter"
	"github.com/OPENDAP/hyrax-auth/pkg/idp"
	"github.com/OPENDAP/hyrax-auth/pkg/logging"
	"github.com/OPENDAP/hyrax-auth/pkg/pdp"
	"github.com/OPENDAP/hyrax-auth/pkg/session"
	"github.com/gin-gonic/gin"
)

// PDP service answers. The remote decision point only looks at the status.
const (
	PermitMessage = "Yes. Affirmative. Absolutely. I do."
	DenyMessage   = "No. Nope. Not even."
)

// ProviderStatus describes one configured identity provider.
type ProviderStatus struct {
	AuthContext   string `json:"auth_context"`
	Description   string `json:"description"`
	Default       bool   `json:"default"`
	LoginEndpoint string `json:"login_endpoint"`
}

// StatusResponse is returned by /status.
type StatusResponse struct {
	Initialized        bool             `json:"initialized"`
	StartedAt          string           `json:"started_at"`
	Uptime             string           `json:"uptime"`
	PDP                string           `json:"pdp,omitempty"`
	Sessions           int              `json:"sessions"`
	Providers          []ProviderStatus `json:"providers"`
	PDPServiceRequests uint64           `json:"pdp_service_requests"`
}

// WhoAmIResponse describes the caller as seen after the filters ran.
type WhoAmIResponse struct {
	Authenticated bool     `json:"authenticated"`
	UID           string   `json:"uid,omitempty"`
	AuthContext   string   `json:"auth_context,omitempty"`
	Groups        []string `json:"groups,omitempty"`
}

// StatusHandler godoc
// @Summary Get server status
// @Description Returns the configured identity providers, the kind of policy decision point and session counts
// @Tags Status
// @Produce json
// @Success 200 {object} StatusResponse
// @Router /status [get]
func StatusHandler(serverCtx *ServerContext) gin.HandlerFunc {
	return func(c *gin.Context) {
		serverCtx.RLock()
		started := serverCtx.StartedAt
		lazy := serverCtx.Filters
		serverCtx.RUnlock()

		resp := StatusResponse{
			StartedAt:          started.Format(time.RFC3339),
			Uptime:             time.Since(started).Round(time.Second).String(),
			Providers:          []ProviderStatus{},
			PDPServiceRequests: serverCtx.pdpRequests.Load(),
		}
		if lazy != nil {
			if s, err := lazy.Get(); err == nil {
				resp.Initialized = true
				resp.PDP = pdp.Kind(s.PDP)
				resp.Sessions = s.Sessions.Len()
				for _, p := range s.Registry.Providers() {
					resp.Providers = append(resp.Providers, ProviderStatus{
						AuthContext:   p.AuthContext(),
						Description:   p.Description(),
						Default:       p.IsDefault(),
						LoginEndpoint: p.LoginEndpoint(),
					})
				}
			}
		}

		serverCtx.Logger.Info("API status request",
			logging.F("remote_ip", c.ClientIP()),
			logging.F("initialized", resp.Initialized))

		c.JSON(200, resp)
	}
}

// PDPServiceHandler godoc
// @Summary Evaluate an access request
// @Description Decides whether uid (authenticated by authContext) may perform action on resourceId with query.
// @Description Answers 200 to permit and 403 to deny. Parameters may be sent as query or form values.
// @Tags PDP
// @Produce plain
// @Param uid query string false "User id, empty for anonymous users"
// @Param authContext query string false "Auth context of the identity provider that authenticated uid"
// @Param resourceId query string false "Requested URL path"
// @Param query query string false "Query string of the request"
// @Param action query string false "HTTP method" default(GET)
// @Success 200 {string} string "Yes. Affirmative. Absolutely. I do."
// @Failure 403 {string} string "No. Nope. Not even."
// @Router /opendap/pdpService [get]
// @Router /opendap/pdpService [post]
func PDPServiceHandler(serverCtx *ServerContext) gin.HandlerFunc {
	return func(c *gin.Context) {
		reqno := serverCtx.nextPDPRequest()
		logger := serverCtx.Logger.With(logging.F("pdp_request", reqno))

		serverCtx.RLock()
		requireSecure := serverCtx.PDPService.RequireSecureTransport
		lazy := serverCtx.Filters
		serverCtx.RUnlock()

		if requireSecure && !isSecure(c.Request) {
			logger.Error("PDP service request over insecure transport refused",
				logging.F("remote_ip", c.ClientIP()),
				logging.F("protocol", c.Request.Proto))
			c.String(http.StatusForbidden, "Secure transport is required.\n")
			return
		}

		s, err := getSettings(lazy)
		if err != nil {
			if serverCtx.Metrics != nil {
				serverCtx.Metrics.RecordError("not_initialized", "pdp_service")
			}
			c.String(http.StatusServiceUnavailable, "Policy decision point is not available.\n")
			return
		}

		req := pdp.Request{
			UserID:      param(c, "uid"),
			AuthContext: param(c, "authContext"),
			ResourceID:  param(c, "resourceId"),
			Query:       param(c, "query"),
			Action:      param(c, "action"),
		}
		if req.Action == "" {
			req.Action = http.MethodGet
		}

		start := time.Now()
		allowed := s.PDP.Evaluate(c.Request.Context(), req)
		if serverCtx.Metrics != nil {
			serverCtx.Metrics.RecordDecision(allowed, time.Since(start))
		}

		logger.Debug("PDP service decision",
			logging.F("uid", req.UserID),
			logging.F("auth_context", req.AuthContext),
			logging.F("resource", req.ResourceID),
			logging.F("query", req.Query),
			logging.F("action", req.Action),
			logging.F("allowed", allowed))

		if allowed {
			c.String(http.StatusOK, PermitMessage+"\n")
		} else {
			c.String(http.StatusForbidden, DenyMessage+"\n")
		}
	}
}

// AuthZENDecisionHandler godoc
// @Summary Evaluate an access request (AuthZEN)
// @Description Evaluates whether the subject (user) may perform the action (HTTP method) on the resource (URL path)
// @Description
// @Description The subject may carry an auth_context property and the resource a query property.
// @Description Malformed requests are answered with decision=false and the reason in context.reason.admin.
// @Tags AuthZEN
// @Accept json
// @Produce json
// @Param request body authzen.EvaluationRequest true "AuthZEN Evaluation Request"
// @Success 200 {object} authzen.EvaluationResponse "Access decision"
// @Failure 400 {object} map[string]string "Invalid request format"
// @Failure 503 {object} map[string]string "Policy decision point not available"
// @Router /authzen/decision [post]
func AuthZENDecisionHandler(serverCtx *ServerContext) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req authzen.EvaluationRequest
		if err := c.BindJSON(&req); err != nil {
			serverCtx.Logger.Error("Invalid AuthZEN request",
				logging.F("remote_ip", c.ClientIP()),
				logging.F("error", err.Error()))
			if serverCtx.Metrics != nil {
				serverCtx.Metrics.RecordError("bad_request", "authzen_decision")
			}
			c.JSON(400, gin.H{"error": "invalid request"})
			return
		}

		decisionReq, err := req.DecisionRequest()
		if err != nil {
			serverCtx.Logger.Info("AuthZEN request rejected",
				logging.F("remote_ip", c.ClientIP()),
				logging.F("error", err.Error()))
			c.JSON(200, authzen.NewResponse(false, "", err.Error()))
			return
		}

		reqno := serverCtx.nextPDPRequest()
		s, err := getSettings(serverCtx.Filters)
		if err != nil {
			c.JSON(503, gin.H{"error": "policy decision point is not available"})
			return
		}

		start := time.Now()
		allowed := s.PDP.Evaluate(c.Request.Context(), decisionReq)
		if serverCtx.Metrics != nil {
			serverCtx.Metrics.RecordDecision(allowed, time.Since(start))
		}

		serverCtx.Logger.Info("AuthZEN decision",
			logging.F("pdp_request", reqno),
			logging.F("remote_ip", c.ClientIP()),
			logging.F("subject", decisionReq.UserID),
			logging.F("resource", decisionReq.ResourceID),
			logging.F("action", decisionReq.Action),
			logging.F("allowed", allowed))

		c.JSON(200, authzen.NewResponse(allowed, pdpRequestID(reqno), ""))
	}
}

// WellKnownHandler godoc
// @Summary AuthZEN PDP metadata
// @Description Returns the policy decision point metadata used for AuthZEN discovery
// @Tags AuthZEN
// @Produce json
// @Success 200 {object} map[string]string
// @Router /.well-known/authzen-configuration [get]
func WellKnownHandler(serverCtx *ServerContext) gin.HandlerFunc {
	return func(c *gin.Context) {
		serverCtx.RLock()
		base := strings.TrimRight(serverCtx.BaseURL, "/")
		serverCtx.RUnlock()

		c.JSON(200, gin.H{
			"policy_decision_point":      base,
			"access_evaluation_endpoint": base + "/authzen/decision",
		})
	}
}

// WhoAmIHandler godoc
// @Summary Describe the caller
// @Description Returns the identity the authentication filter attached to the request
// @Tags Status
// @Produce json
// @Success 200 {object} WhoAmIResponse
// @Router /opendap/whoami [get]
func WhoAmIHandler(serverCtx *ServerContext) gin.HandlerFunc {
	return func(c *gin.Context) {
		var resp WhoAmIResponse
		if id, ok := filter.IdentityFromRequest(c.Request); ok {
			resp.Authenticated = true
			resp.UID = id.UID
			resp.AuthContext = id.AuthContext
		}
		if sess, ok := session.FromContext(c.Request.Context()); ok {
			if up, ok := idp.ProfileFrom(sess); ok {
				resp.Groups = up.Groups()
			}
		}
		c.JSON(200, resp)
	}
}

// param returns a form value, falling back to the query string.
func param(c *gin.Context, name string) string {
	if v, ok := c.GetPostForm(name); ok {
		return v
	}
	return c.Query(name)
}

func isSecure(r *http.Request) bool {
	if r.TLS != nil {
		return true
	}
	proto := strings.Split(r.Header.Get("X-Forwarded-Proto"), ",")[0]
	return strings.EqualFold(strings.TrimSpace(proto), "https")
}

var errNotConfigured = errors.New("filters are not configured")

func getSettings(lazy *filter.Lazy) (*filter.Settings, error) {
	if lazy == nil {
		return nil, errNotConfigured
	}
	return lazy.Get()
}

// pdpRequestID formats a PDP service request number.
func pdpRequestID(n uint64) string {
	return strconv.FormatUint(n, 10)
}
