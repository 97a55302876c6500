package pdp

import (
	"context"
	"fmt"

	"github.com/OPENDAP/hyrax-auth/pkg/config"
	"github.com/OPENDAP/hyrax-auth/pkg/httpclient"
	"github.com/OPENDAP/hyrax-auth/pkg/logging"
	"github.com/OPENDAP/hyrax-auth/pkg/validation"
	"github.com/go-resty/resty/v2"
)

// DefaultRemoteEndpoint is used when a remote PDP has no endpoint configured.
const DefaultRemoteEndpoint = "http://localhost:8080/opendap/pdpService"

// RemotePDP delegates decisions to a PDP service over HTTP. Any 2xx
// response permits, anything else (including I/O failure) denies.
type RemotePDP struct {
	endpoint string
	client   *resty.Client
	logger   logging.Logger
}

// NewRemotePDP creates a RemotePDP calling endpoint with client. Redirects
// are disabled on client so that only the endpoint's own answer counts.
func NewRemotePDP(endpoint string, client *resty.Client, logger logging.Logger) (*RemotePDP, error) {
	if endpoint == "" {
		endpoint = DefaultRemoteEndpoint
	}
	if _, err := validation.ValidateEndpointURL(endpoint); err != nil {
		return nil, fmt.Errorf("invalid PDP service endpoint: %w", err)
	}
	if logger == nil {
		logger = logging.DefaultLogger()
	}
	if client == nil {
		client = httpclient.New(0, logger)
	}
	client.SetRedirectPolicy(resty.NoRedirectPolicy())
	if !validation.IsSecureURL(endpoint) {
		logger.Warn("PDP service endpoint does not use https, decisions can be observed or forged in transit",
			logging.F("endpoint", endpoint))
	}
	return &RemotePDP{endpoint: endpoint, client: client, logger: logger}, nil
}

func newRemoteFromConfig(cfg config.PDPConfig, deps Dependencies) (PolicyDecisionPoint, error) {
	client := deps.HTTPClient
	if client == nil {
		client = httpclient.New(deps.Timeout, deps.Logger)
	}
	return NewRemotePDP(cfg.Endpoint, client, deps.Logger)
}

// Endpoint returns the PDP service URL.
func (p *RemotePDP) Endpoint() string { return p.endpoint }

// Evaluate asks the PDP service for a decision.
func (p *RemotePDP) Evaluate(ctx context.Context, req Request) (allowed bool) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("Remote policy evaluation failed, denying", logging.F("panic", fmt.Sprint(r)))
			allowed = false
		}
	}()

	if ctx == nil {
		ctx = context.Background()
	}
	resp, err := p.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"uid":         req.UserID,
			"authContext": req.AuthContext,
			"resourceId":  req.ResourceID,
			"query":       req.Query,
			"action":      req.Action,
		}).
		Get(p.endpoint)
	if err != nil {
		p.logger.Error("PDP service request failed, denying",
			logging.F("endpoint", p.endpoint),
			logging.F("error", err.Error()))
		return false
	}

	allowed = resp.IsSuccess()
	p.logger.Debug("PDP service answered",
		logging.F("endpoint", p.endpoint),
		logging.F("status", resp.StatusCode()),
		logging.F("uid", req.UserID),
		logging.F("resource", req.ResourceID),
		logging.F("allowed", allowed))
	return allowed
}
