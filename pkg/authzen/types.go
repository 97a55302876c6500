// Package authzen provides types for the AuthZEN authorization API.
// AuthZEN is an authorization protocol that allows for policy decisions
// based on subject, resource, action, and context information.
//
// The server answers evaluation requests about data server access: the
// subject is a user, the resource is a URL path and the action is an HTTP
// method.
package authzen

import (
	"fmt"
	"strings"

	"github.com/OPENDAP/hyrax-auth/pkg/pdp"
)

// Entity types accepted in evaluation requests.
const (
	SubjectTypeUser   = "user"
	ResourceTypeRoute = "route"
)

// Property names carrying the rest of the decision tuple.
const (
	PropertyAuthContext = "auth_context"
	PropertyQuery       = "query"
)

// Subject identifies the user. An empty ID asks about an anonymous user.
// @Description Subject (user) in an AuthZEN evaluation request
type Subject struct {
	Type       string                 `json:"type" example:"user"`
	ID         string                 `json:"id" example:"jhrg"`
	Properties map[string]interface{} `json:"properties,omitempty" swaggertype:"object,string"` // auth_context
}

// Resource identifies the requested URL path.
// @Description Resource (URL path) in an AuthZEN evaluation request
type Resource struct {
	Type       string                 `json:"type" example:"route"`
	ID         string                 `json:"id" example:"/opendap/data/sst.nc.dds"`
	Properties map[string]interface{} `json:"properties,omitempty" swaggertype:"object,string"` // query
}

// Action is the HTTP method.
// @Description Action (HTTP method) in an AuthZEN evaluation request
type Action struct {
	Name string `json:"name" example:"GET"`
}

// EvaluationRequest asks whether Subject may perform Action on Resource.
// @Description AuthZEN access evaluation request
type EvaluationRequest struct {
	Subject  Subject                `json:"subject"`
	Resource Resource               `json:"resource"`
	Action   *Action                `json:"action,omitempty"`                              // defaults to GET
	Context  map[string]interface{} `json:"context,omitempty" swaggertype:"object,string"` // ignored
}

// EvaluationResponse carries the decision.
// @Description AuthZEN evaluation response
type EvaluationResponse struct {
	Decision bool                       `json:"decision" example:"true"`
	Context  *EvaluationResponseContext `json:"context,omitempty"`
}

// EvaluationResponseContext contains additional information about an authorization decision
// @Description Context information for evaluation response
type EvaluationResponseContext struct {
	ID     string                 `json:"id,omitempty" example:"42"`
	Reason map[string]interface{} `json:"reason,omitempty" swaggertype:"object"`
}

// Validate checks the request shape.
func (r *EvaluationRequest) Validate() error {
	if r.Subject.Type != SubjectTypeUser {
		return fmt.Errorf("subject.type must be '%s', got '%s'", SubjectTypeUser, r.Subject.Type)
	}
	if r.Resource.Type != ResourceTypeRoute {
		return fmt.Errorf("resource.type must be '%s', got '%s'", ResourceTypeRoute, r.Resource.Type)
	}
	if !strings.HasPrefix(r.Resource.ID, "/") {
		return fmt.Errorf("resource.id must be an absolute URL path, got '%s'", r.Resource.ID)
	}
	if _, err := stringProperty(r.Subject.Properties, PropertyAuthContext); err != nil {
		return fmt.Errorf("subject.properties: %w", err)
	}
	if _, err := stringProperty(r.Resource.Properties, PropertyQuery); err != nil {
		return fmt.Errorf("resource.properties: %w", err)
	}
	if r.Action != nil && r.Action.Name == "" {
		return fmt.Errorf("action.name must not be empty")
	}
	return nil
}

// DecisionRequest converts a valid request into the tuple a policy
// decision point evaluates.
func (r *EvaluationRequest) DecisionRequest() (pdp.Request, error) {
	if err := r.Validate(); err != nil {
		return pdp.Request{}, err
	}
	authContext, _ := stringProperty(r.Subject.Properties, PropertyAuthContext)
	query, _ := stringProperty(r.Resource.Properties, PropertyQuery)
	action := "GET"
	if r.Action != nil {
		action = strings.ToUpper(r.Action.Name)
	}
	return pdp.Request{
		UserID:      r.Subject.ID,
		AuthContext: authContext,
		ResourceID:  r.Resource.ID,
		Query:       query,
		Action:      action,
	}, nil
}

// NewResponse builds a response. A non-empty reason is reported to the
// administrator under reason.admin.
func NewResponse(decision bool, id, reason string) EvaluationResponse {
	resp := EvaluationResponse{Decision: decision}
	if id != "" || reason != "" {
		resp.Context = &EvaluationResponseContext{ID: id}
		if reason != "" {
			resp.Context.Reason = map[string]interface{}{"admin": reason}
		}
	}
	return resp
}

func stringProperty(props map[string]interface{}, name string) (string, error) {
	v, ok := props[name]
	if !ok || v == nil {
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%s must be a string", name)
	}
	return s, nil
}
