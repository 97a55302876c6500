package filter

import (
	"html/template"
	"net/http"
	"sort"

	"github.com/OPENDAP/hyrax-auth/pkg/idp"
	"github.com/OPENDAP/hyrax-auth/pkg/logging"
	"github.com/OPENDAP/hyrax-auth/pkg/session"
	"github.com/gin-gonic/gin"
)

var landingTemplate = template.Must(template.New("landing").Parse(`<!DOCTYPE html>
<html>
<head><title>{{.Banner}}</title></head>
<body>
<h1 id="banner">{{.Banner}}</h1>
{{if .UID}}
<div id="profile">
<p>You are logged in as <b id="uid">{{.UID}}</b> (<span id="auth-context">{{.AuthContext}}</span>).</p>
{{if .Attributes}}<table id="attributes">
{{range .Attributes}}<tr><th>{{.Name}}</th><td>{{.Value}}</td></tr>
{{end}}</table>{{end}}
<p><a id="logout" href="{{.LogoutURL}}">Logout</a></p>
</div>
{{else}}
<p><b>You are not currently logged on.</b></p>
<p><i>You may login using one of these identity providers:</i></p>
<ul id="providers">
{{range .Providers}}<li><a href="{{.LoginEndpoint}}" data-auth-context="{{.AuthContext}}">{{.Description}}</a></li>
{{end}}</ul>
{{if .GuestURL}}<p><i>Or you may:</i></p>
<ul><li><a id="guest" href="{{.GuestURL}}">Use a 'guest' profile.</a></li></ul>{{end}}
{{end}}
</body>
</html>
`))

type landingProvider struct {
	AuthContext   string
	Description   string
	LoginEndpoint string
}

type landingAttribute struct {
	Name  string
	Value string
}

type landingPage struct {
	Banner      string
	UID         string
	AuthContext string
	Attributes  []landingAttribute
	LogoutURL   string
	Providers   []landingProvider
	GuestURL    string
}

func (f *AuthenticationFilter) landingPage(c *gin.Context, s *Settings, sess *session.Session) {
	defer c.Abort()

	page := landingPage{
		Banner:    s.LoginBanner,
		LogoutURL: s.Endpoints.Logout(),
	}
	if up, ok := idp.ProfileFrom(sess); ok {
		page.UID = up.UID()
		page.AuthContext = up.AuthContext()
		attrs := up.Attributes()
		for name, value := range attrs {
			page.Attributes = append(page.Attributes, landingAttribute{Name: name, Value: value})
		}
		sort.Slice(page.Attributes, func(i, j int) bool {
			return page.Attributes[i].Name < page.Attributes[j].Name
		})
		if p, ok := s.Registry.Provider(up.AuthContext()); ok {
			page.LogoutURL = p.LogoutEndpoint()
		}
	}
	for _, p := range s.Registry.Providers() {
		page.Providers = append(page.Providers, landingProvider{
			AuthContext:   p.AuthContext(),
			Description:   p.Description(),
			LoginEndpoint: p.LoginEndpoint(),
		})
	}
	if s.GuestEnabled {
		page.GuestURL = s.Endpoints.Guest()
	}

	c.Header("Content-Description", "Login Page")
	c.Header("Cache-Control", "max-age=0, no-cache, no-store")
	c.Header("Content-Type", "text/html; charset=utf-8")
	c.Status(http.StatusOK)
	if err := landingTemplate.Execute(c.Writer, page); err != nil {
		f.logger.Error("Failed to render login page", logging.F("error", err.Error()))
	}
}
