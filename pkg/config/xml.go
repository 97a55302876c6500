package config

import (
	"fmt"
	"strings"

	"github.com/beevik/etree"
)

// ParseXMLConfig reads a Hyrax user-access XML document into cfg. Only the
// authentication and authorization sections are taken from the document,
// everything else keeps its current value.
//
// Recognized elements (anywhere below the root):
//
//	<EnableAuthenticationControls><login/><logout/></EnableAuthenticationControls>
//	<LoginBanner>text</LoginBanner>
//	<IdProvider class="..."> authContext, description, isDefault, login, logout,
//	    UrsUrl, UrsClientId, UrsClientAuthCode, RejectUnsupportedAuthzSchemes,
//	    RemoteUserHeader, GroupsHeader </IdProvider>
//	<PolicyDecisionPoint class="..."> PDPServiceEndpoint, Policy*, Memberships </PolicyDecisionPoint>
//	<EveryOneMustHaveId/>
//	<UseDefaultLoginEndpoint href="..."/>
//	<PDPService><RequireSecureTransport/></PDPService>
func ParseXMLConfig(data []byte, cfg *Config) error {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		return fmt.Errorf("malformed XML: %w", err)
	}
	root := doc.Root()
	if root == nil {
		return fmt.Errorf("XML document has no root element")
	}

	if ctl := root.FindElement(".//EnableAuthenticationControls"); ctl != nil {
		if v := childText(ctl, "login"); v != "" {
			cfg.Authentication.LoginPath = v
		}
		if v := childText(ctl, "logout"); v != "" {
			cfg.Authentication.LogoutPath = v
		}
	}
	if b := root.FindElement(".//LoginBanner"); b != nil {
		cfg.Authentication.LoginBanner = strings.TrimSpace(b.Text())
	}

	for _, el := range root.FindElements(".//IdProvider") {
		cfg.Authentication.Providers = append(cfg.Authentication.Providers, parseXMLProvider(el))
	}

	if el := root.FindElement(".//PolicyDecisionPoint"); el != nil {
		pdp, err := parseXMLPDP(el)
		if err != nil {
			return err
		}
		cfg.Authorization.PDP = pdp
	}

	if root.FindElement(".//EveryOneMustHaveId") != nil {
		cfg.Authorization.EveryoneMustHaveID = true
	}
	if el := root.FindElement(".//UseDefaultLoginEndpoint"); el != nil {
		href := el.SelectAttrValue("href", "")
		if href == "" {
			return fmt.Errorf("UseDefaultLoginEndpoint requires an href attribute")
		}
		cfg.Authorization.DefaultLoginEndpoint = href
	}

	if el := root.FindElement(".//PDPService"); el != nil {
		cfg.PDPService.Enabled = true
		if el.SelectElement("RequireSecureTransport") != nil {
			cfg.PDPService.RequireSecureTransport = true
		}
		if p := el.SelectAttrValue("path", ""); p != "" {
			cfg.PDPService.Path = p
		}
	}

	return nil
}

func parseXMLProvider(el *etree.Element) ProviderConfig {
	return ProviderConfig{
		Class:                         el.SelectAttrValue("class", ""),
		AuthContext:                   childText(el, "authContext"),
		Description:                   childText(el, "description"),
		Default:                       flag(el, "isDefault"),
		Login:                         childText(el, "login"),
		Logout:                        childText(el, "logout"),
		RemoteUserHeader:              childText(el, "RemoteUserHeader"),
		GroupsHeader:                  childText(el, "GroupsHeader"),
		URSURL:                        childText(el, "UrsUrl"),
		ClientID:                      childText(el, "UrsClientId"),
		ClientAuthCode:                childText(el, "UrsClientAuthCode"),
		RejectUnsupportedAuthzSchemes: flag(el, "RejectUnsupportedAuthzSchemes"),
	}
}

func parseXMLPDP(el *etree.Element) (PDPConfig, error) {
	pdp := PDPConfig{
		Class:    el.SelectAttrValue("class", ""),
		Endpoint: childText(el, "PDPServiceEndpoint"),
	}

	for _, p := range el.SelectElements("Policy") {
		pc := PolicyConfig{
			Class:    p.SelectAttrValue("class", ""),
			Role:     childText(p, "role"),
			Resource: childText(p, "resource"),
			Query:    childText(p, "queryString"),
		}
		for _, a := range p.SelectElements("allowedAction") {
			pc.Actions = append(pc.Actions, strings.TrimSpace(a.Text()))
		}
		pdp.Policies = append(pdp.Policies, pc)
	}

	if m := el.SelectElement("Memberships"); m != nil {
		for _, g := range m.SelectElements("group") {
			gc := GroupConfig{ID: g.SelectAttrValue("id", "")}
			for _, u := range g.SelectElements("user") {
				gc.Users = append(gc.Users, UserRuleConfig{
					ID:                 u.SelectAttrValue("id", ""),
					IDPattern:          u.SelectAttrValue("idPattern", ""),
					AuthContext:        u.SelectAttrValue("authContext", ""),
					AuthContextPattern: u.SelectAttrValue("authContextPattern", ""),
				})
			}
			pdp.Memberships.Groups = append(pdp.Memberships.Groups, gc)
		}
		for _, r := range m.SelectElements("role") {
			rc := RoleConfig{ID: r.SelectAttrValue("id", "")}
			for _, g := range r.SelectElements("group") {
				id := g.SelectAttrValue("id", "")
				if id == "" {
					return PDPConfig{}, fmt.Errorf("role %q references a group without an id", rc.ID)
				}
				rc.Groups = append(rc.Groups, id)
			}
			pdp.Memberships.Roles = append(pdp.Memberships.Roles, rc)
		}
	}

	return pdp, nil
}

func childText(el *etree.Element, tag string) string {
	if c := el.SelectElement(tag); c != nil {
		return strings.TrimSpace(c.Text())
	}
	return ""
}

// flag treats an element as a boolean switch: present and not "false".
func flag(el *etree.Element, tag string) bool {
	c := el.SelectElement(tag)
	if c == nil {
		return false
	}
	return !strings.EqualFold(strings.TrimSpace(c.Text()), "false")
}
