package access

import (
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/frahmantamala/chitfund-crm/internal/core/permission"
	"github.com/frahmantamala/chitfund-crm/internal/navigation"
)

type Reason string

const (
	ReasonPublic          Reason = "public"
	ReasonAuthorized      Reason = "authorized"
	ReasonAuthenticated   Reason = "authenticated"
	ReasonUnauthenticated Reason = "unauthenticated"
	ReasonForbidden       Reason = "forbidden"
)

type Decision struct {
	Allowed  bool   `json:"allowed"`
	Redirect string `json:"redirect,omitempty"`
	Reason   Reason `json:"reason"`
	// Entity is the navigation id the matched route requires, if any.
	Entity string `json:"entity,omitempty"`
}

// Route maps a path prefix to the entity whose view permission it requires.
type Route struct {
	Path   string
	Entity string
	Public bool
}

type Guard struct {
	routes        []Route
	loginPath     string
	dashboardPath string
	tree          navigation.Tree
}

// NewGuard builds a guard over routes. The tree supplies the module of each
// page so that a module wildcard opens its pages.
func NewGuard(routes []Route, loginPath, dashboardPath string, tree navigation.Tree) (*Guard, error) {
	cleaned := make([]Route, 0, len(routes))
	for _, r := range routes {
		if !strings.HasPrefix(r.Path, "/") {
			return nil, fmt.Errorf("route %q: path must start with /", r.Path)
		}
		if !r.Public && r.Entity == "" {
			return nil, fmt.Errorf("route %q: entity is required for protected routes", r.Path)
		}
		r.Path = cleanPath(r.Path)
		cleaned = append(cleaned, r)
	}
	sort.SliceStable(cleaned, func(i, j int) bool {
		return len(cleaned[i].Path) > len(cleaned[j].Path)
	})

	return &Guard{
		routes:        cleaned,
		loginPath:     cleanPath(loginPath),
		dashboardPath: cleanPath(dashboardPath),
		tree:          tree.Clone(),
	}, nil
}

func (g *Guard) LoginPath() string {
	return g.loginPath
}

func (g *Guard) DashboardPath() string {
	return g.dashboardPath
}

// Check decides whether a session may open p. A nil set means there is no
// session.
func (g *Guard) Check(set *permission.Set, p string) Decision {
	p = cleanPath(p)
	route, matched := g.match(p)

	if p == g.loginPath || (matched && route.Public) {
		return Decision{Allowed: true, Reason: ReasonPublic}
	}

	if set == nil {
		return Decision{Redirect: g.loginPath, Reason: ReasonUnauthenticated}
	}

	if !matched {
		return Decision{Allowed: true, Reason: ReasonAuthenticated}
	}

	if g.tree.Grants(*set, route.Entity, permission.ActionView) {
		return Decision{Allowed: true, Reason: ReasonAuthorized, Entity: route.Entity}
	}

	d := Decision{Reason: ReasonForbidden, Entity: route.Entity}
	// redirecting the dashboard to itself would loop
	if p != g.dashboardPath {
		d.Redirect = g.dashboardPath
	}
	return d
}

func (g *Guard) match(p string) (Route, bool) {
	for _, r := range g.routes {
		if isUnder(p, r.Path) {
			return r, true
		}
	}
	return Route{}, false
}

// isUnder reports whether p equals prefix or lies below it segment-wise.
func isUnder(p, prefix string) bool {
	if prefix == "/" || p == prefix {
		return true
	}
	return strings.HasPrefix(p, prefix+"/")
}

func cleanPath(p string) string {
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return path.Clean(p)
}
