package auth

import (
	"net/http"
	"strings"
)

type Tier int

const (
	TierAuthenticated Tier = iota
	TierPublic
	TierAdmin
)

func (t Tier) String() string {
	switch t {
	case TierPublic:
		return "public"
	case TierAdmin:
		return "admin"
	default:
		return "authenticated"
	}
}

// RouteTable classifies requests into access tiers. It is built once at
// startup and only read afterwards. Anything it does not match needs an
// authenticated caller.
type RouteTable struct {
	Public         []string
	PublicByMethod map[string][]string
	AdminPrefixes  []string
}

func DefaultRoutes() RouteTable {
	return RouteTable{
		Public: []string{"/health/live", "/health/ready"},
		PublicByMethod: map[string][]string{
			http.MethodGet:  {"/books"},
			http.MethodPost: {"/customers", "/login"},
		},
		AdminPrefixes: []string{"/admins"},
	}
}

func (t RouteTable) Classify(method, path string) Tier {
	path = normalize(path)

	for _, p := range t.Public {
		if path == p {
			return TierPublic
		}
	}
	for _, p := range t.PublicByMethod[method] {
		if path == p {
			return TierPublic
		}
	}
	for _, p := range t.AdminPrefixes {
		if path == p || strings.HasPrefix(path, p+"/") {
			return TierAdmin
		}
	}
	return TierAuthenticated
}

func normalize(path string) string {
	if path == "" {
		return "/"
	}
	if len(path) > 1 {
		path = strings.TrimRight(path, "/")
		if path == "" {
			return "/"
		}
	}
	return path
}
