package api

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/norem/auth-service/internal/core/domain"
)

// Policies maps "METHOD /path" (the echo route pattern) to its access policy.
// Routes absent from the table require authentication and no particular role.
type Policies map[string]domain.RoutePolicy

// refreshRoute authenticates with the refresh token in its own middleware, so
// it cannot also demand an access token.
const refreshRoute = "POST /auth/refresh"

func policyKey(method, path string) string {
	return strings.ToUpper(method) + " " + path
}

// Lookup returns the policy registered for a route.
func (p Policies) Lookup(method, path string) domain.RoutePolicy {
	return p[policyKey(method, path)]
}

// DefaultPolicies is the built-in route table.
func DefaultPolicies() Policies {
	public := domain.RoutePolicy{Public: true}
	return Policies{
		"POST /auth/register":        public,
		"POST /auth/login":           public,
		refreshRoute:                 public,
		"POST /auth/oauth/:provider": public,
		"POST /auth/logout":          {Roles: []domain.Role{domain.RoleUser}},
		"GET /auth/me":               {Roles: []domain.Role{domain.RoleUser}},
		"PUT /users/:id/role":        {Roles: []domain.Role{domain.RoleOwner}},
		"GET /health":                public,
		"GET /health/ready":          public,
		"GET /metrics":               public,
		"GET /swagger/*":             public,
	}
}

type policyFile struct {
	Routes map[string]domain.RoutePolicy `yaml:"routes"`
}

// LoadPolicies overlays the routes in a YAML file on DefaultPolicies:
//
//	routes:
//	  "PUT /users/:id/role":
//	    roles: [owner, admin]
//	  "GET /auth/me":
//	    public: true
//
// An empty path returns the defaults unchanged. POST /auth/refresh must stay
// public.
func LoadPolicies(path string) (Policies, error) {
	policies := DefaultPolicies()
	if path == "" {
		return policies, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read policy file: %w", err)
	}
	var file policyFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse policy file: %w", err)
	}

	for key, policy := range file.Routes {
		method, route, ok := strings.Cut(strings.TrimSpace(key), " ")
		if !ok || route == "" {
			return nil, fmt.Errorf("policy file: route %q must be \"METHOD /path\"", key)
		}
		roles := make([]domain.Role, 0, len(policy.Roles))
		for _, r := range policy.Roles {
			role, err := domain.ParseRole(string(r))
			if err != nil {
				return nil, fmt.Errorf("policy file: route %q: %w", key, err)
			}
			roles = append(roles, role)
		}
		policy.Roles = roles
		k := policyKey(method, strings.TrimSpace(route))
		if k == refreshRoute && !policy.Public {
			return nil, fmt.Errorf("policy file: route %q must stay public", key)
		}
		policies[k] = policy
	}
	return policies, nil
}
