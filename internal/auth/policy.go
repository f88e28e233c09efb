package auth

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

var ErrPolicyNotFound = errors.New("role policy file not found")

// RoleRoutes is one role's entry in the policy file.
type RoleRoutes struct {
	Home  string   `yaml:"home"`
	Allow []string `yaml:"allow"`
}

type policyFile struct {
	Version int                   `yaml:"version"`
	Roles   map[string]RoleRoutes `yaml:"roles"`
}

type roleEntry struct {
	home     string
	patterns []string
}

// RolePolicy maps roles to the route patterns they may visit. It is built once and
// never modified; every role's home route is in its own allow-list.
//
// Patterns: "*" matches everything, a trailing "*" is a raw prefix match
// ("/api/v1/shipping-*"), anything else matches the path itself and everything below it.
type RolePolicy struct {
	roles map[string]roleEntry
}

// NewRolePolicy validates routes and builds a policy from them.
func NewRolePolicy(routes map[string]RoleRoutes) (*RolePolicy, error) {
	if len(routes) == 0 {
		return nil, fmt.Errorf("role policy has no roles")
	}

	roles := make(map[string]roleEntry, len(routes))
	for role, r := range routes {
		role = strings.TrimSpace(role)
		if role == "" {
			return nil, fmt.Errorf("role policy: empty role name")
		}
		home := strings.TrimSpace(r.Home)
		if !strings.HasPrefix(home, "/") {
			return nil, fmt.Errorf("role %q: home must start with '/': %q", role, r.Home)
		}

		patterns := make([]string, 0, len(r.Allow)+1)
		patterns = append(patterns, home)
		for i, p := range r.Allow {
			p = strings.TrimSpace(p)
			if p != "*" && !strings.HasPrefix(p, "/") {
				return nil, fmt.Errorf("role %q allow[%d]: pattern must be '*' or start with '/': %q", role, i, p)
			}
			patterns = append(patterns, p)
		}
		roles[role] = roleEntry{home: home, patterns: patterns}
	}
	return &RolePolicy{roles: roles}, nil
}

// LoadRolePolicy reads a YAML policy file:
//
//	version: 1
//	roles:
//	  sales:
//	    home: /quotes
//	    allow: [/customers, /api/v1/customer-files]
func LoadRolePolicy(path string) (*RolePolicy, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrPolicyNotFound, path)
		}
		return nil, err
	}

	var file policyFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("failed to parse role policy: %w", err)
	}
	if file.Version != 1 {
		return nil, fmt.Errorf("unsupported role policy version: %d", file.Version)
	}
	return NewRolePolicy(file.Roles)
}

// DefaultRolePolicy is used when no policy file is configured.
func DefaultRolePolicy() *RolePolicy {
	policy, err := NewRolePolicy(map[string]RoleRoutes{
		"admin": {
			Home:  "/dashboard",
			Allow: []string{"*"},
		},
		"sales": {
			Home: "/quotes",
			Allow: []string{
				"/customers",
				"/api/v1/customers-addresses",
				"/api/v1/customer-files",
				"/api/v1/quotes-approval",
				"/api/v1/email-notifications",
				"/api/v1/uploads",
			},
		},
		"production": {
			Home: "/production-orders",
			Allow: []string{
				"/api/v1/production-orders-*",
				"/api/v1/packaging",
				"/api/v1/yarns",
			},
		},
		"shipping": {
			Home: "/shipping",
			Allow: []string{
				"/api/v1/shipping-*",
				"/api/v1/packaging",
				"/api/v1/production-orders-packaging",
			},
		},
	})
	if err != nil {
		panic(err)
	}
	return policy
}

// Allowed reports whether role may visit path. Unknown roles are allowed nothing.
func (p *RolePolicy) Allowed(role, path string) bool {
	entry, ok := p.roles[role]
	if !ok {
		return false
	}
	for _, pattern := range entry.patterns {
		if matchRoute(pattern, path) {
			return true
		}
	}
	return false
}

// Home returns the landing route for role.
func (p *RolePolicy) Home(role string) (string, bool) {
	entry, ok := p.roles[role]
	return entry.home, ok
}

// Roles lists the configured roles in sorted order.
func (p *RolePolicy) Roles() []string {
	roles := make([]string, 0, len(p.roles))
	for role := range p.roles {
		roles = append(roles, role)
	}
	sort.Strings(roles)
	return roles
}

func matchRoute(pattern, path string) bool {
	switch {
	case pattern == "*":
		return true
	case strings.HasSuffix(pattern, "*"):
		return strings.HasPrefix(path, strings.TrimSuffix(pattern, "*"))
	default:
		return path == pattern || strings.HasPrefix(path, strings.TrimSuffix(pattern, "/")+"/")
	}
}
