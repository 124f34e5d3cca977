package rbac

import (
	"context"
	"strings"
)

// Checker answers permission questions against a role policy. Grants are
// exact ("exam:submit"), prefix wildcards ("practice:*") or "*".
type Checker struct {
	exact    map[string]map[string]bool
	prefixes map[string][]string
}

func NewChecker(policy map[string][]string) *Checker {
	if policy == nil {
		policy = RolePermissions
	}
	c := &Checker{
		exact:    make(map[string]map[string]bool, len(policy)),
		prefixes: make(map[string][]string, len(policy)),
	}
	for role, grants := range policy {
		set := make(map[string]bool, len(grants))
		for _, g := range grants {
			if strings.HasSuffix(g, "*") {
				c.prefixes[role] = append(c.prefixes[role], strings.TrimSuffix(g, "*"))
				continue
			}
			set[g] = true
		}
		c.exact[role] = set
	}
	return c
}

func (c *Checker) Has(role, perm string) bool {
	if c.exact[role][perm] {
		return true
	}
	for _, p := range c.prefixes[role] {
		if strings.HasPrefix(perm, p) {
			return true
		}
	}
	return false
}

type ctxKey struct{}

func WithRole(ctx context.Context, role string) context.Context {
	return context.WithValue(ctx, ctxKey{}, role)
}

func RoleFromContext(ctx context.Context) string {
	s, _ := ctx.Value(ctxKey{}).(string)
	return s
}
