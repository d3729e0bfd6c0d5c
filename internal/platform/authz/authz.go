package authz

import (
	"fmt"
	"strings"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
)

const rbacModel = `
[request_definition]
r = sub, act

[policy_definition]
p = sub, act

[role_definition]
g = _, _

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = g(r.sub, p.sub) && r.act == p.act
`

// Authorizer answers role/permission questions through a casbin enforcer
// whose policies are built from a role to permissions map.
type Authorizer struct {
	enforcer *casbin.Enforcer
}

func New(rolePermissions map[string][]string) (*Authorizer, error) {
	m, err := model.NewModelFromString(rbacModel)
	if err != nil {
		return nil, fmt.Errorf("authz model: %w", err)
	}
	enforcer, err := casbin.NewEnforcer(m)
	if err != nil {
		return nil, fmt.Errorf("authz enforcer: %w", err)
	}
	for role, perms := range rolePermissions {
		subject := SubjectFromRole(role)
		for _, perm := range perms {
			if _, err := enforcer.AddPolicy(subject, perm); err != nil {
				return nil, fmt.Errorf("authz policy %s %s: %w", role, perm, err)
			}
		}
	}
	return &Authorizer{enforcer: enforcer}, nil
}

func SubjectFromRole(role string) string {
	role = strings.TrimSpace(strings.ToLower(role))
	if role == "" {
		role = "anonymous"
	}
	return "role:" + role
}

func (a *Authorizer) Allowed(role, permission string) (bool, error) {
	return a.enforcer.Enforce(SubjectFromRole(role), permission)
}
