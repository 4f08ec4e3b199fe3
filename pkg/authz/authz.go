package authz

import (
	"fmt"

	"serialfic-monetization/pkg/config"
	"serialfic-monetization/pkg/errutil"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	"go.uber.org/fx"
)

var Module = fx.Module("authz", fx.Provide(NewFromConfig))

const (
	ActionReadEarnings = "earnings:read"
	RoleAdmin          = "admin"
)

// The owner of a resource may act on it; admins may act on anything their
// role is granted.
const modelText = `
[request_definition]
r = sub, owner, act

[policy_definition]
p = sub, act

[role_definition]
g = _, _

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = r.act == p.act && (r.sub == r.owner || g(r.sub, p.sub))
`

type Authorizer struct {
	enforcer *casbin.Enforcer
}

func New(admins ...string) (*Authorizer, error) {
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, err
	}

	e, err := casbin.NewEnforcer(m)
	if err != nil {
		return nil, err
	}

	if _, err := e.AddPolicy(RoleAdmin, ActionReadEarnings); err != nil {
		return nil, err
	}
	for _, u := range admins {
		if _, err := e.AddGroupingPolicy(u, RoleAdmin); err != nil {
			return nil, err
		}
	}

	return &Authorizer{enforcer: e}, nil
}

func NewFromConfig(cfg *config.Config) (*Authorizer, error) {
	return New(cfg.Auth.AdminUsers...)
}

// Allowed reports whether subject may perform act on a resource owned by
// owner.
func (a *Authorizer) Allowed(subject, owner, act string) (bool, error) {
	if subject == "" {
		return false, nil
	}
	ok, err := a.enforcer.Enforce(subject, owner, act)
	if err != nil {
		return false, fmt.Errorf("enforce: %w", err)
	}
	return ok, nil
}

// Require is Allowed reported as a Forbidden error.
func (a *Authorizer) Require(subject, owner, act string) error {
	ok, err := a.Allowed(subject, owner, act)
	if err != nil {
		return errutil.Internal("authorization failed", err)
	}
	if !ok {
		return errutil.Forbidden("only the author can view these earnings", nil, errutil.WithReason(errutil.ReasonNotAuthor))
	}
	return nil
}
