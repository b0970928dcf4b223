package iam

import (
	_ "embed"
	"fmt"
	"strings"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"

	"github.com/tenantgate/tenantgate/cmd/tenantgate/internal/auth"
)

//go:embed bypass_model.conf
var bypassModel string

// BypassPolicy holds the permission families a role is granted regardless
// of its stored permissions. Policies are loaded once; the enforcer is only
// read afterwards.
type BypassPolicy struct {
	enforcer *casbin.SyncedEnforcer
}

// NewBypassPolicy grants CustomerSuccess every permission in userManagement
// and every permission under documentsPrefix. userManagement names are exact;
// a wildcard among them is rejected.
func NewBypassPolicy(userManagement []string, documentsPrefix string) (*BypassPolicy, error) {
	m, err := model.NewModelFromString(bypassModel)
	if err != nil {
		return nil, fmt.Errorf("load bypass model: %w", err)
	}
	enforcer, err := casbin.NewSyncedEnforcer(m)
	if err != nil {
		return nil, fmt.Errorf("create bypass enforcer: %w", err)
	}

	for _, perm := range userManagement {
		perm = strings.TrimSpace(perm)
		if perm == "" {
			continue
		}
		if strings.Contains(perm, "*") {
			return nil, fmt.Errorf("user management permission %q must not contain wildcards", perm)
		}
		if _, err := enforcer.AddPolicy(auth.RoleCustomerSuccess, perm); err != nil {
			return nil, fmt.Errorf("add bypass policy %q: %w", perm, err)
		}
	}
	if prefix := strings.TrimSpace(documentsPrefix); prefix != "" {
		if _, err := enforcer.AddPolicy(auth.RoleCustomerSuccess, prefix+"*"); err != nil {
			return nil, fmt.Errorf("add bypass policy %q: %w", prefix+"*", err)
		}
	}

	return &BypassPolicy{enforcer: enforcer}, nil
}

// Allows reports whether role bypasses at least one of the required permissions.
func (b *BypassPolicy) Allows(role string, required []string) (bool, error) {
	for _, perm := range required {
		ok, err := b.enforcer.Enforce(role, perm)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}
