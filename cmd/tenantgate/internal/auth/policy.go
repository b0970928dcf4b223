package auth

// RoutePolicy is the authorization requirement attached to a route at
// registration time. An empty set allows any authenticated caller.
type RoutePolicy struct {
	RequiredPermissions []string
}

// Require builds a policy from permission names.
func Require(permissions ...string) RoutePolicy {
	return RoutePolicy{RequiredPermissions: append([]string(nil), permissions...)}
}

// IsOpen reports whether the policy requires no permission.
func (p RoutePolicy) IsOpen() bool {
	return len(p.RequiredPermissions) == 0
}
