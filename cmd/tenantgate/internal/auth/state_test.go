package auth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/tenantgate/tenantgate/cmd/tenantgate/internal/db/models"
)

func TestRequestAuthState_Effective(t *testing.T) {
	caller := &models.Identity{ID: "caller"}
	target := &models.Identity{ID: "target"}

	base := NewRequestAuthState(caller)
	assert.True(t, base.Authenticated())
	assert.False(t, base.IsImpersonating())
	assert.Same(t, caller, base.Effective())

	acting := base.WithImpersonation(target)
	assert.True(t, acting.IsImpersonating())
	assert.Same(t, target, acting.Effective())
	assert.Same(t, caller, acting.Current())

	// the original value is untouched
	assert.False(t, base.IsImpersonating())
	assert.Same(t, caller, base.Effective())
}

func TestRequestAuthState_ZeroValue(t *testing.T) {
	var s RequestAuthState
	assert.False(t, s.Authenticated())
	assert.Nil(t, s.Effective())
}

func TestAuthStateContext(t *testing.T) {
	_, ok := GetAuthState(context.Background())
	assert.False(t, ok)

	state := NewRequestAuthState(&models.Identity{ID: "caller"})
	got, ok := GetAuthState(SetAuthState(context.Background(), state))
	assert.True(t, ok)
	assert.Equal(t, "caller", got.Current().ID)
}

func TestRoutePolicy(t *testing.T) {
	assert.True(t, RoutePolicy{}.IsOpen())
	p := Require("Documents:viewArticles")
	assert.False(t, p.IsOpen())
	assert.Equal(t, []string{"Documents:viewArticles"}, p.RequiredPermissions)
}
