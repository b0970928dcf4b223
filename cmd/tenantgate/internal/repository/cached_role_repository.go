package repository

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// CachedRoleRepository memoises PermissionsForRole in an expiring LRU.
// Every other call goes straight to the wrapped repository.
type CachedRoleRepository struct {
	RoleRepository
	permissions *expirable.LRU[string, []string]
}

// NewCachedRoleRepository wraps next. size <= 0 falls back to 256 entries.
func NewCachedRoleRepository(next RoleRepository, size int, ttl time.Duration) *CachedRoleRepository {
	if size <= 0 {
		size = 256
	}
	return &CachedRoleRepository{
		RoleRepository: next,
		permissions:    expirable.NewLRU[string, []string](size, nil, ttl),
	}
}

// PermissionsForRole returns a copy of the cached set, loading it on a miss.
func (c *CachedRoleRepository) PermissionsForRole(ctx context.Context, roleID string) ([]string, error) {
	if cached, ok := c.permissions.Get(roleID); ok {
		return append([]string(nil), cached...), nil
	}
	perms, err := c.RoleRepository.PermissionsForRole(ctx, roleID)
	if err != nil {
		return nil, err
	}
	c.permissions.Add(roleID, append([]string(nil), perms...))
	return perms, nil
}

// GrantPermission writes through and drops the role's cached set.
func (c *CachedRoleRepository) GrantPermission(ctx context.Context, roleID, permissionName string) error {
	if err := c.RoleRepository.GrantPermission(ctx, roleID, permissionName); err != nil {
		return err
	}
	c.permissions.Remove(roleID)
	return nil
}

// Purge empties the cache.
func (c *CachedRoleRepository) Purge() {
	c.permissions.Purge()
}
