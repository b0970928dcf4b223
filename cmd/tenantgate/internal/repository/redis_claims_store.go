package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/tenantgate/tenantgate/cmd/tenantgate/internal/db/models"
)

const defaultClaimsKeyPrefix = "tenantgate:claims:"

// RedisClaimsStore keeps each identity's claims as one JSON value, so a
// replace is a single SET.
type RedisClaimsStore struct {
	client *redis.Client
	prefix string
}

// NewRedisClient builds a go-redis client from connection settings and pings
// the server. The caller owns the client and must Close it.
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	if addr == "" {
		return nil, errors.New("redis addr is required")
	}
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", addr, err)
	}
	return client, nil
}

// NewRedisClaimsStore creates a claims store on an existing client.
func NewRedisClaimsStore(client *redis.Client, prefix string) *RedisClaimsStore {
	if prefix == "" {
		prefix = defaultClaimsKeyPrefix
	}
	return &RedisClaimsStore{client: client, prefix: prefix}
}

func (s *RedisClaimsStore) key(identityID string) string {
	return s.prefix + identityID
}

// Get returns the stored claims or an empty record
func (s *RedisClaimsStore) Get(ctx context.Context, identityID string) (*models.IdentityClaims, error) {
	raw, err := s.client.Get(ctx, s.key(identityID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return models.EmptyClaims(identityID), nil
		}
		return nil, fmt.Errorf("get claims for %s: %w", identityID, err)
	}

	claims := new(models.IdentityClaims)
	if err := json.Unmarshal(raw, claims); err != nil {
		return nil, fmt.Errorf("decode claims for %s: %w", identityID, err)
	}
	if claims.TenantIDs == nil {
		claims.TenantIDs = models.StringList{}
	}
	claims.IdentityID = identityID
	return claims, nil
}

// Replace overwrites the record
func (s *RedisClaimsStore) Replace(ctx context.Context, claims *models.IdentityClaims) error {
	if claims.TenantIDs == nil {
		claims.TenantIDs = models.StringList{}
	}
	claims.UpdatedAt = time.Now().UTC()

	raw, err := json.Marshal(claims)
	if err != nil {
		return fmt.Errorf("encode claims for %s: %w", claims.IdentityID, err)
	}
	if err := s.client.Set(ctx, s.key(claims.IdentityID), raw, 0).Err(); err != nil {
		return fmt.Errorf("replace claims for %s: %w", claims.IdentityID, err)
	}
	return nil
}
