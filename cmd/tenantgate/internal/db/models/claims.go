package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/uptrace/bun"
)

// StringList is a JSON-encoded list of strings stored in a text column.
type StringList []string

// Scan implements sql.Scanner for reading from database
func (l *StringList) Scan(value any) error {
	var raw []byte
	switch v := value.(type) {
	case nil:
		*l = StringList{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("failed to scan StringList: expected []byte or string, got %T", value)
	}
	if len(raw) == 0 {
		*l = StringList{}
		return nil
	}
	return json.Unmarshal(raw, l)
}

// Value implements driver.Valuer for writing to database
func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	bytes, err := json.Marshal([]string(l))
	if err != nil {
		return nil, err
	}
	return string(bytes), nil
}

// IdentityClaims is the per-identity context embedded into the next token issued
// for that identity. Only the auth context service writes it.
type IdentityClaims struct {
	bun.BaseModel `bun:"table:identity_claims,alias:ic"`

	IdentityID             string     `bun:"identity_id,pk" json:"identityId"`
	TenantID               *string    `bun:"tenant_id" json:"tenantId"`
	TenantIDs              StringList `bun:"tenant_ids,type:text,notnull" json:"tenantIds"`
	ImpersonatedIdentityID *string    `bun:"impersonated_identity_id" json:"impersonatedIdentityId"`
	ImpersonationAllowed   bool       `bun:"impersonation_allowed,notnull,default:false" json:"impersonationAllowed"`
	ValidatedAt            *time.Time `bun:"validated_at" json:"validatedAt"`
	UpdatedAt              time.Time  `bun:"updated_at,notnull,default:current_timestamp" json:"updatedAt"`
}

// EmptyClaims returns the cleared claims record for an identity.
func EmptyClaims(identityID string) *IdentityClaims {
	return &IdentityClaims{
		IdentityID: identityID,
		TenantIDs:  StringList{},
	}
}

// IsEmpty reports whether no tenant or impersonation context is set.
func (c *IdentityClaims) IsEmpty() bool {
	return c.TenantID == nil && c.ImpersonatedIdentityID == nil && len(c.TenantIDs) == 0 &&
		!c.ImpersonationAllowed && c.ValidatedAt == nil
}
