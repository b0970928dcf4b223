package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Role groups permissions. System roles carry cross-tenant privileges.
type Role struct {
	bun.BaseModel `bun:"table:roles,alias:r"`

	ID           string    `bun:"id,pk"`
	Name         string    `bun:"name,notnull,unique"`
	Description  string    `bun:"description"`
	IsSystemRole bool      `bun:"is_system_role,notnull,default:false"`
	CreatedAt    time.Time `bun:"created_at,notnull,default:current_timestamp"`
}

// Permission is a named capability such as "Documents:viewArticles".
type Permission struct {
	bun.BaseModel `bun:"table:permissions,alias:p"`

	ID          string `bun:"id,pk"`
	Name        string `bun:"name,notnull,unique"`
	Description string `bun:"description"`
}

// RolePermission is one row of the role/permission many-to-many join.
type RolePermission struct {
	bun.BaseModel `bun:"table:role_permissions,alias:rp"`

	RoleID       string `bun:"role_id,pk"`
	PermissionID string `bun:"permission_id,pk"`
}
