package access

import (
	"slices"

	"github.com/frahmantamala/chitfund-crm/internal/core/permission"
	"github.com/frahmantamala/chitfund-crm/internal/role"
	"github.com/frahmantamala/chitfund-crm/internal/user"
)

// Source records where an effective permission list came from.
type Source string

const (
	SourceDirect  Source = "direct"
	SourceRole    Source = "role"
	SourceDefault Source = "default"
)

type RoleLookup interface {
	Lookup(id int64) (*role.Role, bool)
}

type Resolution struct {
	Permissions []string
	Source      Source
	// Role is set when Source is SourceRole.
	Role *role.Role
}

func (r Resolution) Set() permission.Set {
	return permission.NewSet(r.Permissions...)
}

// Resolver derives a user's effective permissions.
//
// A direct override wins and is returned as stored. Otherwise the referenced
// role applies if it exists and is active. Anything else falls back to the
// default list so a user always reaches the dashboard.
type Resolver struct {
	defaults []string
}

func NewResolver(defaultPermission string) *Resolver {
	if defaultPermission == "" {
		defaultPermission = permission.DefaultToken
	}
	return &Resolver{defaults: []string{defaultPermission}}
}

func (rv *Resolver) Resolve(u *user.User, roles RoleLookup) Resolution {
	if u == nil {
		return rv.fallback()
	}

	if u.HasOverride {
		perms := slices.Clone(u.DirectPermissions)
		if perms == nil {
			perms = []string{}
		}
		return Resolution{Permissions: perms, Source: SourceDirect}
	}

	if u.RoleID != nil && roles != nil {
		if r, ok := roles.Lookup(*u.RoleID); ok && r.IsActive() {
			perms := slices.Clone(r.Permissions)
			if perms == nil {
				perms = []string{}
			}
			return Resolution{Permissions: perms, Source: SourceRole, Role: r}
		}
	}

	return rv.fallback()
}

func (rv *Resolver) fallback() Resolution {
	return Resolution{Permissions: slices.Clone(rv.defaults), Source: SourceDefault}
}
