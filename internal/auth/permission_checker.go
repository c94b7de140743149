package auth

import (
	"github.com/frahmantamala/chitfund-crm/internal/core/permission"
	"github.com/frahmantamala/chitfund-crm/internal/navigation"
)

type PermissionChecker interface {
	Allowed(set permission.Set, entity string, action permission.Action) bool
	HasAnyPermission(set permission.Set, required ...permission.Permission) bool
	IsAdmin(set permission.Set) bool
}

// DefaultPermissionChecker resolves page entities to their module through the
// navigation tree, so "<module>.*" grants the module's pages.
type DefaultPermissionChecker struct {
	tree navigation.Tree
}

func NewPermissionChecker(tree navigation.Tree) PermissionChecker {
	return &DefaultPermissionChecker{tree: tree}
}

func (c *DefaultPermissionChecker) Allowed(set permission.Set, entity string, action permission.Action) bool {
	return c.tree.Grants(set, entity, action)
}

// HasAnyPermission reports whether set grants at least one of required. A
// module wildcard in required is satisfied only by one covering that module.
func (c *DefaultPermissionChecker) HasAnyPermission(set permission.Set, required ...permission.Permission) bool {
	for _, p := range required {
		switch p.Kind {
		case permission.KindGlobal:
			if set.FullAccess() {
				return true
			}
		case permission.KindModuleWildcard:
			if set.CoversModule(p.Entity) {
				return true
			}
		default:
			if c.tree.Grants(set, p.Entity, p.Action) {
				return true
			}
		}
	}
	return false
}

func (c *DefaultPermissionChecker) IsAdmin(set permission.Set) bool {
	return set.FullAccess()
}
