package navigation

import "github.com/frahmantamala/chitfund-crm/internal/core/permission"

// Grants reports whether perms allow action on entity. A "<module>.*" token
// also covers every page of that module.
func (t Tree) Grants(perms permission.Set, entity string, action permission.Action) bool {
	if perms.Grants(entity, action) {
		return true
	}
	parent := t.ParentOf(entity)
	return parent != "" && perms.CoversModule(parent)
}

// Filter prunes the tree down to what the permission set may see. The input
// is left untouched and order is preserved.
//
// A module survives when it is viewable itself or through at least one of its
// pages. Pages survive only with their own view permission, except that a
// "<module>.*" token opens every page of that module.
func Filter(tree Tree, perms permission.Set) Tree {
	if perms.FullAccess() {
		return tree.Clone()
	}

	out := make(Tree, 0, len(tree))
	for _, module := range tree {
		blanket := perms.CoversModule(module.ID)

		var pages []Node
		for _, page := range module.Children {
			if blanket || perms.CanView(page.ID) {
				pages = append(pages, page)
			}
		}

		if !blanket && !perms.CanView(module.ID) && len(pages) == 0 {
			continue
		}

		kept := module
		kept.Children = pages
		if module.Children != nil && pages == nil {
			kept.Children = []Node{}
		}
		out = append(out, kept)
	}
	return out
}
