package navigation

import (
	"errors"
	"fmt"

	"github.com/frahmantamala/chitfund-crm/internal/core/permission"
)

// Node is a navigation entry. Top-level nodes are modules, their children are
// pages; deeper nesting is rejected by Validate.
type Node struct {
	ID       string `json:"id" mapstructure:"id"`
	Name     string `json:"name" mapstructure:"name"`
	Icon     string `json:"icon" mapstructure:"icon"`
	Children []Node `json:"children,omitempty" mapstructure:"children"`
}

type Tree []Node

var ErrInvalidTree = errors.New("invalid navigation tree")

func (t Tree) Validate() error {
	seen := make(map[string]struct{})
	check := func(n Node) error {
		if n.ID == "" {
			return fmt.Errorf("%w: node %q has no id", ErrInvalidTree, n.Name)
		}
		// "admin.*" parses as the global token
		if p, err := permission.Parse(n.ID + ".*"); err == nil && p.Kind == permission.KindGlobal {
			return fmt.Errorf("%w: id %q is reserved", ErrInvalidTree, n.ID)
		}
		if _, dup := seen[n.ID]; dup {
			return fmt.Errorf("%w: duplicate id %q", ErrInvalidTree, n.ID)
		}
		seen[n.ID] = struct{}{}
		return nil
	}

	for _, module := range t {
		if err := check(module); err != nil {
			return err
		}
		for _, page := range module.Children {
			if err := check(page); err != nil {
				return err
			}
			if len(page.Children) > 0 {
				return fmt.Errorf("%w: page %q has children, only two levels are allowed", ErrInvalidTree, page.ID)
			}
		}
	}
	return nil
}

// IDs returns every module and page id in tree order.
func (t Tree) IDs() []string {
	var ids []string
	for _, module := range t {
		ids = append(ids, module.ID)
		for _, page := range module.Children {
			ids = append(ids, page.ID)
		}
	}
	return ids
}

// ParentOf returns the module owning a page id, or "" for modules and
// unknown ids.
func (t Tree) ParentOf(id string) string {
	for _, module := range t {
		for _, page := range module.Children {
			if page.ID == id {
				return module.ID
			}
		}
	}
	return ""
}

func (t Tree) Clone() Tree {
	if t == nil {
		return nil
	}
	out := make(Tree, len(t))
	for i, module := range t {
		out[i] = module
		if module.Children != nil {
			out[i].Children = make([]Node, len(module.Children))
			copy(out[i].Children, module.Children)
		}
	}
	return out
}
