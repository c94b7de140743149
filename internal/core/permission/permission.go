package permission

import (
	"errors"
	"fmt"
	"strings"
)

type Action string

const (
	ActionView   Action = "view"
	ActionEdit   Action = "edit"
	ActionCreate Action = "create"
	ActionDelete Action = "delete"
)

// Actions lists every action in display order.
var Actions = []Action{ActionView, ActionEdit, ActionCreate, ActionDelete}

func (a Action) Valid() bool {
	switch a {
	case ActionView, ActionEdit, ActionCreate, ActionDelete:
		return true
	}
	return false
}

type Kind int

const (
	KindExact Kind = iota
	KindModuleWildcard
	KindGlobal
)

const (
	GlobalToken = "*"
	// AdminToken is the legacy spelling of the global wildcard.
	AdminToken = "admin.*"

	DefaultToken = "dashboard.view"
)

var ErrInvalidPermission = errors.New("invalid permission")

// Permission is a parsed permission token.
//
// Exact tokens ("leads.view") grant a single entity+action, module wildcards
// ("leads.*") grant every action on one entity and global tokens ("*",
// "admin.*") grant everything.
type Permission struct {
	Kind   Kind
	Entity string
	Action Action
}

func Exact(entity string, action Action) Permission {
	return Permission{Kind: KindExact, Entity: entity, Action: action}
}

func ModuleWildcard(entity string) Permission {
	return Permission{Kind: KindModuleWildcard, Entity: entity}
}

func Global() Permission {
	return Permission{Kind: KindGlobal}
}

// Parse converts a token into a Permission.
func Parse(token string) (Permission, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Permission{}, fmt.Errorf("%w: empty token", ErrInvalidPermission)
	}
	if token == GlobalToken || token == AdminToken {
		return Global(), nil
	}

	entity, action, ok := strings.Cut(token, ".")
	if !ok {
		return Permission{}, fmt.Errorf("%w: %q must look like <entity>.<action>", ErrInvalidPermission, token)
	}
	if strings.Contains(action, ".") {
		return Permission{}, fmt.Errorf("%w: %q has more than two parts", ErrInvalidPermission, token)
	}
	if !validEntity(entity) {
		return Permission{}, fmt.Errorf("%w: %q has an invalid entity id", ErrInvalidPermission, token)
	}

	if action == "*" {
		return ModuleWildcard(entity), nil
	}
	if !Action(action).Valid() {
		return Permission{}, fmt.Errorf("%w: %q has unknown action %q", ErrInvalidPermission, token, action)
	}
	return Exact(entity, Action(action)), nil
}

// MustParse is Parse for static tables; it panics on bad input.
func MustParse(token string) Permission {
	p, err := Parse(token)
	if err != nil {
		panic(err)
	}
	return p
}

func (p Permission) Matches(entity string, action Action) bool {
	switch p.Kind {
	case KindGlobal:
		return true
	case KindModuleWildcard:
		return p.Entity == entity
	default:
		return p.Entity == entity && p.Action == action
	}
}

func (p Permission) String() string {
	switch p.Kind {
	case KindGlobal:
		return GlobalToken
	case KindModuleWildcard:
		return p.Entity + ".*"
	default:
		return p.Entity + "." + string(p.Action)
	}
}

func validEntity(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		case c == '_' || c == '-':
		default:
			return false
		}
	}
	return true
}

// Normalize validates tokens and drops later duplicates of the same
// entity+action, keeping first-seen order.
func Normalize(tokens []string) ([]string, error) {
	seen := make(map[string]struct{}, len(tokens))
	out := make([]string, 0, len(tokens))
	for _, t := range tokens {
		p, err := Parse(t)
		if err != nil {
			return nil, err
		}
		key := p.String()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, key)
	}
	return out, nil
}
