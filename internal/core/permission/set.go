package permission

import (
	"encoding/json"
	"slices"
)

// Set is an effective permission set. The zero value grants nothing.
type Set struct {
	tokens []string
	perms  []Permission
	global bool
}

// NewSet builds a Set from raw tokens. Tokens that do not parse are ignored.
func NewSet(tokens ...string) Set {
	s := Set{}
	for _, t := range tokens {
		p, err := Parse(t)
		if err != nil {
			continue
		}
		s.tokens = append(s.tokens, t)
		s.perms = append(s.perms, p)
		if p.Kind == KindGlobal {
			s.global = true
		}
	}
	return s
}

func (s Set) FullAccess() bool {
	return s.global
}

func (s Set) Grants(entity string, action Action) bool {
	if s.global {
		return true
	}
	for _, p := range s.perms {
		if p.Matches(entity, action) {
			return true
		}
	}
	return false
}

func (s Set) CanView(entity string) bool {
	return s.Grants(entity, ActionView)
}

// CoversModule reports blanket access to a module: global access or a
// "<module>.*" token.
func (s Set) CoversModule(module string) bool {
	if s.global {
		return true
	}
	for _, p := range s.perms {
		if p.Kind == KindModuleWildcard && p.Entity == module {
			return true
		}
	}
	return false
}

func (s Set) Len() int {
	return len(s.tokens)
}

// Strings returns the accepted tokens in their original order.
func (s Set) Strings() []string {
	return slices.Clone(s.tokens)
}

// Decode reads a persisted JSON list of tokens. Malformed input yields an
// empty list and ok=false so the caller can log it.
func Decode(raw []byte) (tokens []string, ok bool) {
	if len(raw) == 0 {
		return []string{}, true
	}
	if err := json.Unmarshal(raw, &tokens); err != nil {
		return []string{}, false
	}
	if tokens == nil {
		tokens = []string{}
	}
	return tokens, true
}

func Encode(tokens []string) []byte {
	if tokens == nil {
		tokens = []string{}
	}
	b, err := json.Marshal(tokens)
	if err != nil {
		return []byte("[]")
	}
	return b
}
