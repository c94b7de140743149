package role

import (
	"slices"
	"strings"
	"time"

	roleDatamodel "github.com/frahmantamala/chitfund-crm/internal/core/datamodel/role"
	"github.com/frahmantamala/chitfund-crm/internal/core/permission"
)

type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
)

func (s Status) Valid() bool {
	return s == StatusActive || s == StatusInactive
}

// Role is the external role shape. UserCount is derived from the user table
// on read and never persisted.
type Role struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	UserCount   int64     `json:"userCount"`
	Permissions []string  `json:"permissions"`
	Status      Status    `json:"status"`
	IsSystem    bool      `json:"isSystem"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func NewRole(name, description string, permissions []string) *Role {
	now := time.Now()
	if permissions == nil {
		permissions = []string{}
	}
	return &Role{
		Name:        strings.TrimSpace(name),
		Description: description,
		Permissions: permissions,
		Status:      StatusActive,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func (r *Role) IsActive() bool {
	return r.Status == StatusActive
}

func (r *Role) PermissionSet() permission.Set {
	return permission.NewSet(r.Permissions...)
}

// HasToken reports whether the role lists p, comparing canonical forms.
func (r *Role) HasToken(p permission.Permission) bool {
	return r.indexOf(p) >= 0
}

func (r *Role) indexOf(p permission.Permission) int {
	want := p.String()
	return slices.IndexFunc(r.Permissions, func(t string) bool {
		parsed, err := permission.Parse(t)
		return err == nil && parsed.String() == want
	})
}

// AddPermission appends p unless an equivalent entry exists.
func (r *Role) AddPermission(p permission.Permission) bool {
	if r.HasToken(p) {
		return false
	}
	r.Permissions = append(r.Permissions, p.String())
	r.UpdatedAt = time.Now()
	return true
}

// RemovePermission drops the entry equivalent to p and nothing else.
func (r *Role) RemovePermission(p permission.Permission) bool {
	i := r.indexOf(p)
	if i < 0 {
		return false
	}
	r.Permissions = slices.Delete(slices.Clone(r.Permissions), i, i+1)
	r.UpdatedAt = time.Now()
	return true
}

func (r *Role) Activate() {
	r.Status = StatusActive
	r.UpdatedAt = time.Now()
}

func (r *Role) Deactivate() {
	r.Status = StatusInactive
	r.UpdatedAt = time.Now()
}

// Table indexes roles by id for the resolver.
type Table map[int64]*Role

func NewTable(roles []*Role) Table {
	t := make(Table, len(roles))
	for _, r := range roles {
		t[r.ID] = r
	}
	return t
}

func (t Table) Lookup(id int64) (*Role, bool) {
	r, ok := t[id]
	return r, ok
}

func ToDataModel(r *Role) *roleDatamodel.Role {
	return &roleDatamodel.Role{
		ID:          r.ID,
		Name:        r.Name,
		Description: r.Description,
		Permissions: string(permission.Encode(r.Permissions)),
		Status:      string(r.Status),
		IsSystem:    r.IsSystem,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

// FromDataModel converts a stored row. A row whose permission column cannot
// be decoded loads with no permissions and reports malformed=true.
func FromDataModel(row *roleDatamodel.Role) (r *Role, malformed bool) {
	perms, ok := permission.Decode([]byte(row.Permissions))
	status := Status(row.Status)
	if !status.Valid() {
		status = StatusInactive
	}
	return &Role{
		ID:          row.ID,
		Name:        row.Name,
		Description: row.Description,
		Permissions: perms,
		Status:      status,
		IsSystem:    row.IsSystem,
		CreatedAt:   row.CreatedAt,
		UpdatedAt:   row.UpdatedAt,
	}, !ok
}
