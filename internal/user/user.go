package user

import (
	"strings"
	"time"

	userDatamodel "github.com/frahmantamala/chitfund-crm/internal/core/datamodel/user"
	"github.com/frahmantamala/chitfund-crm/internal/core/permission"
)

// User is the internal user model. A user either carries a direct permission
// override or takes its permissions from the role referenced by RoleID.
type User struct {
	ID                int64     `json:"id"`
	Email             string    `json:"email"`
	Name              string    `json:"name"`
	PasswordHash      string    `json:"-"` // Never expose password hash
	RoleID            *int64    `json:"roleId,omitempty"`
	DirectPermissions []string  `json:"directPermissions,omitempty"`
	HasOverride       bool      `json:"hasOverride"`
	IsActive          bool      `json:"isActive"`
	CreatedAt         time.Time `json:"createdAt"`
	UpdatedAt         time.Time `json:"updatedAt"`
}

func (u *User) SetOverride(tokens []string) {
	u.DirectPermissions = tokens
	u.HasOverride = true
	u.UpdatedAt = time.Now()
}

func (u *User) ClearOverride() {
	u.DirectPermissions = nil
	u.HasOverride = false
	u.UpdatedAt = time.Now()
}

func (u *User) AssignRole(roleID *int64) {
	u.RoleID = roleID
	u.UpdatedAt = time.Now()
}

func ToDataModel(u *User) *userDatamodel.User {
	direct := ""
	if u.HasOverride {
		direct = string(permission.Encode(u.DirectPermissions))
	}
	return &userDatamodel.User{
		ID:                u.ID,
		Email:             strings.ToLower(strings.TrimSpace(u.Email)),
		Name:              u.Name,
		PasswordHash:      u.PasswordHash,
		RoleID:            u.RoleID,
		DirectPermissions: direct,
		HasOverride:       u.HasOverride,
		IsActive:          u.IsActive,
		CreatedAt:         u.CreatedAt,
		UpdatedAt:         u.UpdatedAt,
	}
}

// FromDataModel converts a stored row. An unreadable override column is
// treated as absent so the role or default list applies, and malformed=true
// is reported.
func FromDataModel(row *userDatamodel.User) (u *User, malformed bool) {
	u = &User{
		ID:           row.ID,
		Email:        row.Email,
		Name:         row.Name,
		PasswordHash: row.PasswordHash,
		RoleID:       row.RoleID,
		HasOverride:  row.HasOverride,
		IsActive:     row.IsActive,
		CreatedAt:    row.CreatedAt,
		UpdatedAt:    row.UpdatedAt,
	}
	if row.HasOverride {
		perms, ok := permission.Decode([]byte(row.DirectPermissions))
		if !ok {
			u.HasOverride = false
			return u, true
		}
		u.DirectPermissions = perms
	}
	return u, malformed
}
