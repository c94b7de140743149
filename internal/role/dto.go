package role

import (
	errors "github.com/frahmantamala/chitfund-crm/internal"
	"github.com/frahmantamala/chitfund-crm/internal/core/common/validation"
)

type CreateRoleDTO struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Permissions []string `json:"permissions"`
	Status      Status   `json:"status,omitempty"`
}

func (dto CreateRoleDTO) Validate() *errors.AppError {
	v := validation.NewValidator()
	v.Field("name", dto.Name).
		Required().
		MinLength(2).
		MaxLength(64)
	v.Field("description", dto.Description).
		MaxLength(500)
	v.Field("permissions", dto.Permissions).
		Permissions()
	v.Field("status", string(dto.Status)).
		OneOf(errors.ErrCodeInvalidRoleStatus, string(StatusActive), string(StatusInactive))
	return v.Validate()
}

// UpdateRoleDTO replaces only the fields that are present. A nil Permissions
// leaves the list untouched while an empty list clears it.
type UpdateRoleDTO struct {
	Name        *string  `json:"name,omitempty"`
	Description *string  `json:"description,omitempty"`
	Permissions []string `json:"permissions,omitempty"`
	Status      *Status  `json:"status,omitempty"`
}

func (dto UpdateRoleDTO) Validate() *errors.AppError {
	v := validation.NewValidator()
	if dto.Name != nil {
		v.Field("name", *dto.Name).
			Required().
			MinLength(2).
			MaxLength(64)
	}
	if dto.Description != nil {
		v.Field("description", *dto.Description).
			MaxLength(500)
	}
	if dto.Permissions != nil {
		v.Field("permissions", dto.Permissions).
			Permissions()
	}
	if dto.Status != nil {
		v.Field("status", string(*dto.Status)).
			Required().
			OneOf(errors.ErrCodeInvalidRoleStatus, string(StatusActive), string(StatusInactive))
	}
	return v.Validate()
}

type PermissionDTO struct {
	Permission string `json:"permission"`
}

type StatusDTO struct {
	Status Status `json:"status"`
}

type RolesResponse struct {
	Roles []*Role `json:"roles"`
}
