package user

import (
	errors "github.com/frahmantamala/chitfund-crm/internal"
	"github.com/frahmantamala/chitfund-crm/internal/core/common/validation"
)

type CreateUserDTO struct {
	Email       string   `json:"email"`
	Name        string   `json:"name"`
	Password    string   `json:"password"`
	Role        string   `json:"role,omitempty"`
	Permissions []string `json:"permissions,omitempty"`
}

func (dto CreateUserDTO) Validate() *errors.AppError {
	v := validation.NewValidator()
	v.Field("email", dto.Email).
		Required().
		MaxLength(254)
	v.Field("name", dto.Name).
		Required().
		MaxLength(128)
	v.Field("password", dto.Password).
		Required().
		MinLength(8).
		MaxLength(72)
	if dto.Permissions != nil {
		v.Field("permissions", dto.Permissions).
			Permissions()
	}
	return v.Validate()
}

// AssignRoleDTO names the role to assign. An empty name clears the role.
type AssignRoleDTO struct {
	Role string `json:"role"`
}

type DirectPermissionsDTO struct {
	Permissions []string `json:"permissions"`
}

func (dto DirectPermissionsDTO) Validate() *errors.AppError {
	v := validation.NewValidator()
	v.Field("permissions", dto.Permissions).
		Permissions()
	return v.Validate()
}

type UsersResponse struct {
	Users []*User `json:"users"`
}
