package user

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	errors "github.com/frahmantamala/chitfund-crm/internal"
	userDatamodel "github.com/frahmantamala/chitfund-crm/internal/core/datamodel/user"
	"github.com/frahmantamala/chitfund-crm/internal/core/events"
	"github.com/frahmantamala/chitfund-crm/internal/core/permission"
	"github.com/frahmantamala/chitfund-crm/internal/role"
	"golang.org/x/crypto/bcrypt"
)

type Repository interface {
	GetByID(ctx context.Context, id int64) (*userDatamodel.User, error)
	GetByEmail(ctx context.Context, email string) (*userDatamodel.User, error)
	List(ctx context.Context) ([]*userDatamodel.User, error)
	Create(ctx context.Context, u *userDatamodel.User) error
	Update(ctx context.Context, u *userDatamodel.User) error
}

// RoleFinder resolves role names to roles at assignment time.
type RoleFinder interface {
	GetByName(ctx context.Context, name string) (*role.Role, error)
}

type Publisher interface {
	Publish(ctx context.Context, event events.Event) error
}

type Service struct {
	repo       Repository
	roles      RoleFinder
	publisher  Publisher
	logger     *slog.Logger
	bcryptCost int
}

func NewService(repo Repository, roles RoleFinder, publisher Publisher, logger *slog.Logger, bcryptCost int) *Service {
	if bcryptCost == 0 {
		bcryptCost = bcrypt.DefaultCost
	}
	return &Service{
		repo:       repo,
		roles:      roles,
		publisher:  publisher,
		logger:     logger,
		bcryptCost: bcryptCost,
	}
}

func (s *Service) GetByID(ctx context.Context, userID int64) (*User, error) {
	row, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return nil, errors.NewInternalError("failed to get user", fmt.Errorf("failed to get user by id: %w", err))
	}
	if row == nil {
		return nil, errors.ErrUserNotFound
	}
	return s.fromRow(row), nil
}

func (s *Service) List(ctx context.Context) ([]*User, error) {
	rows, err := s.repo.List(ctx)
	if err != nil {
		s.logger.Error("failed to list users", "error", err)
		return nil, errors.NewInternalError("failed to list users", err)
	}
	users := make([]*User, 0, len(rows))
	for _, row := range rows {
		users = append(users, s.fromRow(row))
	}
	return users, nil
}

func (s *Service) Create(ctx context.Context, dto CreateUserDTO) (*User, error) {
	if appErr := dto.Validate(); appErr != nil {
		return nil, appErr
	}

	existing, err := s.repo.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(dto.Email)))
	if err != nil {
		return nil, errors.NewInternalError("failed to check email", err)
	}
	if existing != nil {
		return nil, errors.ErrEmailTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(dto.Password), s.bcryptCost)
	if err != nil {
		return nil, errors.NewInternalError("failed to hash password", err)
	}

	now := time.Now()
	u := &User{
		Email:        dto.Email,
		Name:         strings.TrimSpace(dto.Name),
		PasswordHash: string(hash),
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if dto.Role != "" {
		roleID, err := s.resolveRole(ctx, dto.Role)
		if err != nil {
			return nil, err
		}
		u.RoleID = roleID
	}
	if dto.Permissions != nil {
		perms, err := permission.Normalize(dto.Permissions)
		if err != nil {
			return nil, errors.NewValidationFieldError("permissions", err.Error(), errors.ErrCodeInvalidPermission)
		}
		u.SetOverride(perms)
	}

	row := ToDataModel(u)
	if err := s.repo.Create(ctx, row); err != nil {
		s.logger.Error("failed to create user", "email", row.Email, "error", err)
		return nil, errors.NewInternalError("failed to create user", err)
	}
	u.ID = row.ID
	u.Email = row.Email

	s.logger.Info("user created", "user_id", u.ID, "email", u.Email)
	return u, nil
}

// AssignRole stores a typed reference to the named role. The name is resolved
// now so later renames keep the assignment intact. An empty name clears it.
func (s *Service) AssignRole(ctx context.Context, userID int64, roleName string) (*User, error) {
	u, err := s.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	var roleID *int64
	if strings.TrimSpace(roleName) != "" {
		roleID, err = s.resolveRole(ctx, roleName)
		if err != nil {
			return nil, err
		}
	}

	u.AssignRole(roleID)
	if err := s.save(ctx, u); err != nil {
		return nil, err
	}

	s.logger.Info("role assigned", "user_id", u.ID, "role", roleName)
	s.notify(ctx, events.ReasonUserRoleAssigned, u)
	return u, nil
}

// SetDirectPermissions gives the user an explicit permission list that takes
// precedence over any role.
func (s *Service) SetDirectPermissions(ctx context.Context, userID int64, tokens []string) (*User, error) {
	if appErr := (DirectPermissionsDTO{Permissions: tokens}).Validate(); appErr != nil {
		return nil, appErr
	}
	perms, err := permission.Normalize(tokens)
	if err != nil {
		return nil, errors.NewValidationFieldError("permissions", err.Error(), errors.ErrCodeInvalidPermission)
	}

	u, err := s.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	u.SetOverride(perms)
	if err := s.save(ctx, u); err != nil {
		return nil, err
	}

	s.logger.Info("direct permissions set", "user_id", u.ID, "count", len(perms))
	s.notify(ctx, events.ReasonUserOverrideSet, u)
	return u, nil
}

func (s *Service) ClearDirectPermissions(ctx context.Context, userID int64) (*User, error) {
	u, err := s.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !u.HasOverride {
		return u, nil
	}

	u.ClearOverride()
	if err := s.save(ctx, u); err != nil {
		return nil, err
	}

	s.logger.Info("direct permissions cleared", "user_id", u.ID)
	s.notify(ctx, events.ReasonUserOverrideClear, u)
	return u, nil
}

func (s *Service) resolveRole(ctx context.Context, name string) (*int64, error) {
	r, err := s.roles.GetByName(ctx, name)
	if err != nil {
		if errors.IsErrorCode(err, errors.ErrCodeRoleNotFound) {
			return nil, errors.NewValidationFieldError("role", fmt.Sprintf("unknown role %q", name), errors.ErrCodeRoleNotFound)
		}
		return nil, err
	}
	id := r.ID
	return &id, nil
}

func (s *Service) save(ctx context.Context, u *User) error {
	if err := s.repo.Update(ctx, ToDataModel(u)); err != nil {
		s.logger.Error("failed to update user", "user_id", u.ID, "error", err)
		return errors.NewInternalError("failed to update user", err)
	}
	return nil
}

func (s *Service) fromRow(row *userDatamodel.User) *User {
	u, malformed := FromDataModel(row)
	if malformed {
		s.logger.Warn("user has unreadable direct permissions, ignoring override", "user_id", row.ID)
	}
	return u
}

func (s *Service) notify(ctx context.Context, reason string, u *User) {
	if s.publisher == nil {
		return
	}
	ev := events.NewPermissionsChangedEvent(reason, u.RoleID, []int64{u.ID})
	if err := s.publisher.Publish(ctx, ev); err != nil {
		s.logger.Warn("failed to publish permissions change", "reason", reason, "user_id", u.ID, "error", err)
	}
}
