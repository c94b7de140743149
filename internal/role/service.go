package role

import (
	"context"
	"io"
	"log/slog"
	"strings"

	errors "github.com/frahmantamala/chitfund-crm/internal"
	roleDatamodel "github.com/frahmantamala/chitfund-crm/internal/core/datamodel/role"
	"github.com/frahmantamala/chitfund-crm/internal/core/events"
	"github.com/frahmantamala/chitfund-crm/internal/core/permission"
	"github.com/frahmantamala/chitfund-crm/internal/navigation"
)

type RepositoryAPI interface {
	GetAll(ctx context.Context) ([]*roleDatamodel.Role, error)
	GetByID(ctx context.Context, id int64) (*roleDatamodel.Role, error)
	GetByName(ctx context.Context, name string) (*roleDatamodel.Role, error)
	Create(ctx context.Context, role *roleDatamodel.Role) error
	Update(ctx context.Context, role *roleDatamodel.Role) error
	// Delete removes the role and clears the role reference of its users in
	// one transaction.
	Delete(ctx context.Context, id int64) error
}

// UsageAPI answers questions about which users reference a role.
type UsageAPI interface {
	CountByRole(ctx context.Context) (map[int64]int64, error)
	// UserIDs lists users whose effective permissions come from the role,
	// excluding users with a direct override.
	UserIDs(ctx context.Context, roleID int64) ([]int64, error)
}

type Publisher interface {
	Publish(ctx context.Context, event events.Event) error
}

type Service struct {
	repo      RepositoryAPI
	usage     UsageAPI
	publisher Publisher
	logger    *slog.Logger
}

func NewService(repo RepositoryAPI, usage UsageAPI, publisher Publisher, logger *slog.Logger) *Service {
	return &Service{
		repo:      repo,
		usage:     usage,
		publisher: publisher,
		logger:    logger,
	}
}

func (s *Service) List(ctx context.Context) ([]*Role, error) {
	rows, err := s.repo.GetAll(ctx)
	if err != nil {
		s.logger.Error("failed to list roles", "error", err)
		return nil, errors.NewInternalError("failed to list roles", err)
	}

	counts, err := s.counts(ctx)
	if err != nil {
		return nil, err
	}

	roles := make([]*Role, 0, len(rows))
	for _, row := range rows {
		r := s.fromRow(row)
		r.UserCount = counts[r.ID]
		roles = append(roles, r)
	}
	return roles, nil
}

// Table loads every role keyed by id. Roles whose permission data cannot be
// read are left out, so their users resolve to the default list.
func (s *Service) Table(ctx context.Context) (Table, error) {
	rows, err := s.repo.GetAll(ctx)
	if err != nil {
		s.logger.Error("failed to load role table", "error", err)
		return nil, errors.NewInternalError("failed to load roles", err)
	}
	roles := make([]*Role, 0, len(rows))
	for _, row := range rows {
		r, malformed := FromDataModel(row)
		if malformed {
			s.logger.Warn("role has unreadable permissions, excluded from resolution", "role_id", row.ID, "name", row.Name)
			continue
		}
		roles = append(roles, r)
	}
	return NewTable(roles), nil
}

func (s *Service) GetByID(ctx context.Context, id int64) (*Role, error) {
	r, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.fillCount(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

func (s *Service) GetByName(ctx context.Context, name string) (*Role, error) {
	row, err := s.repo.GetByName(ctx, strings.TrimSpace(name))
	if err != nil {
		s.logger.Error("failed to get role by name", "name", name, "error", err)
		return nil, errors.NewInternalError("failed to get role", err)
	}
	if row == nil {
		return nil, errors.ErrRoleNotFound
	}
	r := s.fromRow(row)
	if err := s.fillCount(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

func (s *Service) Create(ctx context.Context, dto CreateRoleDTO) (*Role, error) {
	if appErr := dto.Validate(); appErr != nil {
		return nil, appErr
	}

	perms, err := permission.Normalize(dto.Permissions)
	if err != nil {
		return nil, errors.NewValidationFieldError("permissions", err.Error(), errors.ErrCodeInvalidPermission)
	}

	if err := s.ensureNameFree(ctx, dto.Name, 0); err != nil {
		return nil, err
	}

	r := NewRole(dto.Name, dto.Description, perms)
	if dto.Status != "" {
		r.Status = dto.Status
	}

	row := ToDataModel(r)
	if err := s.repo.Create(ctx, row); err != nil {
		s.logger.Error("failed to create role", "name", r.Name, "error", err)
		return nil, errors.NewInternalError("failed to create role", err)
	}
	r.ID = row.ID
	r.CreatedAt = row.CreatedAt
	r.UpdatedAt = row.UpdatedAt

	s.logger.Info("role created", "role_id", r.ID, "name", r.Name, "permissions", len(r.Permissions))
	s.notify(ctx, events.ReasonRoleCreated, r.ID, nil)
	return r, nil
}

func (s *Service) Update(ctx context.Context, id int64, dto UpdateRoleDTO) (*Role, error) {
	if appErr := dto.Validate(); appErr != nil {
		return nil, appErr
	}

	r, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	if dto.Name != nil {
		name := strings.TrimSpace(*dto.Name)
		if name != r.Name {
			if r.IsSystem {
				return nil, errors.ErrSystemRoleImmutable
			}
			if err := s.ensureNameFree(ctx, name, r.ID); err != nil {
				return nil, err
			}
			r.Name = name
		}
	}
	if dto.Description != nil {
		r.Description = *dto.Description
	}
	if dto.Permissions != nil {
		perms, err := permission.Normalize(dto.Permissions)
		if err != nil {
			return nil, errors.NewValidationFieldError("permissions", err.Error(), errors.ErrCodeInvalidPermission)
		}
		r.Permissions = perms
	}
	if dto.Status != nil && *dto.Status != r.Status {
		if r.IsSystem && *dto.Status == StatusInactive {
			return nil, errors.ErrSystemRoleImmutable
		}
		if *dto.Status == StatusActive {
			r.Activate()
		} else {
			r.Deactivate()
		}
	}

	return s.save(ctx, r, events.ReasonRoleUpdated)
}

func (s *Service) SetStatus(ctx context.Context, id int64, status Status) (*Role, error) {
	return s.Update(ctx, id, UpdateRoleDTO{Status: &status})
}

// GrantPermission adds a single entry to the role. Granting an entry the role
// already lists is a no-op.
func (s *Service) GrantPermission(ctx context.Context, id int64, token string) (*Role, error) {
	p, err := permission.Parse(token)
	if err != nil {
		return nil, errors.NewValidationFieldError("permission", err.Error(), errors.ErrCodeInvalidPermission)
	}

	r, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !r.AddPermission(p) {
		return s.withCount(ctx, r)
	}
	return s.save(ctx, r, events.ReasonRoleUpdated)
}

// RevokePermission removes exactly the entry equivalent to token and leaves
// every other entry in place.
func (s *Service) RevokePermission(ctx context.Context, id int64, token string) (*Role, error) {
	p, err := permission.Parse(token)
	if err != nil {
		return nil, errors.NewValidationFieldError("permission", err.Error(), errors.ErrCodeInvalidPermission)
	}

	r, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !r.RemovePermission(p) {
		return s.withCount(ctx, r)
	}
	return s.save(ctx, r, events.ReasonRoleUpdated)
}

// Delete removes a non-system role. Users that referenced it fall back to the
// default permission set.
func (s *Service) Delete(ctx context.Context, id int64) error {
	r, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if r.IsSystem {
		s.logger.Warn("refusing to delete system role", "role_id", r.ID, "name", r.Name)
		return errors.ErrSystemRoleProtected
	}

	affected, err := s.usage.UserIDs(ctx, id)
	if err != nil {
		s.logger.Error("failed to list role users", "role_id", id, "error", err)
		return errors.NewInternalError("failed to delete role", err)
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		s.logger.Error("failed to delete role", "role_id", id, "error", err)
		return errors.NewInternalError("failed to delete role", err)
	}

	s.logger.Info("role deleted", "role_id", id, "name", r.Name, "affected_users", len(affected))
	s.notify(ctx, events.ReasonRoleDeleted, id, affected)
	return nil
}

// ExportMatrix writes the permission matrix of every role over the tree's
// nodes as an xlsx workbook.
func (s *Service) ExportMatrix(ctx context.Context, w io.Writer, tree navigation.Tree) error {
	roles, err := s.List(ctx)
	if err != nil {
		return err
	}
	if err := ExportMatrix(w, roles, tree); err != nil {
		s.logger.Error("failed to export permission matrix", "error", err)
		return errors.NewInternalError("failed to export permission matrix", err)
	}
	return nil
}

func (s *Service) save(ctx context.Context, r *Role, reason string) (*Role, error) {
	row := ToDataModel(r)
	if err := s.repo.Update(ctx, row); err != nil {
		s.logger.Error("failed to update role", "role_id", r.ID, "error", err)
		return nil, errors.NewInternalError("failed to update role", err)
	}
	r.UpdatedAt = row.UpdatedAt

	affected, err := s.usage.UserIDs(ctx, r.ID)
	if err != nil {
		s.logger.Warn("role updated but affected users could not be listed", "role_id", r.ID, "error", err)
	}
	if err := s.fillCount(ctx, r); err != nil {
		return nil, err
	}

	s.logger.Info("role updated", "role_id", r.ID, "name", r.Name, "status", r.Status, "affected_users", len(affected))
	s.notify(ctx, reason, r.ID, affected)
	return r, nil
}

func (s *Service) load(ctx context.Context, id int64) (*Role, error) {
	row, err := s.repo.GetByID(ctx, id)
	if err != nil {
		s.logger.Error("failed to get role", "role_id", id, "error", err)
		return nil, errors.NewInternalError("failed to get role", err)
	}
	if row == nil {
		return nil, errors.ErrRoleNotFound
	}
	return s.fromRow(row), nil
}

func (s *Service) fromRow(row *roleDatamodel.Role) *Role {
	r, malformed := FromDataModel(row)
	if malformed {
		s.logger.Warn("role has unreadable permissions, treating as empty", "role_id", row.ID, "name", row.Name)
	}
	return r
}

func (s *Service) ensureNameFree(ctx context.Context, name string, selfID int64) error {
	existing, err := s.repo.GetByName(ctx, strings.TrimSpace(name))
	if err != nil {
		return errors.NewInternalError("failed to check role name", err)
	}
	if existing != nil && existing.ID != selfID {
		return errors.ErrRoleNameTaken
	}
	return nil
}

func (s *Service) counts(ctx context.Context) (map[int64]int64, error) {
	counts, err := s.usage.CountByRole(ctx)
	if err != nil {
		s.logger.Error("failed to count role users", "error", err)
		return nil, errors.NewInternalError("failed to count role users", err)
	}
	return counts, nil
}

func (s *Service) fillCount(ctx context.Context, r *Role) error {
	counts, err := s.counts(ctx)
	if err != nil {
		return err
	}
	r.UserCount = counts[r.ID]
	return nil
}

func (s *Service) withCount(ctx context.Context, r *Role) (*Role, error) {
	if err := s.fillCount(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

func (s *Service) notify(ctx context.Context, reason string, roleID int64, userIDs []int64) {
	if s.publisher == nil {
		return
	}
	id := roleID
	ev := events.NewPermissionsChangedEvent(reason, &id, userIDs)
	if err := s.publisher.Publish(ctx, ev); err != nil {
		s.logger.Warn("failed to publish permissions change", "reason", reason, "role_id", roleID, "error", err)
	}
}
