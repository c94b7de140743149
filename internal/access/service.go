package access

import (
	"context"
	"log/slog"

	errors "github.com/frahmantamala/chitfund-crm/internal"
	"github.com/frahmantamala/chitfund-crm/internal/core/permission"
	"github.com/frahmantamala/chitfund-crm/internal/navigation"
	"github.com/frahmantamala/chitfund-crm/internal/role"
	"github.com/frahmantamala/chitfund-crm/internal/user"
)

type UserLookup interface {
	GetByID(ctx context.Context, userID int64) (*user.User, error)
}

type RoleTableLoader interface {
	Table(ctx context.Context) (role.Table, error)
}

// Session is the view of a signed-in user that the UI consumes.
type Session struct {
	ID          int64    `json:"id"`
	Name        string   `json:"name"`
	Role        string   `json:"role"`
	Permissions []string `json:"permissions"`
	Source      Source   `json:"source"`
	FullAccess  bool     `json:"fullAccess"`
}

type NavigationResponse struct {
	Navigation navigation.Tree `json:"navigation"`
}

// Service answers access questions against current data. Nothing is cached so
// every call reflects the latest role and user edits.
type Service struct {
	users    UserLookup
	roles    RoleTableLoader
	resolver *Resolver
	guard    *Guard
	tree     navigation.Tree
	metrics  *Metrics
	logger   *slog.Logger
}

func NewService(users UserLookup, roles RoleTableLoader, resolver *Resolver, guard *Guard, tree navigation.Tree, metrics *Metrics, logger *slog.Logger) *Service {
	return &Service{
		users:    users,
		roles:    roles,
		resolver: resolver,
		guard:    guard,
		tree:     tree,
		metrics:  metrics,
		logger:   logger,
	}
}

func (s *Service) Tree() navigation.Tree {
	return s.tree
}

func (s *Service) Effective(ctx context.Context, userID int64) (Resolution, error) {
	u, table, err := s.load(ctx, userID)
	if err != nil {
		return Resolution{}, err
	}
	return s.resolve(u, table), nil
}

// PermissionSet returns the effective set of userID.
func (s *Service) PermissionSet(ctx context.Context, userID int64) (permission.Set, error) {
	res, err := s.Effective(ctx, userID)
	if err != nil {
		return permission.Set{}, err
	}
	return res.Set(), nil
}

func (s *Service) Session(ctx context.Context, userID int64) (*Session, error) {
	u, table, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	res := s.resolve(u, table)

	roleName := ""
	if u.RoleID != nil {
		if r, ok := table.Lookup(*u.RoleID); ok {
			roleName = r.Name
		}
	}

	return &Session{
		ID:          u.ID,
		Name:        u.Name,
		Role:        roleName,
		Permissions: res.Permissions,
		Source:      res.Source,
		FullAccess:  res.Set().FullAccess(),
	}, nil
}

func (s *Service) Navigation(ctx context.Context, userID int64) (navigation.Tree, error) {
	res, err := s.Effective(ctx, userID)
	if err != nil {
		return nil, err
	}
	return navigation.Filter(s.tree, res.Set()), nil
}

// CheckRoute runs the route guard. A nil userID, or one that no longer
// exists, is treated as no session.
func (s *Service) CheckRoute(ctx context.Context, userID *int64, path string) (Decision, error) {
	var set *permission.Set
	if userID != nil {
		res, err := s.Effective(ctx, *userID)
		switch {
		case err == nil:
			effective := res.Set()
			set = &effective
		case errors.IsErrorCode(err, errors.ErrCodeUserNotFound):
			s.logger.Warn("route check for unknown user", "user_id", *userID)
		default:
			return Decision{}, err
		}
	}

	d := s.guard.Check(set, path)
	s.metrics.ObserveDecision(d)
	if !d.Allowed {
		s.logger.Debug("route denied", "path", path, "reason", d.Reason, "redirect", d.Redirect)
	}
	return d, nil
}

func (s *Service) load(ctx context.Context, userID int64) (*user.User, role.Table, error) {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	table, err := s.roles.Table(ctx)
	if err != nil {
		return nil, nil, err
	}
	return u, table, nil
}

func (s *Service) resolve(u *user.User, table role.Table) Resolution {
	res := s.resolver.Resolve(u, table)
	s.metrics.ObserveResolution(res.Source)
	if res.Source == SourceDefault && u.RoleID != nil {
		s.logger.Debug("assigned role missing or inactive, using default permissions", "user_id", u.ID, "role_id", *u.RoleID)
	}
	return res
}
