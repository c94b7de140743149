// Package audit periodically checks how users resolve to permissions and
// reports assignments that silently fall back to the default list.
package audit

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/frahmantamala/chitfund-crm/internal/access"
	"github.com/frahmantamala/chitfund-crm/internal/role"
	"github.com/frahmantamala/chitfund-crm/internal/user"
)

const (
	KindMissingRole   = "missing_role"
	KindInactiveRole  = "inactive_role"
	KindEmptyOverride = "empty_override"
)

type UserLister interface {
	List(ctx context.Context) ([]*user.User, error)
}

type RoleTableLoader interface {
	Table(ctx context.Context) (role.Table, error)
}

// Report is the outcome of one audit run.
type Report struct {
	CheckedAt time.Time `json:"checkedAt"`
	Users     int       `json:"users"`
	// Assignments counts users resolving through each role, by role name.
	Assignments map[string]int `json:"assignments"`
	Overrides   int            `json:"overrides"`
	Defaulted   int            `json:"defaulted"`
	// Anomalies lists affected user ids per kind.
	Anomalies map[string][]int64 `json:"anomalies"`
}

func (r *Report) add(kind string, userID int64) {
	r.Anomalies[kind] = append(r.Anomalies[kind], userID)
}

type Auditor struct {
	users    UserLister
	roles    RoleTableLoader
	resolver *access.Resolver
	metrics  *Metrics
	logger   *slog.Logger
}

func NewAuditor(users UserLister, roles RoleTableLoader, resolver *access.Resolver, metrics *Metrics, logger *slog.Logger) *Auditor {
	return &Auditor{
		users:    users,
		roles:    roles,
		resolver: resolver,
		metrics:  metrics,
		logger:   logger,
	}
}

func (a *Auditor) Run(ctx context.Context) (*Report, error) {
	users, err := a.users.List(ctx)
	if err != nil {
		return nil, err
	}
	table, err := a.roles.Table(ctx)
	if err != nil {
		return nil, err
	}

	report := &Report{
		CheckedAt:   time.Now(),
		Users:       len(users),
		Assignments: make(map[string]int),
		Anomalies:   make(map[string][]int64),
	}
	for _, r := range table {
		report.Assignments[r.Name] = 0
	}

	for _, u := range users {
		res := a.resolver.Resolve(u, table)
		switch res.Source {
		case access.SourceDirect:
			report.Overrides++
			if len(res.Permissions) == 0 {
				report.add(KindEmptyOverride, u.ID)
			}
		case access.SourceRole:
			report.Assignments[res.Role.Name]++
		default:
			report.Defaulted++
			if u.RoleID == nil {
				continue
			}
			if _, ok := table.Lookup(*u.RoleID); ok {
				report.add(KindInactiveRole, u.ID)
			} else {
				report.add(KindMissingRole, u.ID)
			}
		}
	}

	for kind, ids := range report.Anomalies {
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		a.logger.Warn("access audit found users falling back", "kind", kind, "count", len(ids), "user_ids", ids)
	}
	a.metrics.Record(report)
	a.logger.Info("access audit finished",
		"users", report.Users,
		"overrides", report.Overrides,
		"defaulted", report.Defaulted)
	return report, nil
}
