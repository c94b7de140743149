package postgres

import (
	"context"
	"fmt"

	"github.com/frahmantamala/chitfund-crm/internal/role"
	"github.com/jmoiron/sqlx"
)

// UsageRepository runs the aggregate queries over users with sqlx.
type UsageRepository struct {
	db *sqlx.DB
}

func NewUsageRepository(db *sqlx.DB) role.UsageAPI {
	return &UsageRepository{db: db}
}

type roleCount struct {
	RoleID int64 `db:"role_id"`
	Users  int64 `db:"users"`
}

func (u *UsageRepository) CountByRole(ctx context.Context) (map[int64]int64, error) {
	var rows []roleCount
	query := `
SELECT role_id, COUNT(*) AS users
FROM users
WHERE role_id IS NOT NULL
GROUP BY role_id
`
	if err := u.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("count users by role: %w", err)
	}

	counts := make(map[int64]int64, len(rows))
	for _, r := range rows {
		counts[r.RoleID] = r.Users
	}
	return counts, nil
}

func (u *UsageRepository) UserIDs(ctx context.Context, roleID int64) ([]int64, error) {
	ids := []int64{}
	query := u.db.Rebind(`
SELECT id
FROM users
WHERE role_id = ? AND has_override = ?
ORDER BY id
`)
	if err := u.db.SelectContext(ctx, &ids, query, roleID, false); err != nil {
		return nil, fmt.Errorf("list users of role %d: %w", roleID, err)
	}
	return ids, nil
}
