package auth

import (
	"context"
	"errors"

	"github.com/frahmantamala/chitfund-crm/internal/auth"
	userDatamodel "github.com/frahmantamala/chitfund-crm/internal/core/datamodel/user"
	"gorm.io/gorm"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{
		db: db,
	}
}

func (r *Repository) GetCredentials(ctx context.Context, email string) (*auth.Credentials, error) {
	return r.find(ctx, "email = ?", email)
}

func (r *Repository) GetCredentialsByID(ctx context.Context, userID int64) (*auth.Credentials, error) {
	return r.find(ctx, "id = ?", userID)
}

func (r *Repository) find(ctx context.Context, query string, arg interface{}) (*auth.Credentials, error) {
	var row userDatamodel.User
	err := r.db.WithContext(ctx).
		Select("id", "email", "password_hash", "is_active").
		Where(query, arg).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &auth.Credentials{
		UserID:       row.ID,
		Email:        row.Email,
		PasswordHash: row.PasswordHash,
		IsActive:     row.IsActive,
	}, nil
}
