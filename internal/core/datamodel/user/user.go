package user

import "time"

type User struct {
	ID                int64     `gorm:"primaryKey"`
	Email             string    `gorm:"column:email;uniqueIndex;not null"`
	Name              string    `gorm:"column:name;not null"`
	PasswordHash      string    `gorm:"column:password_hash;not null"`
	RoleID            *int64    `gorm:"column:role_id;index"`
	DirectPermissions string    `gorm:"column:direct_permissions;type:text"`
	HasOverride       bool      `gorm:"column:has_override;default:false"`
	IsActive          bool      `gorm:"column:is_active;not null"`
	CreatedAt         time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (User) TableName() string {
	return "users"
}
