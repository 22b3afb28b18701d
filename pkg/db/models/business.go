package models

import (
	"time"

	"github.com/google/uuid"
)

// Business is a tenant. Full business CRUD lives outside this service; the
// core only reads ownership and admin membership.
type Business struct {
	ID        uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OwnerID   uuid.UUID       `gorm:"column:owner_id;type:uuid;not null;index"`
	Name      string          `gorm:"column:name;not null"`
	Admins    []BusinessAdmin `gorm:"foreignKey:BusinessID;constraint:OnDelete:CASCADE"`
	CreatedAt time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

// BusinessAdmin grants a user administrative rights over a business.
type BusinessAdmin struct {
	ID         uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	BusinessID uuid.UUID `gorm:"column:business_id;type:uuid;not null;index"`
	UserID     uuid.UUID `gorm:"column:user_id;type:uuid;not null;index"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime"`
}
