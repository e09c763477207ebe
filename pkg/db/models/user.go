package models

import (
	"time"

	"github.com/google/uuid"
)

// User is a CRM member. Username holds the login email.
type User struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	Username  string    `gorm:"column:username;type:text;not null;uniqueIndex"`
	Email     string    `gorm:"column:email;type:text;not null"`
	FirstName string    `gorm:"column:first_name;type:text;not null;default:''"`
	LastName  string    `gorm:"column:last_name;type:text;not null;default:''"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
