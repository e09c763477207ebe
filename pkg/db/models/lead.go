package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/crm-backend/pkg/enums"
)

type Lead struct {
	ID             uuid.UUID          `gorm:"column:id;type:uuid;primaryKey"`
	TeamID         uuid.UUID          `gorm:"column:team_id;type:uuid;not null;index"`
	Company        string             `gorm:"column:company;type:text;not null"`
	ContactPerson  string             `gorm:"column:contact_person;type:text;not null"`
	Email          string             `gorm:"column:email;type:text;not null"`
	Phone          *string            `gorm:"column:phone;type:text"`
	Website        *string            `gorm:"column:website;type:text"`
	Confidence     *int               `gorm:"column:confidence"`
	EstimatedValue *int               `gorm:"column:estimated_value"`
	Status         enums.LeadStatus   `gorm:"column:status;type:text;not null;default:'new'"`
	Priority       enums.LeadPriority `gorm:"column:priority;type:text;not null;default:'medium'"`
	AssignedToID   *uuid.UUID         `gorm:"column:assigned_to;type:uuid"`
	CreatedByID    uuid.UUID          `gorm:"column:created_by;type:uuid;not null"`
	CreatedAt      time.Time          `gorm:"column:created_at;autoCreateTime"`
	ModifiedAt     time.Time          `gorm:"column:modified_at;autoUpdateTime"`
}

type Client struct {
	ID            uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	TeamID        uuid.UUID `gorm:"column:team_id;type:uuid;not null;index"`
	Name          string    `gorm:"column:name;type:text;not null"`
	ContactPerson string    `gorm:"column:contact_person;type:text;not null"`
	Email         string    `gorm:"column:email;type:text;not null"`
	Phone         *string   `gorm:"column:phone;type:text"`
	Website       *string   `gorm:"column:website;type:text"`
	CreatedByID   uuid.UUID `gorm:"column:created_by;type:uuid;not null"`
	CreatedAt     time.Time `gorm:"column:created_at;autoCreateTime"`
	ModifiedAt    time.Time `gorm:"column:modified_at;autoUpdateTime"`
}
