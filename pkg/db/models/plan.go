package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/crm-backend/pkg/enums"
)

// Plan is immutable reference data describing a subscription tier.
// MaxLeads and MaxClients of zero or less mean unlimited.
type Plan struct {
	ID            uuid.UUID     `gorm:"column:id;type:uuid;primaryKey"`
	Key           enums.PlanKey `gorm:"column:key;type:text;not null;uniqueIndex"`
	Name          string        `gorm:"column:name;type:text;not null;uniqueIndex"`
	MaxLeads      int           `gorm:"column:max_leads;not null"`
	MaxClients    int           `gorm:"column:max_clients;not null"`
	Price         int           `gorm:"column:price;not null"`
	RemotePriceID *string       `gorm:"column:remote_price_id;type:text"`
	CreatedAt     time.Time     `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time     `gorm:"column:updated_at;autoUpdateTime"`
}
