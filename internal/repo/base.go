package repo

import (
	"context"

	"gorm.io/gorm"
)

// Base carries the connection every team-scoped repository shares.
type Base struct {
	db *gorm.DB
}

// NewBase constructs a Base repository backed by the provided GORM connection.
func NewBase(db *gorm.DB) Base {
	return Base{db: db}
}

// DB returns the GORM connection bound to the supplied context (if any).
func (b Base) DB(ctx context.Context) *gorm.DB {
	if ctx == nil {
		return b.db
	}
	return b.db.WithContext(ctx)
}

// WithTx returns a copy of the base that issues queries on tx.
func (b Base) WithTx(tx *gorm.DB) Base {
	if tx == nil {
		return b
	}
	return Base{db: tx}
}

// TeamScope restricts a query to rows owned by teamID.
func TeamScope(teamID any) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("team_id = ?", teamID)
	}
}
