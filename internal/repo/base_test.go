package repo

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type scopedRow struct {
	ID     int
	TeamID string
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open("file:"+uuid.NewString()+"?mode=memory&cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := conn.AutoMigrate(&scopedRow{}); err != nil {
		t.Fatalf("failed to migrate sqlite: %v", err)
	}
	return conn
}

func TestBaseDB_BindsContext(t *testing.T) {
	db := newTestDB(t)
	base := NewBase(db)

	ctx := context.WithValue(context.Background(), struct{}{}, "value")
	withCtx := base.DB(ctx)
	if withCtx.Statement == nil || withCtx.Statement.Context != ctx {
		t.Fatalf("expected context to flow through")
	}

	if base.DB(nil) != db {
		t.Fatalf("expected nil context to return raw connection")
	}
}

func TestBaseWithTx(t *testing.T) {
	db := newTestDB(t)
	base := NewBase(db)

	if base.WithTx(nil).db != db {
		t.Fatalf("nil tx should keep the original connection")
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		if base.WithTx(tx).db != tx {
			t.Fatalf("expected tx-bound base")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("transaction: %v", err)
	}
}

func TestTeamScope(t *testing.T) {
	db := newTestDB(t)
	rows := []scopedRow{{TeamID: "a"}, {TeamID: "a"}, {TeamID: "b"}}
	if err := db.Create(&rows).Error; err != nil {
		t.Fatalf("seed: %v", err)
	}

	var count int64
	if err := NewBase(db).DB(context.Background()).Model(&scopedRow{}).Scopes(TeamScope("a")).Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 rows for team a, got %d", count)
	}
}
