package plans

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/crm-backend/pkg/db/models"
	"github.com/angelmondragon/crm-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/crm-backend/pkg/errors"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open("file:"+uuid.NewString()+"?mode=memory&cache=shared"), &gorm.Config{
		SkipDefaultTransaction: true,
	})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := conn.AutoMigrate(&models.Plan{}); err != nil {
		t.Fatalf("failed to migrate sqlite: %v", err)
	}
	return conn
}

func seedPlans(t *testing.T, repo *Repository) {
	t.Helper()
	small := "price_small"
	big := "price_big"
	rows := []models.Plan{
		{Key: enums.PlanKeyFree, Name: "Free", MaxLeads: 5, MaxClients: 5},
		{Key: enums.PlanKeySmallTeam, Name: "Small Team", MaxLeads: 25, MaxClients: 25, Price: 19, RemotePriceID: &small},
		{Key: enums.PlanKeyBigTeam, Name: "Big Team", Price: 49, RemotePriceID: &big},
	}
	for i := range rows {
		if err := repo.Upsert(context.Background(), &rows[i]); err != nil {
			t.Fatalf("seed plan %s: %v", rows[i].Name, err)
		}
	}
}

type countingRepo struct {
	planRepository
	finds int
}

func (c *countingRepo) FindByName(ctx context.Context, name string) (*models.Plan, error) {
	c.finds++
	return c.planRepository.FindByName(ctx, name)
}

func newCatalog(t *testing.T) (*Catalog, *countingRepo) {
	t.Helper()
	repo := NewRepository(newTestDB(t))
	seedPlans(t, repo)
	counting := &countingRepo{planRepository: repo}
	catalog, err := NewCatalog(CatalogParams{
		Repo: counting,
		PriceIDs: map[enums.PlanKey]string{
			enums.PlanKeySmallTeam: "price_small",
			enums.PlanKeyBigTeam:   " price_big ",
		},
	})
	if err != nil {
		t.Fatalf("new catalog: %v", err)
	}
	return catalog, counting
}

func TestLookupByKeyResolvesExactName(t *testing.T) {
	catalog, _ := newCatalog(t)
	ctx := context.Background()

	cases := map[enums.PlanKey]string{
		enums.PlanKeyFree:      "Free",
		enums.PlanKeySmallTeam: "Small Team",
		enums.PlanKeyBigTeam:   "Big Team",
	}
	for key, name := range cases {
		plan, err := catalog.LookupByKey(ctx, key)
		if err != nil {
			t.Fatalf("lookup %s: %v", key, err)
		}
		if plan.Name != name {
			t.Fatalf("lookup %s returned %q", key, plan.Name)
		}
	}
}

func TestLookupByKeyRejectsUnknownKey(t *testing.T) {
	catalog, _ := newCatalog(t)
	_, err := catalog.LookupByKey(context.Background(), enums.PlanKey("enterprise"))
	if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestLookupByRemoteProductNameIsExact(t *testing.T) {
	catalog, _ := newCatalog(t)
	ctx := context.Background()

	plan, err := catalog.LookupByRemoteProductName(ctx, "Small Team")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if plan.Key != enums.PlanKeySmallTeam {
		t.Fatalf("unexpected plan %s", plan.Key)
	}

	for _, name := range []string{"small team", "Small Team Monthly", ""} {
		if _, err := catalog.LookupByRemoteProductName(ctx, name); !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
			t.Fatalf("expected not found for %q, got %v", name, err)
		}
	}
}

func TestLookupUsesCache(t *testing.T) {
	catalog, repo := newCatalog(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := catalog.LookupByKey(ctx, enums.PlanKeyBigTeam); err != nil {
			t.Fatalf("lookup: %v", err)
		}
	}
	if repo.finds != 1 {
		t.Fatalf("expected a single repository hit, got %d", repo.finds)
	}

	first, _ := catalog.LookupByKey(ctx, enums.PlanKeyBigTeam)
	first.Name = "mutated"
	second, _ := catalog.LookupByKey(ctx, enums.PlanKeyBigTeam)
	if second.Name != "Big Team" {
		t.Fatalf("cached plan must not be shared with callers")
	}
}

func TestPriceIDFor(t *testing.T) {
	catalog, _ := newCatalog(t)

	if id, err := catalog.PriceIDFor(enums.PlanKeyBigTeam); err != nil || id != "price_big" {
		t.Fatalf("unexpected big team price id %q err=%v", id, err)
	}
	if _, err := catalog.PriceIDFor(enums.PlanKeyFree); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("free plan is not purchasable, got %v", err)
	}
}

func TestListOrdersByPrice(t *testing.T) {
	catalog, _ := newCatalog(t)
	rows, err := catalog.List(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(rows) != 3 || rows[0].Name != "Free" || rows[2].Name != "Big Team" {
		t.Fatalf("unexpected plan order %+v", rows)
	}
}
