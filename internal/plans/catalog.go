package plans

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
	"gorm.io/gorm"

	"github.com/angelmondragon/crm-backend/pkg/db/models"
	"github.com/angelmondragon/crm-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/crm-backend/pkg/errors"
)

const (
	defaultCacheSize = 16
	defaultCacheTTL  = 10 * time.Minute
)

type planRepository interface {
	FindByName(ctx context.Context, name string) (*models.Plan, error)
	List(ctx context.Context) ([]models.Plan, error)
}

// CatalogParams groups dependencies for the plan catalog.
type CatalogParams struct {
	Repo      planRepository
	PriceIDs  map[enums.PlanKey]string
	CacheSize int
	CacheTTL  time.Duration
}

// Catalog resolves plans by public key or by the billing provider's product
// name. Plans are reference data, so rows are cached by name.
type Catalog struct {
	repo     planRepository
	priceIDs map[enums.PlanKey]string
	cache    *lru.LRU[string, models.Plan]
}

// NewCatalog builds a catalog backed by repo.
func NewCatalog(params CatalogParams) (*Catalog, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("plan repository required")
	}
	size := params.CacheSize
	if size <= 0 {
		size = defaultCacheSize
	}
	ttl := params.CacheTTL
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	priceIDs := make(map[enums.PlanKey]string, len(params.PriceIDs))
	for key, id := range params.PriceIDs {
		priceIDs[key] = strings.TrimSpace(id)
	}
	return &Catalog{
		repo:     params.Repo,
		priceIDs: priceIDs,
		cache:    lru.NewLRU[string, models.Plan](size, nil, ttl),
	}, nil
}

// LookupByKey returns the plan whose name is mapped from key.
func (c *Catalog) LookupByKey(ctx context.Context, key enums.PlanKey) (*models.Plan, error) {
	if !key.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid plan key %q", key)).
			WithDetails(map[string]any{"plan": string(key), "allowed": enums.PlanKeys()})
	}
	return c.lookupByName(ctx, key.PlanName())
}

// LookupByRemoteProductName matches the provider product name against
// Plan.name exactly.
func (c *Catalog) LookupByRemoteProductName(ctx context.Context, name string) (*models.Plan, error) {
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product name is empty")
	}
	return c.lookupByName(ctx, name)
}

// Free returns the default plan every cancelled team falls back to.
func (c *Catalog) Free(ctx context.Context) (*models.Plan, error) {
	return c.LookupByKey(ctx, enums.PlanKeyFree)
}

// PriceIDFor returns the provider price identifier configured for a paid key.
func (c *Catalog) PriceIDFor(key enums.PlanKey) (string, error) {
	if !key.IsPaid() {
		return "", pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("plan %q cannot be purchased", key)).
			WithDetails(map[string]any{"plan": string(key)})
	}
	id := c.priceIDs[key]
	if id == "" {
		return "", pkgerrors.New(pkgerrors.CodeInternal, fmt.Sprintf("price id not configured for %s", key))
	}
	return id, nil
}

// List returns all plans.
func (c *Catalog) List(ctx context.Context) ([]models.Plan, error) {
	rows, err := c.repo.List(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list plans")
	}
	return rows, nil
}

func (c *Catalog) lookupByName(ctx context.Context, name string) (*models.Plan, error) {
	if cached, ok := c.cache.Get(name); ok {
		plan := cached
		return &plan, nil
	}
	plan, err := c.repo.FindByName(ctx, name)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeNotFound, err, fmt.Sprintf("plan %q not found", name))
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup plan")
	}
	c.cache.Add(name, *plan)
	return plan, nil
}
