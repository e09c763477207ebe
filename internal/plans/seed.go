package plans

import (
	"context"
	"fmt"

	"github.com/angelmondragon/crm-backend/pkg/db/models"
	"github.com/angelmondragon/crm-backend/pkg/enums"
)

type planUpserter interface {
	Upsert(ctx context.Context, plan *models.Plan) error
}

// Defaults returns the three catalog tiers. Paid tiers carry the price id
// configured for their key when one is present.
func Defaults(priceIDs map[enums.PlanKey]string) []models.Plan {
	rows := []models.Plan{
		{Key: enums.PlanKeyFree, MaxLeads: 5, MaxClients: 5, Price: 0},
		{Key: enums.PlanKeySmallTeam, MaxLeads: 25, MaxClients: 25, Price: 19},
		{Key: enums.PlanKeyBigTeam, Price: 49},
	}
	for i := range rows {
		rows[i].Name = rows[i].Key.PlanName()
		if id := priceIDs[rows[i].Key]; id != "" {
			priceID := id
			rows[i].RemotePriceID = &priceID
		}
	}
	return rows
}

// Seed upserts the default tiers.
func Seed(ctx context.Context, repo planUpserter, priceIDs map[enums.PlanKey]string) ([]models.Plan, error) {
	if repo == nil {
		return nil, fmt.Errorf("plan repository required")
	}
	rows := Defaults(priceIDs)
	for i := range rows {
		if err := repo.Upsert(ctx, &rows[i]); err != nil {
			return nil, fmt.Errorf("seed plan %s: %w", rows[i].Key, err)
		}
	}
	return rows, nil
}
