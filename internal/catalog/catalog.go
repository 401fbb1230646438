// Package catalog provides the bookable-services catalog shared by the
// API read path and the worker's cache warm job.
package catalog

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
)

// CacheKey is the cache key under which the catalog is stored.
const CacheKey = "catalog:services"

// CacheTTL is how long the cached catalog stays fresh.
const CacheTTL = 5 * time.Minute

// Querier is the read primitive the catalog needs. *pgxpool.Pool
// satisfies it.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// ServiceOffering is one bookable service in the public catalog.
type ServiceOffering struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	DurationMin int    `json:"durationMin"`
	PriceCents  int64  `json:"priceCents"`
}

// Fetch loads the catalog from the database.
func Fetch(ctx context.Context, db Querier) ([]ServiceOffering, error) {
	query := `
		SELECT id, name, duration_min, price_cents
		FROM services
		ORDER BY name
	`
	rows, err := db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	offerings := []ServiceOffering{}
	for rows.Next() {
		var offering ServiceOffering
		if err := rows.Scan(&offering.ID, &offering.Name, &offering.DurationMin, &offering.PriceCents); err != nil {
			return nil, err
		}
		offerings = append(offerings, offering)
	}
	return offerings, rows.Err()
}
