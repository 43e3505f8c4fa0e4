package store

import (
	"time"

	"github.com/pluvia-labs/rainfall-oracle/internal/domain"
)

func testBinding(locationID, providerKey string) domain.LocationBinding {
	return domain.LocationBinding{
		LocationID:  locationID,
		ProviderKey: providerKey,
		AnchorLat:   30266200,
		AnchorLon:   -97743100,
		BoundAt:     time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func testState(last, oldest, sum int64) domain.WindowState {
	return domain.WindowState{
		LastBucketIndex:   last,
		OldestBucketIndex: oldest,
		RollingSumMM:      sum,
	}
}
