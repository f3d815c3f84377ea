// Package geoindex maintains a Redis GEO index of available drivers so
// matching (C7) can ask "who is nearest" in roughly constant time instead of
// scanning every drivers/<id> document. It is a derived index only — the
// drivers collection in store.Store remains the single source of truth for
// isAvailable/isOnline (spec invariant 1); this index is fed from driver
// location pushes and pruned when a driver goes offline.
//
// Grounded on the teacher's internal/modules/matching/store.go, which keeps
// the same GeoAdd/GeoSearch/ZRem shape against github.com/redis/go-redis/v9;
// this package drops the broadcast/dispatch bookkeeping the teacher's store
// also carries, since SPEC_FULL's matching model is claim-first, not
// notify-then-wait-for-offers.
package geoindex

import (
	"context"

	"github.com/redis/go-redis/v9"

	"ark/internal/types"
)

const driverGeoKey = "dispatch:drivers:available"

// hazardGeoKey is a Redis GEO set of ops-maintained road-hazard zone
// centers (construction, flooding, closures), separate from the driver
// index but queried the same way. Populating this set is outside this
// core (spec §1 Out-of-scope); HazardChecker only reads it.
const hazardGeoKey = "dispatch:hazards"

// hazardRadiusKm is the overlap tolerance used by HazardChecker.Overlaps: a
// sampled route point counts as hazardous if it falls within this radius of
// any known hazard center.
const hazardRadiusKm = 0.5

// HazardChecker implements geo.HazardChecker against the same Redis GEO
// index shape as the driver index above, so the road-hazard overlap
// annotation (SPEC_FULL §C.2) reuses the one geo backend this module
// already depends on instead of adding a second store.
type HazardChecker struct {
	redis *redis.Client
}

// NewHazardChecker wraps an already-configured Redis client.
func NewHazardChecker(client *redis.Client) *HazardChecker {
	return &HazardChecker{redis: client}
}

// Overlaps reports whether (lat, lng) falls within hazardRadiusKm of any
// member of hazardGeoKey.
func (h *HazardChecker) Overlaps(ctx context.Context, lat, lng float64) (bool, error) {
	results, err := h.redis.GeoSearch(ctx, hazardGeoKey, &redis.GeoSearchQuery{
		Longitude:  lng,
		Latitude:   lat,
		Radius:     hazardRadiusKm,
		RadiusUnit: "km",
	}).Result()
	if err != nil {
		return false, err
	}
	return len(results) > 0, nil
}

// Index is the Redis GEO-backed nearest-driver index.
type Index struct {
	redis *redis.Client
}

// New wraps an already-configured Redis client.
func New(client *redis.Client) *Index {
	return &Index{redis: client}
}

// Upsert records driverID's current position, making it eligible for
// nearest-driver search. Called on updateDriverLocation (SPEC_FULL §C.4) and
// on setDriverOnline(true) when the driver has no active trip.
func (idx *Index) Upsert(ctx context.Context, driverID types.ID, at types.Point) error {
	return idx.redis.GeoAdd(ctx, driverGeoKey, &redis.GeoLocation{
		Name:      string(driverID),
		Longitude: at.Lng,
		Latitude:  at.Lat,
	}).Err()
}

// Remove drops driverID from the index — called when a driver goes offline
// (setDriverOnline(false)). A driver claimed into a trip stays in the index;
// the claim transaction's re-check of the driver document is what keeps such
// a stale entry from being matched.
func (idx *Index) Remove(ctx context.Context, driverID types.ID) error {
	return idx.redis.ZRem(ctx, driverGeoKey, string(driverID)).Err()
}

// Nearest returns driver ids within radiusKm of p, nearest first. The
// matching engine still re-checks each candidate's live isAvailable/
// isOnline/currentTripId inside the claim transaction (spec §4.4: "index
// membership is a hint, the document is the truth").
func (idx *Index) Nearest(ctx context.Context, p types.Point, radiusKm float64) ([]types.ID, error) {
	results, err := idx.redis.GeoSearch(ctx, driverGeoKey, &redis.GeoSearchQuery{
		Longitude:  p.Lng,
		Latitude:   p.Lat,
		Radius:     radiusKm,
		RadiusUnit: "km",
		Sort:       "ASC",
	}).Result()
	if err != nil {
		return nil, err
	}
	ids := make([]types.ID, len(results))
	for i, r := range results {
		ids[i] = types.ID(r)
	}
	return ids, nil
}
