// Package manager implements the manager console operations (spec §4.9,
// component C12): trip kill switch, feature-flag toggles, and force-cancel.
// Grounded on the teacher's internal/config env-var loader for the "read,
// mutate one field, write back" shape, adapted here from process
// environment variables to the system/config document — the teacher reads
// config once at boot, this reads/writes it per call against the live
// store and always invalidates sysconfig.Reader's cache afterward (spec
// §4.7: "Manager toggles write the document and invalidate the cache in
// the same process").
package manager

import (
	"context"

	"ark/internal/apperr"
	"ark/internal/model"
	"ark/internal/store"
	"ark/internal/sysconfig"
	"ark/internal/trip"
	"ark/internal/types"
)

// Controls implements the manager-only operations.
type Controls struct {
	store store.Store
	cfg   *sysconfig.Reader
	trip  *trip.Service
}

func New(st store.Store, cfg *sysconfig.Reader, tripSvc *trip.Service) *Controls {
	return &Controls{store: st, cfg: cfg, trip: tripSvc}
}

// ToggleTrips implements managerToggleTrips(enabled).
func (c *Controls) ToggleTrips(ctx context.Context, enabled bool, actorID types.ID) error {
	return c.patchConfig(ctx, actorID, map[string]any{"tripsEnabled": enabled})
}

// knownFlags are the feature flags managerToggleFeatureFlag may set —
// everything in SystemConfig except tripsEnabled, which has its own typed
// operation above.
var knownFlags = map[string]bool{
	"roadblocksEnabled": true,
	"paymentsEnabled":   true,
}

// ToggleFeatureFlag implements managerToggleFeatureFlag(flag, enabled).
func (c *Controls) ToggleFeatureFlag(ctx context.Context, flag string, enabled bool, actorID types.ID) error {
	if !knownFlags[flag] {
		return apperr.Newf(apperr.InvalidArgument, "unknown feature flag %q", flag)
	}
	return c.patchConfig(ctx, actorID, map[string]any{flag: enabled})
}

func (c *Controls) patchConfig(ctx context.Context, actorID types.ID, fields map[string]any) error {
	ref := c.store.Collection(model.CollectionSystem).Doc(model.SystemConfigDocID)
	snap, err := ref.Get(ctx)
	if err != nil {
		return apperr.Wrap(err)
	}
	fields["updatedAt"] = store.ServerTimestamp
	fields["updatedBy"] = string(actorID)

	if !snap.Exists() {
		defaults := model.DefaultSystemConfig()
		merged := map[string]any{
			"tripsEnabled":               defaults.TripsEnabled,
			"roadblocksEnabled":          defaults.RoadblocksEnabled,
			"paymentsEnabled":            defaults.PaymentsEnabled,
			"driverResponseTimeoutSec":   defaults.DriverResponseTimeoutSec,
			"searchTimeoutSec":           defaults.SearchTimeoutSec,
			"driverArrivalTimeoutSec":    defaults.DriverArrivalTimeoutSec,
			"maxActiveTripsPerDriver":    defaults.MaxActiveTripsPerDriver,
			"maxActiveTripsPerPassenger": defaults.MaxActiveTripsPerPassenger,
			"maxSearchRadiusKm":          defaults.MaxSearchRadiusKm,
			"minFareIls":                 defaults.MinFareIls,
			"ratePerKm":                  defaults.RatePerKm,
		}
		for k, v := range fields {
			merged[k] = v
		}
		if err := ref.Set(ctx, merged); err != nil {
			return apperr.Wrap(err)
		}
	} else if err := ref.Update(ctx, fields); err != nil {
		return apperr.Wrap(err)
	}

	c.cfg.Invalidate()
	return nil
}

// ForceCancel implements managerForceCancel(tripId, reason?). Role
// elevation (manager/admin) must already be checked by the caller via
// internal/authz.RequireManager before this is invoked.
func (c *Controls) ForceCancel(ctx context.Context, tripID types.ID, reason string) error {
	return c.trip.ManagerForceCancel(ctx, tripID, reason)
}

// GetSystemConfig implements getSystemConfig().
func (c *Controls) GetSystemConfig(ctx context.Context) (model.SystemConfig, error) {
	return c.cfg.Get(ctx)
}
