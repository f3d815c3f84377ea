// Supplemented operations from SPEC_FULL §C: submitRating, setDriverOnline,
// updateDriverLocation. These are not in spec.md's distilled operation list
// but are named directly in §4.1 there ("submitRating(tripId, rating,
// comment?)") or required by §4.4/§4.2 to have some ingress path
// (driver online toggle, location updates) that the distillation left
// implicit.
package core

import (
	"context"

	"ark/internal/apperr"
	"ark/internal/authz"
	"ark/internal/model"
	"ark/internal/store"
	"ark/internal/types"
)

// SubmitRating implements submitRating(tripId, rating, comment?)
// (SPEC_FULL §C.1): passenger-only, only after the trip is completed,
// rating in [1,5], write-once like the payment record.
func (c *Core) SubmitRating(ctx context.Context, callerID, tripID types.ID, score int, comment string) error {
	if score < 1 || score > 5 {
		return apperr.New(apperr.InvalidArgument, "rating must be between 1 and 5")
	}

	t, err := c.trip.Get(ctx, tripID)
	if err != nil {
		return err
	}
	if err := authz.RequireSelf(callerID, t.PassengerID); err != nil {
		return err
	}
	if t.Status != model.TripCompleted {
		return apperr.New(apperr.Forbidden, "trip is not completed").
			WithDetail("current_state", string(t.Status))
	}

	ref := c.store.Collection(model.CollectionRatings).Doc(string(tripID))
	existing, err := ref.Get(ctx)
	if err != nil {
		return apperr.Wrap(err)
	}
	if existing.Exists() {
		return apperr.New(apperr.Forbidden, "rating already submitted for this trip")
	}

	flagged := false
	if comment != "" && c.moderation != nil {
		if f, ok := c.moderation.Classify(ctx, comment); ok {
			flagged = f
		}
	}

	return ref.Set(ctx, map[string]any{
		"tripId":      tripID,
		"passengerId": t.PassengerID,
		"driverId":    t.DriverID,
		"score":       score,
		"comment":     comment,
		"flagged":     flagged,
		"createdAt":   store.ServerTimestamp,
	})
}

// SetDriverOnline implements setDriverOnline(isOnline) (SPEC_FULL §C.3):
// driver-only. It sets isOnline, and sets isAvailable to match only when
// the driver has no currentTripId (or the driver document is being created),
// preserving spec §4.4's rule that the online toggle cannot flip isAvailable
// while currentTripId is non-null.
func (c *Core) SetDriverOnline(ctx context.Context, driverID types.ID, isOnline bool) error {
	ref := c.store.Collection(model.CollectionDrivers).Doc(string(driverID))
	snap, err := ref.Get(ctx)
	if err != nil {
		return apperr.Wrap(err)
	}

	if !snap.Exists() {
		if err := ref.Set(ctx, map[string]any{
			"id":          driverID,
			"isOnline":    isOnline,
			"isAvailable": isOnline,
			"updatedAt":   store.ServerTimestamp,
		}); err != nil {
			return apperr.Wrap(err)
		}
		return nil
	}

	var d model.Driver
	if err := snap.DataTo(&d); err != nil {
		return apperr.Wrap(err)
	}

	fields := map[string]any{"isOnline": isOnline, "updatedAt": store.ServerTimestamp}
	if !isOnline {
		// going offline never leaves a driver "available" with no trip to
		// excuse it, and always drops out of the nearest-driver index.
		if d.CurrentTripID == nil {
			fields["isAvailable"] = false
		}
		if c.geo != nil {
			if err := c.geo.Remove(ctx, driverID); err != nil {
				return apperr.Wrap(err)
			}
		}
	} else if d.CurrentTripID == nil {
		fields["isAvailable"] = true
		if c.geo != nil && d.LastLocation != nil {
			if err := c.geo.Upsert(ctx, driverID, *d.LastLocation); err != nil {
				return apperr.Wrap(err)
			}
		}
	}

	if err := ref.Update(ctx, fields); err != nil {
		return apperr.Wrap(err)
	}
	return nil
}

// UpdateDriverLocation implements updateDriverLocation(lat, lng)
// (SPEC_FULL §C.4): legal regardless of trip state — a driver mid-trip
// still pushes location for passenger-facing ETA, it just doesn't affect
// matching eligibility while currentTripId is set.
func (c *Core) UpdateDriverLocation(ctx context.Context, driverID types.ID, at types.Point) error {
	ref := c.store.Collection(model.CollectionDrivers).Doc(string(driverID))
	snap, err := ref.Get(ctx)
	if err != nil {
		return apperr.Wrap(err)
	}
	if !snap.Exists() {
		return apperr.New(apperr.NotFound, "driver not found")
	}
	var d model.Driver
	if err := snap.DataTo(&d); err != nil {
		return apperr.Wrap(err)
	}

	if err := ref.Update(ctx, map[string]any{
		"lastLocation": at,
		"updatedAt":    store.ServerTimestamp,
	}); err != nil {
		return apperr.Wrap(err)
	}

	if c.geo != nil && d.IsOnline && d.IsAvailable && d.CurrentTripID == nil {
		if err := c.geo.Upsert(ctx, driverID, at); err != nil {
			return apperr.Wrap(err)
		}
	}
	return nil
}
