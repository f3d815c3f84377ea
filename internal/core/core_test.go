package core

import (
	"context"
	"testing"
	"time"

	"ark/internal/apperr"
	"ark/internal/authz"
	"ark/internal/clock"
	"ark/internal/manager"
	"ark/internal/matching"
	"ark/internal/model"
	"ark/internal/moderation"
	"ark/internal/payment"
	"ark/internal/store"
	"ark/internal/store/memstore"
	"ark/internal/sysconfig"
	"ark/internal/trip"
	"ark/internal/types"
)

type fakeIndex struct{ ids []types.ID }

func (f fakeIndex) Nearest(ctx context.Context, p types.Point, radiusKm float64) ([]types.ID, error) {
	return f.ids, nil
}

type fakeGeo struct{}

func (fakeGeo) Upsert(ctx context.Context, driverID types.ID, at types.Point) error { return nil }
func (fakeGeo) Remove(ctx context.Context, driverID types.ID) error                 { return nil }

func newTestCore(t *testing.T, candidateIDs []types.ID) (*Core, store.Store, *clock.FakeClock) {
	t.Helper()
	fc := clock.NewFakeClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	st := memstore.New(fc)
	cfg := sysconfig.New(st, fc)
	az := authz.New(st)
	m := matching.New(st, fakeIndex{ids: candidateIDs}, cfg, fc)
	tr := trip.New(st, fc)
	pay := payment.New(st)
	mgr := manager.New(st, cfg, tr)
	mod := moderation.NoopClassifier{}
	return New(st, cfg, az, m, tr, pay, mgr, mod, fakeGeo{}), st, fc
}

func TestRequestTripRejectsWhenKillSwitchOff(t *testing.T) {
	c, st, _ := newTestCore(t, nil)
	ctx := context.Background()

	err := st.Collection(model.CollectionSystem).Doc(model.SystemConfigDocID).Set(ctx, map[string]any{
		"tripsEnabled": false,
	})
	if err != nil {
		t.Fatalf("seeding config: %v", err)
	}

	_, err = c.RequestTrip(ctx, "p1", RequestTripInput{Pickup: types.Point{Lat: 1, Lng: 1}, Dropoff: types.Point{Lat: 2, Lng: 2}, EstimatedDistanceKm: 5})
	if apperr.KindOf(err) != apperr.ServiceDisabled {
		t.Fatalf("err kind = %v, want service_disabled", apperr.KindOf(err))
	}
}

func TestRequestTripRejectsSecondActiveTrip(t *testing.T) {
	c, st, _ := newTestCore(t, nil)
	ctx := context.Background()

	err := st.Collection(model.CollectionTrips).Doc("existing").Set(ctx, map[string]any{
		"id": "existing", "passengerId": "p1", "driverId": "d0", "status": model.TripPending,
	})
	if err != nil {
		t.Fatalf("seeding trip: %v", err)
	}

	_, err = c.RequestTrip(ctx, "p1", RequestTripInput{Pickup: types.Point{Lat: 1, Lng: 1}, Dropoff: types.Point{Lat: 2, Lng: 2}, EstimatedDistanceKm: 5})
	if apperr.KindOf(err) != apperr.InvalidArgument {
		t.Fatalf("err kind = %v, want invalid_argument", apperr.KindOf(err))
	}
}

func TestManagerForceCancelRequiresManagerRole(t *testing.T) {
	c, st, _ := newTestCore(t, nil)
	ctx := context.Background()

	err := st.Collection(model.CollectionTrips).Doc("t1").Set(ctx, map[string]any{
		"id": "t1", "passengerId": "p1", "driverId": "d1", "status": model.TripPending,
	})
	if err != nil {
		t.Fatalf("seeding trip: %v", err)
	}
	err = st.Collection(model.CollectionDrivers).Doc("d1").Set(ctx, map[string]any{
		"id": "d1", "isOnline": true, "isAvailable": false, "currentTripId": types.ID("t1"),
	})
	if err != nil {
		t.Fatalf("seeding driver: %v", err)
	}

	err = c.ManagerForceCancel(ctx, "p1", "t1", "")
	if apperr.KindOf(err) != apperr.Forbidden {
		t.Fatalf("err kind = %v, want forbidden for non-manager caller", apperr.KindOf(err))
	}

	err = st.Collection(model.CollectionUsers).Doc("m1").Set(ctx, map[string]any{"id": "m1", "role": string(model.RoleManager)})
	if err != nil {
		t.Fatalf("seeding manager user: %v", err)
	}
	if err := c.ManagerForceCancel(ctx, "m1", "t1", "safety"); err != nil {
		t.Fatalf("ManagerForceCancel() error = %v", err)
	}
}

func TestSubmitRatingRequiresCompletedTripAndOwnership(t *testing.T) {
	c, st, _ := newTestCore(t, nil)
	ctx := context.Background()

	err := st.Collection(model.CollectionTrips).Doc("t1").Set(ctx, map[string]any{
		"id": "t1", "passengerId": "p1", "driverId": "d1", "status": model.TripInProgress,
	})
	if err != nil {
		t.Fatalf("seeding trip: %v", err)
	}

	if err := c.SubmitRating(ctx, "p1", "t1", 5, "great ride"); apperr.KindOf(err) != apperr.Forbidden {
		t.Fatalf("rating on in-progress trip kind = %v, want forbidden", apperr.KindOf(err))
	}

	err = st.Collection(model.CollectionTrips).Doc("t1").Update(ctx, map[string]any{"status": model.TripCompleted})
	if err != nil {
		t.Fatalf("completing trip: %v", err)
	}

	if err := c.SubmitRating(ctx, "p2", "t1", 5, ""); apperr.KindOf(err) != apperr.Forbidden {
		t.Fatalf("rating from non-passenger kind = %v, want forbidden", apperr.KindOf(err))
	}

	if err := c.SubmitRating(ctx, "p1", "t1", 0, ""); apperr.KindOf(err) != apperr.InvalidArgument {
		t.Fatalf("rating score 0 kind = %v, want invalid_argument", apperr.KindOf(err))
	}

	if err := c.SubmitRating(ctx, "p1", "t1", 5, "great ride"); err != nil {
		t.Fatalf("SubmitRating() error = %v", err)
	}

	// Second submission must be rejected (write-once, like payment).
	if err := c.SubmitRating(ctx, "p1", "t1", 4, "actually fine"); apperr.KindOf(err) != apperr.Forbidden {
		t.Fatalf("second SubmitRating kind = %v, want forbidden", apperr.KindOf(err))
	}
}

func TestSetDriverOnlineCannotFlipAvailableWithActiveTrip(t *testing.T) {
	c, st, _ := newTestCore(t, nil)
	ctx := context.Background()

	tripID := types.ID("t1")
	err := st.Collection(model.CollectionDrivers).Doc("d1").Set(ctx, map[string]any{
		"id": "d1", "isOnline": false, "isAvailable": false, "currentTripId": tripID,
	})
	if err != nil {
		t.Fatalf("seeding driver: %v", err)
	}

	if err := c.SetDriverOnline(ctx, "d1", true); err != nil {
		t.Fatalf("SetDriverOnline() error = %v", err)
	}

	snap, err := st.Collection(model.CollectionDrivers).Doc("d1").Get(ctx)
	if err != nil {
		t.Fatalf("loading driver: %v", err)
	}
	var d model.Driver
	if err := snap.DataTo(&d); err != nil {
		t.Fatalf("decoding driver: %v", err)
	}
	if !d.IsOnline {
		t.Error("isOnline should now be true")
	}
	if d.IsAvailable {
		t.Error("isAvailable must stay false while currentTripId is set")
	}
}

func TestUpdateDriverLocationWorksRegardlessOfTripState(t *testing.T) {
	c, st, _ := newTestCore(t, nil)
	ctx := context.Background()

	err := st.Collection(model.CollectionDrivers).Doc("d1").Set(ctx, map[string]any{
		"id": "d1", "isOnline": true, "isAvailable": false, "currentTripId": types.ID("t1"),
	})
	if err != nil {
		t.Fatalf("seeding driver: %v", err)
	}

	if err := c.UpdateDriverLocation(ctx, "d1", types.Point{Lat: 10, Lng: 20}); err != nil {
		t.Fatalf("UpdateDriverLocation() error = %v", err)
	}

	snap, err := st.Collection(model.CollectionDrivers).Doc("d1").Get(ctx)
	if err != nil {
		t.Fatalf("loading driver: %v", err)
	}
	var d model.Driver
	if err := snap.DataTo(&d); err != nil {
		t.Fatalf("decoding driver: %v", err)
	}
	if d.LastLocation == nil || d.LastLocation.Lat != 10 {
		t.Errorf("lastLocation = %+v, want {10 20}", d.LastLocation)
	}
}
