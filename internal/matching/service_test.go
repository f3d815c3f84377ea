package matching

import (
	"context"
	"testing"
	"time"

	"ark/internal/clock"
	"ark/internal/geo"
	"ark/internal/model"
	"ark/internal/store"
	"ark/internal/store/memstore"
	"ark/internal/sysconfig"
	"ark/internal/types"
)

// fakeIndex returns a fixed, pre-sorted candidate list — the matching
// engine must still re-verify each against the live driver document, so
// these tests exercise that re-check rather than trusting the index.
type fakeIndex struct {
	ids []types.ID
}

func (f fakeIndex) Nearest(ctx context.Context, p types.Point, radiusKm float64) ([]types.ID, error) {
	return f.ids, nil
}

func seedOnlineDriver(t *testing.T, st store.Store, id types.ID, loc types.Point) {
	t.Helper()
	err := st.Collection(model.CollectionDrivers).Doc(string(id)).Set(context.Background(), map[string]any{
		"id":           id,
		"isOnline":     true,
		"isAvailable":  true,
		"lastLocation": loc,
	})
	if err != nil {
		t.Fatalf("seedOnlineDriver: %v", err)
	}
}

func newTestService(t *testing.T, idx Index) (*Service, store.Store) {
	t.Helper()
	c := clock.NewFakeClock(time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC))
	st := memstore.New(c)
	cfgReader := sysconfig.New(st, c)
	return New(st, idx, cfgReader, c), st
}

func TestRequestTripHappyPath(t *testing.T) {
	idx := fakeIndex{ids: []types.ID{"d1"}}
	s, st := newTestService(t, idx)
	seedOnlineDriver(t, st, "d1", types.Point{Lat: 32.2200, Lng: 35.2540})

	res, err := s.RequestTrip(context.Background(), "p1", types.Point{Lat: 32.2211, Lng: 35.2544}, types.Point{Lat: 31.9038, Lng: 35.2034}, 37.6, 40)
	if err != nil {
		t.Fatalf("RequestTrip() error = %v", err)
	}
	if res.Status != "matched" || res.DriverID != "d1" {
		t.Fatalf("res = %+v, want matched/d1", res)
	}

	tSnap, err := st.Collection(model.CollectionTrips).Doc(string(res.TripID)).Get(context.Background())
	if err != nil || !tSnap.Exists() {
		t.Fatalf("trip not created: err=%v exists=%v", err, tSnap != nil && tSnap.Exists())
	}
	var trip model.Trip
	if err := tSnap.DataTo(&trip); err != nil {
		t.Fatalf("decoding trip: %v", err)
	}
	if trip.FareAmount != 19 {
		t.Errorf("fareAmount = %v, want 19", trip.FareAmount)
	}

	dSnap, _ := st.Collection(model.CollectionDrivers).Doc("d1").Get(context.Background())
	var d model.Driver
	_ = dSnap.DataTo(&d)
	if d.IsAvailable {
		t.Error("driver should no longer be available after claim")
	}
}

func TestRequestTripNoCandidatesReturnsSearching(t *testing.T) {
	idx := fakeIndex{}
	s, _ := newTestService(t, idx)

	res, err := s.RequestTrip(context.Background(), "p1", types.Point{Lat: 32.22, Lng: 35.25}, types.Point{Lat: 31.9, Lng: 35.2}, 10, 20)
	if err != nil {
		t.Fatalf("RequestTrip() error = %v", err)
	}
	if res.Status != "searching" {
		t.Errorf("status = %q, want searching", res.Status)
	}
}

func TestRequestTripRetriesNextCandidateWhenFirstIsStale(t *testing.T) {
	idx := fakeIndex{ids: []types.ID{"stale", "d2"}}
	s, st := newTestService(t, idx)
	// "stale" is in the index but no longer available at claim time.
	err := st.Collection(model.CollectionDrivers).Doc("stale").Set(context.Background(), map[string]any{
		"id": "stale", "isOnline": true, "isAvailable": false,
	})
	if err != nil {
		t.Fatalf("seeding stale driver: %v", err)
	}
	seedOnlineDriver(t, st, "d2", types.Point{Lat: 32.22, Lng: 35.25})

	res, err := s.RequestTrip(context.Background(), "p1", types.Point{Lat: 32.22, Lng: 35.25}, types.Point{Lat: 31.9, Lng: 35.2}, 10, 20)
	if err != nil {
		t.Fatalf("RequestTrip() error = %v", err)
	}
	if res.Status != "matched" || res.DriverID != "d2" {
		t.Fatalf("res = %+v, want matched/d2", res)
	}
}

type fakeSampler struct {
	overlap bool
	checked bool
}

func (f fakeSampler) CheckHazardOverlap(ctx context.Context, checker geo.HazardChecker, originLat, originLng, destLat, destLng float64) (bool, bool) {
	return f.overlap, f.checked
}

type fakeHazardChecker struct{}

func (fakeHazardChecker) Overlaps(ctx context.Context, lat, lng float64) (bool, error) {
	return true, nil
}

func TestRequestTripAnnotatesHazardOverlapWhenEnabled(t *testing.T) {
	idx := fakeIndex{ids: []types.ID{"d1"}}
	s, st := newTestService(t, idx)
	seedOnlineDriver(t, st, "d1", types.Point{Lat: 32.2200, Lng: 35.2540})
	s.WithHazardChecker(fakeSampler{overlap: true, checked: true}, fakeHazardChecker{})

	res, err := s.RequestTrip(context.Background(), "p1", types.Point{Lat: 32.2211, Lng: 35.2544}, types.Point{Lat: 31.9038, Lng: 35.2034}, 37.6, 40)
	if err != nil {
		t.Fatalf("RequestTrip() error = %v", err)
	}

	tSnap, err := st.Collection(model.CollectionTrips).Doc(string(res.TripID)).Get(context.Background())
	if err != nil {
		t.Fatalf("loading trip: %v", err)
	}
	var trip model.Trip
	if err := tSnap.DataTo(&trip); err != nil {
		t.Fatalf("decoding trip: %v", err)
	}
	if !trip.RouteHazardChecked || !trip.RouteHasHazardOverlap {
		t.Errorf("trip = %+v, want routeHazardChecked and routeHasHazardOverlap both true", trip)
	}
}

func TestRequestTripLeavesHazardFieldsUnsetWhenUnchecked(t *testing.T) {
	idx := fakeIndex{ids: []types.ID{"d1"}}
	s, st := newTestService(t, idx)
	seedOnlineDriver(t, st, "d1", types.Point{Lat: 32.2200, Lng: 35.2540})
	s.WithHazardChecker(fakeSampler{checked: false}, fakeHazardChecker{})

	res, err := s.RequestTrip(context.Background(), "p1", types.Point{Lat: 32.2211, Lng: 35.2544}, types.Point{Lat: 31.9038, Lng: 35.2034}, 37.6, 40)
	if err != nil {
		t.Fatalf("RequestTrip() error = %v", err)
	}

	tSnap, _ := st.Collection(model.CollectionTrips).Doc(string(res.TripID)).Get(context.Background())
	var trip model.Trip
	_ = tSnap.DataTo(&trip)
	if trip.RouteHazardChecked {
		t.Errorf("trip.RouteHazardChecked = true, want false when sampler reports unchecked")
	}
}
