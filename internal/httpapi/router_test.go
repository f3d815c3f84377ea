package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"ark/internal/authn"
	"ark/internal/authz"
	"ark/internal/clock"
	"ark/internal/core"
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

func newTestRouter(t *testing.T) (*gin.Engine, store.Store) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	fc := clock.NewFakeClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	st := memstore.New(fc)
	cfg := sysconfig.New(st, fc)
	az := authz.New(st)
	m := matching.New(st, fakeIndex{}, cfg, fc)
	tr := trip.New(st, fc)
	pay := payment.New(st)
	mgr := manager.New(st, cfg, tr)
	mod := moderation.NoopClassifier{}
	c := core.New(st, cfg, az, m, tr, pay, mgr, mod, fakeGeo{})

	verifier := authn.NewFakeVerifier(map[string]authn.Caller{
		"passenger-token": {UserID: "p1"},
		"manager-token":   {UserID: "m1"},
	})

	return NewRouter(c, verifier, az), st
}

func doRequest(r *gin.Engine, method, path, token string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHealthRequiresNoAuth(t *testing.T) {
	r, _ := newTestRouter(t)
	w := doRequest(r, http.MethodGet, "/health", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
}

func TestApiRouteRejectsMissingToken(t *testing.T) {
	r, _ := newTestRouter(t)
	w := doRequest(r, http.MethodPost, "/api/trips", "", map[string]any{})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
}

func TestRequestTripHappyPathViaHTTP(t *testing.T) {
	r, st := newTestRouter(t)
	ctx := context.Background()

	if err := st.Collection(model.CollectionDrivers).Doc("d1").Set(ctx, map[string]any{
		"id": "d1", "isOnline": true, "isAvailable": true,
		"lastLocation": types.Point{Lat: 32.08, Lng: 34.78},
	}); err != nil {
		t.Fatalf("seeding driver: %v", err)
	}

	w := doRequest(r, http.MethodPost, "/api/trips", "passenger-token", map[string]any{
		"pickupLat": 32.08, "pickupLng": 34.78,
		"dropoffLat": 32.10, "dropoffLng": 34.80,
		"estimatedDistanceKm": 5.0,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201, body=%s", w.Code, w.Body.String())
	}
}

func TestManagerRouteRejectsNonManagerCaller(t *testing.T) {
	r, st := newTestRouter(t)
	ctx := context.Background()
	if err := st.Collection(model.CollectionTrips).Doc("t1").Set(ctx, map[string]any{
		"id": "t1", "passengerId": "p1", "driverId": "d1", "status": model.TripPending,
	}); err != nil {
		t.Fatalf("seeding trip: %v", err)
	}

	w := doRequest(r, http.MethodPost, "/api/manager/trips/t1/force-cancel", "passenger-token", map[string]any{"reason": "test"})
	if w.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403, body=%s", w.Code, w.Body.String())
	}
}

func TestManagerRouteAcceptsManagerCaller(t *testing.T) {
	r, st := newTestRouter(t)
	ctx := context.Background()
	if err := st.Collection(model.CollectionTrips).Doc("t1").Set(ctx, map[string]any{
		"id": "t1", "passengerId": "p1", "driverId": "d1", "status": model.TripPending,
	}); err != nil {
		t.Fatalf("seeding trip: %v", err)
	}
	if err := st.Collection(model.CollectionDrivers).Doc("d1").Set(ctx, map[string]any{
		"id": "d1", "isOnline": true, "isAvailable": false, "currentTripId": types.ID("t1"),
	}); err != nil {
		t.Fatalf("seeding driver: %v", err)
	}
	if err := st.Collection(model.CollectionUsers).Doc("m1").Set(ctx, map[string]any{"id": "m1", "role": string(model.RoleManager)}); err != nil {
		t.Fatalf("seeding manager user: %v", err)
	}

	w := doRequest(r, http.MethodPost, "/api/manager/trips/t1/force-cancel", "manager-token", map[string]any{"reason": "safety"})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body=%s", w.Code, w.Body.String())
	}
}
