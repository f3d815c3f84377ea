// Package matching implements the driver matching engine (spec §4.2,
// component C7): nearest-eligible driver selection and the transactional
// claim that binds a driver to a new trip.
//
// Grounded on the teacher's internal/modules/matching package for shape
// (Service wrapping a geo-backed candidate Store) and
// internal/modules/location/geo_utils.go sortByDistance for the
// nearest-first selection; the claim transaction itself follows
// internal/modules/order/service.go's get-check-update pattern, generalized
// to also write the driver and the DriverOffer in the same transaction
// (spec invariant 6).
package matching

import (
	"context"
	"log"
	"sort"
	"time"

	"ark/internal/apperr"
	"ark/internal/clock"
	"ark/internal/geo"
	"ark/internal/idgen"
	"ark/internal/model"
	"ark/internal/pricing"
	"ark/internal/store"
	"ark/internal/sysconfig"
	"ark/internal/types"
)

// Index is the subset of geoindex.Index the matching engine needs — an
// interface so tests can substitute an in-memory candidate list instead of a
// live Redis client.
type Index interface {
	Nearest(ctx context.Context, p types.Point, radiusKm float64) ([]types.ID, error)
}

// RouteSampler is the subset of *geo.RouteSampler the road-hazard overlap
// annotation needs — an interface so tests can substitute a fake instead of
// a live Google Maps Directions client.
type RouteSampler interface {
	CheckHazardOverlap(ctx context.Context, checker geo.HazardChecker, originLat, originLng, destLat, destLng float64) (overlap bool, checked bool)
}

// Result is requestTrip's response shape (spec §4.2 step 7).
type Result struct {
	RequestID types.ID
	TripID    types.ID
	DriverID  types.ID
	Status    string // "matched" or "searching"
}

// Service runs requestTrip's search-then-claim sequence.
type Service struct {
	store   store.Store
	index   Index
	cfg     *sysconfig.Reader
	clock   clock.Clock
	sampler RouteSampler
	hazards geo.HazardChecker
}

func New(st store.Store, idx Index, cfg *sysconfig.Reader, c clock.Clock) *Service {
	return &Service{store: st, index: idx, cfg: cfg, clock: c}
}

// WithHazardChecker enables the road-hazard overlap annotation (SPEC_FULL
// §C.2): sampler fetches the pickup→dropoff route midpoint and checker
// reports whether that point overlaps a known hazard. Optional — callers
// that skip this (e.g. tests) simply never set Trip.routeHazardChecked.
func (s *Service) WithHazardChecker(sampler RouteSampler, checker geo.HazardChecker) *Service {
	s.sampler = sampler
	s.hazards = checker
	return s
}

// RequestTrip implements spec §4.2. Steps 1–3 (authorize as passenger,
// active-trip cap, kill switch) are the admission layer's job (internal/core
// calls this only after those pass); this method begins at step 4 (create
// TripRequest) through step 7 (typed response).
func (s *Service) RequestTrip(ctx context.Context, passengerID types.ID, pickup, dropoff types.Point, clientDistanceKm, clientDurationMin float64) (Result, error) {
	cfg, err := s.cfg.Get(ctx)
	if err != nil {
		return Result{}, apperr.Wrap(err)
	}

	// Distance/ETA estimation is out of this core's scope (spec §1); the
	// client's estimate is the authoritative distance input to pricing
	// (spec §4.2 step 3: price = pricing(estimate.distanceKm)). The only
	// haversine this package computes is over driver candidates, in
	// searchCandidatesByScan.
	distanceKm := clientDistanceKm
	price := pricing.Price(distanceKm, cfg.RatePerKm, cfg.MinFareIls)

	reqID := idgen.New()
	reqRef := s.store.Collection(model.CollectionTripRequests).Doc(string(reqID))
	if err := reqRef.Set(ctx, map[string]any{
		"id":                   reqID,
		"passengerId":          passengerID,
		"pickup":               pickup,
		"dropoff":              dropoff,
		"estimatedDistanceKm":  distanceKm,
		"estimatedDurationMin": clientDurationMin,
		"estimatedPriceIls":    price,
		"status":               model.TripRequestOpen,
		"createdAt":            store.ServerTimestamp,
	}); err != nil {
		return Result{}, apperr.Wrap(err)
	}

	candidates, err := s.searchCandidates(ctx, pickup, cfg.MaxSearchRadiusKm)
	if err != nil {
		return Result{}, apperr.Wrap(err)
	}
	if len(candidates) == 0 {
		return Result{RequestID: reqID, Status: "searching"}, nil
	}

	// Bounded single retry against the next-nearest candidate if the first
	// loses the claim race (spec §4.2 step 6e; Open Question #1 resolved in
	// favor of retrying once, since the spec explicitly permits it and a
	// free retry measurably improves match rate with no added risk — the
	// claim transaction is idempotent to retry because it only reads and
	// writes doc state, never double-charges or double-creates).
	for i := 0; i < len(candidates) && i < 2; i++ {
		driverID := candidates[i]
		tripID, err := s.claim(ctx, reqID, passengerID, driverID, pickup, dropoff, distanceKm, clientDurationMin, price, cfg.DriverResponseTimeoutSec, cfg.MaxActiveTripsPerDriver)
		if err == nil {
			if cfg.RoadblocksEnabled {
				s.annotateHazard(ctx, tripID, pickup, dropoff)
			}
			return Result{RequestID: reqID, TripID: tripID, DriverID: driverID, Status: "matched"}, nil
		}
		if apperr.KindOf(err) != apperr.NotFound {
			return Result{}, err
		}
		// driver no longer online+available: fall through to next candidate.
	}

	return Result{RequestID: reqID, Status: "searching"}, nil
}

// searchCandidates returns driver ids within radiusKm of pickup, nearest
// first (spec §4.2 step 5). The geo index is asked first and its ids are used
// as-is when it returns any; when it returns none or fails, the store scan in
// searchCandidatesByScan runs instead. Index membership is a hint only, so
// every candidate is re-verified against the authoritative driver document
// inside the claim transaction.
func (s *Service) searchCandidates(ctx context.Context, pickup types.Point, radiusKm float64) ([]types.ID, error) {
	ids, err := s.index.Nearest(ctx, pickup, radiusKm)
	if err != nil {
		log.Printf("matching: geo index unavailable, falling back to store scan: %v", err)
		return s.searchCandidatesByScan(ctx, pickup, radiusKm)
	}
	if len(ids) == 0 {
		return s.searchCandidatesByScan(ctx, pickup, radiusKm)
	}
	return ids, nil
}

type candidate struct {
	id       types.ID
	distance float64
}

// searchCandidatesByScan is the fallback path: a direct scan of the drivers
// collection, used when no geo index is available (e.g. tests, or a
// degraded Redis). This is the only place the spec's literal "query
// isOnline=true AND isAvailable=true, then haversine each" algorithm lives
// verbatim; the geo index exists purely as a performance optimization over
// the same semantics.
func (s *Service) searchCandidatesByScan(ctx context.Context, pickup types.Point, radiusKm float64) ([]types.ID, error) {
	docs, err := s.store.Collection(model.CollectionDrivers).
		Where("isOnline", store.OpEqual, true).
		Where("isAvailable", store.OpEqual, true).
		Documents(ctx)
	if err != nil {
		return nil, err
	}

	var candidates []candidate
	for _, snap := range docs {
		var d model.Driver
		if err := snap.DataTo(&d); err != nil {
			continue
		}
		if d.LastLocation == nil {
			continue
		}
		dist := geo.HaversineKm(pickup.Lat, pickup.Lng, d.LastLocation.Lat, d.LastLocation.Lng)
		if dist > radiusKm {
			continue
		}
		candidates = append(candidates, candidate{id: d.ID, distance: dist})
	}
	sort.SliceStable(candidates, func(i, j int) bool { return candidates[i].distance < candidates[j].distance })

	ids := make([]types.ID, len(candidates))
	for i, c := range candidates {
		ids[i] = c.id
	}
	return ids, nil
}

// claim implements spec §4.2 step 6: the single transaction that re-checks
// the driver, creates the Trip and DriverOffer, updates the driver, and
// marks the TripRequest matched.
func (s *Service) claim(ctx context.Context, reqID, passengerID, driverID types.ID, pickup, dropoff types.Point, distanceKm, durationMin float64, price types.ILS, driverResponseTimeoutSec, maxActiveTripsPerDriver int) (types.ID, error) {
	tripID := idgen.New()
	now := s.clock.Now()
	expiresAt := now.Add(time.Duration(driverResponseTimeoutSec) * time.Second)

	err := s.store.RunTransaction(ctx, func(ctx context.Context, tx store.Transaction) error {
		dRef := s.store.Collection(model.CollectionDrivers).Doc(string(driverID))
		dSnap, err := tx.Get(ctx, dRef)
		if err != nil {
			return apperr.Wrap(err)
		}
		if !dSnap.Exists() {
			return apperr.New(apperr.NotFound, "driver no longer available")
		}
		var d model.Driver
		if err := dSnap.DataTo(&d); err != nil {
			return apperr.Wrap(err)
		}
		if !d.IsOnline || !d.IsAvailable {
			return apperr.New(apperr.NotFound, "driver no longer available")
		}

		// §6 config table's maxActiveTripsPerDriver cap, re-checked against
		// the live count in the same transaction as the isAvailable check
		// above (which only catches the current pilot default of 1).
		active := 0
		for _, status := range model.ActiveTripStatuses {
			q := s.store.Collection(model.CollectionTrips).
				Where("driverId", store.OpEqual, driverID).
				Where("status", store.OpEqual, status)
			docs, err := tx.Documents(ctx, q)
			if err != nil {
				return apperr.Wrap(err)
			}
			active += len(docs)
		}
		if active >= maxActiveTripsPerDriver {
			return apperr.New(apperr.NotFound, "driver no longer available")
		}

		tRef := s.store.Collection(model.CollectionTrips).Doc(string(tripID))
		if err := tx.Create(ctx, tRef, map[string]any{
			"id":                  tripID,
			"passengerId":         passengerID,
			"driverId":            driverID,
			"pickup":              pickup,
			"dropoff":             dropoff,
			"estimatedDistanceKm": distanceKm,
			"estimatedDurationMin": durationMin,
			"estimatedPriceIls":   price,
			"status":              model.TripPending,
			"paymentMethod":       "cash",
			"fareAmount":          price,
			"paymentStatus":       model.PaymentPending,
			"createdAt":           store.ServerTimestamp,
		}); err != nil {
			return apperr.Wrap(err)
		}

		if err := tx.Update(ctx, dRef, map[string]any{
			"isAvailable":   false,
			"currentTripId": tripID,
		}); err != nil {
			return apperr.Wrap(err)
		}

		oRef := s.store.Collection(model.CollectionDriverReqs).Doc(string(driverID)).Collection(model.DriverReqsSubName).Doc(string(tripID))
		if err := tx.Create(ctx, oRef, map[string]any{
			"tripId":    tripID,
			"driverId":  driverID,
			"status":    model.OfferPending,
			"createdAt": store.ServerTimestamp,
			"expiresAt": expiresAt,
		}); err != nil {
			return apperr.Wrap(err)
		}

		reqRef := s.store.Collection(model.CollectionTripRequests).Doc(string(reqID))
		return tx.Update(ctx, reqRef, map[string]any{
			"status":          model.TripRequestMatched,
			"matchedDriverId": driverID,
			"matchedTripId":   tripID,
			"matchedAt":       store.ServerTimestamp,
		})
	})
	if err != nil {
		return "", err
	}
	return tripID, nil
}

// annotateHazard runs the best-effort route-hazard overlap check (SPEC_FULL
// §C.2) after the claim transaction has already committed; a Maps or Redis
// failure here must never roll back or retry the claim itself, so it is a
// separate, ordinary (non-transactional) update and any error is logged and
// swallowed — the trip's hazard fields are simply left unset.
func (s *Service) annotateHazard(ctx context.Context, tripID types.ID, pickup, dropoff types.Point) {
	if s.sampler == nil || s.hazards == nil {
		return
	}
	overlap, checked := s.sampler.CheckHazardOverlap(ctx, s.hazards, pickup.Lat, pickup.Lng, dropoff.Lat, dropoff.Lng)
	if !checked {
		return
	}
	tRef := s.store.Collection(model.CollectionTrips).Doc(string(tripID))
	if err := tRef.Update(ctx, map[string]any{
		"routeHazardChecked":    true,
		"routeHasHazardOverlap": overlap,
	}); err != nil {
		log.Printf("matching: annotating hazard overlap for trip %s: %v", tripID, err)
	}
}
