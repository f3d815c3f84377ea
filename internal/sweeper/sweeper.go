// Package sweeper implements the scheduled timeout sweep (spec §4.5,
// component C9): unmatched trip-request expiry, driver no-show
// force-cancellation, and pending-offer expiry. Grounded on the teacher's
// internal/modules/order/service.go RunTimeoutMonitor, which stubbed this
// exact job out with a bare ticker and a "TODO: query timeout orders and
// update status" comment — this package is that TODO, implemented, with
// the ticker replaced by an explicit Tick(ctx) entry point per spec §9's
// "abstract the scheduler as a tick source interface so the sweeper can be
// driven synchronously from tests" design note.
package sweeper

import (
	"context"
	"log"
	"time"

	"ark/internal/apperr"
	"ark/internal/clock"
	"ark/internal/model"
	"ark/internal/store"
	"ark/internal/sysconfig"
	"ark/internal/trip"
	"ark/internal/types"
)

// Interval is the scheduler period from spec §6 ("every 1 minutes").
const Interval = time.Minute

// Budget is the per-tick time budget from spec §6.
const Budget = 60 * time.Second

// Sweeper runs the three timeout sweeps.
type Sweeper struct {
	store store.Store
	trip  *trip.Service
	cfg   *sysconfig.Reader
	clock clock.Clock
}

func New(st store.Store, tripSvc *trip.Service, cfg *sysconfig.Reader, c clock.Clock) *Sweeper {
	return &Sweeper{store: st, trip: tripSvc, cfg: cfg, clock: c}
}

// Run drives the sweeper on Interval until ctx is cancelled, the scheduler
// wiring the teacher's RunTimeoutMonitor stub left unfinished.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			tickCtx, cancel := context.WithTimeout(ctx, Budget)
			s.Tick(tickCtx)
			cancel()
		}
	}
}

// Tick runs all three sweeps once. Each sweep reads a batch of candidate
// documents, then re-checks and transitions each inside its own
// transaction — per-document failures are logged and do not abort the
// batch (spec §4.5, §7).
func (s *Sweeper) Tick(ctx context.Context) {
	cfg, err := s.cfg.Get(ctx)
	if err != nil {
		log.Printf("sweeper: loading system config: %v", err)
		return
	}

	expiredRequests := s.expireUnmatchedRequests(ctx, cfg)
	noShows := s.expireNoShowTrips(ctx, cfg)
	expiredOffers := s.expirePendingOffers(ctx, cfg)
	log.Printf("sweeper: cycle done: expiredRequests=%d noShowTrips=%d expiredOffers=%d",
		expiredRequests, noShows, expiredOffers)
}

// expireUnmatchedRequests is spec §4.5 sweep 1.
func (s *Sweeper) expireUnmatchedRequests(ctx context.Context, cfg model.SystemConfig) int {
	cutoff := s.clock.Now().Add(-time.Duration(cfg.SearchTimeoutSec) * time.Second)

	docs, err := s.store.Collection(model.CollectionTripRequests).
		Where("status", store.OpEqual, model.TripRequestOpen).
		Where("createdAt", store.OpLessThan, cutoff).
		Documents(ctx)
	if err != nil {
		log.Printf("sweeper: querying open trip requests: %v", err)
		return 0
	}

	n := 0
	for _, snap := range docs {
		if err := s.expireOneRequest(ctx, types.ID(snap.ID()), cfg); err != nil {
			log.Printf("sweeper: expiring trip request %s: %v", snap.ID(), err)
			continue
		}
		n++
	}
	return n
}

func (s *Sweeper) expireOneRequest(ctx context.Context, reqID types.ID, cfg model.SystemConfig) error {
	return s.store.RunTransaction(ctx, func(ctx context.Context, tx store.Transaction) error {
		ref := s.store.Collection(model.CollectionTripRequests).Doc(string(reqID))
		snap, err := tx.Get(ctx, ref)
		if err != nil {
			return apperr.Wrap(err)
		}
		if !snap.Exists() {
			return nil
		}
		var r model.TripRequest
		if err := snap.DataTo(&r); err != nil {
			return apperr.Wrap(err)
		}
		if r.Status != model.TripRequestOpen {
			return nil // already transitioned since the read, idempotent no-op
		}
		cutoff := s.clock.Now().Add(-time.Duration(cfg.SearchTimeoutSec) * time.Second)
		if !r.CreatedAt.Before(cutoff) {
			return nil // not actually stale yet (defensive re-check)
		}
		return tx.Update(ctx, ref, map[string]any{"status": model.TripRequestExpired})
	})
}

// expireNoShowTrips is spec §4.5 sweep 2.
func (s *Sweeper) expireNoShowTrips(ctx context.Context, cfg model.SystemConfig) int {
	cutoff := s.clock.Now().Add(-time.Duration(cfg.DriverArrivalTimeoutSec) * time.Second)

	docs, err := s.store.Collection(model.CollectionTrips).
		Where("status", store.OpEqual, model.TripAccepted).
		Where("acceptedAt", store.OpLessThan, cutoff).
		Documents(ctx)
	if err != nil {
		log.Printf("sweeper: querying accepted trips: %v", err)
		return 0
	}

	n := 0
	for _, snap := range docs {
		if err := s.trip.NoShow(ctx, types.ID(snap.ID())); err != nil {
			log.Printf("sweeper: force-cancelling no-show trip %s: %v", snap.ID(), err)
			continue
		}
		n++
	}
	return n
}

// expirePendingOffers is spec §4.3's sweeper-driven offerExpired transition:
// a trip stuck in pending because its matched driver never accepted or
// rejected the offer within cfg.DriverResponseTimeoutSec. The Trip and its
// DriverOffer are created in the same claim transaction (internal/matching
// Service.claim), so Trip.CreatedAt is the same instant as the offer's
// timeout baseline; this sweep filters on that shared timestamp rather than
// a collection-group query over driverRequests/*/requests, which store.Store
// does not expose.
func (s *Sweeper) expirePendingOffers(ctx context.Context, cfg model.SystemConfig) int {
	cutoff := s.clock.Now().Add(-time.Duration(cfg.DriverResponseTimeoutSec) * time.Second)

	docs, err := s.store.Collection(model.CollectionTrips).
		Where("status", store.OpEqual, model.TripPending).
		Where("createdAt", store.OpLessThan, cutoff).
		Documents(ctx)
	if err != nil {
		log.Printf("sweeper: querying pending trips: %v", err)
		return 0
	}

	n := 0
	for _, snap := range docs {
		if err := s.trip.ExpireOffer(ctx, types.ID(snap.ID())); err != nil {
			log.Printf("sweeper: expiring offer for trip %s: %v", snap.ID(), err)
			continue
		}
		n++
	}
	return n
}
