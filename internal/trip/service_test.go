package trip

import (
	"context"
	"sync"
	"testing"
	"time"

	"ark/internal/apperr"
	"ark/internal/clock"
	"ark/internal/model"
	"ark/internal/store"
	"ark/internal/store/memstore"
	"ark/internal/types"
)

func seedTrip(t *testing.T, st store.Store, tr model.Trip) {
	t.Helper()
	ctx := context.Background()
	err := st.Collection(model.CollectionTrips).Doc(string(tr.ID)).Set(ctx, map[string]any{
		"id":                    tr.ID,
		"passengerId":           tr.PassengerID,
		"driverId":              tr.DriverID,
		"status":                tr.Status,
		"estimatedDistanceKm":   tr.EstimatedDistanceKm,
		"estimatedPriceIls":     tr.EstimatedPriceIls,
		"fareAmount":            tr.FareAmount,
		"paymentStatus":         tr.PaymentStatus,
		"paymentMethod":         "cash",
		"routeHazardChecked":    false,
		"routeHasHazardOverlap": false,
	})
	if err != nil {
		t.Fatalf("seedTrip: %v", err)
	}
}

func seedDriver(t *testing.T, st store.Store, id types.ID, tripID types.ID) {
	t.Helper()
	ctx := context.Background()
	err := st.Collection(model.CollectionDrivers).Doc(string(id)).Set(ctx, map[string]any{
		"id":            id,
		"isOnline":      true,
		"isAvailable":   false,
		"currentTripId": tripID,
	})
	if err != nil {
		t.Fatalf("seedDriver: %v", err)
	}
}

func seedOffer(t *testing.T, st store.Store, driverID, tripID types.ID, status model.DriverOfferStatus) {
	t.Helper()
	ctx := context.Background()
	err := st.Collection(model.CollectionDriverReqs).Doc(string(driverID)).Collection(model.DriverReqsSubName).Doc(string(tripID)).Set(ctx, map[string]any{
		"tripId":   tripID,
		"driverId": driverID,
		"status":   status,
	})
	if err != nil {
		t.Fatalf("seedOffer: %v", err)
	}
}

func newSvc() (*Service, store.Store) {
	c := clock.NewFakeClock(time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC))
	st := memstore.New(c)
	return New(st, c), st
}

func TestAcceptOfferHappyPath(t *testing.T) {
	s, st := newSvc()
	ctx := context.Background()
	seedTrip(t, st, model.Trip{ID: "t1", PassengerID: "p1", DriverID: "d1", Status: model.TripPending})
	seedDriver(t, st, "d1", "t1")
	seedOffer(t, st, "d1", "t1", model.OfferPending)

	if err := s.AcceptOffer(ctx, "d1", "t1"); err != nil {
		t.Fatalf("AcceptOffer() error = %v", err)
	}
	got, err := s.Get(ctx, "t1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Status != model.TripAccepted {
		t.Errorf("status = %q, want accepted", got.Status)
	}
}

func TestAcceptOfferWrongActor(t *testing.T) {
	s, st := newSvc()
	ctx := context.Background()
	seedTrip(t, st, model.Trip{ID: "t1", PassengerID: "p1", DriverID: "d1", Status: model.TripPending})
	seedDriver(t, st, "d1", "t1")
	seedOffer(t, st, "d1", "t1", model.OfferPending)

	err := s.AcceptOffer(ctx, "d2", "t1")
	if apperr.KindOf(err) != apperr.Forbidden {
		t.Fatalf("err kind = %v, want forbidden", apperr.KindOf(err))
	}
}

// TestDoubleAcceptRace covers scenario C from spec §8: eight concurrent
// acceptOffer calls for the same trip, exactly one must win.
func TestDoubleAcceptRace(t *testing.T) {
	s, st := newSvc()
	ctx := context.Background()
	seedTrip(t, st, model.Trip{ID: "t1", PassengerID: "p1", DriverID: "d1", Status: model.TripPending})
	seedDriver(t, st, "d1", "t1")
	seedOffer(t, st, "d1", "t1", model.OfferPending)

	const n = 8
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = s.AcceptOffer(ctx, "d1", "t1")
		}(i)
	}
	wg.Wait()

	successes := 0
	for _, err := range errs {
		if err == nil {
			successes++
			continue
		}
		if apperr.KindOf(err) != apperr.Forbidden {
			t.Errorf("unexpected error kind: %v", err)
		}
	}
	if successes != 1 {
		t.Errorf("successes = %d, want exactly 1", successes)
	}

	got, err := s.Get(ctx, "t1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Status != model.TripAccepted {
		t.Errorf("final status = %q, want accepted", got.Status)
	}
}

func TestRejectOfferIsIdempotentWhenAlreadyTerminal(t *testing.T) {
	s, st := newSvc()
	ctx := context.Background()
	seedTrip(t, st, model.Trip{ID: "t1", PassengerID: "p1", DriverID: "d1", Status: model.TripAccepted})
	seedDriver(t, st, "d1", "t1")
	seedOffer(t, st, "d1", "t1", model.OfferAccepted)

	if err := s.RejectOffer(ctx, "d1", "t1"); err != nil {
		t.Fatalf("RejectOffer() on terminal offer should succeed idempotently, got %v", err)
	}
	got, err := s.Get(ctx, "t1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Status != model.TripAccepted {
		t.Errorf("status changed by idempotent reject: %q", got.Status)
	}
}

func TestCancelByPassengerForbiddenAfterInProgress(t *testing.T) {
	s, st := newSvc()
	ctx := context.Background()
	seedTrip(t, st, model.Trip{ID: "t1", PassengerID: "p1", DriverID: "d1", Status: model.TripInProgress})
	seedDriver(t, st, "d1", "t1")

	err := s.CancelByPassenger(ctx, "p1", "t1", "")
	if apperr.KindOf(err) != apperr.Forbidden {
		t.Fatalf("err kind = %v, want forbidden", apperr.KindOf(err))
	}
	got, err := s.Get(ctx, "t1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Status != model.TripInProgress {
		t.Errorf("status changed by rejected cancel: %q", got.Status)
	}
}

func TestCompleteTripCreatesIdempotentPayment(t *testing.T) {
	s, st := newSvc()
	ctx := context.Background()
	seedTrip(t, st, model.Trip{ID: "t1", PassengerID: "p1", DriverID: "d1", Status: model.TripInProgress, FareAmount: 19, PaymentStatus: model.PaymentPending})
	seedDriver(t, st, "d1", "t1")

	price, err := s.CompleteTrip(ctx, "d1", "t1")
	if err != nil {
		t.Fatalf("CompleteTrip() error = %v", err)
	}
	if price != 19 {
		t.Errorf("finalPriceIls = %v, want 19", price)
	}

	pSnap, err := st.Collection(model.CollectionPayments).Doc(model.PaymentDocID("t1")).Get(ctx)
	if err != nil {
		t.Fatalf("loading payment: %v", err)
	}
	if !pSnap.Exists() {
		t.Fatal("expected payment document to exist")
	}

	// Re-issuing completeTrip must fail and leave the payment untouched.
	_, err = s.CompleteTrip(ctx, "d1", "t1")
	if apperr.KindOf(err) != apperr.Forbidden {
		t.Fatalf("second completeTrip kind = %v, want forbidden", apperr.KindOf(err))
	}

	dSnap, err := st.Collection(model.CollectionDrivers).Doc("d1").Get(ctx)
	if err != nil {
		t.Fatalf("loading driver: %v", err)
	}
	var d model.Driver
	if err := dSnap.DataTo(&d); err != nil {
		t.Fatalf("decoding driver: %v", err)
	}
	if !d.IsAvailable || d.CurrentTripID != nil {
		t.Errorf("driver not released: isAvailable=%v currentTripId=%v", d.IsAvailable, d.CurrentTripID)
	}
}

func TestConfirmCashPaymentRejectsDoublePay(t *testing.T) {
	s, st := newSvc()
	ctx := context.Background()
	seedTrip(t, st, model.Trip{ID: "t1", PassengerID: "p1", DriverID: "d1", Status: model.TripInProgress, FareAmount: 19, PaymentStatus: model.PaymentPending})
	seedDriver(t, st, "d1", "t1")

	if _, err := s.CompleteTrip(ctx, "d1", "t1"); err != nil {
		t.Fatalf("CompleteTrip() error = %v", err)
	}
	if err := s.ConfirmCashPayment(ctx, "d1", "t1"); err != nil {
		t.Fatalf("ConfirmCashPayment() error = %v", err)
	}
	err := s.ConfirmCashPayment(ctx, "d1", "t1")
	if apperr.KindOf(err) != apperr.Forbidden {
		t.Fatalf("second confirm kind = %v, want forbidden", apperr.KindOf(err))
	}
}

func TestNoShowReleasesDriver(t *testing.T) {
	s, st := newSvc()
	ctx := context.Background()
	seedTrip(t, st, model.Trip{ID: "t1", PassengerID: "p1", DriverID: "d1", Status: model.TripAccepted})
	seedDriver(t, st, "d1", "t1")

	if err := s.NoShow(ctx, "t1"); err != nil {
		t.Fatalf("NoShow() error = %v", err)
	}
	got, err := s.Get(ctx, "t1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Status != model.TripCancelledBySystem {
		t.Errorf("status = %q, want cancelled_by_system", got.Status)
	}

	dSnap, err := st.Collection(model.CollectionDrivers).Doc("d1").Get(ctx)
	if err != nil {
		t.Fatalf("loading driver: %v", err)
	}
	var d model.Driver
	if err := dSnap.DataTo(&d); err != nil {
		t.Fatalf("decoding driver: %v", err)
	}
	if !d.IsAvailable || d.CurrentTripID != nil {
		t.Errorf("driver not released: isAvailable=%v currentTripId=%v", d.IsAvailable, d.CurrentTripID)
	}

	// A later driverArrived call must see the terminal state and fail.
	err = s.DriverArrived(ctx, "d1", "t1")
	if apperr.KindOf(err) != apperr.Forbidden {
		t.Fatalf("driverArrived after no-show kind = %v, want forbidden", apperr.KindOf(err))
	}
}
