package trip

import (
	"context"

	"ark/internal/apperr"
	"ark/internal/clock"
	"ark/internal/model"
	"ark/internal/store"
	"ark/internal/types"
)

// Service owns every trip state transition (spec §4.3) and the driver
// availability coupling it carries (spec §4.4, invariants 1 and 2). Every
// method runs under one store.Store transaction: read, check actor, check
// pre-state, write — the same get-check-update shape as the teacher's
// order.Service, generalized from its optimistic status_version counter to
// Firestore-shaped transactional reads, since store.Store's transaction
// already gives read-your-write isolation without a version column.
type Service struct {
	store store.Store
	clock clock.Clock
}

func New(st store.Store, c clock.Clock) *Service {
	return &Service{store: st, clock: c}
}

func tripRef(st store.Store, id types.ID) store.DocRef {
	return st.Collection(model.CollectionTrips).Doc(string(id))
}

func driverRef(st store.Store, id types.ID) store.DocRef {
	return st.Collection(model.CollectionDrivers).Doc(string(id))
}

func offerRef(st store.Store, driverID, tripID types.ID) store.DocRef {
	return st.Collection(model.CollectionDriverReqs).Doc(string(driverID)).Collection(model.DriverReqsSubName).Doc(string(tripID))
}

func paymentRef(st store.Store, tripID types.ID) store.DocRef {
	return st.Collection(model.CollectionPayments).Doc(model.PaymentDocID(tripID))
}

// getTrip reads and decodes a Trip inside an active transaction, failing
// with apperr.NotFound per spec §4.3 ("Read Trip by id; 404 if missing").
func getTrip(ctx context.Context, tx store.Transaction, id types.ID, st store.Store) (model.Trip, error) {
	snap, err := tx.Get(ctx, tripRef(st, id))
	if err != nil {
		return model.Trip{}, apperr.Wrap(err)
	}
	if !snap.Exists() {
		return model.Trip{}, apperr.New(apperr.NotFound, "trip not found")
	}
	var t model.Trip
	if err := snap.DataTo(&t); err != nil {
		return model.Trip{}, apperr.Wrap(err)
	}
	return t, nil
}

// requireState fails with forbidden and the current state attached as a
// detail, the mechanism spec §4.3 and §7 rely on to resolve double-accept
// and stale-transition races: the loser reads the new status, not the one
// it expected, and fails here.
func requireState(op string, status model.TripStatus) error {
	if !isLegalPreState(op, status) {
		return apperr.New(apperr.Forbidden, "trip is not in a state that allows this operation").
			WithDetail("current_state", string(status))
	}
	return nil
}

// releaseDriver clears a driver's claim. This release (state machine) and
// the matching claim (the inverse, in internal/matching) are the only
// writers of currentTripId; internal/core's setDriverOnline also writes
// isAvailable, but only for a driver with no current trip.
func releaseDriver(ctx context.Context, tx store.Transaction, st store.Store, driverID types.ID) error {
	return tx.Update(ctx, driverRef(st, driverID), map[string]any{
		"isAvailable":   true,
		"currentTripId": nil,
	})
}

// AcceptOffer implements spec §4.3 acceptOffer.
func (s *Service) AcceptOffer(ctx context.Context, callerID, tripID types.ID) error {
	return s.store.RunTransaction(ctx, func(ctx context.Context, tx store.Transaction) error {
		t, err := getTrip(ctx, tx, tripID, s.store)
		if err != nil {
			return err
		}
		if t.DriverID != callerID {
			return apperr.New(apperr.Forbidden, "caller is not the trip's driver")
		}
		if err := requireState("acceptOffer", t.Status); err != nil {
			return err
		}

		oRef := offerRef(s.store, callerID, tripID)
		oSnap, err := tx.Get(ctx, oRef)
		if err != nil {
			return apperr.Wrap(err)
		}
		var offer model.DriverOffer
		if oSnap.Exists() {
			if err := oSnap.DataTo(&offer); err != nil {
				return apperr.Wrap(err)
			}
		}
		if !oSnap.Exists() || offer.Status != model.OfferPending {
			return apperr.New(apperr.Forbidden, "offer is not pending").
				WithDetail("current_state", string(t.Status))
		}

		if err := tx.Update(ctx, tripRef(s.store, tripID), map[string]any{
			"status":     model.TripAccepted,
			"acceptedAt": store.ServerTimestamp,
		}); err != nil {
			return apperr.Wrap(err)
		}
		if err := tx.Update(ctx, oRef, map[string]any{"status": model.OfferAccepted}); err != nil {
			return apperr.Wrap(err)
		}
		return nil
	})
}

// RejectOffer implements spec §4.3 rejectOffer, including the idempotent
// no-op when the offer is already terminal.
func (s *Service) RejectOffer(ctx context.Context, callerID, tripID types.ID) error {
	return s.store.RunTransaction(ctx, func(ctx context.Context, tx store.Transaction) error {
		t, err := getTrip(ctx, tx, tripID, s.store)
		if err != nil {
			return err
		}
		if t.DriverID != callerID {
			return apperr.New(apperr.Forbidden, "caller is not the trip's driver")
		}

		oRef := offerRef(s.store, callerID, tripID)
		oSnap, err := tx.Get(ctx, oRef)
		if err != nil {
			return apperr.Wrap(err)
		}
		var offer model.DriverOffer
		if oSnap.Exists() {
			if err := oSnap.DataTo(&offer); err != nil {
				return apperr.Wrap(err)
			}
		}
		if !oSnap.Exists() || offer.Status != model.OfferPending {
			return nil // already terminal: idempotent success, spec §4.3
		}

		if err := requireState("rejectOffer", t.Status); err != nil {
			return err
		}

		if err := tx.Update(ctx, tripRef(s.store, tripID), map[string]any{
			"status":      model.TripNoDriverAvailable,
			"cancelledAt": store.ServerTimestamp,
		}); err != nil {
			return apperr.Wrap(err)
		}
		if err := tx.Update(ctx, oRef, map[string]any{"status": model.OfferRejected}); err != nil {
			return apperr.Wrap(err)
		}
		return releaseDriver(ctx, tx, s.store, callerID)
	})
}

// DriverArrived implements spec §4.3 driverArrived.
func (s *Service) DriverArrived(ctx context.Context, callerID, tripID types.ID) error {
	return s.advance(ctx, callerID, tripID, "driverArrived", model.TripDriverArrived, "arrivedAt", driverActor)
}

// StartTrip implements spec §4.3 startTrip.
func (s *Service) StartTrip(ctx context.Context, callerID, tripID types.ID) error {
	return s.advance(ctx, callerID, tripID, "startTrip", model.TripInProgress, "startedAt", driverActor)
}

type actorCheck func(t model.Trip, callerID types.ID) error

func driverActor(t model.Trip, callerID types.ID) error {
	if t.DriverID != callerID {
		return apperr.New(apperr.Forbidden, "caller is not the trip's driver")
	}
	return nil
}

func passengerActor(t model.Trip, callerID types.ID) error {
	if t.PassengerID != callerID {
		return apperr.New(apperr.Forbidden, "caller is not the trip's passenger")
	}
	return nil
}

// advance runs the common read-check-write shape for transitions that only
// move the trip forward one step with no side effects beyond the timestamp.
func (s *Service) advance(ctx context.Context, callerID, tripID types.ID, op string, newStatus model.TripStatus, tsField string, check actorCheck) error {
	return s.store.RunTransaction(ctx, func(ctx context.Context, tx store.Transaction) error {
		t, err := getTrip(ctx, tx, tripID, s.store)
		if err != nil {
			return err
		}
		if err := check(t, callerID); err != nil {
			return err
		}
		if err := requireState(op, t.Status); err != nil {
			return err
		}
		return tx.Update(ctx, tripRef(s.store, tripID), map[string]any{
			"status": newStatus,
			tsField:  store.ServerTimestamp,
		})
	})
}

// CompleteTrip implements spec §4.3/§4.8 completeTrip: transitions to
// completed, releases the driver, and creates the idempotent payment record
// in the same transaction.
func (s *Service) CompleteTrip(ctx context.Context, callerID, tripID types.ID) (types.ILS, error) {
	var finalPrice types.ILS
	err := s.store.RunTransaction(ctx, func(ctx context.Context, tx store.Transaction) error {
		t, err := getTrip(ctx, tx, tripID, s.store)
		if err != nil {
			return err
		}
		if t.DriverID != callerID {
			return apperr.New(apperr.Forbidden, "caller is not the trip's driver")
		}
		if err := requireState("completeTrip", t.Status); err != nil {
			return err
		}

		pRef := paymentRef(s.store, tripID)
		pSnap, err := tx.Get(ctx, pRef)
		if err != nil {
			return apperr.Wrap(err)
		}

		if err := tx.Update(ctx, tripRef(s.store, tripID), map[string]any{
			"status":        model.TripCompleted,
			"completedAt":   store.ServerTimestamp,
			"paymentStatus": model.PaymentPending,
		}); err != nil {
			return apperr.Wrap(err)
		}
		if err := releaseDriver(ctx, tx, s.store, t.DriverID); err != nil {
			return err
		}

		if !pSnap.Exists() {
			if err := tx.Create(ctx, pRef, map[string]any{
				"tripId":      tripID,
				"passengerId": t.PassengerID,
				"driverId":    t.DriverID,
				"amount":      t.FareAmount,
				"currency":    "ILS",
				"method":      "cash",
				"status":      model.PaymentPending,
				"createdAt":   store.ServerTimestamp,
				"updatedAt":   store.ServerTimestamp,
			}); err != nil {
				return apperr.Wrap(err)
			}
		}

		finalPrice = t.FareAmount
		return nil
	})
	return finalPrice, err
}

// ConfirmCashPayment implements spec §4.8 confirmCashPayment. Unlike the
// other operations this does not change Trip.status — only payment fields —
// so it is not in legalPreStates.
func (s *Service) ConfirmCashPayment(ctx context.Context, callerID, tripID types.ID) error {
	return s.store.RunTransaction(ctx, func(ctx context.Context, tx store.Transaction) error {
		t, err := getTrip(ctx, tx, tripID, s.store)
		if err != nil {
			return err
		}
		if t.DriverID != callerID {
			return apperr.New(apperr.Forbidden, "caller is not the trip's driver")
		}
		if t.Status != model.TripCompleted {
			return apperr.New(apperr.Forbidden, "trip is not completed").
				WithDetail("current_state", string(t.Status))
		}
		if t.PaymentStatus != model.PaymentPending {
			return apperr.New(apperr.Forbidden, "payment is already finalized").
				WithDetail("current_payment_status", string(t.PaymentStatus))
		}

		if err := tx.Update(ctx, tripRef(s.store, tripID), map[string]any{
			"paymentStatus": model.PaymentPaid,
			"paidAt":        store.ServerTimestamp,
		}); err != nil {
			return apperr.Wrap(err)
		}
		return tx.Update(ctx, paymentRef(s.store, tripID), map[string]any{
			"status":    model.PaymentPaid,
			"updatedAt": store.ServerTimestamp,
		})
	})
}

// CancelByPassenger implements spec §4.3 cancelByPassenger.
func (s *Service) CancelByPassenger(ctx context.Context, callerID, tripID types.ID, reason string) error {
	return s.cancel(ctx, callerID, tripID, "cancelByPassenger", model.TripCancelledByPassenger, passengerActor, reason, "passenger")
}

// CancelByDriver implements spec §4.3 cancelByDriver.
func (s *Service) CancelByDriver(ctx context.Context, callerID, tripID types.ID, reason string) error {
	return s.cancel(ctx, callerID, tripID, "cancelByDriver", model.TripCancelledByDriver, driverActor, reason, "driver")
}

// ManagerForceCancel implements spec §4.3/§4.9 managerForceCancel. Role
// elevation is checked by the caller (internal/core dispatches only after
// internal/authz.RequireManager passes); this method accepts any active
// trip regardless of which actor it names.
func (s *Service) ManagerForceCancel(ctx context.Context, tripID types.ID, reason string) error {
	if reason == "" {
		reason = "manager_override"
	}
	return s.cancel(ctx, "", tripID, "managerForceCancel", model.TripCancelledBySystem, noActorCheck, reason, "manager")
}

func noActorCheck(model.Trip, types.ID) error { return nil }

func (s *Service) cancel(ctx context.Context, callerID, tripID types.ID, op string, newStatus model.TripStatus, check actorCheck, reason, cancelledBy string) error {
	if reason == "" {
		reason = op
	}
	return s.store.RunTransaction(ctx, func(ctx context.Context, tx store.Transaction) error {
		t, err := getTrip(ctx, tx, tripID, s.store)
		if err != nil {
			return err
		}
		if err := check(t, callerID); err != nil {
			return err
		}
		if err := requireState(op, t.Status); err != nil {
			return err
		}
		// cancelPendingOffer reads the offer, so it runs before the other
		// writes of this transaction.
		if err := cancelPendingOffer(ctx, tx, s.store, t.DriverID, tripID); err != nil {
			return err
		}

		if err := tx.Update(ctx, tripRef(s.store, tripID), map[string]any{
			"status":             newStatus,
			"cancelledAt":        store.ServerTimestamp,
			"cancellationReason": reason,
			"cancelledBy":        cancelledBy,
		}); err != nil {
			return apperr.Wrap(err)
		}
		return releaseDriver(ctx, tx, s.store, t.DriverID)
	})
}

// cancelPendingOffer implements the "if the transition is a cancellation
// with a known DriverOffer still pending, set offer status=cancelled in the
// same transaction" rule from spec §4.3.
func cancelPendingOffer(ctx context.Context, tx store.Transaction, st store.Store, driverID, tripID types.ID) error {
	oRef := offerRef(st, driverID, tripID)
	snap, err := tx.Get(ctx, oRef)
	if err != nil {
		return apperr.Wrap(err)
	}
	if !snap.Exists() {
		return nil
	}
	var offer model.DriverOffer
	if err := snap.DataTo(&offer); err != nil {
		return apperr.Wrap(err)
	}
	if offer.Status != model.OfferPending {
		return nil
	}
	return tx.Update(ctx, oRef, map[string]any{"status": model.OfferCancelled})
}

// ExpireOffer implements the sweeper-driven offerExpired transition (spec
// §4.3, §4.5 sweep 1 companion for the matched case — used when a pending
// offer's response window elapses before any accept/reject).
func (s *Service) ExpireOffer(ctx context.Context, tripID types.ID) error {
	return s.store.RunTransaction(ctx, func(ctx context.Context, tx store.Transaction) error {
		t, err := getTrip(ctx, tx, tripID, s.store)
		if err != nil {
			return err
		}
		if err := requireState("offerExpired", t.Status); err != nil {
			return err
		}
		// cancelPendingOffer reads the offer, so it runs before the other
		// writes of this transaction.
		if err := cancelPendingOffer(ctx, tx, s.store, t.DriverID, tripID); err != nil {
			return err
		}
		if err := tx.Update(ctx, tripRef(s.store, tripID), map[string]any{
			"status":             model.TripNoDriverAvailable,
			"cancelledAt":        store.ServerTimestamp,
			"cancellationReason": "offer_expired",
		}); err != nil {
			return apperr.Wrap(err)
		}
		return releaseDriver(ctx, tx, s.store, t.DriverID)
	})
}

// NoShow implements spec §4.5 sweep 2: driver no-show force-cancel.
func (s *Service) NoShow(ctx context.Context, tripID types.ID) error {
	return s.store.RunTransaction(ctx, func(ctx context.Context, tx store.Transaction) error {
		t, err := getTrip(ctx, tx, tripID, s.store)
		if err != nil {
			return err
		}
		if err := requireState("noShow", t.Status); err != nil {
			return err
		}
		if err := tx.Update(ctx, tripRef(s.store, tripID), map[string]any{
			"status":             model.TripCancelledBySystem,
			"cancelledAt":        store.ServerTimestamp,
			"cancellationReason": "driver_no_show",
			"cancelledBy":        "system",
		}); err != nil {
			return apperr.Wrap(err)
		}
		return releaseDriver(ctx, tx, s.store, t.DriverID)
	})
}

// Get reads a trip outside any transaction, for read-path callers in
// internal/core (e.g. returning state after an operation).
func (s *Service) Get(ctx context.Context, tripID types.ID) (model.Trip, error) {
	snap, err := tripRef(s.store, tripID).Get(ctx)
	if err != nil {
		return model.Trip{}, apperr.Wrap(err)
	}
	if !snap.Exists() {
		return model.Trip{}, apperr.New(apperr.NotFound, "trip not found")
	}
	var t model.Trip
	if err := snap.DataTo(&t); err != nil {
		return model.Trip{}, apperr.Wrap(err)
	}
	return t, nil
}
