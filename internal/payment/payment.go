// Package payment is the read side of payment finalization (spec §4.8,
// component C11). The mutations themselves — creating the idempotent
// payment_<tripId> record on completeTrip, flipping it to paid on
// confirmCashPayment — must commit atomically with the trip's own status
// change (spec §4.8: "keeping both consistent is part of the transaction"),
// so they live in internal/trip.Service.CompleteTrip/ConfirmCashPayment
// rather than here; this package only exposes the lookup internal/core
// needs to answer a payment-status query.
package payment

import (
	"context"

	"ark/internal/apperr"
	"ark/internal/model"
	"ark/internal/store"
	"ark/internal/types"
)

// Reader fetches payment records.
type Reader struct {
	store store.Store
}

func New(st store.Store) *Reader {
	return &Reader{store: st}
}

// Get returns the payment for tripID, or apperr.NotFound if the trip never
// reached completed (spec invariant 5).
func (r *Reader) Get(ctx context.Context, tripID types.ID) (model.Payment, error) {
	snap, err := r.store.Collection(model.CollectionPayments).Doc(model.PaymentDocID(tripID)).Get(ctx)
	if err != nil {
		return model.Payment{}, apperr.Wrap(err)
	}
	if !snap.Exists() {
		return model.Payment{}, apperr.New(apperr.NotFound, "payment not found")
	}
	var p model.Payment
	if err := snap.DataTo(&p); err != nil {
		return model.Payment{}, apperr.Wrap(err)
	}
	return p, nil
}
