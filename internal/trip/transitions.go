// Package trip implements the trip state machine (spec §4.3, component C8):
// every legal transition, the actor/pre-state checks that guard it, and the
// driver-release/payment side effects each terminal transition carries.
//
// Grounded on the teacher's internal/modules/order/model.go
// AllowedTransitions map + CanTransition function — that shape survives
// here, generalized to the spec's own nine status names rather than the
// teacher's (which disagree across model.go/service.go/order_test.go and
// cannot all be reconciled, so this module does not adopt any of them).
package trip

import "ark/internal/model"

// legalPreStates lists, for each driver, passenger, manager and sweeper
// operation, which current statuses the transition is legal from (spec §4.3
// diagram).
var legalPreStates = map[string][]model.TripStatus{
	"acceptOffer":     {model.TripPending},
	"rejectOffer":     {model.TripPending},
	"driverArrived":   {model.TripAccepted},
	"startTrip":       {model.TripDriverArrived},
	"completeTrip":    {model.TripInProgress},
	"cancelByPassenger": {model.TripPending, model.TripAccepted},
	"cancelByDriver":    {model.TripPending, model.TripAccepted},
	"managerForceCancel": {model.TripPending, model.TripAccepted, model.TripDriverArrived, model.TripInProgress},
	"offerExpired":    {model.TripPending},
	"noShow":          {model.TripAccepted},
}

// isLegalPreState reports whether status is a legal starting point for the
// named operation.
func isLegalPreState(op string, status model.TripStatus) bool {
	for _, s := range legalPreStates[op] {
		if s == status {
			return true
		}
	}
	return false
}

// terminalStatusFor maps an operation to the status it leaves the trip in,
// for the rejection, cancellation and expiry operations. The forward chain
// (acceptOffer, driverArrived, startTrip, completeTrip) is not listed here;
// service.go sets those statuses directly.
var terminalStatusFor = map[string]model.TripStatus{
	"rejectOffer":        model.TripNoDriverAvailable,
	"cancelByPassenger":  model.TripCancelledByPassenger,
	"cancelByDriver":     model.TripCancelledByDriver,
	"managerForceCancel": model.TripCancelledBySystem,
	"offerExpired":       model.TripNoDriverAvailable,
	"noShow":             model.TripCancelledBySystem,
}
