// Package model holds the persisted document shapes from spec §3, plus the
// collection-naming constants from spec §6's "Persisted state layout" table.
// Every struct tag doubles as the Firestore field name and the in-memory
// store's map key, so firestorestore and memstore read/write identically.
package model

import (
	"time"

	"ark/internal/types"
)

// Collection names, verbatim from spec §6.
const (
	CollectionDrivers      = "drivers"
	CollectionTripRequests = "tripRequests"
	CollectionTrips        = "trips"
	CollectionDriverReqs   = "driverRequests" // subcollection name is "requests"
	DriverReqsSubName      = "requests"
	CollectionPayments     = "payments"
	CollectionRatings      = "ratings"
	CollectionSystem       = "system"
	SystemConfigDocID      = "config"
	CollectionUsers        = "users"
)

// PaymentDocID is the deterministic id from spec §3/§4.8.
func PaymentDocID(tripID types.ID) string { return "payment_" + string(tripID) }

// Role is a user's authorization role (spec §4.6).
type Role string

const (
	RolePassenger Role = "passenger"
	RoleDriver    Role = "driver"
	RoleManager   Role = "manager"
	RoleAdmin     Role = "admin"
)

// Driver is the drivers/<driverId> document (spec §3).
type Driver struct {
	ID            types.ID    `json:"id" firestore:"id"`
	IsOnline      bool        `json:"isOnline" firestore:"isOnline"`
	IsAvailable   bool        `json:"isAvailable" firestore:"isAvailable"`
	LastLocation  *types.Point `json:"lastLocation,omitempty" firestore:"lastLocation,omitempty"`
	CurrentTripID *types.ID   `json:"currentTripId,omitempty" firestore:"currentTripId,omitempty"`
	UpdatedAt     time.Time   `json:"updatedAt" firestore:"updatedAt"`
}

// TripRequestStatus is the status enum of a TripRequest document.
type TripRequestStatus string

const (
	TripRequestOpen      TripRequestStatus = "open"
	TripRequestMatched    TripRequestStatus = "matched"
	TripRequestExpired    TripRequestStatus = "expired"
	TripRequestCancelled  TripRequestStatus = "cancelled"
)

// TripRequest is the tripRequests/<requestId> document (spec §3).
type TripRequest struct {
	ID                   types.ID          `json:"id" firestore:"id"`
	PassengerID          types.ID          `json:"passengerId" firestore:"passengerId"`
	Pickup               types.Point       `json:"pickup" firestore:"pickup"`
	Dropoff              types.Point       `json:"dropoff" firestore:"dropoff"`
	EstimatedDistanceKm  float64           `json:"estimatedDistanceKm" firestore:"estimatedDistanceKm"`
	EstimatedDurationMin float64           `json:"estimatedDurationMin" firestore:"estimatedDurationMin"`
	EstimatedPriceIls    types.ILS         `json:"estimatedPriceIls" firestore:"estimatedPriceIls"`
	Status               TripRequestStatus `json:"status" firestore:"status"`
	MatchedDriverID      *types.ID         `json:"matchedDriverId,omitempty" firestore:"matchedDriverId,omitempty"`
	MatchedTripID        *types.ID         `json:"matchedTripId,omitempty" firestore:"matchedTripId,omitempty"`
	MatchedAt            *time.Time        `json:"matchedAt,omitempty" firestore:"matchedAt,omitempty"`
	CreatedAt            time.Time         `json:"createdAt" firestore:"createdAt"`
}

// TripStatus is the status enum of a Trip document (spec §3, §4.3).
type TripStatus string

const (
	TripPending                TripStatus = "pending"
	TripAccepted               TripStatus = "accepted"
	TripDriverArrived          TripStatus = "driver_arrived"
	TripInProgress             TripStatus = "in_progress"
	TripCompleted              TripStatus = "completed"
	TripCancelledByPassenger   TripStatus = "cancelled_by_passenger"
	TripCancelledByDriver      TripStatus = "cancelled_by_driver"
	TripCancelledBySystem      TripStatus = "cancelled_by_system"
	TripNoDriverAvailable      TripStatus = "no_driver_available"
)

// ActiveTripStatuses are the statuses counted against the per-actor pilot cap
// (spec §3 invariant 3) and the driver-availability coupling (invariant 1).
var ActiveTripStatuses = []TripStatus{TripPending, TripAccepted, TripDriverArrived, TripInProgress}

// IsActive reports whether s is one of the active statuses.
func (s TripStatus) IsActive() bool {
	for _, a := range ActiveTripStatuses {
		if s == a {
			return true
		}
	}
	return false
}

// IsTerminal reports whether s has no legal outgoing transition (spec §4.3).
func (s TripStatus) IsTerminal() bool {
	switch s {
	case TripCompleted, TripCancelledByPassenger, TripCancelledByDriver, TripCancelledBySystem, TripNoDriverAvailable:
		return true
	default:
		return false
	}
}

// PaymentStatus is Trip.paymentStatus (spec §3).
type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentPaid    PaymentStatus = "paid"
)

// Trip is the trips/<tripId> document (spec §3).
type Trip struct {
	ID                   types.ID      `json:"id" firestore:"id"`
	PassengerID          types.ID      `json:"passengerId" firestore:"passengerId"`
	DriverID             types.ID      `json:"driverId" firestore:"driverId"`
	Pickup               types.Point   `json:"pickup" firestore:"pickup"`
	Dropoff              types.Point   `json:"dropoff" firestore:"dropoff"`
	EstimatedDistanceKm  float64       `json:"estimatedDistanceKm" firestore:"estimatedDistanceKm"`
	EstimatedDurationMin float64       `json:"estimatedDurationMin" firestore:"estimatedDurationMin"`
	EstimatedPriceIls    types.ILS     `json:"estimatedPriceIls" firestore:"estimatedPriceIls"`
	Status               TripStatus    `json:"status" firestore:"status"`

	PaymentMethod string        `json:"paymentMethod" firestore:"paymentMethod"`
	FareAmount    types.ILS     `json:"fareAmount" firestore:"fareAmount"`
	PaymentStatus PaymentStatus `json:"paymentStatus" firestore:"paymentStatus"`
	PaidAt        *time.Time    `json:"paidAt,omitempty" firestore:"paidAt,omitempty"`

	CreatedAt   time.Time  `json:"createdAt" firestore:"createdAt"`
	AcceptedAt  *time.Time `json:"acceptedAt,omitempty" firestore:"acceptedAt,omitempty"`
	ArrivedAt   *time.Time `json:"arrivedAt,omitempty" firestore:"arrivedAt,omitempty"`
	StartedAt   *time.Time `json:"startedAt,omitempty" firestore:"startedAt,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty" firestore:"completedAt,omitempty"`
	CancelledAt *time.Time `json:"cancelledAt,omitempty" firestore:"cancelledAt,omitempty"`

	CancellationReason string `json:"cancellationReason,omitempty" firestore:"cancellationReason,omitempty"`
	CancelledBy        string `json:"cancelledBy,omitempty" firestore:"cancelledBy,omitempty"`

	// RouteHazardChecked/RouteHasHazardOverlap are the SPEC_FULL §C.2
	// best-effort road-hazard annotation, set at claim time when
	// roadblocksEnabled is true. Never blocks the claim transaction.
	RouteHazardChecked   bool `json:"routeHazardChecked" firestore:"routeHazardChecked"`
	RouteHasHazardOverlap bool `json:"routeHasHazardOverlap" firestore:"routeHasHazardOverlap"`
}

// DriverOfferStatus is the offer status enum (spec §3).
type DriverOfferStatus string

const (
	OfferPending   DriverOfferStatus = "pending"
	OfferAccepted  DriverOfferStatus = "accepted"
	OfferRejected  DriverOfferStatus = "rejected"
	OfferCancelled DriverOfferStatus = "cancelled"
	OfferExpired   DriverOfferStatus = "expired"
)

// DriverOffer is the driverRequests/<driverId>/requests/<tripId> document
// (spec §3).
type DriverOffer struct {
	TripID    types.ID          `json:"tripId" firestore:"tripId"`
	DriverID  types.ID          `json:"driverId" firestore:"driverId"`
	Status    DriverOfferStatus `json:"status" firestore:"status"`
	CreatedAt time.Time         `json:"createdAt" firestore:"createdAt"`
	ExpiresAt time.Time         `json:"expiresAt" firestore:"expiresAt"`
}

// Payment is the payments/payment_<tripId> document (spec §3, §4.8).
type Payment struct {
	TripID    types.ID      `json:"tripId" firestore:"tripId"`
	PassengerID types.ID    `json:"passengerId" firestore:"passengerId"`
	DriverID  types.ID      `json:"driverId" firestore:"driverId"`
	Amount    types.ILS     `json:"amount" firestore:"amount"`
	Currency  string        `json:"currency" firestore:"currency"`
	Method    string        `json:"method" firestore:"method"`
	Status    PaymentStatus `json:"status" firestore:"status"`
	CreatedAt time.Time     `json:"createdAt" firestore:"createdAt"`
	UpdatedAt time.Time     `json:"updatedAt" firestore:"updatedAt"`
}

// Rating is the ratings/<tripId> document (SPEC_FULL §C.1).
type Rating struct {
	TripID      types.ID  `json:"tripId" firestore:"tripId"`
	PassengerID types.ID  `json:"passengerId" firestore:"passengerId"`
	DriverID    types.ID  `json:"driverId" firestore:"driverId"`
	Score       int       `json:"score" firestore:"score"`
	Comment     string    `json:"comment,omitempty" firestore:"comment,omitempty"`
	Flagged     bool      `json:"flagged" firestore:"flagged"`
	CreatedAt   time.Time `json:"createdAt" firestore:"createdAt"`
}

// SystemConfig is the system/config singleton (spec §3, §4.7).
type SystemConfig struct {
	TripsEnabled             bool      `json:"tripsEnabled" firestore:"tripsEnabled"`
	RoadblocksEnabled        bool      `json:"roadblocksEnabled" firestore:"roadblocksEnabled"`
	PaymentsEnabled          bool      `json:"paymentsEnabled" firestore:"paymentsEnabled"`
	DriverResponseTimeoutSec int       `json:"driverResponseTimeoutSec" firestore:"driverResponseTimeoutSec"`
	SearchTimeoutSec         int       `json:"searchTimeoutSec" firestore:"searchTimeoutSec"`
	DriverArrivalTimeoutSec  int       `json:"driverArrivalTimeoutSec" firestore:"driverArrivalTimeoutSec"`
	MaxActiveTripsPerDriver  int       `json:"maxActiveTripsPerDriver" firestore:"maxActiveTripsPerDriver"`
	MaxActiveTripsPerPassenger int     `json:"maxActiveTripsPerPassenger" firestore:"maxActiveTripsPerPassenger"`
	MaxSearchRadiusKm        float64   `json:"maxSearchRadiusKm" firestore:"maxSearchRadiusKm"`
	MinFareIls               types.ILS `json:"minFareIls" firestore:"minFareIls"`
	RatePerKm                float64   `json:"ratePerKm" firestore:"ratePerKm"`
	UpdatedAt                time.Time `json:"updatedAt" firestore:"updatedAt"`
	UpdatedBy                string    `json:"updatedBy,omitempty" firestore:"updatedBy,omitempty"`
}

// DefaultSystemConfig mirrors spec §4.7/§6's documented defaults, used when
// the system/config document is missing.
func DefaultSystemConfig() SystemConfig {
	return SystemConfig{
		TripsEnabled:               true,
		RoadblocksEnabled:          true,
		PaymentsEnabled:            false,
		DriverResponseTimeoutSec:   20,
		SearchTimeoutSec:           120,
		DriverArrivalTimeoutSec:    300,
		MaxActiveTripsPerDriver:    1,
		MaxActiveTripsPerPassenger: 1,
		MaxSearchRadiusKm:          15,
		MinFareIls:                 5,
		RatePerKm:                  0.5,
	}
}

// User is the users/<userId> document (spec §4.6).
type User struct {
	ID   types.ID `json:"id" firestore:"id"`
	Role Role     `json:"role" firestore:"role"`
}
