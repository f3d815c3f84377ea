// Package core is the admission / callable API (spec §4.1, component C10):
// one function per RPC operation, each running the six-step sequence spec
// §4.1 names — extract identity, validate payload, consult the kill switch,
// resolve role, dispatch to matching/trip, translate errors — before
// handing off to internal/matching or internal/trip. internal/httpapi is
// the only caller; this package has no transport concerns of its own.
package core

import (
	"context"

	"ark/internal/apperr"
	"ark/internal/authz"
	"ark/internal/manager"
	"ark/internal/matching"
	"ark/internal/model"
	"ark/internal/moderation"
	"ark/internal/payment"
	"ark/internal/store"
	"ark/internal/sysconfig"
	"ark/internal/trip"
	"ark/internal/types"
)

// GeoIndex is the subset of geoindex.Index Core needs to keep the
// nearest-driver index in step with driver location/availability writes.
type GeoIndex interface {
	Upsert(ctx context.Context, driverID types.ID, at types.Point) error
	Remove(ctx context.Context, driverID types.ID) error
}

// Core wires every component the admission layer dispatches to.
type Core struct {
	store      store.Store
	cfg        *sysconfig.Reader
	authz      *authz.Resolver
	matching   *matching.Service
	trip       *trip.Service
	payment    *payment.Reader
	manager    *manager.Controls
	moderation moderation.Classifier
	geo        GeoIndex
}

func New(st store.Store, cfg *sysconfig.Reader, az *authz.Resolver, m *matching.Service, tr *trip.Service, pay *payment.Reader, mgr *manager.Controls, mod moderation.Classifier, geo GeoIndex) *Core {
	return &Core{store: st, cfg: cfg, authz: az, matching: m, trip: tr, payment: pay, manager: mgr, moderation: mod, geo: geo}
}

// RequestTripInput is requestTrip's validated payload.
type RequestTripInput struct {
	Pickup               types.Point
	Dropoff              types.Point
	EstimatedDistanceKm  float64
	EstimatedDurationMin float64
}

func (in RequestTripInput) validate() error {
	if in.Pickup == (types.Point{}) && in.Dropoff == (types.Point{}) {
		return apperr.New(apperr.InvalidArgument, "pickup and dropoff are required")
	}
	if in.EstimatedDistanceKm < 0 {
		return apperr.New(apperr.InvalidArgument, "estimatedDistanceKm must be non-negative")
	}
	return nil
}

// RequestTrip implements spec §4.1/§4.2 requestTrip. Every other operation
// below follows the same step order: auth (done by the caller, which
// supplies callerID already verified) -> validate -> kill-switch (only this
// one consults it, per spec §4.1 step 3) -> role -> dispatch -> translate.
func (c *Core) RequestTrip(ctx context.Context, callerID types.ID, in RequestTripInput) (matching.Result, error) {
	if err := in.validate(); err != nil {
		return matching.Result{}, err
	}

	cfg, err := c.cfg.Get(ctx)
	if err != nil {
		return matching.Result{}, apperr.Wrap(err)
	}
	if !cfg.TripsEnabled {
		return matching.Result{}, apperr.New(apperr.ServiceDisabled, "trip creation is currently disabled")
	}

	if err := c.requireNoActiveTrip(ctx, "passengerId", callerID, cfg.MaxActiveTripsPerPassenger); err != nil {
		return matching.Result{}, err
	}

	return c.matching.RequestTrip(ctx, callerID, in.Pickup, in.Dropoff, in.EstimatedDistanceKm, in.EstimatedDurationMin)
}

// requireNoActiveTrip enforces the per-actor active-trip cap (spec §3
// invariant 3, §4.2 step 2, §6 config table's maxActiveTripsPerPassenger/
// maxActiveTripsPerDriver).
func (c *Core) requireNoActiveTrip(ctx context.Context, field string, actorID types.ID, maxActive int) error {
	active := 0
	for _, status := range model.ActiveTripStatuses {
		docs, err := c.store.Collection(model.CollectionTrips).
			Where(field, store.OpEqual, actorID).
			Where("status", store.OpEqual, status).
			Documents(ctx)
		if err != nil {
			return apperr.Wrap(err)
		}
		active += len(docs)
	}
	if active >= maxActive {
		return apperr.New(apperr.InvalidArgument, "actor already has an active trip")
	}
	return nil
}

// AcceptOffer implements acceptOffer(tripId).
func (c *Core) AcceptOffer(ctx context.Context, callerID, tripID types.ID) error {
	return c.trip.AcceptOffer(ctx, callerID, tripID)
}

// RejectOffer implements rejectOffer(tripId).
func (c *Core) RejectOffer(ctx context.Context, callerID, tripID types.ID) error {
	return c.trip.RejectOffer(ctx, callerID, tripID)
}

// DriverArrived implements driverArrived(tripId).
func (c *Core) DriverArrived(ctx context.Context, callerID, tripID types.ID) error {
	return c.trip.DriverArrived(ctx, callerID, tripID)
}

// StartTrip implements startTrip(tripId).
func (c *Core) StartTrip(ctx context.Context, callerID, tripID types.ID) error {
	return c.trip.StartTrip(ctx, callerID, tripID)
}

// CompleteTrip implements completeTrip(tripId); finalPriceIls per spec
// §4.3 equals Trip.fareAmount.
func (c *Core) CompleteTrip(ctx context.Context, callerID, tripID types.ID) (types.ILS, error) {
	return c.trip.CompleteTrip(ctx, callerID, tripID)
}

// ConfirmCashPayment implements confirmCashPayment(tripId).
func (c *Core) ConfirmCashPayment(ctx context.Context, callerID, tripID types.ID) error {
	return c.trip.ConfirmCashPayment(ctx, callerID, tripID)
}

// CancelByPassenger implements cancelByPassenger(tripId).
func (c *Core) CancelByPassenger(ctx context.Context, callerID, tripID types.ID) error {
	return c.trip.CancelByPassenger(ctx, callerID, tripID, "")
}

// CancelByDriver implements cancelByDriver(tripId, reason?).
func (c *Core) CancelByDriver(ctx context.Context, callerID, tripID types.ID, reason string) error {
	return c.trip.CancelByDriver(ctx, callerID, tripID, reason)
}

// ManagerForceCancel implements managerForceCancel(tripId, reason?);
// caller role must resolve to manager or admin.
func (c *Core) ManagerForceCancel(ctx context.Context, callerID, tripID types.ID, reason string) error {
	role, err := c.authz.Role(ctx, callerID)
	if err != nil {
		return err
	}
	if err := authz.RequireManager(role); err != nil {
		return err
	}
	return c.manager.ForceCancel(ctx, tripID, reason)
}

// ManagerToggleTrips implements managerToggleTrips(enabled).
func (c *Core) ManagerToggleTrips(ctx context.Context, callerID types.ID, enabled bool) error {
	role, err := c.authz.Role(ctx, callerID)
	if err != nil {
		return err
	}
	if err := authz.RequireManager(role); err != nil {
		return err
	}
	return c.manager.ToggleTrips(ctx, enabled, callerID)
}

// ManagerToggleFeatureFlag implements managerToggleFeatureFlag(flag, enabled).
func (c *Core) ManagerToggleFeatureFlag(ctx context.Context, callerID types.ID, flag string, enabled bool) error {
	role, err := c.authz.Role(ctx, callerID)
	if err != nil {
		return err
	}
	if err := authz.RequireManager(role); err != nil {
		return err
	}
	return c.manager.ToggleFeatureFlag(ctx, flag, enabled, callerID)
}

// GetSystemConfig implements getSystemConfig(); any authenticated caller may
// read it (spec names no role restriction for the read side).
func (c *Core) GetSystemConfig(ctx context.Context) (model.SystemConfig, error) {
	return c.manager.GetSystemConfig(ctx)
}

// GetPayment is the read-path companion to confirmCashPayment, used by
// internal/httpapi to answer payment-status queries.
func (c *Core) GetPayment(ctx context.Context, tripID types.ID) (model.Payment, error) {
	return c.payment.Get(ctx, tripID)
}

// GetTrip reads a trip by id for response assembly.
func (c *Core) GetTrip(ctx context.Context, tripID types.ID) (model.Trip, error) {
	return c.trip.Get(ctx, tripID)
}
