package httpapi

import (
	"github.com/gin-gonic/gin"

	"ark/internal/authn"
	"ark/internal/authz"
	"ark/internal/core"
)

// NewRouter wires one route per operation onto a gin engine, grounded
// on the teacher's internal/http/router.go NewRouter shape (construct
// handlers, register routes, return the handler). Every route besides
// /health requires a verified caller.
func NewRouter(c *core.Core, verifier authn.Verifier, resolver *authz.Resolver) *gin.Engine {
	r := gin.New()
	r.Use(Recovery(), Logging())

	r.GET("/health", func(ctx *gin.Context) {
		ctx.Status(200)
	})

	h := NewHandlers(c)

	api := r.Group("/api")
	api.Use(Auth(verifier, resolver), OperationLogging())

	api.POST("/trips", h.RequestTrip)
	api.GET("/trips/:tripId", h.GetTrip)
	api.POST("/trips/:tripId/accept", h.AcceptOffer)
	api.POST("/trips/:tripId/reject", h.RejectOffer)
	api.POST("/trips/:tripId/driver-arrived", h.DriverArrived)
	api.POST("/trips/:tripId/start", h.StartTrip)
	api.POST("/trips/:tripId/complete", h.CompleteTrip)
	api.POST("/trips/:tripId/confirm-cash-payment", h.ConfirmCashPayment)
	api.POST("/trips/:tripId/cancel", h.CancelByPassenger)
	api.POST("/trips/:tripId/cancel-by-driver", h.CancelByDriver)
	api.POST("/trips/:tripId/rating", h.SubmitRating)
	api.GET("/trips/:tripId/payment", h.GetPayment)

	api.POST("/drivers/online", h.SetDriverOnline)
	api.POST("/drivers/location", h.UpdateDriverLocation)

	api.GET("/system-config", h.GetSystemConfig)
	api.POST("/manager/trips/:tripId/force-cancel", h.ManagerForceCancel)
	api.POST("/manager/toggle-trips", h.ManagerToggleTrips)
	api.POST("/manager/toggle-feature-flag", h.ManagerToggleFeatureFlag)

	return r
}
