package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"ark/internal/core"
	"ark/internal/types"
)

// Handlers binds internal/core.Core to gin route handlers. One method
// per spec §4.1 operation plus the SPEC_FULL §C supplements, following
// the teacher's handlers/order_handler.go shape (decode request,
// dispatch to the service, writeJSON/writeError) but against Core
// instead of a single module service.
type Handlers struct {
	core *core.Core
}

func NewHandlers(c *core.Core) *Handlers {
	return &Handlers{core: c}
}

type requestTripReq struct {
	PickupLat            float64 `json:"pickupLat"`
	PickupLng            float64 `json:"pickupLng"`
	DropoffLat           float64 `json:"dropoffLat"`
	DropoffLng           float64 `json:"dropoffLng"`
	EstimatedDistanceKm  float64 `json:"estimatedDistanceKm"`
	EstimatedDurationMin float64 `json:"estimatedDurationMin"`
}

func (h *Handlers) RequestTrip(c *gin.Context) {
	var req requestTripReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.core.RequestTrip(c.Request.Context(), CallerID(c), core.RequestTripInput{
		Pickup:               types.Point{Lat: req.PickupLat, Lng: req.PickupLng},
		Dropoff:              types.Point{Lat: req.DropoffLat, Lng: req.DropoffLng},
		EstimatedDistanceKm:  req.EstimatedDistanceKm,
		EstimatedDurationMin: req.EstimatedDurationMin,
	})
	if err != nil {
		writeErrorFromErr(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, result)
}

func (h *Handlers) AcceptOffer(c *gin.Context) {
	if err := h.core.AcceptOffer(c.Request.Context(), CallerID(c), types.ID(c.Param("tripId"))); err != nil {
		writeErrorFromErr(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"status": "accepted"})
}

func (h *Handlers) RejectOffer(c *gin.Context) {
	if err := h.core.RejectOffer(c.Request.Context(), CallerID(c), types.ID(c.Param("tripId"))); err != nil {
		writeErrorFromErr(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"status": "no_driver_available"})
}

func (h *Handlers) DriverArrived(c *gin.Context) {
	if err := h.core.DriverArrived(c.Request.Context(), CallerID(c), types.ID(c.Param("tripId"))); err != nil {
		writeErrorFromErr(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"status": "driver_arrived"})
}

func (h *Handlers) StartTrip(c *gin.Context) {
	if err := h.core.StartTrip(c.Request.Context(), CallerID(c), types.ID(c.Param("tripId"))); err != nil {
		writeErrorFromErr(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"status": "in_progress"})
}

func (h *Handlers) CompleteTrip(c *gin.Context) {
	price, err := h.core.CompleteTrip(c.Request.Context(), CallerID(c), types.ID(c.Param("tripId")))
	if err != nil {
		writeErrorFromErr(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"status": "completed", "finalPriceIls": price})
}

func (h *Handlers) ConfirmCashPayment(c *gin.Context) {
	if err := h.core.ConfirmCashPayment(c.Request.Context(), CallerID(c), types.ID(c.Param("tripId"))); err != nil {
		writeErrorFromErr(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"status": "paid"})
}

type cancelReq struct {
	Reason string `json:"reason"`
}

func (h *Handlers) CancelByPassenger(c *gin.Context) {
	if err := h.core.CancelByPassenger(c.Request.Context(), CallerID(c), types.ID(c.Param("tripId"))); err != nil {
		writeErrorFromErr(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"status": "cancelled"})
}

func (h *Handlers) CancelByDriver(c *gin.Context) {
	var req cancelReq
	_ = c.ShouldBindJSON(&req)
	if err := h.core.CancelByDriver(c.Request.Context(), CallerID(c), types.ID(c.Param("tripId")), req.Reason); err != nil {
		writeErrorFromErr(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"status": "cancelled"})
}

func (h *Handlers) ManagerForceCancel(c *gin.Context) {
	var req cancelReq
	_ = c.ShouldBindJSON(&req)
	if err := h.core.ManagerForceCancel(c.Request.Context(), CallerID(c), types.ID(c.Param("tripId")), req.Reason); err != nil {
		writeErrorFromErr(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"status": "cancelled"})
}

type toggleTripsReq struct {
	Enabled bool `json:"enabled"`
}

func (h *Handlers) ManagerToggleTrips(c *gin.Context) {
	var req toggleTripsReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.core.ManagerToggleTrips(c.Request.Context(), CallerID(c), req.Enabled); err != nil {
		writeErrorFromErr(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"tripsEnabled": req.Enabled})
}

type toggleFlagReq struct {
	Flag    string `json:"flag"`
	Enabled bool   `json:"enabled"`
}

func (h *Handlers) ManagerToggleFeatureFlag(c *gin.Context) {
	var req toggleFlagReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.core.ManagerToggleFeatureFlag(c.Request.Context(), CallerID(c), req.Flag, req.Enabled); err != nil {
		writeErrorFromErr(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{req.Flag: req.Enabled})
}

func (h *Handlers) GetSystemConfig(c *gin.Context) {
	cfg, err := h.core.GetSystemConfig(c.Request.Context())
	if err != nil {
		writeErrorFromErr(c, err)
		return
	}
	writeJSON(c, http.StatusOK, cfg)
}

func (h *Handlers) GetTrip(c *gin.Context) {
	t, err := h.core.GetTrip(c.Request.Context(), types.ID(c.Param("tripId")))
	if err != nil {
		writeErrorFromErr(c, err)
		return
	}
	writeJSON(c, http.StatusOK, t)
}

func (h *Handlers) GetPayment(c *gin.Context) {
	p, err := h.core.GetPayment(c.Request.Context(), types.ID(c.Param("tripId")))
	if err != nil {
		writeErrorFromErr(c, err)
		return
	}
	writeJSON(c, http.StatusOK, p)
}

type submitRatingReq struct {
	Score   int    `json:"score"`
	Comment string `json:"comment"`
}

func (h *Handlers) SubmitRating(c *gin.Context) {
	var req submitRatingReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.core.SubmitRating(c.Request.Context(), CallerID(c), types.ID(c.Param("tripId")), req.Score, req.Comment); err != nil {
		writeErrorFromErr(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"status": "submitted"})
}

type setDriverOnlineReq struct {
	IsOnline bool `json:"isOnline"`
}

func (h *Handlers) SetDriverOnline(c *gin.Context) {
	var req setDriverOnlineReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.core.SetDriverOnline(c.Request.Context(), CallerID(c), req.IsOnline); err != nil {
		writeErrorFromErr(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"isOnline": req.IsOnline})
}

type updateDriverLocationReq struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

func (h *Handlers) UpdateDriverLocation(c *gin.Context) {
	var req updateDriverLocationReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.core.UpdateDriverLocation(c.Request.Context(), CallerID(c), types.Point{Lat: req.Lat, Lng: req.Lng}); err != nil {
		writeErrorFromErr(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"status": "ok"})
}
