package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/SameeraMS/BusTracking-Backend/internal/core/domain"
	"github.com/SameeraMS/BusTracking-Backend/internal/usecase"
)

// timeNow is swappable for handler tests.
var timeNow = func() time.Time { return time.Now().UTC() }

// LocationHandler exposes the GPS ingestion and read endpoints.
type LocationHandler struct {
	ingest    *usecase.IngestService
	locations *usecase.LocationService
	drivers   *usecase.DriverService
}

// NewLocationHandler constructs a location handler.
func NewLocationHandler(ingest *usecase.IngestService, locations *usecase.LocationService, drivers *usecase.DriverService) *LocationHandler {
	return &LocationHandler{ingest: ingest, locations: locations, drivers: drivers}
}

// RegisterRoutes binds ingestion and passenger-facing read routes.
func (h *LocationHandler) RegisterRoutes(r *gin.RouterGroup) {
	if r == nil {
		return
	}

	r.POST("/driver/location", h.UpdateLocation)
	r.POST("/driver/status", h.UpdateStatus)
	r.GET("/driver/location/:driverId", h.DriverLocation)
	r.GET("/buses/live", h.LiveBuses)
	r.GET("/buses/route/:routeId", h.BusesByRoute)
	r.GET("/bus/:busId/location", h.BusLocation)
	r.GET("/bus/:busId/history", h.BusHistory)
}

// UpdateLocation submits one GPS fix through the ordering pipeline. The call
// returns once the fix has been durably committed.
func (h *LocationHandler) UpdateLocation(c *gin.Context) {
	var req LocationUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Fail("invalid request body"))
		return
	}

	sub := usecase.FixSubmission{
		DriverID:  req.DriverID,
		BusID:     req.BusID,
		RouteID:   req.RouteID,
		Latitude:  req.Latitude,
		Longitude: req.Longitude,
		Heading:   req.Heading,
		Speed:     req.Speed,
		Accuracy:  req.Accuracy,
		Status:    req.Status,
	}
	if req.Timestamp != nil {
		sub.Timestamp = *req.Timestamp
	}

	receipt, err := h.ingest.Submit(c.Request.Context(), sub, req.SessionID)
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrSessionRequired, Status: http.StatusUnauthorized, Message: "valid session required"},
		}, http.StatusInternalServerError, "failed to store location")
		return
	}

	c.JSON(http.StatusOK, OKMessage(receipt, "Location updated successfully"))
}

// UpdateStatus applies an explicit driver status change. Requires a valid session.
func (h *LocationHandler) UpdateStatus(c *gin.Context) {
	var req StatusUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Fail("driverId, sessionId and status are required"))
		return
	}

	fix, err := h.ingest.UpdateStatus(c.Request.Context(), req.DriverID, req.SessionID, domain.FixStatus(req.Status))
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrSessionRequired, Status: http.StatusUnauthorized, Message: "valid session required"},
			{Err: usecase.ErrLocationNotFound, Status: http.StatusNotFound, Message: "no location data for driver"},
		}, http.StatusInternalServerError, "failed to update status")
		return
	}

	c.JSON(http.StatusOK, OKMessage(fixView(*fix), "Status updated successfully"))
}

// DriverLocation returns the most recent fix for a driver.
func (h *LocationHandler) DriverLocation(c *gin.Context) {
	driverID := c.Param("driverId")

	fix, err := h.locations.Current(c.Request.Context(), driverID)
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrLocationNotFound, Status: http.StatusNotFound, Message: "no location data found for the specified driver"},
		}, http.StatusInternalServerError, "failed to load driver location")
		return
	}

	c.JSON(http.StatusOK, OK(fixView(*fix)))
}

// LiveBuses returns the latest fix for every driver reporting recently.
func (h *LocationHandler) LiveBuses(c *gin.Context) {
	fixes, err := h.locations.Active(c.Request.Context(), 0)
	if err != nil {
		c.JSON(http.StatusInternalServerError, Fail("failed to load live bus locations"))
		return
	}

	c.JSON(http.StatusOK, APIResponse{
		Success: true,
		Data:    fixViews(fixes),
		Message: strconv.Itoa(len(fixes)) + " live buses",
	})
}

// BusesByRoute returns the latest fix per driver reporting on a route.
func (h *LocationHandler) BusesByRoute(c *gin.Context) {
	routeID := c.Param("routeId")

	fixes, err := h.locations.ByRoute(c.Request.Context(), routeID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, Fail("failed to load buses for route"))
		return
	}

	c.JSON(http.StatusOK, OK(fixViews(fixes)))
}

// BusLocation returns the latest fix reported for a bus.
func (h *LocationHandler) BusLocation(c *gin.Context) {
	busID := c.Param("busId")

	fix, err := h.locations.ByBus(c.Request.Context(), busID)
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrLocationNotFound, Status: http.StatusNotFound, Message: "no bus found with the specified ID"},
		}, http.StatusInternalServerError, "failed to load bus location")
		return
	}

	c.JSON(http.StatusOK, OK(fixView(*fix)))
}

// BusHistory returns the recent fix history for the driver assigned to a bus,
// oldest first.
func (h *LocationHandler) BusHistory(c *gin.Context) {
	busID := c.Param("busId")

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			c.JSON(http.StatusBadRequest, Fail("limit must be a non-negative integer"))
			return
		}
		limit = parsed
	}

	driver, err := h.drivers.ByBus(c.Request.Context(), busID)
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrDriverNotFound, Status: http.StatusNotFound, Message: "no bus found with the specified ID"},
		}, http.StatusInternalServerError, "failed to load bus history")
		return
	}

	fixes, err := h.locations.History(c.Request.Context(), driver.ID, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, Fail("failed to load bus history"))
		return
	}

	c.JSON(http.StatusOK, OK(fixViews(fixes)))
}
