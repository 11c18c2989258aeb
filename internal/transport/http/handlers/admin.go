package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/SameeraMS/BusTracking-Backend/internal/transport/ws"
	"github.com/SameeraMS/BusTracking-Backend/internal/usecase"
)

// AdminHandler exposes the fleet and session administration surface.
type AdminHandler struct {
	drivers  *usecase.DriverService
	registry *usecase.SessionRegistry
	hub      *ws.Hub
}

// NewAdminHandler constructs an admin handler.
func NewAdminHandler(drivers *usecase.DriverService, registry *usecase.SessionRegistry, hub *ws.Hub) *AdminHandler {
	return &AdminHandler{drivers: drivers, registry: registry, hub: hub}
}

// RegisterRoutes binds the admin routes to the provided router group.
func (h *AdminHandler) RegisterRoutes(r *gin.RouterGroup) {
	if r == nil {
		return
	}

	r.GET("/admin/drivers", h.ListDrivers)
	r.DELETE("/admin/driver/:driverId", h.RemoveDriver)
	r.GET("/admin/sessions", h.ListSessions)
	r.GET("/admin/session-stats", h.SessionStats)
	r.DELETE("/admin/session/:sessionId", h.EndSession)
	r.GET("/admin/stats", h.DriverStats)
	r.GET("/admin/ws-stats", h.HubStats)
}

// ListDrivers returns every registered driver with the derived online flag.
func (h *AdminHandler) ListDrivers(c *gin.Context) {
	drivers, err := h.drivers.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, Fail("failed to list drivers"))
		return
	}

	views := make([]DriverView, 0, len(drivers))
	for _, d := range drivers {
		online := d.IsOnline
		views = append(views, driverView(d.Driver, &online))
	}

	c.JSON(http.StatusOK, OK(views))
}

// RemoveDriver deletes a driver profile and ends any session it holds.
func (h *AdminHandler) RemoveDriver(c *gin.Context) {
	driverID := c.Param("driverId")

	if err := h.drivers.Remove(c.Request.Context(), driverID); err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrDriverNotFound, Status: http.StatusNotFound, Message: "driver not found"},
		}, http.StatusInternalServerError, "failed to remove driver")
		return
	}

	c.JSON(http.StatusOK, OKMessage(nil, "Driver removed successfully"))
}

// ListSessions returns every currently active session.
func (h *AdminHandler) ListSessions(c *gin.Context) {
	sessions, err := h.registry.ActiveSessions(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, Fail("failed to list sessions"))
		return
	}

	views := make([]SessionView, 0, len(sessions))
	for _, s := range sessions {
		views = append(views, sessionView(s))
	}

	c.JSON(http.StatusOK, OK(views))
}

// SessionStats returns aggregate session counters.
func (h *AdminHandler) SessionStats(c *gin.Context) {
	stats, err := h.registry.Stats(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, Fail("failed to compute session stats"))
		return
	}

	c.JSON(http.StatusOK, OK(stats))
}

// EndSession force-terminates a session.
func (h *AdminHandler) EndSession(c *gin.Context) {
	sessionID := c.Param("sessionId")

	if !h.registry.End(c.Request.Context(), sessionID, "admin_termination") {
		c.JSON(http.StatusNotFound, Fail("session not found"))
		return
	}

	c.JSON(http.StatusOK, OKMessage(nil, "Session ended successfully"))
}

// DriverStats returns aggregate fleet counters.
func (h *AdminHandler) DriverStats(c *gin.Context) {
	stats, err := h.drivers.Stats(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, Fail("failed to compute driver stats"))
		return
	}

	c.JSON(http.StatusOK, OK(stats))
}

// HubStats returns broadcast hub activity counters.
func (h *AdminHandler) HubStats(c *gin.Context) {
	c.JSON(http.StatusOK, OK(h.hub.Stats()))
}
