package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/SameeraMS/BusTracking-Backend/internal/usecase"
)

// DriverHandler exposes driver registration and authentication endpoints.
type DriverHandler struct {
	drivers  *usecase.DriverService
	registry *usecase.SessionRegistry
}

// NewDriverHandler constructs a driver handler.
func NewDriverHandler(drivers *usecase.DriverService, registry *usecase.SessionRegistry) *DriverHandler {
	return &DriverHandler{drivers: drivers, registry: registry}
}

// RegisterRoutes binds driver lifecycle routes to the provided router group.
func (h *DriverHandler) RegisterRoutes(r *gin.RouterGroup) {
	if r == nil {
		return
	}

	r.POST("/driver/register", h.Register)
	r.POST("/driver/login", h.Login)
	r.POST("/driver/logout", h.Logout)
	r.POST("/driver/validate-session", h.ValidateSession)
	r.GET("/driver/status/:driverId", h.Status)
	r.GET("/driver/details/:driverId", h.Details)
}

// Register creates a new driver profile.
func (h *DriverHandler) Register(c *gin.Context) {
	var req RegisterDriverRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Fail("invalid request body"))
		return
	}

	driver, err := h.drivers.Register(c.Request.Context(), usecase.DriverRegistration{
		Name:          req.Name,
		Phone:         req.Phone,
		LicenseNumber: req.LicenseNumber,
		BusID:         req.BusID,
		RouteID:       req.RouteID,
		DeviceID:      req.DeviceID,
	})
	if err != nil {
		RespondWithMappedError(c, err, nil, http.StatusInternalServerError, "failed to register driver")
		return
	}

	c.JSON(http.StatusCreated, OKMessage(driverView(*driver, nil), "Driver registered successfully"))
}

// Login authenticates a driver by phone and device and issues a session.
func (h *DriverHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Fail("phone and deviceId are required"))
		return
	}

	driver, session, err := h.drivers.Login(c.Request.Context(), req.Phone, req.DeviceID)
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrDriverNotFound, Status: http.StatusUnauthorized, Message: "invalid phone number"},
			{Err: usecase.ErrDeviceMismatch, Status: http.StatusUnauthorized, Message: "device not recognized"},
		}, http.StatusInternalServerError, "failed to authenticate driver")
		return
	}

	c.JSON(http.StatusOK, OKMessage(gin.H{
		"driver":  driverView(*driver, nil),
		"session": sessionView(*session),
	}, "Authentication successful"))
}

// Logout ends the driver's session.
func (h *DriverHandler) Logout(c *gin.Context) {
	var req SessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Fail("sessionId is required"))
		return
	}

	if !h.drivers.Logout(c.Request.Context(), req.SessionID) {
		c.JSON(http.StatusNotFound, Fail("session not found"))
		return
	}

	c.JSON(http.StatusOK, OKMessage(nil, "Logged out successfully"))
}

// ValidateSession checks whether a session is still valid, refreshing its
// activity timestamp when it is.
func (h *DriverHandler) ValidateSession(c *gin.Context) {
	var req SessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Fail("sessionId is required"))
		return
	}

	if !h.registry.Validate(c.Request.Context(), req.SessionID) {
		c.JSON(http.StatusUnauthorized, Fail("session invalid or expired"))
		return
	}

	session, err := h.registry.Get(c.Request.Context(), req.SessionID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, Fail("failed to load session"))
		return
	}

	c.JSON(http.StatusOK, OK(sessionView(*session)))
}

// Status reports whether a driver is currently online.
func (h *DriverHandler) Status(c *gin.Context) {
	driverID := c.Param("driverId")

	driver, err := h.drivers.Get(c.Request.Context(), driverID)
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrDriverNotFound, Status: http.StatusNotFound, Message: "driver not found"},
		}, http.StatusInternalServerError, "failed to load driver")
		return
	}

	session, _ := h.registry.SessionFor(c.Request.Context(), driverID)

	c.JSON(http.StatusOK, OK(gin.H{
		"driverId":   driver.ID,
		"isOnline":   driver.Online(timeNow(), usecase.DefaultOnlineWindow),
		"hasSession": session != nil,
		"lastSeen":   driver.LastSeen,
	}))
}

// Details returns the full driver profile.
func (h *DriverHandler) Details(c *gin.Context) {
	driverID := c.Param("driverId")

	driver, err := h.drivers.Get(c.Request.Context(), driverID)
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrDriverNotFound, Status: http.StatusNotFound, Message: "driver not found"},
		}, http.StatusInternalServerError, "failed to load driver")
		return
	}

	online := driver.Online(timeNow(), usecase.DefaultOnlineWindow)
	c.JSON(http.StatusOK, OK(driverView(*driver, &online)))
}
