package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"fleetdash/models"
	"fleetdash/render"
	"fleetdash/service"
)

// Server bundles what the HTTP surface reads from. Layer and List are
// only read on the dashboard loop.
type Server struct {
	Dashboard *service.Dashboard
	Layer     *render.Layer
	List      *render.List
	Hub       *WebSocketHub
	Journal   *service.Journal // nil when the journal is disabled
}

// snapshot must run on the dashboard loop.
func (s *Server) snapshot() models.Snapshot {
	return models.Snapshot{
		Session: s.Dashboard.Session.State(),
		Map:     s.Layer.Snapshot(),
		Rows:    s.List.Rows(),
		Follow:  s.Dashboard.Follow.State(),
		Notices: s.Dashboard.Notices(),
	}
}

// Snapshot returns the full view state.
func (s *Server) Snapshot(ctx context.Context) (models.Snapshot, error) {
	var snap models.Snapshot
	err := s.Dashboard.Do(ctx, func() { snap = s.snapshot() })
	return snap, err
}

// GetHealth reports liveness and whether the upstream session is usable
func GetHealth(c *gin.Context, srv *Server) {
	state, err := srv.Dashboard.SessionState(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, models.ErrorResponse(err.Error()))
		return
	}
	status := "ok"
	if state.Closed {
		status = "disconnected"
	}
	c.JSON(http.StatusOK, models.SuccessResponse(gin.H{
		"status":   status,
		"session":  state,
		"browsers": srv.Hub.ClientCount(),
	}))
}

// GetSession returns the upstream session state
func GetSession(c *gin.Context, srv *Server) {
	state, err := srv.Dashboard.SessionState(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, models.ErrorResponse(err.Error()))
		return
	}
	c.JSON(http.StatusOK, models.SuccessResponse(state))
}

// GetDevices returns all devices in registration order
func GetDevices(c *gin.Context, srv *Server) {
	devices, err := srv.Dashboard.Devices(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, models.ErrorResponse(err.Error()))
		return
	}
	c.JSON(http.StatusOK, models.SuccessResponse(devices))
}

// GetDevice returns a single device by ID
func GetDevice(c *gin.Context, srv *Server) {
	id := c.Param("device_id")
	device, ok, err := srv.Dashboard.Device(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, models.ErrorResponse(err.Error()))
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, models.ErrorResponse("device not found: "+id))
		return
	}
	c.JSON(http.StatusOK, models.SuccessResponse(device))
}

// TrackDevice presses the Track control of a device
func TrackDevice(c *gin.Context, srv *Server) {
	id := c.Param("device_id")
	state, found, err := srv.Dashboard.Track(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, models.ErrorResponse(err.Error()))
		return
	}
	if !found {
		c.JSON(http.StatusNotFound, models.ErrorResponse("device not found: "+id))
		return
	}
	c.JSON(http.StatusOK, models.FollowResponse(state))
}

// GetFollow returns the follow controller state
func GetFollow(c *gin.Context, srv *Server) {
	state, err := srv.Dashboard.FollowState(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, models.ErrorResponse(err.Error()))
		return
	}
	c.JSON(http.StatusOK, models.SuccessResponse(state))
}

// GetMap returns the camera and every marker
func GetMap(c *gin.Context, srv *Server) {
	var snap models.MapSnapshot
	if err := srv.Dashboard.Do(c.Request.Context(), func() { snap = srv.Layer.Snapshot() }); err != nil {
		c.JSON(http.StatusServiceUnavailable, models.ErrorResponse(err.Error()))
		return
	}
	c.JSON(http.StatusOK, models.SuccessResponse(snap))
}

// DragMap reports an operator drag, which cancels tracking
func DragMap(c *gin.Context, srv *Server) {
	state, err := srv.Dashboard.Drag(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, models.ErrorResponse(err.Error()))
		return
	}
	c.JSON(http.StatusOK, models.FollowResponse(state))
}

// ZoomMap records the operator's zoom level
func ZoomMap(c *gin.Context, srv *Server) {
	var req models.ZoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse(err.Error()))
		return
	}
	zoom, err := models.CheckZoom(req.Zoom)
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse(err.Error()))
		return
	}
	if err := srv.Dashboard.Zoom(c.Request.Context(), zoom); err != nil {
		c.JSON(http.StatusServiceUnavailable, models.ErrorResponse(err.Error()))
		return
	}
	c.JSON(http.StatusOK, models.SuccessResponse(gin.H{"zoom": zoom}))
}

// GetJournal returns the newest presence journal entries
func GetJournal(c *gin.Context, srv *Server) {
	if srv.Journal == nil {
		c.JSON(http.StatusNotFound, models.ErrorResponse("journal disabled"))
		return
	}
	limit := 50
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 1000 {
			c.JSON(http.StatusBadRequest, models.ErrorResponse("limit must be between 1 and 1000"))
			return
		}
		limit = n
	}
	entries, err := srv.Journal.Recent(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse(err.Error()))
		return
	}
	c.JSON(http.StatusOK, models.SuccessResponse(entries))
}
