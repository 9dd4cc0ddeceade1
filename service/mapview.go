package service

import (
	"log/slog"

	"fleetdash/models"
)

// MarkerHandle is one marker on the map layer.
type MarkerHandle interface {
	SetPosition(pos models.Coordinates)
	Position() models.Coordinates
	SetLabel(label string)
}

// MapRenderer is the map collaborator. CreateMarker places a marker with
// a permanent name label on the shared overlay layer.
type MapRenderer interface {
	CreateMarker(d models.Device) MarkerHandle
	RemoveMarker(m MarkerHandle)
	SetView(center models.Coordinates, zoom int)
	ReorderMarkers(ids []string)
}

// SpatialView keeps one marker per registered device. It is a pure
// projection of registry state and holds no device logic.
type SpatialView struct {
	renderer MapRenderer
	registry *Registry
	logger   *slog.Logger

	zoom        int
	settingView bool
	onDrag      func()
}

// NewSpatialView subscribes to registry and sets the initial view.
func NewSpatialView(renderer MapRenderer, registry *Registry, center models.Coordinates, zoom int, logger *slog.Logger) *SpatialView {
	s := &SpatialView{
		renderer: renderer,
		registry: registry,
		logger:   logger,
		zoom:     zoom,
	}
	registry.Observe(s)
	s.setView(center, zoom)
	return s
}

func (s *SpatialView) DeviceAdded(e *Entry) {
	e.Marker = s.renderer.CreateMarker(e.Device)
}

// DeviceUpdated repositions the existing marker without recreating it.
func (s *SpatialView) DeviceUpdated(e *Entry) {
	if e.Marker == nil {
		e.Marker = s.renderer.CreateMarker(e.Device)
		return
	}
	e.Marker.SetPosition(e.Device.Coordinates)
	e.Marker.SetLabel(e.Device.Name)
}

func (s *SpatialView) DeviceRemoved(e *Entry) {
	if e.Marker == nil {
		return
	}
	s.renderer.RemoveMarker(e.Marker)
	e.Marker = nil
}

// DevicesReordered keeps marker order in step with the registry.
func (s *SpatialView) DevicesReordered(ids []string) {
	s.renderer.ReorderMarkers(ids)
}

// CenterOn moves the camera to the marker's current position at the
// current zoom. It reports false when the device has no marker.
func (s *SpatialView) CenterOn(id string) bool {
	e, ok := s.registry.Entry(id)
	if !ok || e.Marker == nil {
		return false
	}
	s.setView(e.Marker.Position(), s.zoom)
	return true
}

// OnUserDrag sets the callback for operator-initiated map drags.
func (s *SpatialView) OnUserDrag(fn func()) {
	s.onDrag = fn
}

// DragStarted is called by the renderer when the map starts moving
// because of a drag. Movement that starts while the view is being set
// programmatically is not a user drag: the guard covers renderers that
// raise drag events synchronously from SetView. render.Layer never does,
// and browser drags arrive later on the loop.
func (s *SpatialView) DragStarted() {
	if s.settingView {
		s.logger.Debug("ignoring drag raised by camera update")
		return
	}
	if s.onDrag != nil {
		s.onDrag()
	}
}

// ZoomChanged records the operator's zoom so re-centering keeps it.
func (s *SpatialView) ZoomChanged(zoom int) {
	s.zoom = zoom
}

func (s *SpatialView) Zoom() int {
	return s.zoom
}

func (s *SpatialView) setView(center models.Coordinates, zoom int) {
	s.settingView = true
	defer func() { s.settingView = false }()
	s.renderer.SetView(center, zoom)
}
