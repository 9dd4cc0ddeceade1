// Package render holds the concrete collaborators the dashboard draws
// on: an in-memory marker layer and device list that mirror every change
// to attached browsers, and a console notifier.
package render

import (
	"fleetdash/models"
	"fleetdash/service"
)

// Publisher pushes view events to browsers.
type Publisher interface {
	BroadcastToAll(message interface{})
}

type nopPublisher struct{}

func (nopPublisher) BroadcastToAll(interface{}) {}

// Layer is the shared marker overlay plus the camera. It is only used
// from the dashboard loop.
type Layer struct {
	publisher Publisher
	markers   map[string]*Marker
	order     []string
	camera    models.Camera
}

var _ service.MapRenderer = (*Layer)(nil)

func NewLayer(publisher Publisher) *Layer {
	if publisher == nil {
		publisher = nopPublisher{}
	}
	return &Layer{
		publisher: publisher,
		markers:   make(map[string]*Marker),
	}
}

// Marker is one device marker with its permanent tooltip label.
type Marker struct {
	layer *Layer
	view  models.MarkerView
}

func (m *Marker) SetPosition(pos models.Coordinates) {
	if m.view.Position == pos {
		return
	}
	m.view.Position = pos
	m.layer.publish(models.ViewMarkerMoved, m.view)
}

func (m *Marker) Position() models.Coordinates {
	return m.view.Position
}

func (m *Marker) SetLabel(label string) {
	if m.view.Label == label {
		return
	}
	m.view.Label = label
	m.layer.publish(models.ViewMarkerMoved, m.view)
}

func (m *Marker) View() models.MarkerView {
	return m.view
}

func (l *Layer) CreateMarker(d models.Device) service.MarkerHandle {
	m := &Marker{
		layer: l,
		view: models.MarkerView{
			ID:       d.ID,
			Label:    d.Name,
			Position: d.Coordinates,
		},
	}
	if _, exists := l.markers[d.ID]; !exists {
		l.order = append(l.order, d.ID)
	}
	l.markers[d.ID] = m
	l.publish(models.ViewMarkerAdded, m.view)
	return m
}

func (l *Layer) RemoveMarker(h service.MarkerHandle) {
	m, ok := h.(*Marker)
	if !ok || l.markers[m.view.ID] != m {
		return
	}
	delete(l.markers, m.view.ID)
	for i, id := range l.order {
		if id == m.view.ID {
			l.order = append(l.order[:i], l.order[i+1:]...)
			break
		}
	}
	l.publish(models.ViewMarkerRemoved, models.MarkerView{ID: m.view.ID})
}

func (l *Layer) SetView(center models.Coordinates, zoom int) {
	next := models.Camera{Center: center, Zoom: zoom}
	if l.camera == next {
		return
	}
	l.camera = next
	l.publish(models.ViewCamera, next)
}

func (l *Layer) Camera() models.Camera {
	return l.camera
}

// Marker returns the marker for id, if any.
func (l *Layer) Marker(id string) (models.MarkerView, bool) {
	m, ok := l.markers[id]
	if !ok {
		return models.MarkerView{}, false
	}
	return m.view, true
}

func (l *Layer) Len() int {
	return len(l.markers)
}

// ReorderMarkers sets the snapshot order. Markers not named keep their
// relative order after the named ones. Browsers draw markers unordered,
// so nothing is published.
func (l *Layer) ReorderMarkers(ids []string) {
	order := make([]string, 0, len(l.order))
	placed := make(map[string]bool, len(l.order))
	for _, id := range ids {
		if _, ok := l.markers[id]; ok && !placed[id] {
			placed[id] = true
			order = append(order, id)
		}
	}
	for _, id := range l.order {
		if !placed[id] {
			order = append(order, id)
		}
	}
	l.order = order
}

// Snapshot returns the camera and every marker in registry order.
func (l *Layer) Snapshot() models.MapSnapshot {
	snap := models.MapSnapshot{
		Camera:  l.camera,
		Markers: make([]models.MarkerView, 0, len(l.order)),
	}
	for _, id := range l.order {
		snap.Markers = append(snap.Markers, l.markers[id].view)
	}
	return snap
}

func (l *Layer) publish(kind models.ViewEventType, data interface{}) {
	l.publisher.BroadcastToAll(models.ViewEvent{Type: kind, Data: data})
}
