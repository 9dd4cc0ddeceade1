package service

import (
	"log/slog"

	"fleetdash/models"
)

// RowHandle is one entry of the device list.
type RowHandle interface {
	Update(row models.Row)
	Row() models.Row
}

// ListRenderer is the list collaborator.
type ListRenderer interface {
	AppendRow(row models.Row) RowHandle
	RemoveRow(h RowHandle)
	ReorderRows(ids []string)
}

// FollowRequester receives "Track" clicks.
type FollowRequester interface {
	RequestFollow(id string)
}

var deviceIcons = map[models.DeviceType]string{
	models.DeviceMobile: "images/mobile.png",
	models.DeviceTablet: "images/tablet.png",
	models.DevicePC:     "images/pc.png",
}

// ListView keeps one row per registered device and owns the track
// labels shown on them.
type ListView struct {
	renderer ListRenderer
	registry *Registry
	follower FollowRequester
	logger   *slog.Logger
}

func NewListView(renderer ListRenderer, registry *Registry, logger *slog.Logger) *ListView {
	l := &ListView{
		renderer: renderer,
		registry: registry,
		logger:   logger,
	}
	registry.Observe(l)
	return l
}

// SetFollower wires the Track control to the follow controller.
func (l *ListView) SetFollower(f FollowRequester) {
	l.follower = f
}

func (l *ListView) DeviceAdded(e *Entry) {
	e.Row = l.renderer.AppendRow(BuildRow(e.Device, false))
}

func (l *ListView) DeviceUpdated(e *Entry) {
	if e.Row == nil {
		e.Row = l.renderer.AppendRow(BuildRow(e.Device, false))
		return
	}
	e.Row.Update(BuildRow(e.Device, e.Row.Row().Tracking))
}

func (l *ListView) DeviceRemoved(e *Entry) {
	if e.Row == nil {
		return
	}
	l.renderer.RemoveRow(e.Row)
	e.Row = nil
}

// DevicesReordered keeps row order in step with the registry.
func (l *ListView) DevicesReordered(ids []string) {
	l.renderer.ReorderRows(ids)
}

// Click handles the Track control of row id. It reports false when the
// row does not exist.
func (l *ListView) Click(id string) bool {
	if !l.registry.Has(id) {
		l.logger.Warn("track clicked for unknown device", "device_id", id)
		return false
	}
	if l.follower != nil {
		l.follower.RequestFollow(id)
	}
	return true
}

// MarkTracking switches row id to "Stop tracking".
func (l *ListView) MarkTracking(id string) {
	e, ok := l.registry.Entry(id)
	if !ok || e.Row == nil {
		return
	}
	e.Row.Update(BuildRow(e.Device, true))
}

// ResetTracking puts every row back to "Track".
func (l *ListView) ResetTracking() {
	for _, d := range l.registry.All() {
		e, _ := l.registry.Entry(d.ID)
		if e.Row == nil || !e.Row.Row().Tracking {
			continue
		}
		e.Row.Update(BuildRow(e.Device, false))
	}
}

// BuildRow renders d as a list row.
func BuildRow(d models.Device, tracking bool) models.Row {
	row := models.Row{
		ID:         d.ID,
		Name:       d.Name,
		Icon:       deviceIcons[d.Type],
		Tracking:   tracking,
		TrackLabel: models.LabelTrack,
	}
	if tracking {
		row.TrackLabel = models.LabelStopTracking
	}
	if d.BatteryLevel != nil {
		level := *d.BatteryLevel
		row.Battery = &level
		row.Tier = models.BatteryTier(level)
	}
	return row
}
