package service

import (
	"log/slog"
	"time"

	"fleetdash/models"
)

// Scheduler runs fn every d until the returned cancel func is called.
// After cancel returns, fn is never invoked again.
type Scheduler interface {
	Every(d time.Duration, fn func()) (cancel func())
}

// Camera re-centers the map on a device's current marker position.
type Camera interface {
	CenterOn(id string) bool
}

// TrackIndicator owns the Track/Stop tracking labels.
type TrackIndicator interface {
	MarkTracking(id string)
	ResetTracking()
}

// FollowMode is the state of the follow controller.
type FollowMode int

const (
	FollowIdle      FollowMode = iota // No device tracked
	FollowFollowing                   // Re-centering on one device every tick
)

func (m FollowMode) String() string {
	return [...]string{"IDLE", "FOLLOWING"}[m]
}

// FollowController tracks at most one device at a time. It only reads
// the registry and writes the camera.
type FollowController struct {
	registry  *Registry
	camera    Camera
	scheduler Scheduler
	indicator TrackIndicator
	notifier  Notifier
	interval  time.Duration
	logger    *slog.Logger
	onChange  func(prev, next models.FollowState)

	mode   FollowMode
	target string
	cancel func()
}

// NewFollowController subscribes to registry removals.
func NewFollowController(registry *Registry, camera Camera, scheduler Scheduler, indicator TrackIndicator, notifier Notifier, interval time.Duration, logger *slog.Logger) *FollowController {
	f := &FollowController{
		registry:  registry,
		camera:    camera,
		scheduler: scheduler,
		indicator: indicator,
		notifier:  notifier,
		interval:  interval,
		logger:    logger,
	}
	registry.Observe(f)
	return f
}

// OnChange sets a callback invoked after every state transition.
func (f *FollowController) OnChange(fn func(prev, next models.FollowState)) {
	f.onChange = fn
}

// State reports the current follow target.
func (f *FollowController) State() models.FollowState {
	return models.FollowState{Following: f.mode == FollowFollowing, DeviceID: f.target}
}

func (f *FollowController) Mode() FollowMode {
	return f.mode
}

// RequestFollow toggles following id. Requesting the followed device
// stops following; requesting another device switches to it.
func (f *FollowController) RequestFollow(id string) {
	device, ok := f.registry.Get(id)
	if !ok {
		f.logger.Warn("follow requested for unknown device", "device_id", id)
		return
	}

	if f.mode == FollowFollowing && f.target == id {
		f.stop()
		f.notifier.Notify(models.Notification{
			Kind:  models.NotifyInfo,
			Title: "Stopped tracking " + device.Name,
			Toast: true,
		})
		return
	}

	prev := f.State()
	f.clearTimer()
	f.indicator.ResetTracking()

	f.mode = FollowFollowing
	f.target = id
	f.indicator.MarkTracking(id)
	f.camera.CenterOn(id)
	f.cancel = f.scheduler.Every(f.interval, func() { f.tick(id) })

	f.logger.Info("🎯 following device", "device_id", id, "interval", f.interval)
	f.changed(prev)
	f.notifier.Notify(models.Notification{
		Kind:  models.NotifyInfo,
		Title: "Tracking " + device.Name,
		Toast: true,
	})
}

// UserDragged cancels following when the operator drags the map.
func (f *FollowController) UserDragged() {
	if f.mode != FollowFollowing {
		return
	}
	f.stop()
	f.notifier.Notify(models.Notification{
		Kind:  models.NotifyWarning,
		Title: "Map dragged, stopped tracking.",
		Toast: true,
	})
}

// Stop cancels following without notifying the operator.
func (f *FollowController) Stop() {
	if f.mode != FollowFollowing {
		return
	}
	f.stop()
}

func (f *FollowController) DeviceAdded(*Entry)   {}
func (f *FollowController) DeviceUpdated(*Entry) {}

// DeviceRemoved stops following as soon as the target leaves.
func (f *FollowController) DeviceRemoved(e *Entry) {
	if f.mode != FollowFollowing || f.target != e.Device.ID {
		return
	}
	f.logger.Info("followed device removed", "device_id", e.Device.ID)
	f.stop()
}

// tick re-centers on the marker's position at tick time. A target that
// vanished from the registry cancels following.
func (f *FollowController) tick(id string) {
	if f.mode != FollowFollowing || f.target != id {
		return
	}
	if !f.registry.Has(id) {
		f.logger.Info("followed device vanished, stopping", "device_id", id)
		f.stop()
		return
	}
	f.camera.CenterOn(id)
}

func (f *FollowController) stop() {
	prev := f.State()
	f.clearTimer()
	f.indicator.ResetTracking()
	f.mode = FollowIdle
	f.target = ""
	f.changed(prev)
}

func (f *FollowController) clearTimer() {
	if f.cancel != nil {
		f.cancel()
		f.cancel = nil
	}
}

func (f *FollowController) changed(prev models.FollowState) {
	if f.onChange != nil {
		f.onChange(prev, f.State())
	}
}
