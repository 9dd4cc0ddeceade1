package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"fleetdash/clock"
	"fleetdash/models"
)

// ErrStopped is returned by Do once the dashboard loop has exited.
var ErrStopped = errors.New("dashboard stopped")

const defaultQueueSize = 256

// Options wires a Dashboard to its collaborators.
type Options struct {
	Map      MapRenderer
	List     ListRenderer
	Notifier Notifier
	Sender   Sender
	Recorder Recorder
	Clock    clock.Clock
	Logger   *slog.Logger

	Center         models.Coordinates
	Zoom           int
	FollowInterval time.Duration
	QueueSize      int
}

// Dashboard owns every piece of state for one upstream connection and
// runs all reactions on a single loop: upstream frames, follow ticks and
// operator input never run concurrently, so nothing below it locks.
type Dashboard struct {
	Registry *Registry
	Map      *SpatialView
	List     *ListView
	Follow   *FollowController
	Session  *Session

	clock   clock.Clock
	logger  *slog.Logger
	events  chan func()
	done    chan struct{}
	notices []models.Notification
}

func NewDashboard(opts Options) *Dashboard {
	if opts.Clock == nil {
		opts.Clock = clock.Real()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = defaultQueueSize
	}
	if opts.Recorder == nil {
		opts.Recorder = nopRecorder{}
	}

	d := &Dashboard{
		clock:  opts.Clock,
		logger: opts.Logger,
		events: make(chan func(), opts.QueueSize),
		done:   make(chan struct{}),
	}
	notifier := Notifiers{NotifierFunc(d.keepNotice), opts.Notifier}

	sessionID := uuid.NewString()
	d.Registry = NewRegistry()
	d.Map = NewSpatialView(opts.Map, d.Registry, opts.Center, opts.Zoom, opts.Logger)
	d.List = NewListView(opts.List, d.Registry, opts.Logger)
	d.Follow = NewFollowController(d.Registry, d.Map, d, d.List, notifier, opts.FollowInterval, opts.Logger)
	d.Session = NewSession(sessionID, d.Registry, d.Follow, opts.Sender, notifier, opts.Recorder, opts.Logger)

	d.List.SetFollower(d.Follow)
	d.Map.OnUserDrag(d.Follow.UserDragged)
	d.Follow.OnChange(func(prev, next models.FollowState) {
		if prev.Following {
			opts.Recorder.Record(models.JournalEntry{SessionID: sessionID, Kind: models.JournalFollowStop, DeviceID: prev.DeviceID})
		}
		if next.Following {
			opts.Recorder.Record(models.JournalEntry{SessionID: sessionID, Kind: models.JournalFollowStart, DeviceID: next.DeviceID})
		}
	})
	return d
}

// Run processes queued reactions until ctx is done.
func (d *Dashboard) Run(ctx context.Context) error {
	defer close(d.done)
	defer d.Follow.Stop()

	d.logger.Info("🚀 dashboard loop started", "session_id", d.Session.ID())
	for {
		select {
		case fn := <-d.events:
			fn()
		case <-ctx.Done():
			d.logger.Info("dashboard loop stopping", "session_id", d.Session.ID())
			return ctx.Err()
		}
	}
}

// Post queues fn on the loop without waiting for it. It reports false
// once the loop has exited.
func (d *Dashboard) Post(fn func()) bool {
	select {
	case <-d.done:
		return false
	default:
	}
	select {
	case d.events <- fn:
		return true
	case <-d.done:
		return false
	}
}

// tryPost queues fn only if there is room. Used for ticks, which are
// dropped rather than queued when the loop is behind.
func (d *Dashboard) tryPost(fn func()) bool {
	select {
	case d.events <- fn:
		return true
	default:
		return false
	}
}

// Do runs fn on the loop and waits for it to finish.
func (d *Dashboard) Do(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	wrapped := func() {
		defer close(finished)
		fn()
	}
	select {
	case d.events <- wrapped:
	case <-d.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-finished:
		return nil
	case <-d.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Every implements Scheduler on top of the dashboard clock. fn runs on
// the loop. cancel must be called from the loop; a tick queued before
// cancel is discarded.
func (d *Dashboard) Every(interval time.Duration, fn func()) func() {
	ticker := d.clock.NewTicker(interval)
	stop := make(chan struct{})
	cancelled := false

	go func() {
		for {
			select {
			case <-ticker.C:
				d.tryPost(func() {
					if !cancelled {
						fn()
					}
				})
			case <-stop:
				return
			case <-d.done:
				return
			}
		}
	}()

	return func() {
		if cancelled {
			return
		}
		cancelled = true
		ticker.Stop()
		close(stop)
	}
}

// HandleOpen, HandleMessage, HandleClose and HandleError queue upstream
// transport events on the loop in arrival order.
func (d *Dashboard) HandleOpen() {
	d.Post(d.Session.HandleOpen)
}

func (d *Dashboard) HandleMessage(raw []byte) {
	d.Post(func() { d.Session.HandleMessage(raw) })
}

func (d *Dashboard) HandleClose(err error) {
	d.Post(func() { d.Session.HandleClose(err) })
}

func (d *Dashboard) HandleError(err error) {
	d.Post(func() { d.Session.HandleError(err) })
}

// Track forwards a Track click for id and returns the resulting state.
func (d *Dashboard) Track(ctx context.Context, id string) (models.FollowState, bool, error) {
	var state models.FollowState
	var found bool
	err := d.Do(ctx, func() {
		found = d.List.Click(id)
		state = d.Follow.State()
	})
	return state, found, err
}

// Drag reports an operator drag of the map.
func (d *Dashboard) Drag(ctx context.Context) (models.FollowState, error) {
	var state models.FollowState
	err := d.Do(ctx, func() {
		d.Map.DragStarted()
		state = d.Follow.State()
	})
	return state, err
}

// Zoom records the operator's zoom level.
func (d *Dashboard) Zoom(ctx context.Context, zoom int) error {
	return d.Do(ctx, func() { d.Map.ZoomChanged(zoom) })
}

func (d *Dashboard) Devices(ctx context.Context) ([]models.Device, error) {
	var devices []models.Device
	err := d.Do(ctx, func() { devices = d.Registry.All() })
	return devices, err
}

func (d *Dashboard) Device(ctx context.Context, id string) (models.Device, bool, error) {
	var device models.Device
	var ok bool
	err := d.Do(ctx, func() { device, ok = d.Registry.Get(id) })
	return device, ok, err
}

func (d *Dashboard) FollowState(ctx context.Context) (models.FollowState, error) {
	var state models.FollowState
	err := d.Do(ctx, func() { state = d.Follow.State() })
	return state, err
}

func (d *Dashboard) SessionState(ctx context.Context) (models.SessionState, error) {
	var state models.SessionState
	err := d.Do(ctx, func() { state = d.Session.State() })
	return state, err
}

// Notices returns the error notifications raised so far, so late
// browsers still see a terminal failure.
func (d *Dashboard) Notices() []models.Notification {
	return append([]models.Notification(nil), d.notices...)
}

func (d *Dashboard) keepNotice(n models.Notification) {
	if n.Kind == models.NotifyError {
		d.notices = append(d.notices, n)
	}
}
