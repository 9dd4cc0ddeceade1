package service

import (
	"io"
	"log/slog"
	"time"

	"fleetdash/models"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeMarker struct {
	id       string
	label    string
	position models.Coordinates
	moves    int
}

func (m *fakeMarker) SetPosition(pos models.Coordinates) { m.position = pos; m.moves++ }
func (m *fakeMarker) Position() models.Coordinates       { return m.position }
func (m *fakeMarker) SetLabel(label string)              { m.label = label }

// fakeMap records markers and camera moves. dragOnSetView simulates a
// renderer that raises a drag event while the camera is being set.
type fakeMap struct {
	markers       map[string]*fakeMarker
	created       int
	views         []models.Camera
	order         []string
	dragOnSetView func()
}

func newFakeMap() *fakeMap {
	return &fakeMap{markers: make(map[string]*fakeMarker)}
}

func (f *fakeMap) CreateMarker(d models.Device) MarkerHandle {
	m := &fakeMarker{id: d.ID, label: d.Name, position: d.Coordinates}
	f.markers[d.ID] = m
	f.created++
	return m
}

func (f *fakeMap) RemoveMarker(h MarkerHandle) {
	delete(f.markers, h.(*fakeMarker).id)
}

func (f *fakeMap) SetView(center models.Coordinates, zoom int) {
	f.views = append(f.views, models.Camera{Center: center, Zoom: zoom})
	if f.dragOnSetView != nil {
		f.dragOnSetView()
	}
}

func (f *fakeMap) ReorderMarkers(ids []string) {
	f.order = ids
}

func (f *fakeMap) lastView() models.Camera {
	if len(f.views) == 0 {
		return models.Camera{}
	}
	return f.views[len(f.views)-1]
}

type fakeRow struct {
	row     models.Row
	updates int
}

func (r *fakeRow) Update(row models.Row) { r.row = row; r.updates++ }
func (r *fakeRow) Row() models.Row       { return r.row }

type fakeList struct {
	rows  []*fakeRow
	added int
}

func (f *fakeList) AppendRow(row models.Row) RowHandle {
	r := &fakeRow{row: row}
	f.rows = append(f.rows, r)
	f.added++
	return r
}

func (f *fakeList) RemoveRow(h RowHandle) {
	for i, r := range f.rows {
		if r == h {
			f.rows = append(f.rows[:i], f.rows[i+1:]...)
			return
		}
	}
}

func (f *fakeList) ReorderRows(ids []string) {
	byID := make(map[string]*fakeRow, len(f.rows))
	for _, r := range f.rows {
		byID[r.row.ID] = r
	}
	rows := make([]*fakeRow, 0, len(f.rows))
	for _, id := range ids {
		if r, ok := byID[id]; ok {
			rows = append(rows, r)
			delete(byID, id)
		}
	}
	for _, r := range f.rows {
		if _, ok := byID[r.row.ID]; ok {
			rows = append(rows, r)
		}
	}
	f.rows = rows
}

func (f *fakeList) ids() []string {
	ids := make([]string, 0, len(f.rows))
	for _, r := range f.rows {
		ids = append(ids, r.row.ID)
	}
	return ids
}

func (f *fakeList) row(id string) (models.Row, bool) {
	for _, r := range f.rows {
		if r.row.ID == id {
			return r.row, true
		}
	}
	return models.Row{}, false
}

func (f *fakeList) stopLabels() []string {
	var ids []string
	for _, r := range f.rows {
		if r.row.TrackLabel == models.LabelStopTracking {
			ids = append(ids, r.row.ID)
		}
	}
	return ids
}

type fakeSender struct {
	sent []models.Outbound
	err  error
}

func (s *fakeSender) Send(msg models.Outbound) error {
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, msg)
	return nil
}

type recordingNotifier struct {
	got []models.Notification
}

func (r *recordingNotifier) Notify(n models.Notification) { r.got = append(r.got, n) }

func (r *recordingNotifier) last() models.Notification {
	if len(r.got) == 0 {
		return models.Notification{}
	}
	return r.got[len(r.got)-1]
}

type recordingRecorder struct {
	entries []models.JournalEntry
}

func (r *recordingRecorder) Record(e models.JournalEntry) { r.entries = append(r.entries, e) }

func (r *recordingRecorder) kinds() []string {
	kinds := make([]string, 0, len(r.entries))
	for _, e := range r.entries {
		kinds = append(kinds, e.Kind)
	}
	return kinds
}

// manualScheduler fires ticks only when told to.
type manualScheduler struct {
	jobs []*manualJob
}

type manualJob struct {
	interval  time.Duration
	fn        func()
	cancelled bool
}

func (s *manualScheduler) Every(d time.Duration, fn func()) func() {
	job := &manualJob{interval: d, fn: fn}
	s.jobs = append(s.jobs, job)
	return func() { job.cancelled = true }
}

func (s *manualScheduler) tick() {
	for _, job := range s.jobs {
		if !job.cancelled {
			job.fn()
		}
	}
}

func (s *manualScheduler) active() int {
	n := 0
	for _, job := range s.jobs {
		if !job.cancelled {
			n++
		}
	}
	return n
}

// harness wires the core components the way Dashboard does, with fakes.
type harness struct {
	registry  *Registry
	mapView   *fakeMap
	list      *fakeList
	spatial   *SpatialView
	listView  *ListView
	follow    *FollowController
	session   *Session
	scheduler *manualScheduler
	sender    *fakeSender
	notifier  *recordingNotifier
	recorder  *recordingRecorder
}

func newHarness() *harness {
	h := &harness{
		registry:  NewRegistry(),
		mapView:   newFakeMap(),
		list:      &fakeList{},
		scheduler: &manualScheduler{},
		sender:    &fakeSender{},
		notifier:  &recordingNotifier{},
		recorder:  &recordingRecorder{},
	}
	logger := testLogger()
	h.spatial = NewSpatialView(h.mapView, h.registry, models.Coordinates{X: 45.3, Y: 14.4}, 15, logger)
	h.listView = NewListView(h.list, h.registry, logger)
	h.follow = NewFollowController(h.registry, h.spatial, h.scheduler, h.listView, h.notifier, 100*time.Millisecond, logger)
	h.session = NewSession("session-1", h.registry, h.follow, h.sender, h.notifier, h.recorder, logger)
	h.listView.SetFollower(h.follow)
	h.spatial.OnUserDrag(h.follow.UserDragged)
	return h
}

func device(id, name string, x, y float64) models.Device {
	return models.Device{ID: id, Name: name, Type: models.DeviceMobile, Coordinates: models.Coordinates{X: x, Y: y}}
}
