package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"fleetdash/clock"
	"fleetdash/models"
)

type runningDashboard struct {
	*Dashboard
	clock    *clock.FakeClock
	mapView  *fakeMap
	list     *fakeList
	recorder *recordingRecorder
}

func startDashboard(t *testing.T) *runningDashboard {
	t.Helper()
	rd := &runningDashboard{
		clock:    clock.Fake(time.Unix(1700000000, 0)),
		mapView:  newFakeMap(),
		list:     &fakeList{},
		recorder: &recordingRecorder{},
	}
	rd.Dashboard = NewDashboard(Options{
		Map:            rd.mapView,
		List:           rd.list,
		Sender:         &fakeSender{},
		Recorder:       rd.recorder,
		Clock:          rd.clock,
		Logger:         testLogger(),
		Center:         models.Coordinates{X: 45.328404, Y: 14.469973},
		Zoom:           15,
		FollowInterval: 100 * time.Millisecond,
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		rd.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return rd
}

// do runs fn on the loop and fails the test if the loop is gone.
func (rd *runningDashboard) do(t *testing.T, fn func()) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := rd.Do(ctx, fn); err != nil {
		t.Fatalf("Do: %v", err)
	}
}

func (rd *runningDashboard) viewCount(t *testing.T) int {
	var n int
	rd.do(t, func() { n = len(rd.mapView.views) })
	return n
}

func eventually(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func seed(rd *runningDashboard) {
	rd.HandleOpen()
	rd.HandleMessage([]byte(`{"type":"fetchInitial","socketId":"s1","connectedDevices":[
		{"id":"1","name":"A","type":"mobile","coordinates":{"x":45.0,"y":14.0}},
		{"id":"2","name":"B","type":"pc","coordinates":{"x":46.0,"y":15.0}}]}`))
}

func TestDashboardInitialView(t *testing.T) {
	rd := startDashboard(t)
	var cam models.Camera
	rd.do(t, func() { cam = rd.mapView.lastView() })

	want := models.Camera{Center: models.Coordinates{X: 45.328404, Y: 14.469973}, Zoom: 15}
	if cam != want {
		t.Errorf("initial camera = %+v, want %+v", cam, want)
	}
}

func TestDashboardTransportEventsInOrder(t *testing.T) {
	rd := startDashboard(t)
	seed(rd)
	rd.HandleMessage([]byte(`{"type":"deviceDisconnected","device":{"id":"1","name":"A"}}`))

	devices, err := rd.Devices(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(devices) != 1 || devices[0].ID != "2" {
		t.Errorf("devices = %+v, want only 2", devices)
	}

	state, err := rd.SessionState(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if state.SocketID != "s1" || !state.Established || state.Devices != 1 {
		t.Errorf("session state = %+v", state)
	}
	if _, ok, _ := rd.Device(context.Background(), "1"); ok {
		t.Error("device 1 still reported")
	}
}

func TestDashboardFollowTicksOnClock(t *testing.T) {
	rd := startDashboard(t)
	seed(rd)

	state, found, err := rd.Track(context.Background(), "1")
	if err != nil || !found {
		t.Fatalf("Track: found=%v err=%v", found, err)
	}
	if !state.Following || state.DeviceID != "1" {
		t.Fatalf("state = %+v, want following 1", state)
	}

	before := rd.viewCount(t)
	rd.clock.Advance(100 * time.Millisecond)
	eventually(t, func() bool { return rd.viewCount(t) > before })

	if _, err := rd.Drag(context.Background()); err != nil {
		t.Fatal(err)
	}
	if rd.clock.Tickers() != 0 {
		t.Errorf("tickers after drag = %d, want 0", rd.clock.Tickers())
	}

	after := rd.viewCount(t)
	rd.clock.Advance(time.Second)
	time.Sleep(20 * time.Millisecond)
	if got := rd.viewCount(t); got != after {
		t.Errorf("camera moved %d times after following stopped", got-after)
	}

	want := []string{
		models.JournalSessionOpen,
		models.JournalFollowStart,
		models.JournalFollowStop,
	}
	var kinds []string
	rd.do(t, func() { kinds = rd.recorder.kinds() })
	if len(kinds) != len(want) {
		t.Fatalf("journal kinds = %v, want %v", kinds, want)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Errorf("journal kind %d = %q, want %q", i, kinds[i], want[i])
		}
	}
}

// A tick already queued on the loop when cancel runs must not fire.
func TestDashboardEveryDiscardsQueuedTick(t *testing.T) {
	rd := startDashboard(t)
	fired := 0

	rd.do(t, func() {
		cancel := rd.Every(50*time.Millisecond, func() { fired++ })
		rd.clock.Advance(50 * time.Millisecond)
		deadline := time.Now().Add(2 * time.Second)
		for len(rd.events) == 0 && time.Now().Before(deadline) {
			time.Sleep(time.Millisecond)
		}
		cancel()
	})
	// Barrier: the queued tick has run by now.
	rd.do(t, func() {})

	var got int
	rd.do(t, func() { got = fired })
	if got != 0 {
		t.Errorf("fired = %d after cancel, want 0", got)
	}
}

func TestDashboardTrackUnknownDevice(t *testing.T) {
	rd := startDashboard(t)
	seed(rd)

	state, found, err := rd.Track(context.Background(), "ghost")
	if err != nil {
		t.Fatal(err)
	}
	if found || state.Following {
		t.Errorf("Track(ghost) = %+v found=%v, want idle not found", state, found)
	}
}

func TestDashboardZoomKeptWhileFollowing(t *testing.T) {
	rd := startDashboard(t)
	seed(rd)

	if err := rd.Zoom(context.Background(), 11); err != nil {
		t.Fatal(err)
	}
	rd.Track(context.Background(), "2")

	var cam models.Camera
	rd.do(t, func() { cam = rd.mapView.lastView() })
	if cam.Zoom != 11 || cam.Center != (models.Coordinates{X: 46.0, Y: 15.0}) {
		t.Errorf("camera = %+v, want device 2 at zoom 11", cam)
	}
}

func TestDashboardKeepsErrorNotices(t *testing.T) {
	rd := startDashboard(t)
	seed(rd)
	rd.Track(context.Background(), "1")
	rd.HandleClose(errors.New("going away"))

	var notices []models.Notification
	var follow models.FollowState
	rd.do(t, func() {
		notices = rd.Notices()
		follow = rd.Follow.State()
	})
	if len(notices) != 1 || notices[0].Action != models.ActionReload {
		t.Errorf("notices = %+v, want one reload error", notices)
	}
	if follow.Following {
		t.Error("still following after the session closed")
	}
}

func TestDashboardDoAfterStop(t *testing.T) {
	d := NewDashboard(Options{Map: newFakeMap(), List: &fakeList{}, Sender: &fakeSender{}, Logger: testLogger(), FollowInterval: time.Second})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		d.Run(ctx)
	}()
	cancel()
	<-done

	if err := d.Do(context.Background(), func() {}); !errors.Is(err, ErrStopped) {
		t.Errorf("Do after stop = %v, want ErrStopped", err)
	}
	if d.Post(func() {}) {
		t.Error("Post after stop reported success")
	}
}
