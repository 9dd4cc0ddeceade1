package models

// ViewEventType names an incremental change pushed to browsers.
type ViewEventType string

const (
	ViewSnapshot      ViewEventType = "snapshot"
	ViewMarkerAdded   ViewEventType = "markerAdded"
	ViewMarkerMoved   ViewEventType = "markerMoved"
	ViewMarkerRemoved ViewEventType = "markerRemoved"
	ViewCamera        ViewEventType = "camera"
	ViewRowAdded      ViewEventType = "rowAdded"
	ViewRowUpdated    ViewEventType = "rowUpdated"
	ViewRowRemoved    ViewEventType = "rowRemoved"
	ViewRowsReordered ViewEventType = "rowsReordered"
	ViewNotify        ViewEventType = "notify"
)

// ViewEvent is the frame browsers receive on /ws.
type ViewEvent struct {
	Type ViewEventType `json:"type"`
	Data interface{}   `json:"data,omitempty"`
}

// MarkerView is the rendered state of one map marker.
type MarkerView struct {
	ID       string      `json:"id"`
	Label    string      `json:"label"`
	Position Coordinates `json:"position"`
}

// Camera is the map viewport.
type Camera struct {
	Center Coordinates `json:"center"`
	Zoom   int         `json:"zoom"`
}

// MapSnapshot is everything on the map layer.
type MapSnapshot struct {
	Camera  Camera       `json:"camera"`
	Markers []MarkerView `json:"markers"`
}

// Track control labels.
const (
	LabelTrack        = "Track"
	LabelStopTracking = "Stop tracking"
)

// Row is one entry of the device list.
type Row struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Icon       string `json:"icon"`
	Battery    *int   `json:"battery,omitempty"`
	Tier       Tier   `json:"tier,omitempty"`
	Tracking   bool   `json:"tracking"`
	TrackLabel string `json:"trackLabel"`
}

// NotifyKind is the semantic severity of a notification.
type NotifyKind string

const (
	NotifyInfo    NotifyKind = "info"
	NotifyWarning NotifyKind = "warning"
	NotifyError   NotifyKind = "error"
)

// ActionReload asks the operator to restart the dashboard.
const ActionReload = "reload"

// Notification is a fire-and-forget message for the operator.
type Notification struct {
	Kind   NotifyKind `json:"kind"`
	Title  string     `json:"title"`
	Text   string     `json:"text,omitempty"`
	Toast  bool       `json:"toast"`
	Action string     `json:"action,omitempty"`
}

// FollowState reports the follow controller.
type FollowState struct {
	Following bool   `json:"following"`
	DeviceID  string `json:"deviceId,omitempty"`
}

// SessionState reports the upstream session.
type SessionState struct {
	ID          string `json:"id"`
	SocketID    string `json:"socketId,omitempty"`
	Established bool   `json:"established"`
	Closed      bool   `json:"closed"`
	Devices     int    `json:"devices"`
}

// Snapshot is sent to a browser when it attaches.
type Snapshot struct {
	Session SessionState   `json:"session"`
	Map     MapSnapshot    `json:"map"`
	Rows    []Row          `json:"rows"`
	Follow  FollowState    `json:"follow"`
	Notices []Notification `json:"notices,omitempty"`
}
