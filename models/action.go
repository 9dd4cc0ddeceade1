package models

import "fmt"

// OperatorAction types sent by browsers over /ws.
const (
	ActionTrack     = "track"
	ActionDragStart = "dragstart"
	ActionZoomEnd   = "zoomend"
)

// OperatorAction is a user input coming from a browser.
type OperatorAction struct {
	Type     string `json:"type"`
	DeviceID string `json:"device_id,omitempty"`
	Zoom     *int   `json:"zoom,omitempty"`
}

// Map zoom bounds accepted from configuration and operators.
const (
	MinZoom = 0
	MaxZoom = 22
)

// ErrZoomRange is returned for a missing or out-of-range zoom level.
var ErrZoomRange = fmt.Errorf("zoom must be within %d..%d", MinZoom, MaxZoom)

// CheckZoom validates an operator zoom level. nil means the field was
// absent.
func CheckZoom(zoom *int) (int, error) {
	if zoom == nil {
		return 0, fmt.Errorf("%w: missing", ErrZoomRange)
	}
	if *zoom < MinZoom || *zoom > MaxZoom {
		return 0, fmt.Errorf("%w: got %d", ErrZoomRange, *zoom)
	}
	return *zoom, nil
}

// ZoomRequest is the body of POST /api/map/zoom.
type ZoomRequest struct {
	Zoom *int `json:"zoom" binding:"required"`
}

// JournalEntry is one row of the presence journal.
type JournalEntry struct {
	ID        int64  `json:"id"`
	SessionID string `json:"session_id"`
	Kind      string `json:"kind"` // session_open, session_close, connected, disconnected, follow_start, follow_stop
	DeviceID  string `json:"device_id,omitempty"`
	Detail    string `json:"detail,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// Journal entry kinds.
const (
	JournalSessionOpen  = "session_open"
	JournalSessionClose = "session_close"
	JournalConnected    = "connected"
	JournalDisconnected = "disconnected"
	JournalFollowStart  = "follow_start"
	JournalFollowStop   = "follow_stop"
)
