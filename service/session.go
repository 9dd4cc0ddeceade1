package service

import (
	"errors"
	"log/slog"

	"fleetdash/models"
)

// Sender delivers frames to the upstream server.
type Sender interface {
	Send(msg models.Outbound) error
}

// Recorder receives presence events worth keeping, e.g. the journal.
type Recorder interface {
	Record(entry models.JournalEntry)
}

type nopRecorder struct{}

func (nopRecorder) Record(models.JournalEntry) {}

// Failure wording shown to the operator.
const (
	textConnectionLost  = "The connection to the websocket server has been lost."
	textNeverConnected  = "Could not connect to the websocket server."
	textTransportFailed = "An error occurred while communicating with the server."
)

// Session handles the protocol of one upstream connection. It is only
// driven from the dashboard loop.
type Session struct {
	id       string
	registry *Registry
	follow   *FollowController
	sender   Sender
	notifier Notifier
	recorder Recorder
	logger   *slog.Logger

	socketID    string
	established bool
	closed      bool
}

func NewSession(id string, registry *Registry, follow *FollowController, sender Sender, notifier Notifier, recorder Recorder, logger *slog.Logger) *Session {
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &Session{
		id:       id,
		registry: registry,
		follow:   follow,
		sender:   sender,
		notifier: notifier,
		recorder: recorder,
		logger:   logger.With("session_id", id),
	}
}

func (s *Session) ID() string { return s.id }

// SocketID is empty until the fetchInitial reply arrives.
func (s *Session) SocketID() string { return s.socketID }

// Established reports whether the transport ever opened.
func (s *Session) Established() bool { return s.established }

func (s *Session) Closed() bool { return s.closed }

func (s *Session) State() models.SessionState {
	return models.SessionState{
		ID:          s.id,
		SocketID:    s.socketID,
		Established: s.established,
		Closed:      s.closed,
		Devices:     s.registry.Len(),
	}
}

// HandleOpen requests the current fleet.
func (s *Session) HandleOpen() {
	if s.closed {
		return
	}
	s.established = true
	s.logger.Info("✅ upstream connected, fetching devices")
	s.record(models.JournalSessionOpen, "", "")
	if err := s.sender.Send(models.FetchInitialRequest{}); err != nil {
		s.logger.Error("failed to request initial devices", "error", err)
	}
}

// HandleMessage decodes raw and applies it. Unknown types are ignored
// and malformed frames are dropped; neither ends the session.
func (s *Session) HandleMessage(raw []byte) {
	if s.closed {
		return
	}
	msg, err := models.DecodeMessage(raw)
	if err != nil {
		if errors.Is(err, models.ErrUnknownType) {
			s.logger.Debug("ignoring message", "reason", err)
			return
		}
		s.logger.Warn("dropping malformed message", "error", err, "bytes", len(raw))
		return
	}
	msg.Dispatch(s)
}

// HandleClose ends the session after the transport closed.
func (s *Session) HandleClose(err error) {
	text := textConnectionLost
	if !s.established {
		text = textNeverConnected
	}
	s.terminate(text, err)
}

// HandleError ends the session after a transport error.
func (s *Session) HandleError(err error) {
	text := textTransportFailed
	if !s.established {
		text = textNeverConnected
	}
	s.terminate(text, err)
}

func (s *Session) terminate(text string, cause error) {
	if s.closed {
		return
	}
	s.closed = true
	s.logger.Error("❌ upstream session ended, restart required",
		"error", cause, "established", s.established, "devices", s.registry.Len())

	s.follow.Stop()
	s.registry.Clear()
	detail := ""
	if cause != nil {
		detail = cause.Error()
	}
	s.record(models.JournalSessionClose, "", detail)

	s.notifier.Notify(models.Notification{
		Kind:   models.NotifyError,
		Title:  "Error!",
		Text:   text,
		Action: models.ActionReload,
	})
}

func (s *Session) OnFetchInitial(m models.FetchInitial) {
	devices := make([]models.Device, 0, len(m.ConnectedDevices))
	for _, wd := range m.ConnectedDevices {
		devices = append(devices, wd.ToDevice())
	}
	s.socketID = m.SocketID
	s.registry.RegisterInitial(devices)
	s.logger.Info("📱 initial devices received", "devices", len(devices), "socket_id", m.SocketID)
}

func (s *Session) OnLocationUpdate(m models.LocationUpdate) {
	s.applyUpdate(m.Type(), m.Device)
}

func (s *Session) OnDataUpdate(m models.DataUpdate) {
	s.applyUpdate(m.Type(), m.Device)
}

func (s *Session) applyUpdate(kind models.MessageType, wd models.WireDevice) {
	if _, ok := s.registry.UpdateOne(wd.ID, wd.Update()); !ok {
		s.logger.Warn("update for unknown device", "type", kind, "device_id", wd.ID)
	}
}

func (s *Session) OnDeviceConnected(m models.DeviceConnected) {
	d := m.Device.ToDevice()
	if _, replaced := s.registry.RegisterOne(d); replaced {
		s.logger.Warn("device connected twice, keeping latest", "device_id", d.ID)
	}
	s.record(models.JournalConnected, d.ID, d.Name)
}

func (s *Session) OnDeviceDisconnected(m models.DeviceDisconnected) {
	if _, ok := s.registry.RemoveOne(m.Device.ID); !ok {
		s.logger.Warn("disconnect for unknown device", "device_id", m.Device.ID)
		return
	}
	s.record(models.JournalDisconnected, m.Device.ID, m.Device.Name)
}

// OnPing answers with the session's socket id. The dashboard never
// pings on its own.
func (s *Session) OnPing(models.Ping) {
	if err := s.sender.Send(models.Pong{SocketID: s.socketID}); err != nil {
		s.logger.Error("failed to send pong", "error", err)
		return
	}
	s.logger.Debug("server pinged, sent pong")
}

func (s *Session) record(kind, deviceID, detail string) {
	s.recorder.Record(models.JournalEntry{
		SessionID: s.id,
		Kind:      kind,
		DeviceID:  deviceID,
		Detail:    detail,
	})
}
