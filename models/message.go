package models

import (
	"encoding/json"
	"errors"
	"fmt"
)

// MessageType is the `type` discriminator of every frame on the wire.
type MessageType string

const (
	TypeFetchInitial       MessageType = "fetchInitial"
	TypeLocationUpdate     MessageType = "locationUpdate"
	TypeDataUpdate         MessageType = "dataUpdate"
	TypeDeviceConnected    MessageType = "deviceConnected"
	TypeDeviceDisconnected MessageType = "deviceDisconnected"
	TypePing               MessageType = "ping"
	TypePong               MessageType = "pong"
)

var (
	// ErrUnknownType is returned for frames whose type this client does
	// not understand. Callers ignore them.
	ErrUnknownType = errors.New("unknown message type")
	// ErrMalformed is returned for frames that cannot be decoded.
	ErrMalformed = errors.New("malformed message")
)

// MessageHandler receives one call per inbound variant. Adding a variant
// means adding a method here, so every handler has to deal with it.
type MessageHandler interface {
	OnFetchInitial(FetchInitial)
	OnLocationUpdate(LocationUpdate)
	OnDataUpdate(DataUpdate)
	OnDeviceConnected(DeviceConnected)
	OnDeviceDisconnected(DeviceDisconnected)
	OnPing(Ping)
}

// Message is a decoded server->client frame.
type Message interface {
	Type() MessageType
	Dispatch(h MessageHandler)
}

// FetchInitial replaces the whole registry.
type FetchInitial struct {
	ConnectedDevices []WireDevice `json:"connectedDevices"`
	SocketID         string       `json:"socketId"`
}

// LocationUpdate moves one device.
type LocationUpdate struct {
	Device WireDevice `json:"device"`
}

// DataUpdate moves one device and may carry battery telemetry.
type DataUpdate struct {
	Device WireDevice `json:"device"`
}

// DeviceConnected registers one device.
type DeviceConnected struct {
	Device WireDevice `json:"device"`
}

// DeviceRef identifies a device that left.
type DeviceRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// DeviceDisconnected removes one device.
type DeviceDisconnected struct {
	Device DeviceRef `json:"device"`
}

// Ping asks for a pong carrying the socket id.
type Ping struct{}

func (FetchInitial) Type() MessageType       { return TypeFetchInitial }
func (LocationUpdate) Type() MessageType     { return TypeLocationUpdate }
func (DataUpdate) Type() MessageType         { return TypeDataUpdate }
func (DeviceConnected) Type() MessageType    { return TypeDeviceConnected }
func (DeviceDisconnected) Type() MessageType { return TypeDeviceDisconnected }
func (Ping) Type() MessageType               { return TypePing }

func (m FetchInitial) Dispatch(h MessageHandler)       { h.OnFetchInitial(m) }
func (m LocationUpdate) Dispatch(h MessageHandler)     { h.OnLocationUpdate(m) }
func (m DataUpdate) Dispatch(h MessageHandler)         { h.OnDataUpdate(m) }
func (m DeviceConnected) Dispatch(h MessageHandler)    { h.OnDeviceConnected(m) }
func (m DeviceDisconnected) Dispatch(h MessageHandler) { h.OnDeviceDisconnected(m) }
func (m Ping) Dispatch(h MessageHandler)               { h.OnPing(m) }

type envelope struct {
	Type MessageType `json:"type"`
}

// DecodeMessage parses one frame. Unrecognized types yield
// ErrUnknownType, anything undecodable yields ErrMalformed.
func DecodeMessage(raw []byte) (Message, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if env.Type == "" {
		return nil, fmt.Errorf("%w: missing type", ErrMalformed)
	}

	switch env.Type {
	case TypeFetchInitial:
		var m FetchInitial
		if err := decodePayload(raw, &m); err != nil {
			return nil, err
		}
		for _, d := range m.ConnectedDevices {
			if d.ID == "" {
				return nil, fmt.Errorf("%w: fetchInitial device without id", ErrMalformed)
			}
		}
		return m, nil
	case TypeLocationUpdate:
		var m LocationUpdate
		if err := decodeDevicePayload(raw, &m, &m.Device.ID); err != nil {
			return nil, err
		}
		return m, nil
	case TypeDataUpdate:
		var m DataUpdate
		if err := decodeDevicePayload(raw, &m, &m.Device.ID); err != nil {
			return nil, err
		}
		return m, nil
	case TypeDeviceConnected:
		var m DeviceConnected
		if err := decodeDevicePayload(raw, &m, &m.Device.ID); err != nil {
			return nil, err
		}
		return m, nil
	case TypeDeviceDisconnected:
		var m DeviceDisconnected
		if err := decodeDevicePayload(raw, &m, &m.Device.ID); err != nil {
			return nil, err
		}
		return m, nil
	case TypePing:
		return Ping{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, env.Type)
	}
}

func decodePayload(raw []byte, v interface{}) error {
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return nil
}

// decodeDevicePayload decodes v and requires the device id it points at.
func decodeDevicePayload(raw []byte, v interface{}, id *string) error {
	if err := decodePayload(raw, v); err != nil {
		return err
	}
	if *id == "" {
		return fmt.Errorf("%w: device without id", ErrMalformed)
	}
	return nil
}

// Outbound is a client->server frame.
type Outbound interface {
	Type() MessageType
}

// FetchInitialRequest asks the server for the current fleet.
type FetchInitialRequest struct{}

// Pong acknowledges a ping.
type Pong struct {
	SocketID string
}

func (FetchInitialRequest) Type() MessageType { return TypeFetchInitial }
func (Pong) Type() MessageType                { return TypePong }

// EncodeMessage serializes an outbound frame with its type tag.
func EncodeMessage(m Outbound) ([]byte, error) {
	switch msg := m.(type) {
	case FetchInitialRequest:
		return json.Marshal(envelope{Type: TypeFetchInitial})
	case Pong:
		return json.Marshal(struct {
			Type     MessageType `json:"type"`
			SocketID string      `json:"socketId"`
		}{TypePong, msg.SocketID})
	default:
		return nil, fmt.Errorf("cannot encode %T", m)
	}
}
