// Package realtime implements the operator console's live pipeline: a
// supervised WebSocket session, an in-order event router, the cache
// invalidation bridge, the mute flag and the emergency presentation
// controller.
package realtime

import (
	"bytes"
	"encoding/json"
	"errors"
	"strconv"
)

// ErrMalformedFrame is returned by Decode for frames that are not a JSON object.
var ErrMalformedFrame = errors.New("realtime: malformed frame")

// EventType is the "type" discriminant of an inbound frame.
type EventType string

const (
	TypeUserCreated         EventType = "user_created"
	TypeUserUpdated         EventType = "user_updated"
	TypeUserDeleted         EventType = "user_deleted"
	TypeDeviceCreated       EventType = "device_created"
	TypeDevicePing          EventType = "device_ping"
	TypeDeviceStatusChanged EventType = "device_status_changed"
	TypeStolenDeviceLocated EventType = "stolen_device_located"
	TypeEmergencyCreated    EventType = "emergency_created"
	TypeEmergencyResponse   EventType = "emergency_response"
)

// Outbound frame types sent by device emulators.
const (
	TypeStolenDevicePing EventType = "stolen_device_ping"
	TypeDeviceSOS        EventType = "device_sos"
)

// Event is the tagged union of decoded inbound frames. The concrete types
// are the structs in this file; Unknown covers everything else.
type Event interface {
	Type() EventType
}

// ID is an identifier that the server sends either as a JSON number or as a
// JSON string.
type ID string

func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*id = ID(n.String())
	return nil
}

func (id ID) String() string { return string(id) }

// Numeric reports whether the ID is a plain integer, i.e. a REST resource id.
func (id ID) Numeric() bool {
	_, err := strconv.ParseInt(string(id), 10, 64)
	return err == nil
}

// Location is a WGS84 coordinate pair.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// UserPayload carries the user reference of user_* events.
type UserPayload struct {
	UserID ID     `json:"user_id"`
	Name   string `json:"nome_completo"`
}

type UserCreated struct{ UserPayload }
type UserUpdated struct{ UserPayload }
type UserDeleted struct{ UserPayload }

func (UserCreated) Type() EventType { return TypeUserCreated }
func (UserUpdated) Type() EventType { return TypeUserUpdated }
func (UserDeleted) Type() EventType { return TypeUserDeleted }

// DevicePayload carries the device reference of device_* events.
type DevicePayload struct {
	DeviceID  ID       `json:"device_id"`
	IMEI      string   `json:"imei"`
	Status    string   `json:"status"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
	Battery   *int     `json:"bateria"`
	Timestamp string   `json:"timestamp"`
}

type DeviceCreated struct{ DevicePayload }
type DevicePing struct{ DevicePayload }
type DeviceStatusChanged struct{ DevicePayload }

func (DeviceCreated) Type() EventType       { return TypeDeviceCreated }
func (DevicePing) Type() EventType          { return TypeDevicePing }
func (DeviceStatusChanged) Type() EventType { return TypeDeviceStatusChanged }

// StolenDeviceLocated is broadcast when a device flagged as stolen reports
// its position.
type StolenDeviceLocated struct {
	DeviceID   ID       `json:"device_id"`
	IMEI       string   `json:"imei"`
	DeviceInfo string   `json:"device_info"`
	Battery    *int     `json:"bateria"`
	UserName   string   `json:"user_name"`
	Latitude   *float64 `json:"latitude"`
	Longitude  *float64 `json:"longitude"`
	Timestamp  string   `json:"timestamp"`
	Message    string   `json:"message"`
}

func (StolenDeviceLocated) Type() EventType { return TypeStolenDeviceLocated }

// EmergencyPayload is the emergency object of emergency_* events. Older
// servers put these fields on the envelope itself instead of nesting them.
type EmergencyPayload struct {
	ID          ID        `json:"id"`
	Tipo        string    `json:"tipo"`
	UserID      ID        `json:"usuario_id"`
	DeviceID    ID        `json:"device_id"`
	DeviceBrand string    `json:"marca"`
	DeviceModel string    `json:"modelo"`
	Battery     *int      `json:"nivel_bateria"`
	Location    *Location `json:"localizacao"`
	Latitude    *float64  `json:"latitude"`
	Longitude   *float64  `json:"longitude"`
	Timestamp   string    `json:"timestamp"`
	Priority    string    `json:"prioridade"`
	Status      string    `json:"status"`
	Description string    `json:"descricao"`
}

// Position returns the emergency location, preferring the nested
// localizacao object over flat latitude/longitude fields.
func (p EmergencyPayload) Position() *Location {
	if p.Location != nil {
		return p.Location
	}
	if p.Latitude != nil && p.Longitude != nil {
		return &Location{Latitude: *p.Latitude, Longitude: *p.Longitude}
	}
	return nil
}

type EmergencyCreated struct{ Emergency EmergencyPayload }
type EmergencyResponse struct{ Emergency EmergencyPayload }

func (EmergencyCreated) Type() EventType  { return TypeEmergencyCreated }
func (EmergencyResponse) Type() EventType { return TypeEmergencyResponse }

// Unknown is a well-formed frame whose type is missing or not recognized.
type Unknown struct {
	Kind EventType
	Raw  json.RawMessage
}

func (u Unknown) Type() EventType { return u.Kind }

type envelope struct {
	Type      EventType       `json:"type"`
	Emergency json.RawMessage `json:"emergency"`
}

// Decode parses a raw frame. Non-object frames return ErrMalformedFrame.
// Recognized types always yield their variant: payload fields of the wrong
// shape are left at their zero value rather than failing the frame.
func Decode(frame []byte) (Event, error) {
	var env envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return nil, ErrMalformedFrame
	}

	switch env.Type {
	case TypeUserCreated:
		var e UserCreated
		lenient(frame, &e.UserPayload)
		return e, nil
	case TypeUserUpdated:
		var e UserUpdated
		lenient(frame, &e.UserPayload)
		return e, nil
	case TypeUserDeleted:
		var e UserDeleted
		lenient(frame, &e.UserPayload)
		return e, nil
	case TypeDeviceCreated:
		var e DeviceCreated
		lenient(frame, &e.DevicePayload)
		return e, nil
	case TypeDevicePing:
		var e DevicePing
		lenient(frame, &e.DevicePayload)
		return e, nil
	case TypeDeviceStatusChanged:
		var e DeviceStatusChanged
		lenient(frame, &e.DevicePayload)
		return e, nil
	case TypeStolenDeviceLocated:
		var e StolenDeviceLocated
		lenient(frame, &e)
		return e, nil
	case TypeEmergencyCreated:
		return EmergencyCreated{Emergency: emergencyPayload(frame, env.Emergency)}, nil
	case TypeEmergencyResponse:
		return EmergencyResponse{Emergency: emergencyPayload(frame, env.Emergency)}, nil
	}

	return Unknown{Kind: env.Type, Raw: append(json.RawMessage(nil), frame...)}, nil
}

func emergencyPayload(frame, nested json.RawMessage) EmergencyPayload {
	var p EmergencyPayload
	if len(nested) > 0 && !bytes.Equal(bytes.TrimSpace(nested), []byte("null")) {
		lenient(nested, &p)
		return p
	}
	lenient(frame, &p)
	return p
}

// lenient decodes field by field so one mistyped field does not discard the
// others.
func lenient(data []byte, v any) {
	if json.Unmarshal(data, v) == nil {
		return
	}
	var fields map[string]json.RawMessage
	if json.Unmarshal(data, &fields) != nil {
		return
	}
	for name, raw := range fields {
		single, err := json.Marshal(map[string]json.RawMessage{name: raw})
		if err != nil {
			continue
		}
		_ = json.Unmarshal(single, v)
	}
}
