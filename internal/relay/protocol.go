package relay

import "github.com/Ghoster04/AntCrime/internal/realtime"

// DeviceFrame is what handsets and emulators send, over the socket or MQTT.
type DeviceFrame struct {
	Type               realtime.EventType `json:"type"`
	IMEI               string             `json:"imei"`
	Marca              string             `json:"marca,omitempty"`
	Modelo             string             `json:"modelo,omitempty"`
	SistemaOperacional string             `json:"sistema_operacional,omitempty"`
	VersaoApp          string             `json:"versao_app,omitempty"`
	Latitude           float64            `json:"latitude"`
	Longitude          float64            `json:"longitude"`
	Bateria            *int               `json:"bateria,omitempty"`
	Precisao           *int               `json:"precisao,omitempty"`
	Status             string             `json:"status,omitempty"`
	Timestamp          string             `json:"timestamp,omitempty"`
	EmergencyType      string             `json:"emergency_type,omitempty"`
	Message            string             `json:"message,omitempty"`
}

// Outbound notifications. Each embeds the payload the console decodes so
// both sides share one set of field names.
type (
	devicePingMsg struct {
		Type realtime.EventType `json:"type"`
		realtime.DevicePayload
	}
	stolenLocatedMsg struct {
		Type realtime.EventType `json:"type"`
		realtime.StolenDeviceLocated
	}
	emergencyMsg struct {
		Type      realtime.EventType        `json:"type"`
		Emergency realtime.EmergencyPayload `json:"emergency"`
	}
)
