package realtime

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Placeholder is shown for any alert field the event did not carry.
const Placeholder = "N/A"

// AlertKind distinguishes the two alert-worthy event sources.
type AlertKind string

const (
	AlertEmergency    AlertKind = "emergency"
	AlertStolenDevice AlertKind = "stolen_device"
)

// Alert is the display record of an escalated emergency.
type Alert struct {
	ID          ID
	Kind        AlertKind
	Tipo        string
	TypeLabel   string
	DeviceRef   string
	DeviceBrand string
	DeviceModel string
	Battery     string
	UserRef     string
	Location    *Location
	Timestamp   string
	Priority    string
	Status      string
	Description string

	// Silent is set when the siren could not be started.
	Silent bool
}

// LocationText renders the coordinates with four decimals.
func (a Alert) LocationText() string {
	if a.Location == nil {
		return "Localização não disponível"
	}
	return fmt.Sprintf("%.4f, %.4f", a.Location.Latitude, a.Location.Longitude)
}

// Coordinates renders "lat, lng" at full precision for pasting elsewhere,
// or "" without a location.
func (a Alert) Coordinates() string {
	if a.Location == nil {
		return ""
	}
	return fmt.Sprintf("%v, %v", a.Location.Latitude, a.Location.Longitude)
}

// MapURL links the location on Google Maps, or "" without a location.
func (a Alert) MapURL() string {
	if a.Location == nil {
		return ""
	}
	return fmt.Sprintf("https://www.google.com/maps?q=%v,%v", a.Location.Latitude, a.Location.Longitude)
}

// operatorZone is where the dispatch centre works; Maputo keeps UTC+2 all
// year, so the fixed zone is exact when tzdata is missing.
var operatorZone = func() *time.Location {
	if loc, err := time.LoadLocation("Africa/Maputo"); err == nil {
		return loc
	}
	return time.FixedZone("CAT", 2*60*60)
}()

// TimeText renders the timestamp as day/month/year hour:minute in the
// operator's zone. Unparseable values are returned as they arrived.
func (a Alert) TimeText() string {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999999"} {
		if t, err := time.Parse(layout, a.Timestamp); err == nil {
			return t.In(operatorZone).Format("02/01/2006 15:04")
		}
	}
	return a.Timestamp
}

// TypeLabel maps an emergency "tipo" to its operator-facing label.
func TypeLabel(tipo string) string {
	switch tipo {
	case "sos_domestico":
		return "SOS Domiciliar"
	case "roubo_dispositivo", "dispositivo_roubado":
		return "Roubo de Dispositivo"
	case "emergencia_medica":
		return "Emergência Médica"
	case "assalto":
		return "Assalto"
	default:
		return "Emergência"
	}
}

// AlertFromEmergency builds the display record for emergency_created.
func AlertFromEmergency(e EmergencyCreated) Alert {
	p := e.Emergency
	battery := Placeholder
	if p.Battery != nil {
		battery = strconv.Itoa(*p.Battery)
	}
	id := p.ID
	if id == "" {
		id = Placeholder
	}
	return Alert{
		ID:          id,
		Kind:        AlertEmergency,
		Tipo:        p.Tipo,
		TypeLabel:   TypeLabel(p.Tipo),
		DeviceRef:   orPlaceholder(string(p.DeviceID)),
		DeviceBrand: orPlaceholder(p.DeviceBrand),
		DeviceModel: orPlaceholder(p.DeviceModel),
		Battery:     battery,
		UserRef:     orPlaceholder(string(p.UserID)),
		Location:    p.Position(),
		Timestamp:   orPlaceholder(p.Timestamp),
		Priority:    orPlaceholder(p.Priority),
		Status:      orDefault(p.Status, "ativo"),
		Description: p.Description,
	}
}

// AlertFromStolenDevice builds the display record for stolen_device_located.
// now stamps the synthetic alert ID.
func AlertFromStolenDevice(e StolenDeviceLocated, now time.Time) Alert {
	brand, model := Placeholder, Placeholder
	if fields := strings.Fields(e.DeviceInfo); len(fields) > 0 {
		brand = fields[0]
		if len(fields) > 1 {
			model = strings.Join(fields[1:], " ")
		}
	}

	battery := Placeholder
	if e.Battery != nil {
		battery = strconv.Itoa(*e.Battery)
	}

	var loc *Location
	if e.Latitude != nil && e.Longitude != nil {
		loc = &Location{Latitude: *e.Latitude, Longitude: *e.Longitude}
	}

	return Alert{
		ID:          ID(fmt.Sprintf("STOLEN-%s-%d", e.DeviceID, now.UnixMilli())),
		Kind:        AlertStolenDevice,
		Tipo:        "dispositivo_roubado",
		TypeLabel:   TypeLabel("dispositivo_roubado"),
		DeviceRef:   orPlaceholder(e.IMEI),
		DeviceBrand: brand,
		DeviceModel: model,
		Battery:     battery,
		UserRef:     orPlaceholder(e.UserName),
		Location:    loc,
		Timestamp:   orPlaceholder(e.Timestamp),
		Priority:    "alta",
		Status:      "ativo",
		Description: fmt.Sprintf("🚨 %s - IMEI: %s", orPlaceholder(e.Message), orPlaceholder(e.IMEI)),
	}
}

func orPlaceholder(s string) string {
	return orDefault(s, Placeholder)
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}
