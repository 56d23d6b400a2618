// Package relay is the development backend: it stores what devices report,
// serves the REST collections the console polls and pushes realtime
// notifications to connected consoles.
package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Ghoster04/AntCrime/internal/client"
	"github.com/Ghoster04/AntCrime/internal/realtime"
	"github.com/Ghoster04/AntCrime/internal/store"
)

var (
	ErrMalformedFrame   = errors.New("relay: malformed device frame")
	ErrUnsupportedFrame = errors.New("relay: unsupported frame type")
)

const (
	stolenMessage  = "Dispositivo roubado localizado"
	sosPriority    = "alta"
	defaultSOSType = "dispositivo_roubado"
)

// Relay turns device reports into stored records and broadcasts.
type Relay struct {
	store *store.Store
	hub   *Hub
	log   *zap.Logger
	now   func() time.Time
}

func New(st *store.Store, hub *Hub, log *zap.Logger) *Relay {
	return &Relay{store: st, hub: hub, log: log, now: time.Now}
}

// Ingest decodes and applies one raw device frame.
func (r *Relay) Ingest(ctx context.Context, frame []byte) error {
	var f DeviceFrame
	if err := json.Unmarshal(frame, &f); err != nil {
		framesIn.WithLabelValues("", "malformed").Inc()
		return fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	return r.IngestFrame(ctx, f)
}

// IngestFrame applies a decoded device frame.
func (r *Relay) IngestFrame(ctx context.Context, f DeviceFrame) error {
	err := r.apply(ctx, f)
	result := "ok"
	switch {
	case errors.Is(err, ErrUnsupportedFrame):
		result = "unsupported"
	case err != nil:
		result = "error"
	}
	framesIn.WithLabelValues(string(f.Type), result).Inc()
	return err
}

func (r *Relay) apply(ctx context.Context, f DeviceFrame) error {
	if f.Type != realtime.TypeStolenDevicePing && f.Type != realtime.TypeDeviceSOS && f.Type != realtime.TypeDevicePing {
		return fmt.Errorf("%w: %q", ErrUnsupportedFrame, f.Type)
	}
	if f.IMEI == "" {
		return fmt.Errorf("%w: missing imei", ErrMalformedFrame)
	}
	if f.Timestamp == "" {
		f.Timestamp = r.now().UTC().Format(time.RFC3339)
	}

	switch f.Type {
	case realtime.TypeStolenDevicePing:
		return r.stolenPing(ctx, f)
	case realtime.TypeDeviceSOS:
		return r.sos(ctx, f)
	default:
		return r.routinePing(ctx, f)
	}
}

func (r *Relay) register(ctx context.Context, f DeviceFrame, status string) (client.Dispositivo, error) {
	dev, err := r.store.RegisterDevice(ctx, client.Dispositivo{
		IMEI:               f.IMEI,
		Marca:              f.Marca,
		Modelo:             f.Modelo,
		SistemaOperacional: f.SistemaOperacional,
		VersaoApp:          f.VersaoApp,
		Status:             status,
	})
	if err != nil {
		return client.Dispositivo{}, fmt.Errorf("register device %s: %w", f.IMEI, err)
	}
	return dev, nil
}

// stolenPing records the position of a stolen device, then tells consoles
// both that it was located and that the device collection moved.
func (r *Relay) stolenPing(ctx context.Context, f DeviceFrame) error {
	dev, err := r.register(ctx, f, store.DeviceStolen)
	if err != nil {
		return err
	}
	ping, err := r.store.RecordPing(ctx, dev.ID, client.PingRoubado{
		Timestamp:         f.Timestamp,
		Latitude:          f.Latitude,
		Longitude:         f.Longitude,
		PrecisaoGPS:       f.Precisao,
		NivelBateria:      f.Bateria,
		StatusDispositivo: store.DeviceStolen,
	})
	if err != nil {
		return fmt.Errorf("record ping: %w", err)
	}

	var owner string
	if ping.Usuario != nil {
		owner = ping.Usuario.Nome
	}
	lat, lng := f.Latitude, f.Longitude
	located := realtime.StolenDeviceLocated{
		DeviceID:   idOf(dev.ID),
		IMEI:       dev.IMEI,
		DeviceInfo: strings.TrimSpace(dev.Marca + " " + dev.Modelo),
		Battery:    f.Bateria,
		UserName:   owner,
		Latitude:   &lat,
		Longitude:  &lng,
		Timestamp:  ping.Timestamp,
		Message:    stolenMessage,
	}
	r.publish(realtime.TypeStolenDeviceLocated, stolenLocatedMsg{Type: realtime.TypeStolenDeviceLocated, StolenDeviceLocated: located})
	r.publish(realtime.TypeDevicePing, pingMsg(dev, f))
	return nil
}

func (r *Relay) routinePing(ctx context.Context, f DeviceFrame) error {
	dev, err := r.register(ctx, f, f.Status)
	if err != nil {
		return err
	}
	if err := r.store.TouchDevice(ctx, dev.ID, f.Latitude, f.Longitude, f.Timestamp); err != nil {
		return fmt.Errorf("touch device: %w", err)
	}
	r.publish(realtime.TypeDevicePing, pingMsg(dev, f))
	return nil
}

func (r *Relay) sos(ctx context.Context, f DeviceFrame) error {
	dev, err := r.register(ctx, f, "")
	if err != nil {
		return err
	}
	e, err := r.store.CreateEmergency(ctx, client.Emergencia{
		Latitude:             f.Latitude,
		Longitude:            f.Longitude,
		TimestampAcionamento: f.Timestamp,
		UsuarioID:            dev.UsuarioID,
		DispositivoID:        dev.ID,
		NivelBateria:         f.Bateria,
		PrecisaoGPS:          f.Precisao,
	})
	if err != nil {
		return fmt.Errorf("create emergency: %w", err)
	}

	tipo := f.EmergencyType
	if tipo == "" {
		tipo = defaultSOSType
	}
	payload := emergencyPayload(e, dev)
	payload.Tipo = tipo
	payload.Priority = sosPriority
	payload.Description = f.Message
	r.log.Info("emergency created",
		zap.Int64("emergency_id", e.ID), zap.String("imei", dev.IMEI), zap.String("tipo", tipo))
	r.publish(realtime.TypeEmergencyCreated, emergencyMsg{Type: realtime.TypeEmergencyCreated, Emergency: payload})
	return nil
}

// Respond marks an emergency as being handled and notifies consoles.
func (r *Relay) Respond(ctx context.Context, id int64, observacoes string) (client.Emergencia, error) {
	e, err := r.store.RespondEmergency(ctx, id, observacoes, r.now())
	if err != nil {
		return client.Emergencia{}, err
	}
	r.log.Info("emergency responded", zap.Int64("emergency_id", id))
	r.publish(realtime.TypeEmergencyResponse, emergencyMsg{
		Type:      realtime.TypeEmergencyResponse,
		Emergency: emergencyPayload(e, client.Dispositivo{}),
	})
	return e, nil
}

func (r *Relay) publish(t realtime.EventType, msg any) {
	if err := r.hub.Broadcast(t, msg); err != nil {
		r.log.Error("broadcast failed", zap.String("type", string(t)), zap.Error(err))
	}
}

func pingMsg(dev client.Dispositivo, f DeviceFrame) devicePingMsg {
	lat, lng := f.Latitude, f.Longitude
	return devicePingMsg{
		Type: realtime.TypeDevicePing,
		DevicePayload: realtime.DevicePayload{
			DeviceID:  idOf(dev.ID),
			IMEI:      dev.IMEI,
			Status:    dev.Status,
			Latitude:  &lat,
			Longitude: &lng,
			Battery:   f.Bateria,
			Timestamp: f.Timestamp,
		},
	}
}

func emergencyPayload(e client.Emergencia, dev client.Dispositivo) realtime.EmergencyPayload {
	return realtime.EmergencyPayload{
		ID:          idOf(e.ID),
		UserID:      idOf(e.UsuarioID),
		DeviceID:    idOf(e.DispositivoID),
		DeviceBrand: dev.Marca,
		DeviceModel: dev.Modelo,
		Battery:     e.NivelBateria,
		Location:    &realtime.Location{Latitude: e.Latitude, Longitude: e.Longitude},
		Timestamp:   e.TimestampAcionamento,
		Status:      e.Status,
	}
}

func idOf(id int64) realtime.ID {
	return realtime.ID(strconv.FormatInt(id, 10))
}
