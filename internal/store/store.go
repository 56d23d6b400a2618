package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Ghoster04/AntCrime/internal/client"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("store: not found")

// Emergency and device statuses written by the relay.
const (
	EmergencyActive     = "ativa"
	EmergencyInProgress = "em_atendimento"
	DeviceActive        = "ativo"
	DeviceStolen        = "roubado"
)

// timeFormat is used for every timestamp column.
const timeFormat = time.RFC3339

func stamp(t time.Time) string { return t.UTC().Format(timeFormat) }

// CreateUser inserts u and returns it with its ID and registration time.
func (s *Store) CreateUser(ctx context.Context, u client.Usuario) (client.Usuario, error) {
	if u.DataCadastro == "" {
		u.DataCadastro = stamp(time.Now())
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO usuarios (nome_completo, numero_identidade, telefone_principal,
			telefone_emergencia, email, provincia, cidade, bairro, rua, numero_casa,
			latitude_residencia, longitude_residencia, ativo, data_cadastro)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		u.NomeCompleto, u.NumeroIdentidade, u.TelefonePrincipal,
		u.TelefoneEmergencia, u.Email, u.Provincia, u.Cidade, u.Bairro, u.Rua, u.NumeroCasa,
		u.LatitudeResidencia, u.LongitudeResidencia, u.Ativo, u.DataCadastro)
	if err != nil {
		return client.Usuario{}, fmt.Errorf("insert usuario: %w", err)
	}
	u.ID, err = res.LastInsertId()
	return u, err
}

// User returns the user with the given ID.
func (s *Store) User(ctx context.Context, id int64) (client.Usuario, error) {
	users, err := s.queryUsers(ctx, `WHERE id = ?`, id)
	if err != nil {
		return client.Usuario{}, err
	}
	if len(users) == 0 {
		return client.Usuario{}, ErrNotFound
	}
	return users[0], nil
}

// Users lists users in ID order.
func (s *Store) Users(ctx context.Context, page client.Page) ([]client.Usuario, error) {
	return s.queryUsers(ctx, `ORDER BY id LIMIT ? OFFSET ?`, page.Limit, page.Skip)
}

func (s *Store) queryUsers(ctx context.Context, tail string, args ...any) ([]client.Usuario, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, nome_completo, numero_identidade, telefone_principal, telefone_emergencia,
			email, provincia, cidade, bairro, rua, numero_casa,
			latitude_residencia, longitude_residencia, ativo, data_cadastro
		FROM usuarios `+tail, args...)
	if err != nil {
		return nil, fmt.Errorf("query usuarios: %w", err)
	}
	defer rows.Close()

	users := []client.Usuario{}
	for rows.Next() {
		var u client.Usuario
		if err := rows.Scan(&u.ID, &u.NomeCompleto, &u.NumeroIdentidade, &u.TelefonePrincipal,
			&u.TelefoneEmergencia, &u.Email, &u.Provincia, &u.Cidade, &u.Bairro, &u.Rua,
			&u.NumeroCasa, &u.LatitudeResidencia, &u.LongitudeResidencia, &u.Ativo,
			&u.DataCadastro); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// DefaultOwner returns the first registered user, creating a placeholder
// owner when the table is empty. Devices that report before being
// registered are attached to it.
func (s *Store) DefaultOwner(ctx context.Context) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, `SELECT id FROM usuarios ORDER BY id LIMIT 1`).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, err
	}
	u, err := s.CreateUser(ctx, client.Usuario{
		NomeCompleto:      "Proprietário desconhecido",
		NumeroIdentidade:  "000000000000A",
		TelefonePrincipal: "",
		Ativo:             true,
	})
	return u.ID, err
}

// RegisterDevice inserts d or, when its IMEI is already known, refreshes the
// descriptive fields and status that d carries. Empty fields never
// overwrite stored values.
func (s *Store) RegisterDevice(ctx context.Context, d client.Dispositivo) (client.Dispositivo, error) {
	if d.IMEI == "" {
		return client.Dispositivo{}, errors.New("store: device without imei")
	}
	if d.UsuarioID == 0 {
		owner, err := s.DefaultOwner(ctx)
		if err != nil {
			return client.Dispositivo{}, fmt.Errorf("default owner: %w", err)
		}
		d.UsuarioID = owner
	}
	if d.DataCadastro == "" {
		d.DataCadastro = stamp(time.Now())
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO dispositivos (imei, modelo, marca, sistema_operacional, versao_app,
			status, usuario_id, data_cadastro)
		VALUES (?, ?, ?, ?, ?, COALESCE(NULLIF(?, ''), ?), ?, ?)
		ON CONFLICT(imei) DO UPDATE SET
			modelo = COALESCE(NULLIF(excluded.modelo, ''), modelo),
			marca = COALESCE(NULLIF(excluded.marca, ''), marca),
			sistema_operacional = COALESCE(NULLIF(excluded.sistema_operacional, ''), sistema_operacional),
			versao_app = COALESCE(NULLIF(excluded.versao_app, ''), versao_app),
			status = COALESCE(NULLIF(?, ''), status)`,
		d.IMEI, d.Modelo, d.Marca, d.SistemaOperacional, d.VersaoApp,
		d.Status, DeviceActive, d.UsuarioID, d.DataCadastro, d.Status)
	if err != nil {
		return client.Dispositivo{}, fmt.Errorf("upsert dispositivo: %w", err)
	}
	return s.DeviceByIMEI(ctx, d.IMEI)
}

// DeviceByIMEI looks a device up by hardware IMEI.
func (s *Store) DeviceByIMEI(ctx context.Context, imei string) (client.Dispositivo, error) {
	devices, err := s.queryDevices(ctx, `WHERE imei = ?`, imei)
	if err != nil {
		return client.Dispositivo{}, err
	}
	if len(devices) == 0 {
		return client.Dispositivo{}, ErrNotFound
	}
	return devices[0], nil
}

// Devices lists devices in ID order.
func (s *Store) Devices(ctx context.Context, page client.Page) ([]client.Dispositivo, error) {
	return s.queryDevices(ctx, `ORDER BY id LIMIT ? OFFSET ?`, page.Limit, page.Skip)
}

func (s *Store) queryDevices(ctx context.Context, tail string, args ...any) ([]client.Dispositivo, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, imei, modelo, marca, sistema_operacional, versao_app, status,
			ultima_localizacao_lat, ultima_localizacao_lng, ultimo_ping, usuario_id, data_cadastro
		FROM dispositivos `+tail, args...)
	if err != nil {
		return nil, fmt.Errorf("query dispositivos: %w", err)
	}
	defer rows.Close()

	devices := []client.Dispositivo{}
	for rows.Next() {
		var (
			d        client.Dispositivo
			lat, lng sql.NullFloat64
		)
		if err := rows.Scan(&d.ID, &d.IMEI, &d.Modelo, &d.Marca, &d.SistemaOperacional,
			&d.VersaoApp, &d.Status, &lat, &lng, &d.UltimoPing, &d.UsuarioID,
			&d.DataCadastro); err != nil {
			return nil, err
		}
		d.UltimaLocalizacaoLat = floatPtr(lat)
		d.UltimaLocalizacaoLng = floatPtr(lng)
		devices = append(devices, d)
	}
	return devices, rows.Err()
}

// TouchDevice records a routine position report without logging a ping.
func (s *Store) TouchDevice(ctx context.Context, deviceID int64, lat, lng float64, at string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE dispositivos
		SET ultima_localizacao_lat = ?, ultima_localizacao_lng = ?, ultimo_ping = ?
		WHERE id = ?`,
		lat, lng, at, deviceID)
	if err != nil {
		return fmt.Errorf("update dispositivo: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// RecordPing stores a position report of a device and moves the device's
// last known location and status along with it.
func (s *Store) RecordPing(ctx context.Context, deviceID int64, p client.PingRoubado) (client.PingRoubado, error) {
	if p.Timestamp == "" {
		p.Timestamp = stamp(time.Now())
	}
	if p.StatusDispositivo == "" {
		p.StatusDispositivo = DeviceStolen
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return client.PingRoubado{}, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO pings_roubados (dispositivo_id, timestamp, latitude, longitude,
			precisao_gps, nivel_bateria, status_dispositivo)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		deviceID, p.Timestamp, p.Latitude, p.Longitude,
		nullInt(p.PrecisaoGPS), nullInt(p.NivelBateria), p.StatusDispositivo)
	if err != nil {
		return client.PingRoubado{}, fmt.Errorf("insert ping: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return client.PingRoubado{}, err
	}

	res, err = tx.ExecContext(ctx, `
		UPDATE dispositivos
		SET ultima_localizacao_lat = ?, ultima_localizacao_lng = ?, ultimo_ping = ?, status = ?
		WHERE id = ?`,
		p.Latitude, p.Longitude, p.Timestamp, p.StatusDispositivo, deviceID)
	if err != nil {
		return client.PingRoubado{}, fmt.Errorf("update dispositivo: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return client.PingRoubado{}, ErrNotFound
	}

	if err := tx.Commit(); err != nil {
		return client.PingRoubado{}, err
	}

	pings, err := s.queryPings(ctx, `WHERE p.id = ?`, id)
	if err != nil {
		return client.PingRoubado{}, err
	}
	if len(pings) == 0 {
		return client.PingRoubado{}, ErrNotFound
	}
	return pings[0], nil
}

// StolenPings lists pings newest first, each with its device and owner.
func (s *Store) StolenPings(ctx context.Context, page client.Page) ([]client.PingRoubado, error) {
	return s.queryPings(ctx, `ORDER BY p.timestamp DESC, p.id DESC LIMIT ? OFFSET ?`, page.Limit, page.Skip)
}

func (s *Store) queryPings(ctx context.Context, tail string, args ...any) ([]client.PingRoubado, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT p.id, p.timestamp, p.latitude, p.longitude, p.precisao_gps, p.nivel_bateria,
			p.status_dispositivo, d.id, d.imei, d.marca, d.modelo,
			u.nome_completo, u.telefone_principal
		FROM pings_roubados p
		JOIN dispositivos d ON d.id = p.dispositivo_id
		JOIN usuarios u ON u.id = d.usuario_id `+tail, args...)
	if err != nil {
		return nil, fmt.Errorf("query pings: %w", err)
	}
	defer rows.Close()

	pings := []client.PingRoubado{}
	for rows.Next() {
		var (
			p            client.PingRoubado
			dev          client.PingDevice
			owner        client.PingOwnerInfo
			acc, battery sql.NullInt64
		)
		if err := rows.Scan(&p.ID, &p.Timestamp, &p.Latitude, &p.Longitude, &acc, &battery,
			&p.StatusDispositivo, &dev.ID, &dev.IMEI, &dev.Marca, &dev.Modelo,
			&owner.Nome, &owner.Telefone); err != nil {
			return nil, err
		}
		p.PrecisaoGPS = intPtr(acc)
		p.NivelBateria = intPtr(battery)
		p.Dispositivo = &dev
		p.Usuario = &owner
		pings = append(pings, p)
	}
	return pings, rows.Err()
}

// CreateEmergency inserts e as an active emergency.
func (s *Store) CreateEmergency(ctx context.Context, e client.Emergencia) (client.Emergencia, error) {
	if e.TimestampAcionamento == "" {
		e.TimestampAcionamento = stamp(time.Now())
	}
	if e.Status == "" {
		e.Status = EmergencyActive
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO emergencias (latitude, longitude, timestamp_acionamento, status,
			usuario_id, dispositivo_id, nivel_bateria, precisao_gps)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.Latitude, e.Longitude, e.TimestampAcionamento, e.Status,
		e.UsuarioID, e.DispositivoID, nullInt(e.NivelBateria), nullInt(e.PrecisaoGPS))
	if err != nil {
		return client.Emergencia{}, fmt.Errorf("insert emergencia: %w", err)
	}
	e.ID, err = res.LastInsertId()
	return e, err
}

// RespondEmergency moves an emergency to em_atendimento.
func (s *Store) RespondEmergency(ctx context.Context, id int64, observacoes string, at time.Time) (client.Emergencia, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE emergencias
		SET status = ?, timestamp_resposta = ?, observacoes_admin = ?
		WHERE id = ?`,
		EmergencyInProgress, stamp(at), observacoes, id)
	if err != nil {
		return client.Emergencia{}, fmt.Errorf("update emergencia: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return client.Emergencia{}, ErrNotFound
	}
	return s.Emergency(ctx, id)
}

// Emergency returns the emergency with the given ID.
func (s *Store) Emergency(ctx context.Context, id int64) (client.Emergencia, error) {
	es, err := s.queryEmergencies(ctx, `WHERE id = ?`, id)
	if err != nil {
		return client.Emergencia{}, err
	}
	if len(es) == 0 {
		return client.Emergencia{}, ErrNotFound
	}
	return es[0], nil
}

// Emergencies lists emergencies newest first.
func (s *Store) Emergencies(ctx context.Context, page client.Page) ([]client.Emergencia, error) {
	return s.queryEmergencies(ctx, `ORDER BY timestamp_acionamento DESC, id DESC LIMIT ? OFFSET ?`, page.Limit, page.Skip)
}

func (s *Store) queryEmergencies(ctx context.Context, tail string, args ...any) ([]client.Emergencia, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, latitude, longitude, timestamp_acionamento, status, usuario_id,
			dispositivo_id, timestamp_resposta, observacoes_admin, nivel_bateria, precisao_gps
		FROM emergencias `+tail, args...)
	if err != nil {
		return nil, fmt.Errorf("query emergencias: %w", err)
	}
	defer rows.Close()

	es := []client.Emergencia{}
	for rows.Next() {
		var (
			e            client.Emergencia
			battery, acc sql.NullInt64
		)
		if err := rows.Scan(&e.ID, &e.Latitude, &e.Longitude, &e.TimestampAcionamento,
			&e.Status, &e.UsuarioID, &e.DispositivoID, &e.TimestampResposta,
			&e.ObservacoesAdmin, &battery, &acc); err != nil {
			return nil, err
		}
		e.NivelBateria = intPtr(battery)
		e.PrecisaoGPS = intPtr(acc)
		es = append(es, e)
	}
	return es, rows.Err()
}

// Stats computes the dashboard summary.
func (s *Store) Stats(ctx context.Context) (client.Estatisticas, error) {
	var st client.Estatisticas
	err := s.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM usuarios),
			(SELECT COUNT(*) FROM dispositivos),
			(SELECT COUNT(*) FROM emergencias),
			(SELECT COUNT(*) FROM emergencias WHERE status = ?),
			(SELECT COUNT(*) FROM dispositivos WHERE status = ?),
			(SELECT COUNT(*) FROM usuarios WHERE ativo = 1)`,
		EmergencyActive, DeviceStolen,
	).Scan(&st.TotalUsuarios, &st.TotalDispositivos, &st.TotalEmergencias,
		&st.EmergenciasAtivas, &st.DispositivosRoubados, &st.UsuariosAtivos)
	if err != nil {
		return client.Estatisticas{}, fmt.Errorf("query stats: %w", err)
	}
	return st, nil
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func intPtr(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	n := int(v.Int64)
	return &n
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	return &v.Float64
}
