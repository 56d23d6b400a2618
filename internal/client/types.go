package client

// Usuario is a registered citizen as returned by GET /usuarios/.
type Usuario struct {
	ID                  int64   `json:"id"`
	NomeCompleto        string  `json:"nome_completo"`
	NumeroIdentidade    string  `json:"numero_identidade"`
	TelefonePrincipal   string  `json:"telefone_principal"`
	TelefoneEmergencia  string  `json:"telefone_emergencia,omitempty"`
	Email               string  `json:"email,omitempty"`
	Provincia           string  `json:"provincia"`
	Cidade              string  `json:"cidade"`
	Bairro              string  `json:"bairro"`
	Rua                 string  `json:"rua,omitempty"`
	NumeroCasa          string  `json:"numero_casa,omitempty"`
	LatitudeResidencia  float64 `json:"latitude_residencia"`
	LongitudeResidencia float64 `json:"longitude_residencia"`
	Ativo               bool    `json:"ativo"`
	DataCadastro        string  `json:"data_cadastro"`
}

// Dispositivo is a registered handset.
type Dispositivo struct {
	ID                   int64    `json:"id"`
	IMEI                 string   `json:"imei"`
	Modelo               string   `json:"modelo,omitempty"`
	Marca                string   `json:"marca,omitempty"`
	SistemaOperacional   string   `json:"sistema_operacional,omitempty"`
	VersaoApp            string   `json:"versao_app,omitempty"`
	Status               string   `json:"status"`
	UltimaLocalizacaoLat *float64 `json:"ultima_localizacao_lat,omitempty"`
	UltimaLocalizacaoLng *float64 `json:"ultima_localizacao_lng,omitempty"`
	UltimoPing           string   `json:"ultimo_ping,omitempty"`
	UsuarioID            int64    `json:"usuario_id"`
	DataCadastro         string   `json:"data_cadastro"`
}

// Emergencia is an emergency record.
type Emergencia struct {
	ID                   int64   `json:"id"`
	Latitude             float64 `json:"latitude"`
	Longitude            float64 `json:"longitude"`
	TimestampAcionamento string  `json:"timestamp_acionamento"`
	Status               string  `json:"status"`
	UsuarioID            int64   `json:"usuario_id"`
	DispositivoID        int64   `json:"dispositivo_id"`
	TimestampResposta    string  `json:"timestamp_resposta,omitempty"`
	ObservacoesAdmin     string  `json:"observacoes_admin,omitempty"`
	NivelBateria         *int    `json:"nivel_bateria,omitempty"`
	PrecisaoGPS          *int    `json:"precisao_gps,omitempty"`
}

// Estatisticas is the dashboard summary.
type Estatisticas struct {
	TotalUsuarios        int `json:"total_usuarios"`
	TotalDispositivos    int `json:"total_dispositivos"`
	TotalEmergencias     int `json:"total_emergencias"`
	EmergenciasAtivas    int `json:"emergencias_ativas"`
	DispositivosRoubados int `json:"dispositivos_roubados"`
	UsuariosAtivos       int `json:"usuarios_ativos"`
}

// PingRoubado is one position report of a device flagged as stolen.
type PingRoubado struct {
	ID                int64          `json:"id"`
	Timestamp         string         `json:"timestamp"`
	Latitude          float64        `json:"latitude"`
	Longitude         float64        `json:"longitude"`
	PrecisaoGPS       *int           `json:"precisao_gps,omitempty"`
	NivelBateria      *int           `json:"nivel_bateria,omitempty"`
	StatusDispositivo string         `json:"status_dispositivo"`
	Dispositivo       *PingDevice    `json:"dispositivo,omitempty"`
	Usuario           *PingOwnerInfo `json:"usuario,omitempty"`
}

// PingDevice is the device summary embedded in a PingRoubado.
type PingDevice struct {
	ID     int64  `json:"id"`
	IMEI   string `json:"imei"`
	Marca  string `json:"marca,omitempty"`
	Modelo string `json:"modelo,omitempty"`
}

// PingOwnerInfo is the owner summary embedded in a PingRoubado.
type PingOwnerInfo struct {
	Nome     string `json:"nome"`
	Telefone string `json:"telefone,omitempty"`
}

// Page selects a window of a collection.
type Page struct {
	Skip  int
	Limit int
}

// DefaultPage mirrors the backend's own default window.
var DefaultPage = Page{Skip: 0, Limit: 100}
