package client

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/Ghoster04/AntCrime/internal/config"
	"github.com/Ghoster04/AntCrime/internal/realtime"
)

// APIError is returned for non-2xx responses.
type APIError struct {
	Method string
	Path   string
	Code   int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.Code, e.Body)
}

// API makes REST calls to the AntiCrime backend.
type API struct {
	http *resty.Client
	log  *zap.Logger
}

// NewAPI creates a client for cfg.BaseURL (e.g. "http://127.0.0.1:8000").
// Transport errors and 5xx responses are retried cfg.Retries times.
func NewAPI(cfg config.APIConfig, log *zap.Logger) *API {
	if log == nil {
		log = zap.NewNop()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	wait := cfg.RetryDelay
	if wait <= 0 {
		wait = time.Second
	}

	c := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(timeout).
		SetRetryCount(cfg.Retries).
		SetRetryWaitTime(wait).
		SetRetryMaxWaitTime(5*wait).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil || (r != nil && r.StatusCode() >= http.StatusInternalServerError)
		}).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	if cfg.Token != "" {
		c.SetAuthToken(cfg.Token)
	}
	return &API{http: c, log: log}
}

// Usuarios fetches GET /usuarios/.
func (a *API) Usuarios(ctx context.Context, page Page) ([]Usuario, error) {
	var out []Usuario
	if err := a.get(ctx, "/usuarios/", page.query(), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Dispositivos fetches GET /dispositivos/.
func (a *API) Dispositivos(ctx context.Context, page Page) ([]Dispositivo, error) {
	var out []Dispositivo
	if err := a.get(ctx, "/dispositivos/", page.query(), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Emergencias fetches GET /emergencias/.
func (a *API) Emergencias(ctx context.Context, page Page) ([]Emergencia, error) {
	var out []Emergencia
	if err := a.get(ctx, "/emergencias/", page.query(), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// PingsRoubados fetches GET /dispositivos/pings-roubados.
func (a *API) PingsRoubados(ctx context.Context, page Page) ([]PingRoubado, error) {
	var out []PingRoubado
	if err := a.get(ctx, "/dispositivos/pings-roubados", page.query(), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Stats fetches GET /dashboard/stats.
func (a *API) Stats(ctx context.Context) (*Estatisticas, error) {
	var out Estatisticas
	if err := a.get(ctx, "/dashboard/stats", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ResponderEmergencia sends PUT /emergencias/{id}/responder, marking the
// emergency as being handled by the calling operator.
func (a *API) ResponderEmergencia(ctx context.Context, id int64, observacoes string) error {
	path := "/emergencias/" + strconv.FormatInt(id, 10) + "/responder"
	body := struct {
		Observacoes string `json:"observacoes,omitempty"`
	}{observacoes}

	resp, err := a.http.R().
		SetContext(ctx).
		SetBody(body).
		Put(path)
	if err != nil {
		return fmt.Errorf("PUT %s: %w", path, err)
	}
	if resp.IsError() {
		return &APIError{Method: http.MethodPut, Path: path, Code: resp.StatusCode(), Body: resp.String()}
	}
	a.log.Info("emergency marked as responded", zap.Int64("emergency_id", id))
	return nil
}

func (a *API) get(ctx context.Context, path string, query map[string]string, out any) error {
	resp, err := a.http.R().
		SetContext(ctx).
		SetQueryParams(query).
		SetResult(out).
		Get(path)
	if err != nil {
		return fmt.Errorf("GET %s: %w", path, err)
	}
	if resp.IsError() {
		return &APIError{Method: http.MethodGet, Path: path, Code: resp.StatusCode(), Body: resp.String()}
	}
	return nil
}

func (p Page) query() map[string]string {
	if p.Limit <= 0 {
		p = DefaultPage
	}
	return map[string]string{
		"skip":  strconv.Itoa(p.Skip),
		"limit": strconv.Itoa(p.Limit),
	}
}

// Responder adapts API to the presenter's "mark handled" call. Synthetic
// alert IDs (stolen-device alerts) have no backend emergency and are skipped.
type Responder struct {
	API         *API
	Observacoes string
	Log         *zap.Logger
}

func (r Responder) MarkHandled(ctx context.Context, id realtime.ID) error {
	if !id.Numeric() {
		if r.Log != nil {
			r.Log.Debug("no backend emergency for alert", zap.String("alert_id", id.String()))
		}
		return nil
	}
	n, _ := strconv.ParseInt(id.String(), 10, 64)
	return r.API.ResponderEmergencia(ctx, n, r.Observacoes)
}
