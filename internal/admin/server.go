// Package admin serves the HTTP control panel for the producer and the
// history view for the consumer.
package admin

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"plantmon-sim/internal/logging"
	"plantmon-sim/internal/sim"
	"plantmon-sim/internal/telemetry"
)

// ProducerControl is the producer surface exposed over HTTP.
type ProducerControl interface {
	SetBaselines(temperature, humidity float64) error
	SetInterval(d time.Duration) error
	SetFaultFlags(drop, wild bool)
	Start(ctx context.Context) error
	Stop()
	Running() bool
	Settings() sim.Settings
	Stats() sim.Stats
}

// HistorySource is the consumer surface exposed over HTTP.
type HistorySource interface {
	History() []telemetry.Record
	Stats() sim.ConsumerStats
	Running() bool
}

// BrokerStatus describes the broker connection of the served side.
type BrokerStatus interface {
	Connected() bool
	URL() string
	Subject() string
}

// Health states reported by /health.
type Status string

const (
	StatusHealthy  Status = "healthy"
	StatusDegraded Status = "degraded"
)

type ComponentHealth struct {
	Name    string `json:"name"`
	Status  Status `json:"status"`
	Message string `json:"message,omitempty"`
}

type HealthResponse struct {
	Status     Status            `json:"status"`
	Components []ComponentHealth `json:"components"`
	Timestamp  time.Time         `json:"timestamp"`
}

// StatusResponse describes the producer.
type StatusResponse struct {
	BaselineTemperature float64   `json:"baseline_temperature"`
	BaselineHumidity    float64   `json:"baseline_humidity"`
	Interval            string    `json:"interval"`
	IntervalSeconds     float64   `json:"interval_seconds"`
	MissedTransmissions bool      `json:"missed_transmissions"`
	WildData            bool      `json:"wild_data"`
	Running             bool      `json:"running"`
	Stats               sim.Stats `json:"stats"`
}

// HistoryResponse describes the consumer's retained records.
type HistoryResponse struct {
	Summary sim.HistorySummary `json:"summary"`
	Stats   sim.ConsumerStats  `json:"stats"`
	Records []telemetry.Record `json:"records"`
}

type baselinesRequest struct {
	Temperature *float64 `json:"temperature"`
	Humidity    *float64 `json:"humidity"`
}

type intervalRequest struct {
	Seconds float64 `json:"seconds"`
}

type faultsRequest struct {
	MissedTransmissions *bool `json:"missed_transmissions"`
	WildData            *bool `json:"wild_data"`
}

// MinInterval is the shortest tick period accepted over HTTP.
const MinInterval = 100 * time.Millisecond

//go:embed templates/index.html
var content embed.FS

// Server routes admin requests. Either side may be nil; its routes are then
// not registered. A nil broker is left out of /health.
type Server struct {
	producer ProducerControl
	consumer HistorySource
	broker   BrokerStatus
	ctx      context.Context
	tpl      *template.Template
	router   chi.Router
	srv      *http.Server
	now      func() time.Time
}

// NewServer builds the router. ctx supplies the logger and is handed to
// producer Start calls.
func NewServer(ctx context.Context, producer ProducerControl, consumer HistorySource, broker BrokerStatus) *Server {
	tpl := template.Must(template.New("index.html").ParseFS(content, "templates/index.html"))
	s := &Server{producer: producer, consumer: consumer, broker: broker, ctx: ctx, tpl: tpl, now: time.Now}
	s.routes()
	return s
}

func (s *Server) routes() {
	r := chi.NewRouter()
	r.Get("/health", s.handleHealth)
	if s.producer != nil {
		r.Get("/", s.handleIndex)
		r.Get("/status", s.handleStatus)
		r.Post("/start", s.handleStart)
		r.Post("/stop", s.handleStop)
		r.Post("/baselines", s.handleBaselines)
		r.Post("/interval", s.handleInterval)
		r.Post("/faults", s.handleFaults)
	}
	if s.consumer != nil {
		r.Get("/history", s.handleHistory)
	}
	s.router = r
}

// Handler returns the router.
func (s *Server) Handler() http.Handler { return s.router }

// Start listens on addr in the background.
func (s *Server) Start(addr string) {
	log := logging.FromContext(s.ctx)
	s.srv = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	log.Info("starting admin server", "address", addr)
	go func() {
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("admin server error", "err", err)
		}
	}()
}

// Stop shuts the listener down.
func (s *Server) Stop(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.tpl.Execute(w, s.status()); err != nil {
		logging.FromContext(s.ctx).Error("render index", "err", err)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{Status: StatusHealthy, Timestamp: s.now().UTC()}
	add := func(name string, ok bool, down, up string) {
		c := ComponentHealth{Name: name, Status: StatusHealthy, Message: up}
		if !ok {
			c.Status = StatusDegraded
			c.Message = down
			resp.Status = StatusDegraded
		}
		resp.Components = append(resp.Components, c)
	}
	if s.producer != nil {
		add("producer", s.producer.Running(), "stopped", "")
	}
	if s.consumer != nil {
		add("consumer", s.consumer.Running(), "stopped", "")
	}
	if s.broker != nil {
		where := fmt.Sprintf("%s on %s", s.broker.Subject(), s.broker.URL())
		add("broker", s.broker.Connected(), "not connected to "+s.broker.URL(), where)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) status() StatusResponse {
	st := s.producer.Settings()
	return StatusResponse{
		BaselineTemperature: st.BaselineTemperature,
		BaselineHumidity:    st.BaselineHumidity,
		Interval:            st.Interval.String(),
		IntervalSeconds:     st.Interval.Seconds(),
		MissedTransmissions: st.Faults.Drop,
		WildData:            st.Faults.Wild,
		Running:             st.Running,
		Stats:               s.producer.Stats(),
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.status())
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	if err := s.producer.Start(s.ctx); err != nil {
		writeError(w, http.StatusBadGateway, err)
		return
	}
	writeJSON(w, http.StatusOK, s.status())
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	s.producer.Stop()
	writeJSON(w, http.StatusOK, s.status())
}

func (s *Server) handleBaselines(w http.ResponseWriter, r *http.Request) {
	var req baselinesRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	cur := s.producer.Settings()
	temp, hum := cur.BaselineTemperature, cur.BaselineHumidity
	if req.Temperature != nil {
		temp = *req.Temperature
	}
	if req.Humidity != nil {
		hum = *req.Humidity
	}
	if err := s.producer.SetBaselines(temp, hum); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, s.status())
}

func (s *Server) handleInterval(w http.ResponseWriter, r *http.Request) {
	var req intervalRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if math.IsNaN(req.Seconds) || req.Seconds > math.MaxInt64/float64(time.Second) {
		writeError(w, http.StatusBadRequest, fmt.Errorf("interval out of range: %v", req.Seconds))
		return
	}
	if req.Seconds > 0 && req.Seconds < MinInterval.Seconds() {
		writeError(w, http.StatusBadRequest, fmt.Errorf("interval must be at least %s", MinInterval))
		return
	}
	d := time.Duration(req.Seconds * float64(time.Second))
	if err := s.producer.SetInterval(d); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, s.status())
}

func (s *Server) handleFaults(w http.ResponseWriter, r *http.Request) {
	var req faultsRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	cur := s.producer.Settings().Faults
	drop, wild := cur.Drop, cur.Wild
	if req.MissedTransmissions != nil {
		drop = *req.MissedTransmissions
	}
	if req.WildData != nil {
		wild = *req.WildData
	}
	s.producer.SetFaultFlags(drop, wild)
	writeJSON(w, http.StatusOK, s.status())
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	recs := s.consumer.History()
	resp := HistoryResponse{
		Summary: sim.Summarize(recs, telemetry.DefaultEnvelope),
		Stats:   s.consumer.Stats(),
		Records: recs,
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, fmt.Errorf("invalid limit %q", v))
			return
		}
		if n < len(recs) {
			resp.Records = recs[len(recs)-n:]
		}
	}
	if resp.Records == nil {
		resp.Records = []telemetry.Record{}
	}
	writeJSON(w, http.StatusOK, resp)
}

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}
