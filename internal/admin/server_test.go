package admin

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"plantmon-sim/internal/fault"
	"plantmon-sim/internal/sim"
	"plantmon-sim/internal/telemetry"
)

type fakeProducer struct {
	settings sim.Settings
	stats    sim.Stats
	startErr error
	starts   int
}

func (f *fakeProducer) SetBaselines(t, h float64) error {
	if math.IsNaN(t) || math.IsNaN(h) {
		return sim.ErrInvalidBaseline
	}
	f.settings.BaselineTemperature, f.settings.BaselineHumidity = t, h
	return nil
}

func (f *fakeProducer) SetInterval(d time.Duration) error {
	if d <= 0 {
		return sim.ErrInvalidInterval
	}
	f.settings.Interval = d
	return nil
}

func (f *fakeProducer) SetFaultFlags(drop, wild bool) {
	f.settings.Faults = fault.Flags{Drop: drop, Wild: wild}
}

func (f *fakeProducer) Start(context.Context) error {
	f.starts++
	if f.startErr != nil {
		return f.startErr
	}
	f.settings.Running = true
	return nil
}

func (f *fakeProducer) Stop()                  { f.settings.Running = false }
func (f *fakeProducer) Running() bool          { return f.settings.Running }
func (f *fakeProducer) Settings() sim.Settings { return f.settings }
func (f *fakeProducer) Stats() sim.Stats       { return f.stats }

type fakeBroker struct{ connected bool }

func (f *fakeBroker) Connected() bool { return f.connected }
func (f *fakeBroker) URL() string     { return "nats://127.0.0.1:4222" }
func (f *fakeBroker) Subject() string { return "plant/telemetry" }

type fakeHistory struct {
	recs    []telemetry.Record
	running bool
}

func (f *fakeHistory) History() []telemetry.Record { return f.recs }
func (f *fakeHistory) Stats() sim.ConsumerStats {
	return sim.ConsumerStats{Received: uint64(len(f.recs)), HistoryLen: len(f.recs), HistoryCap: 100}
}
func (f *fakeHistory) Running() bool { return f.running }

func newProducer() *fakeProducer {
	return &fakeProducer{settings: sim.Settings{
		BaselineTemperature: 23,
		BaselineHumidity:    65,
		Interval:            3 * time.Second,
		Faults:              fault.Flags{Drop: true},
	}}
}

func do(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, req)
	return rr
}

func decodeStatus(t *testing.T, rr *httptest.ResponseRecorder) StatusResponse {
	t.Helper()
	var resp StatusResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	return resp
}

func TestStatusEndpoint(t *testing.T) {
	p := newProducer()
	p.stats = sim.Stats{Generated: 4, Published: 3, Suppressed: 1, LastID: 114}
	s := NewServer(context.Background(), p, nil, nil)

	rr := do(t, s, http.MethodGet, "/status", "")
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	resp := decodeStatus(t, rr)
	require.Equal(t, 23.0, resp.BaselineTemperature)
	require.Equal(t, 3.0, resp.IntervalSeconds)
	require.True(t, resp.MissedTransmissions)
	require.False(t, resp.WildData)
	require.Equal(t, int64(114), resp.Stats.LastID)
}

func TestStartStop(t *testing.T) {
	p := newProducer()
	s := NewServer(context.Background(), p, nil, nil)

	rr := do(t, s, http.MethodPost, "/start", "")
	require.Equal(t, http.StatusOK, rr.Code)
	require.True(t, decodeStatus(t, rr).Running)

	rr = do(t, s, http.MethodPost, "/stop", "")
	require.Equal(t, http.StatusOK, rr.Code)
	require.False(t, decodeStatus(t, rr).Running)
}

func TestStartFailure(t *testing.T) {
	p := newProducer()
	p.startErr = context.DeadlineExceeded
	s := NewServer(context.Background(), p, nil, nil)

	rr := do(t, s, http.MethodPost, "/start", "")
	require.Equal(t, http.StatusBadGateway, rr.Code)
	require.Contains(t, rr.Body.String(), "error")
}

func TestBaselines(t *testing.T) {
	p := newProducer()
	s := NewServer(context.Background(), p, nil, nil)

	rr := do(t, s, http.MethodPost, "/baselines", `{"temperature": 27.5}`)
	require.Equal(t, http.StatusOK, rr.Code)
	resp := decodeStatus(t, rr)
	require.Equal(t, 27.5, resp.BaselineTemperature)
	require.Equal(t, 65.0, resp.BaselineHumidity, "omitted field keeps its value")

	rr = do(t, s, http.MethodPost, "/baselines", `{"humidity": 40}`)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, 40.0, decodeStatus(t, rr).BaselineHumidity)
}

func TestBadRequests(t *testing.T) {
	s := NewServer(context.Background(), newProducer(), nil, nil)
	cases := []struct {
		path string
		body string
	}{
		{"/baselines", `not json`},
		{"/baselines", `{"temp": 20}`},
		{"/interval", `{"seconds": 0}`},
		{"/interval", `{"seconds": -2}`},
		{"/interval", `{"seconds": 1e300}`},
		{"/interval", `{"seconds": 1e-9}`},
		{"/interval", `{"seconds": 0.099}`},
		{"/faults", `{"wild": true}`},
	}
	for _, tc := range cases {
		rr := do(t, s, http.MethodPost, tc.path, tc.body)
		require.Equal(t, http.StatusBadRequest, rr.Code, "%s %s", tc.path, tc.body)
		var body map[string]string
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
		require.NotEmpty(t, body["error"])
	}
}

func TestInterval(t *testing.T) {
	p := newProducer()
	s := NewServer(context.Background(), p, nil, nil)

	rr := do(t, s, http.MethodPost, "/interval", `{"seconds": 0.5}`)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, 500*time.Millisecond, p.settings.Interval)
	require.Equal(t, "500ms", decodeStatus(t, rr).Interval)
}

func TestFaults(t *testing.T) {
	p := newProducer()
	s := NewServer(context.Background(), p, nil, nil)

	rr := do(t, s, http.MethodPost, "/faults", `{"wild_data": true}`)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, fault.Flags{Drop: true, Wild: true}, p.settings.Faults)

	rr = do(t, s, http.MethodPost, "/faults", `{"missed_transmissions": false, "wild_data": false}`)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, fault.Flags{}, p.settings.Faults)
}

func TestIndexRenders(t *testing.T) {
	s := NewServer(context.Background(), newProducer(), nil, nil)
	rr := do(t, s, http.MethodGet, "/", "")
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), "Plant Monitoring Publisher")
	require.Contains(t, rr.Body.String(), `value="23"`)
}

func TestHealth(t *testing.T) {
	p := newProducer()
	h := &fakeHistory{running: true}
	s := NewServer(context.Background(), p, h, nil)

	rr := do(t, s, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Equal(t, StatusDegraded, resp.Status)
	require.Len(t, resp.Components, 2)
	require.Equal(t, "producer", resp.Components[0].Name)
	require.Equal(t, StatusDegraded, resp.Components[0].Status)
	require.Equal(t, StatusHealthy, resp.Components[1].Status)

	p.settings.Running = true
	rr = do(t, s, http.MethodGet, "/health", "")
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Equal(t, StatusHealthy, resp.Status)
}

func TestHealthReportsBroker(t *testing.T) {
	h := &fakeHistory{running: true}
	b := &fakeBroker{}
	s := NewServer(context.Background(), nil, h, b)

	var resp HealthResponse
	rr := do(t, s, http.MethodGet, "/health", "")
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Equal(t, StatusDegraded, resp.Status)
	require.Len(t, resp.Components, 2)
	require.Equal(t, "broker", resp.Components[1].Name)
	require.Equal(t, StatusDegraded, resp.Components[1].Status)
	require.Contains(t, resp.Components[1].Message, "nats://127.0.0.1:4222")

	b.connected = true
	rr = do(t, s, http.MethodGet, "/health", "")
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Equal(t, StatusHealthy, resp.Status)
	require.Equal(t, "plant/telemetry on nats://127.0.0.1:4222", resp.Components[1].Message)
}

func TestIntervalFloor(t *testing.T) {
	p := newProducer()
	s := NewServer(context.Background(), p, nil, nil)

	rr := do(t, s, http.MethodPost, "/interval", `{"seconds": 1e-9}`)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Equal(t, 3*time.Second, p.settings.Interval, "rejected interval is not applied")

	rr = do(t, s, http.MethodPost, "/interval", `{"seconds": 0.1}`)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, MinInterval, p.settings.Interval)
}

func TestHistory(t *testing.T) {
	h := &fakeHistory{running: true}
	for i := 0; i < 5; i++ {
		h.recs = append(h.recs, telemetry.Record{
			ID:                      int64(111 + i),
			EnvironmentalConditions: telemetry.EnvironmentalConditions{TemperatureC: 20, HumidityPct: 60},
			HealthScore:             80,
		})
	}
	s := NewServer(context.Background(), nil, h, nil)

	rr := do(t, s, http.MethodGet, "/history?limit=2", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var resp HistoryResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Len(t, resp.Records, 2)
	require.Equal(t, int64(114), resp.Records[0].ID)
	require.Equal(t, 5, resp.Summary.Count, "summary covers the full history")
	require.Equal(t, 20.0, resp.Summary.MeanTemperatureC)

	rr = do(t, s, http.MethodGet, "/history?limit=x", "")
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestHistoryEmpty(t *testing.T) {
	s := NewServer(context.Background(), nil, &fakeHistory{}, nil)
	rr := do(t, s, http.MethodGet, "/history", "")
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), `"records":[]`)
}

func TestRoutesFollowRole(t *testing.T) {
	s := NewServer(context.Background(), nil, &fakeHistory{}, nil)
	require.Equal(t, http.StatusNotFound, do(t, s, http.MethodGet, "/status", "").Code)

	s = NewServer(context.Background(), newProducer(), nil, nil)
	require.Equal(t, http.StatusNotFound, do(t, s, http.MethodGet, "/history", "").Code)
}
