package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/casperlundberg/mec-offloading-engine/internal/database"
	"github.com/casperlundberg/mec-offloading-engine/internal/metrics"
	"github.com/casperlundberg/mec-offloading-engine/pkg/decision"
	"github.com/casperlundberg/mec-offloading-engine/pkg/history"
	"github.com/casperlundberg/mec-offloading-engine/pkg/models"
)

type ServerTestSuite struct {
	suite.Suite
	db       *database.DB
	repo     *database.Repository
	recorder *metrics.Recorder
	server   *Server
}

func (s *ServerTestSuite) SetupTest() {
	gin.SetMode(gin.TestMode)

	db, err := database.NewDatabase(filepath.Join(s.T().TempDir(), "api.db"))
	s.Require().NoError(err)
	s.db = db
	s.repo = database.NewRepository(db)
	s.recorder = metrics.NewRecorder()
	s.server = NewServer(s.repo, s.recorder, "0")

	s.Require().NoError(s.repo.CreateSimulation(&database.Simulation{
		ID:        "sim-1",
		Name:      "first",
		StartTime: time.Now(),
		Status:    "completed",
	}))
	s.Require().NoError(s.repo.BatchSaveDecisions([]database.DecisionRecord{
		{SimulationID: "sim-1", Round: 0, DeviceID: 0, Strategy: "mec", Outcome: "partial_offload", TargetChannel: 1, OffloadWeight: 0.5},
		{SimulationID: "sim-1", Round: 0, DeviceID: 1, Strategy: "dynamic", Outcome: "forced_local", TargetChannel: -1},
		{SimulationID: "sim-1", Round: 1, DeviceID: 1, Strategy: "dynamic", Outcome: "full_offload", TargetChannel: 2, OffloadWeight: 1, TransferTime: 4, Beneficial: true},
	}))
	s.Require().NoError(s.repo.BatchSaveChannelSnapshots([]database.ChannelSnapshot{
		{SimulationID: "sim-1", Round: 0, Port: 1, Connections: 3},
		{SimulationID: "sim-1", Round: 1, Port: 1, Connections: 2},
	}))
}

func (s *ServerTestSuite) TearDownTest() {
	s.NoError(s.db.Close())
}

func (s *ServerTestSuite) do(method, path string, body interface{}) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		s.Require().NoError(err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.server.Handler().ServeHTTP(w, req)
	return w
}

func (s *ServerTestSuite) TestHealth() {
	w := s.do(http.MethodGet, "/api/v1/health", nil)
	s.Equal(http.StatusOK, w.Code)
	s.Contains(w.Body.String(), "healthy")
}

func (s *ServerTestSuite) TestSimulationCRUD() {
	w := s.do(http.MethodPost, "/api/v1/simulations", map[string]string{"id": "sim-2", "name": "second"})
	s.Require().Equal(http.StatusCreated, w.Code)

	w = s.do(http.MethodGet, "/api/v1/simulations", nil)
	s.Require().Equal(http.StatusOK, w.Code)
	var sims []database.Simulation
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &sims))
	s.Len(sims, 2)

	w = s.do(http.MethodPut, "/api/v1/simulations/sim-2", map[string]string{"name": "renamed", "description": "d"})
	s.Require().Equal(http.StatusOK, w.Code)
	var sim database.Simulation
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &sim))
	s.Equal("renamed", sim.Name)
	s.Equal("running", sim.Status)

	w = s.do(http.MethodDelete, "/api/v1/simulations/sim-2", nil)
	s.Equal(http.StatusOK, w.Code)

	w = s.do(http.MethodGet, "/api/v1/simulations/sim-2", nil)
	s.Equal(http.StatusNotFound, w.Code)
}

func (s *ServerTestSuite) TestCreateRequiresID() {
	w := s.do(http.MethodPost, "/api/v1/simulations", map[string]string{"name": "anonymous"})
	s.Equal(http.StatusBadRequest, w.Code)
}

func (s *ServerTestSuite) TestUpdateUnknownSimulation() {
	w := s.do(http.MethodPut, "/api/v1/simulations/nope", map[string]string{"name": "x"})
	s.Equal(http.StatusNotFound, w.Code)
}

func (s *ServerTestSuite) TestDecisions() {
	w := s.do(http.MethodGet, "/api/v1/simulations/sim-1/decisions?strategy=dynamic", nil)
	s.Require().Equal(http.StatusOK, w.Code)
	var records []database.DecisionRecord
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &records))
	s.Len(records, 2)

	w = s.do(http.MethodGet, "/api/v1/simulations/sim-1/decisions?limit=1", nil)
	s.Require().Equal(http.StatusOK, w.Code)
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &records))
	s.Len(records, 1)

	w = s.do(http.MethodGet, "/api/v1/simulations/sim-1/decisions?limit=many", nil)
	s.Equal(http.StatusBadRequest, w.Code)

	w = s.do(http.MethodGet, "/api/v1/simulations/sim-1/devices/1", nil)
	s.Require().Equal(http.StatusOK, w.Code)
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &records))
	s.Len(records, 2)

	w = s.do(http.MethodGet, "/api/v1/simulations/sim-1/devices/abc", nil)
	s.Equal(http.StatusBadRequest, w.Code)
}

func (s *ServerTestSuite) TestChannels() {
	w := s.do(http.MethodGet, "/api/v1/simulations/sim-1/channels?round=1", nil)
	s.Require().Equal(http.StatusOK, w.Code)
	var snapshots []database.ChannelSnapshot
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &snapshots))
	s.Require().Len(snapshots, 1)
	s.Equal(2, snapshots[0].Connections)

	w = s.do(http.MethodGet, "/api/v1/simulations/sim-1/channels", nil)
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &snapshots))
	s.Len(snapshots, 2)

	w = s.do(http.MethodGet, "/api/v1/simulations/sim-1/channels?round=-2", nil)
	s.Equal(http.StatusBadRequest, w.Code)
}

func (s *ServerTestSuite) TestSummary() {
	w := s.do(http.MethodGet, "/api/v1/simulations/sim-1/summary", nil)
	s.Require().Equal(http.StatusOK, w.Code)
	var summary database.SimulationSummary
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &summary))
	s.Equal(int64(3), summary.Decisions)
	s.Equal(int64(1), summary.BeneficialCount)

	w = s.do(http.MethodGet, "/api/v1/simulations/missing/summary", nil)
	s.Equal(http.StatusNotFound, w.Code)
}

func (s *ServerTestSuite) TestMetricsEndpoint() {
	s.recorder.ObserveDecision(decision.Decision{
		Strategy:      models.StrategyChannelSelection,
		Outcome:       models.PARTIAL_OFFLOAD,
		OffloadWeight: 0.7,
		Choice:        history.Unset,
	})

	w := s.do(http.MethodGet, "/metrics", nil)
	s.Require().Equal(http.StatusOK, w.Code)
	s.Contains(w.Body.String(), "mec_decisions_total")
}

func (s *ServerTestSuite) TestEvaluate() {
	current := 2
	w := s.do(http.MethodPost, "/api/v1/evaluate", EvaluateRequest{
		Station:        models.StationSpec{Ports: []int{1, 2}, Bandwidth: 10, LossFactor: 2},
		Connections:    map[int]int{1: 0, 2: 3},
		Device:         DeviceInput{ID: 4, Battery: 30, DataSize: 30, LocalExecutionTime: 40},
		CurrentChannel: &current,
	})
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())

	var resp EvaluateResponse
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &resp))

	s.True(resp.Evaluation.Beneficial)
	s.Equal(1, resp.Evaluation.Channel)
	s.InDelta(7.0, resp.Evaluation.CloudCost, 1e-9)
	s.Equal(0, resp.Evaluation.TransferTime)
	s.Equal(0.8, resp.OffloadWeight)

	s.Require().NotNil(resp.Channel)
	s.Equal(1, resp.Channel.Best)
	s.InDelta(2.4, resp.Channel.StayOverhead, 1e-9)
	s.InDelta(1.0, resp.Channel.BestOverhead, 1e-9)
}

func (s *ServerTestSuite) TestEvaluateRejectsBadInput() {
	station := models.StationSpec{Ports: []int{1, 2}, Bandwidth: 10, LossFactor: 2}

	w := s.do(http.MethodPost, "/api/v1/evaluate", EvaluateRequest{
		Station: models.StationSpec{Ports: []int{1}, Bandwidth: 0, LossFactor: 2},
		Device:  DeviceInput{Battery: 50, DataSize: 10, LocalExecutionTime: 5},
	})
	s.Equal(http.StatusBadRequest, w.Code)

	w = s.do(http.MethodPost, "/api/v1/evaluate", EvaluateRequest{
		Station: station,
		Device:  DeviceInput{Battery: 150, DataSize: 10, LocalExecutionTime: 5},
	})
	s.Equal(http.StatusBadRequest, w.Code)

	unknown := 9
	w = s.do(http.MethodPost, "/api/v1/evaluate", EvaluateRequest{
		Station:        station,
		Device:         DeviceInput{Battery: 50, DataSize: 10, LocalExecutionTime: 5},
		CurrentChannel: &unknown,
	})
	s.Equal(http.StatusBadRequest, w.Code)

	w = s.do(http.MethodPost, "/api/v1/evaluate", EvaluateRequest{
		Station:     station,
		Connections: map[int]int{3: 1},
		Device:      DeviceInput{Battery: 50, DataSize: 10, LocalExecutionTime: 5},
	})
	s.Equal(http.StatusBadRequest, w.Code)
}

func TestServerTestSuite(t *testing.T) {
	suite.Run(t, new(ServerTestSuite))
}

func TestEvaluateRequest_DoesNotTouchHistory(t *testing.T) {
	req := EvaluateRequest{
		Station: models.StationSpec{Ports: []int{5}, Bandwidth: 1, LossFactor: 3},
		Device:  DeviceInput{ID: 1, Battery: 100, DataSize: 100, LocalExecutionTime: 1},
	}

	resp, err := evaluateRequest(req)
	require.NoError(t, err)
	assert.False(t, resp.Evaluation.Beneficial)
	assert.True(t, strings.HasPrefix(resp.Evaluation.Reason, "local"))
	assert.Nil(t, resp.Channel)
	assert.Equal(t, 0.5, resp.OffloadWeight)
}
