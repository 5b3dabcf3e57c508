package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/casperlundberg/mec-offloading-engine/pkg/decision"
	"github.com/casperlundberg/mec-offloading-engine/pkg/history"
	"github.com/casperlundberg/mec-offloading-engine/pkg/models"
)

// EvaluateRequest describes a station state and one device to score against it
type EvaluateRequest struct {
	Station        models.StationSpec `json:"station"`
	Connections    map[int]int        `json:"connections"`
	Device         DeviceInput        `json:"device"`
	CurrentChannel *int               `json:"current_channel,omitempty"`
}

// DeviceInput is the wire form of a device's inputs
type DeviceInput struct {
	ID                 int     `json:"id"`
	Battery            int     `json:"battery"`
	DataSize           int     `json:"data_size"`
	LocalExecutionTime float64 `json:"local_execution_time"`
}

// EvaluateResponse carries both strategies' answers without applying either
type EvaluateResponse struct {
	Evaluation    decision.Evaluation     `json:"evaluation"`
	OffloadWeight float64                 `json:"offload_weight"`
	Channel       *decision.ChannelChoice `json:"channel,omitempty"`
}

// evaluate scores a device on a throwaway station. Nothing it builds outlives the request.
func (s *Server) evaluate(c *gin.Context) {
	var req EvaluateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	resp, err := evaluateRequest(req)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, resp)
}

func evaluateRequest(req EvaluateRequest) (EvaluateResponse, error) {
	station, err := models.NewWirelessStation(req.Station)
	if err != nil {
		return EvaluateResponse{}, err
	}
	for port, count := range req.Connections {
		if count < 0 {
			return EvaluateResponse{}, fmt.Errorf("%w: negative connection count on port %d", models.ErrInvalidStation, port)
		}
		if err := station.SetConnections(port, count); err != nil {
			return EvaluateResponse{}, err
		}
	}

	device := models.NewMobileDevice(req.Device.ID, req.Device.Battery, req.Device.DataSize, req.Device.LocalExecutionTime)
	if err := models.ValidateDevice(device); err != nil {
		return EvaluateResponse{}, err
	}

	// the sampler is never consulted here
	engine, err := decision.NewDecisionEngine(station, history.New(), nopSource{})
	if err != nil {
		return EvaluateResponse{}, err
	}

	resp := EvaluateResponse{
		Evaluation:    engine.Evaluate(device),
		OffloadWeight: decision.OffloadWeightForBattery(device.Battery()),
	}

	if req.CurrentChannel != nil {
		choice, err := engine.SelectBestChannel(*req.CurrentChannel)
		if err != nil {
			return EvaluateResponse{}, err
		}
		resp.Channel = &choice
	}

	return resp, nil
}

type nopSource struct{}

func (nopSource) Intn(int) int { return 0 }

func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrInvalidChannel),
		errors.Is(err, models.ErrInvalidStation),
		errors.Is(err, models.ErrDivisionByZero),
		errors.Is(err, models.ErrInvalidDeviceState):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
