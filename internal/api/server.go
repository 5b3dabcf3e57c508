package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/casperlundberg/mec-offloading-engine/internal/database"
	"github.com/casperlundberg/mec-offloading-engine/internal/metrics"
)

// Server represents the API server
type Server struct {
	router   *gin.Engine
	repo     *database.Repository
	recorder *metrics.Recorder
	port     string
}

// NewServer creates a new API server. recorder may be nil, which drops /metrics.
func NewServer(repo *database.Repository, recorder *metrics.Recorder, port string) *Server {
	router := gin.Default()

	config := cors.DefaultConfig()
	config.AllowOrigins = []string{"http://localhost:3000", "http://localhost:8080"}
	config.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	config.AllowHeaders = []string{"Origin", "Content-Type", "Authorization"}
	router.Use(cors.New(config))

	server := &Server{
		router:   router,
		repo:     repo,
		recorder: recorder,
		port:     port,
	}

	server.setupRoutes()
	return server
}

// setupRoutes configures all API routes
func (s *Server) setupRoutes() {
	api := s.router.Group("/api/v1")

	// Simulation endpoints
	api.GET("/simulations", s.listSimulations)
	api.GET("/simulations/:id", s.getSimulation)
	api.POST("/simulations", s.createSimulation)
	api.PUT("/simulations/:id", s.updateSimulation)
	api.DELETE("/simulations/:id", s.deleteSimulation)

	// Ledger endpoints (isolated by simulation)
	api.GET("/simulations/:id/decisions", s.getDecisions)
	api.GET("/simulations/:id/devices/:device", s.getDeviceDecisions)
	api.GET("/simulations/:id/channels", s.getChannelSnapshots)
	api.GET("/simulations/:id/events", s.getEvents)
	api.GET("/simulations/:id/summary", s.getSimulationSummary)

	// Stateless cost model
	api.POST("/evaluate", s.evaluate)

	api.GET("/health", s.healthCheck)

	if s.recorder != nil {
		s.router.GET("/metrics", gin.WrapH(s.recorder.Handler()))
	}
}

// Handler exposes the router for embedding and tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the server
func (s *Server) Start() error {
	return s.router.Run(":" + s.port)
}

// Handler implementations

func (s *Server) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now(),
	})
}

func (s *Server) listSimulations(c *gin.Context) {
	simulations, err := s.repo.ListSimulations()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, simulations)
}

func (s *Server) getSimulation(c *gin.Context) {
	id := c.Param("id")

	simulation, err := s.repo.GetSimulation(id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Simulation not found"})
		return
	}

	c.JSON(http.StatusOK, simulation)
}

func (s *Server) createSimulation(c *gin.Context) {
	var sim database.Simulation
	if err := c.ShouldBindJSON(&sim); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if sim.ID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id is required"})
		return
	}

	sim.StartTime = time.Now()
	sim.Status = "running"

	if err := s.repo.CreateSimulation(&sim); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, sim)
}

// updateSimulation only touches name and description; the run itself owns the rest
func (s *Server) updateSimulation(c *gin.Context) {
	id := c.Param("id")

	var req struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if _, err := s.repo.GetSimulation(id); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Simulation not found"})
		return
	}

	if err := s.repo.UpdateSimulationMetadata(id, req.Name, req.Description); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	sim, err := s.repo.GetSimulation(id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, sim)
}

func (s *Server) deleteSimulation(c *gin.Context) {
	id := c.Param("id")

	if err := s.repo.DeleteSimulation(id); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Simulation deleted"})
}

func (s *Server) getDecisions(c *gin.Context) {
	simulationID := c.Param("id")

	limit := 1000
	if l := c.Query("limit"); l != "" {
		parsed, err := strconv.Atoi(l)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid limit"})
			return
		}
		limit = parsed
	}

	decisions, err := s.repo.GetDecisions(simulationID, c.Query("strategy"), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, decisions)
}

func (s *Server) getDeviceDecisions(c *gin.Context) {
	simulationID := c.Param("id")

	deviceID, err := strconv.Atoi(c.Param("device"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid device id"})
		return
	}

	decisions, err := s.repo.GetDeviceDecisions(simulationID, deviceID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, decisions)
}

func (s *Server) getChannelSnapshots(c *gin.Context) {
	simulationID := c.Param("id")

	round := -1
	if r := c.Query("round"); r != "" {
		parsed, err := strconv.Atoi(r)
		if err != nil || parsed < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid round"})
			return
		}
		round = parsed
	}

	snapshots, err := s.repo.GetChannelSnapshots(simulationID, round)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, snapshots)
}

func (s *Server) getEvents(c *gin.Context) {
	simulationID := c.Param("id")
	eventType := c.Query("type")

	events, err := s.repo.GetEvents(simulationID, eventType)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, events)
}

func (s *Server) getSimulationSummary(c *gin.Context) {
	simulationID := c.Param("id")

	summary, err := s.repo.GetSimulationSummary(simulationID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Simulation not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, summary)
}
