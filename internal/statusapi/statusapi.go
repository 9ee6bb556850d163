// Package statusapi exposes a read-only HTTP view of device state,
// grounded on the REST surface in the teacher's cmd/driver/hasher-host
// main.go (handleHealth/handleDeviceInfo/handleMetrics): a gin router
// with JSON endpoints an operator or dashboard can poll while a flash
// session runs. It never issues flash operations itself.
package statusapi

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"mtkflash/internal/device"
)

// Source is the subset of *device.Device the API reports on.
type Source interface {
	State() device.State
}

// Server serves /api/v1/health and /api/v1/device over HTTP.
type Server struct {
	mu        sync.RWMutex
	dev       Source
	startedAt time.Time
	router    *gin.Engine
}

// New builds a Server bound to dev. Pass nil for dev and set it later
// with Attach once a device has completed Init, e.g. while still
// probing for a USB device at startup.
func New(dev Source) *Server {
	gin.SetMode(gin.ReleaseMode)
	s := &Server{dev: dev, startedAt: time.Now()}
	router := gin.New()
	router.Use(gin.Recovery())

	api := router.Group("/api/v1")
	{
		api.GET("/health", s.handleHealth)
		api.GET("/device", s.handleDevice)
	}
	s.router = router
	return s
}

// Attach rebinds the device source, e.g. once EnterDAMode succeeds.
func (s *Server) Attach(dev Source) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dev = dev
}

// Handler returns the http.Handler to pass to an http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

type healthResponse struct {
	Status string `json:"status"`
	Uptime string `json:"uptime"`
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, healthResponse{
		Status: "healthy",
		Uptime: time.Since(s.startedAt).String(),
	})
}

type deviceResponse struct {
	State string `json:"state"`
}

func (s *Server) handleDevice(c *gin.Context) {
	s.mu.RLock()
	dev := s.dev
	s.mu.RUnlock()

	if dev == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "no device attached"})
		return
	}
	c.JSON(http.StatusOK, deviceResponse{State: dev.State().String()})
}
