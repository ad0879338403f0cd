package api

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"

	"github.com/moyoez/cloudsend/api/controllers"
	"github.com/moyoez/cloudsend/api/middlewares"
	"github.com/moyoez/cloudsend/api/models"
	"github.com/moyoez/cloudsend/api/notifyhub"
	"github.com/moyoez/cloudsend/tool"
	"github.com/moyoez/cloudsend/types"
	"github.com/moyoez/cloudsend/uploader"
)

// Server is the local control API of the upload daemon.
type Server struct {
	port   int
	hub    *notifyhub.Hub
	engine *gin.Engine
	server *http.Server
	mu     sync.RWMutex
}

// NewServer creates the API server. hub may be nil to disable the notify WebSocket.
func NewServer(port int, hub *notifyhub.Hub) *Server {
	return &Server{
		port: port,
		hub:  hub,
	}
}

// SetUploadEngine sets the engine runs are executed with.
func SetUploadEngine(e *uploader.Engine) {
	models.SetUploadEngine(e)
}

// SetCaller sets the account runs are executed as.
func SetCaller(c types.Caller) {
	models.SetCaller(c)
}

// ClearCaller forgets the account after the store rejected its token.
func ClearCaller() {
	models.ClearCaller()
}

func (s *Server) setupRoutes() *gin.Engine {
	if tool.DefaultLogger.GetLevel() == log.DebugLevel {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())

	self := engine.Group("/api/self/v1", middlewares.OnlyAllowLocal)
	{
		self.POST("/upload", controllers.UserUpload)       // Start an upload run
		self.GET("/runs/:runId", controllers.UserGetRun)   // Run state and report
		self.POST("/cancel", controllers.UserCancelUpload) // Cancel a running upload
		self.GET("/status", controllers.UserStatus)        // Running, login and notify_ws_enabled
		if s.hub != nil {
			self.GET("/notify-ws", notifyhub.HandleNotifyWS(s.hub))
		}
	}
	return engine
}

// Handler returns the routed handler, building it on first use.
func (s *Server) Handler() http.Handler {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.engine == nil {
		s.engine = s.setupRoutes()
	}
	return s.engine
}

// Start starts the HTTP server on loopback and blocks until it stops.
func (s *Server) Start() error {
	handler := s.Handler()

	s.mu.Lock()
	s.server = &http.Server{
		Addr:    fmt.Sprintf("127.0.0.1:%d", s.port),
		Handler: handler,
	}
	srv := s.server
	s.mu.Unlock()

	tool.DefaultLogger.Infof("Starting API server on http://%s", srv.Addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.RLock()
	srv := s.server
	s.mu.RUnlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}
