package main

import (
	"context"
	"fmt"
	"net/http"
	"path/filepath"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dougsko/rigbridge/pkg/config"
	"github.com/dougsko/rigbridge/pkg/engine"
	"github.com/dougsko/rigbridge/pkg/logging"
)

// RigBridgeDaemon serves the web UI and WebSocket sessions on top of the engine
type RigBridgeDaemon struct {
	config *config.Config
	logger *logging.Logger
	wg     sync.WaitGroup

	engine    *engine.Engine
	router    *gin.Engine
	webServer *http.Server
}

// NewRigBridgeDaemon creates a new daemon instance
func NewRigBridgeDaemon(cfg *config.Config, logger *logging.Logger) (*RigBridgeDaemon, error) {
	if logger == nil {
		logger = logging.Nop()
	}

	eng, err := engine.New(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create engine: %w", err)
	}

	daemon := &RigBridgeDaemon{
		config: cfg,
		logger: logger,
		engine: eng,
	}

	if err := daemon.setupWebServer(); err != nil {
		return nil, fmt.Errorf("failed to setup web server: %w", err)
	}

	return daemon, nil
}

// Start starts the engine, then the web server
func (d *RigBridgeDaemon) Start() error {
	d.logger.Info("daemon", "Starting rigbridge daemon...")

	if err := d.engine.Start(); err != nil {
		return fmt.Errorf("failed to start engine: %w", err)
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.logger.Infof("daemon", "Starting web server on %s", d.webServer.Addr)
		if err := d.webServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			d.logger.Errorf("daemon", "Web server error: %v", err)
		}
	}()

	return nil
}

// Stop stops the daemon gracefully
func (d *RigBridgeDaemon) Stop() error {
	d.logger.Info("daemon", "Stopping daemon...")

	if d.webServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := d.webServer.Shutdown(ctx); err != nil {
			d.logger.Errorf("daemon", "Web server shutdown error: %v", err)
		}
	}

	if err := d.engine.Stop(); err != nil {
		d.logger.Errorf("daemon", "Engine shutdown error: %v", err)
	}

	d.wg.Wait()

	d.logger.Info("daemon", "Daemon stopped")
	return nil
}

// setupWebServer initializes the router and the HTTP server
func (d *RigBridgeDaemon) setupWebServer() error {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())

	if d.config.Auth.Username != "" {
		router.Use(gin.BasicAuth(gin.Accounts{
			d.config.Auth.Username: d.config.Auth.Password,
		}))
	}

	router.Static("/static", d.config.Server.StaticDir)

	// the UI page is optional so the API can run without web assets
	pattern := filepath.Join(d.config.Server.Templates, "*")
	if matches, err := filepath.Glob(pattern); err == nil && len(matches) > 0 {
		router.LoadHTMLGlob(pattern)
		router.GET("/", d.handleHome)
	} else {
		d.logger.Warnf("daemon", "No templates under %s, web UI disabled", d.config.Server.Templates)
	}

	router.GET("/ws", d.handleWebSocket)

	api := router.Group("/api/v1")
	{
		api.GET("/state", d.handleGetState)
		api.POST("/command", d.handleCommand)
		api.GET("/status", d.handleGetStatus)
		api.GET("/journal", d.handleGetJournal)
	}

	d.router = router
	d.webServer = &http.Server{
		Addr:    d.config.ServerAddress(),
		Handler: router,
	}

	return nil
}
