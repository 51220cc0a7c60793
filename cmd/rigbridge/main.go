package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/dougsko/rigbridge/pkg/config"
	"github.com/dougsko/rigbridge/pkg/engine"
	"github.com/dougsko/rigbridge/pkg/logging"
	"github.com/dougsko/rigbridge/pkg/verbose"
)

var (
	configPath  = flag.String("config", "config.yaml", "Configuration file path")
	version     = flag.Bool("version", false, "Show version information")
	verboseFlag = flag.Bool("verbose", false, "Trace every rigctld line at debug level")
)

const Build = "development"

func main() {
	flag.Parse()

	if *version {
		fmt.Printf("rigbridge version %s (%s)\n", engine.Version, Build)
		os.Exit(0)
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	if *verboseFlag {
		verbose.SetEnabled(true)
		cfg.Logging.Level = "debug"
	}

	if err := logging.InitGlobalLogger(cfg); err != nil {
		log.Fatalf("Failed to initialize logging: %v", err)
	}
	defer logging.CloseGlobalLogger()

	logging.Info("main", fmt.Sprintf("rigbridge version %s starting...", engine.Version))
	logging.Info("main", fmt.Sprintf("rigctld: %s (%s dialect)", cfg.RigctldAddress(), cfg.Rigctld.Dialect))
	logging.Info("main", fmt.Sprintf("Web interface: http://%s", cfg.ServerAddress()))

	daemon, err := NewRigBridgeDaemon(cfg, logging.GetGlobalLogger())
	if err != nil {
		logging.Error("main", fmt.Sprintf("Failed to create daemon: %v", err))
		os.Exit(1)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	if err := daemon.Start(); err != nil {
		logging.Error("main", fmt.Sprintf("Failed to start daemon: %v", err))
		os.Exit(1)
	}

	logging.Info("main", "rigbridge started successfully")

	<-sigChan
	logging.Info("main", "Shutting down...")

	if err := daemon.Stop(); err != nil {
		logging.Error("main", fmt.Sprintf("Error during shutdown: %v", err))
	}

	logging.Info("main", "rigbridge stopped")
}

// loadConfig falls back to defaults when the default config file is absent
func loadConfig(path string) (*config.Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) && path == "config.yaml" {
		log.Printf("No %s found, using defaults", path)
		return config.Default(), nil
	}
	return config.LoadConfig(path)
}
