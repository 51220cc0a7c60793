// Package engine owns the rigctld connection and everything that shares it.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dougsko/rigbridge/pkg/config"
	"github.com/dougsko/rigbridge/pkg/dispatch"
	"github.com/dougsko/rigbridge/pkg/hub"
	"github.com/dougsko/rigbridge/pkg/logging"
	"github.com/dougsko/rigbridge/pkg/poller"
	"github.com/dougsko/rigbridge/pkg/protocol"
	"github.com/dougsko/rigbridge/pkg/radio"
	"github.com/dougsko/rigbridge/pkg/rigctl"
	"github.com/dougsko/rigbridge/pkg/storage"
)

// Version is reported in the status endpoint
const Version = "0.1.0-dev"

// Status describes the engine for the status endpoint
type Status struct {
	Rigctld           string    `json:"rigctld"`
	Dialect           string    `json:"dialect"`
	Connected         bool      `json:"connected"`
	ReconnectAttempts int64     `json:"reconnect_attempts"`
	Subscribers       int       `json:"subscribers"`
	HasState          bool      `json:"has_state"`
	Journal           bool      `json:"journal"`
	Uptime            string    `json:"uptime"`
	StartTime         time.Time `json:"start_time"`
	Version           string    `json:"version"`
}

// Engine ties the client, poller, dispatcher and hub together. It is built
// once in main and passed to the session layer.
type Engine struct {
	config    *config.Config
	logger    *logging.Logger
	startTime time.Time

	client     *rigctl.Client
	aggregator *radio.Aggregator
	dispatcher *dispatch.Dispatcher
	hub        *hub.Hub
	poller     *poller.Poller
	journal    *storage.Journal

	// latest snapshot for late joiners
	mutex     sync.RWMutex
	latest    protocol.StateMessage
	hasLatest bool

	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

// NewDialect builds the dialect selected in configuration
func NewDialect(cfg *config.Config) radio.Dialect {
	if cfg.Rigctld.Dialect != config.DialectRaw {
		return radio.LevelDialect{}
	}
	raw := cfg.Rigctld.Raw
	return radio.RawDialect{
		AGCCommand: raw.AGCCommand,
		RFGain:     radio.RawRange{Command: raw.RFGainCommand, Min: raw.RFGainMin, Max: raw.RFGainMax},
		Power:      radio.RawRange{Command: raw.PowerCommand, Min: raw.PowerMin, Max: raw.PowerMax},
	}
}

// New creates an engine from configuration. The journal database is opened
// here when enabled; nothing touches the network until Start.
func New(cfg *config.Config, logger *logging.Logger) (*Engine, error) {
	if logger == nil {
		logger = logging.Nop()
	}

	var terminator byte
	if t := cfg.Rigctld.Raw.Terminator; t != "" {
		terminator = t[0]
	}

	client := rigctl.NewClient(rigctl.Options{
		Address:      cfg.RigctldAddress(),
		Timeout:      cfg.ExchangeTimeout(),
		DrainTimeout: cfg.DrainTimeout(),
		Terminator:   terminator,
		Logger:       logger,
	})

	e := &Engine{
		config:     cfg,
		logger:     logger,
		startTime:  time.Now(),
		client:     client,
		aggregator: radio.NewAggregator(client, NewDialect(cfg), logger),
		hub:        hub.New(logger),
	}

	var recorder dispatch.Recorder
	if cfg.Journal.Enabled {
		journal, err := storage.NewJournal(cfg.Journal.DatabasePath, cfg.Journal.MaxEntries)
		if err != nil {
			return nil, fmt.Errorf("failed to open command journal: %w", err)
		}
		e.journal = journal
		recorder = journal
	}
	e.dispatcher = dispatch.New(client, e.aggregator, recorder, logger)

	p, err := poller.New(poller.Config{
		Interval: cfg.PollInterval(),
		LogEvery: poller.DefaultLogEvery,
	}, client, e.aggregator, e, logger)
	if err != nil {
		if e.journal != nil {
			e.journal.Close()
		}
		return nil, err
	}
	e.poller = p

	return e, nil
}

// Start makes one connection attempt and launches the poller
func (e *Engine) Start() error {
	e.mutex.Lock()
	if e.running {
		e.mutex.Unlock()
		return errors.New("engine already running")
	}
	e.running = true
	e.mutex.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel

	if err := e.client.Connect(ctx); err != nil {
		e.logger.Warn("engine", "Could not connect to rigctld, will retry", map[string]interface{}{
			"address": e.client.Address(),
			"error":   err.Error(),
		})
	} else {
		e.logger.Infof("engine", "Connected to rigctld at %s", e.client.Address())
	}

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.poller.Run(ctx)
	}()

	e.logger.Info("engine", "Engine started", map[string]interface{}{
		"dialect":     e.aggregator.Dialect().Name(),
		"interval_ms": e.config.Polling.IntervalMs,
	})
	return nil
}

// Stop cancels the poller, waits for it and closes the journal
func (e *Engine) Stop() error {
	e.mutex.Lock()
	if !e.running {
		e.mutex.Unlock()
		return nil
	}
	e.running = false
	e.mutex.Unlock()

	e.cancel()
	e.wg.Wait()

	// the poller disconnects on exit; this covers a poller that never ran
	e.client.Disconnect()

	if e.journal != nil {
		if err := e.journal.Close(); err != nil {
			return fmt.Errorf("failed to close journal: %w", err)
		}
	}
	e.logger.Info("engine", "Engine stopped")
	return nil
}

// PublishState retains msg as the latest snapshot and fans it out
func (e *Engine) PublishState(msg protocol.StateMessage) {
	e.mutex.Lock()
	e.latest = msg
	e.hasLatest = true
	e.mutex.Unlock()

	e.hub.Publish(msg)
}

// LatestState returns the most recent snapshot, if any poll has succeeded
func (e *Engine) LatestState() (protocol.StateMessage, bool) {
	e.mutex.RLock()
	defer e.mutex.RUnlock()
	return e.latest, e.hasLatest
}

// Subscribe adds a sink and sends it the latest snapshot right away. If
// that first send fails the sink is not kept.
func (e *Engine) Subscribe(sink hub.Sink) error {
	e.hub.Subscribe(sink)

	if latest, ok := e.LatestState(); ok {
		if err := sink.Send(latest); err != nil {
			e.hub.Unsubscribe(sink)
			return fmt.Errorf("failed to send initial state: %w", err)
		}
	}
	return nil
}

// Unsubscribe removes a sink
func (e *Engine) Unsubscribe(sink hub.Sink) {
	e.hub.Unsubscribe(sink)
}

// HandleCommand executes a session command and returns the reply message
func (e *Engine) HandleCommand(req protocol.CommandRequest) interface{} {
	return e.dispatcher.HandleRequest(req)
}

// Connected reports whether the rigctld connection is up
func (e *Engine) Connected() bool {
	return e.client.Connected()
}

// Journal returns the command journal, or nil when disabled
func (e *Engine) Journal() *storage.Journal {
	return e.journal
}

// Status returns a summary for the status endpoint
func (e *Engine) Status() Status {
	_, hasState := e.LatestState()
	return Status{
		Rigctld:           e.client.Address(),
		Dialect:           e.aggregator.Dialect().Name(),
		Connected:         e.client.Connected(),
		ReconnectAttempts: e.poller.Attempts(),
		Subscribers:       e.hub.Len(),
		HasState:          hasState,
		Journal:           e.journal != nil,
		Uptime:            time.Since(e.startTime).Truncate(time.Second).String(),
		StartTime:         e.startTime,
		Version:           Version,
	}
}
