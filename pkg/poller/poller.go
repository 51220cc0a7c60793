// Package poller keeps the rigctld connection alive and republishes state
// on a fixed cadence.
package poller

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/dougsko/rigbridge/pkg/logging"
	"github.com/dougsko/rigbridge/pkg/protocol"
	"github.com/dougsko/rigbridge/pkg/radio"
	"github.com/dougsko/rigbridge/pkg/rigctl"
)

// DefaultLogEvery throttles connect failure warnings to attempts 1, 11, 21, ...
const DefaultLogEvery = 10

// ErrNotConnected is returned by PollOnce when the connect attempt failed
var ErrNotConnected = errors.New("rigctld unreachable")

// Config controls the poll loop
type Config struct {
	Interval time.Duration
	LogEvery int
}

// Conn is the connection lifecycle owned by the poller
type Conn interface {
	Address() string
	Connected() bool
	Connect(ctx context.Context) error
	Disconnect() error
}

// StateSource produces one snapshot per poll
type StateSource interface {
	GetState() (radio.RadioState, radio.Report)
}

// Publisher receives every successfully polled snapshot
type Publisher interface {
	PublishState(msg protocol.StateMessage)
}

// Poller is the single background task driving the connection
type Poller struct {
	cfg       Config
	conn      Conn
	source    StateSource
	publisher Publisher
	logger    *logging.Logger

	attempts atomic.Int64
}

// New creates a poller
func New(cfg Config, conn Conn, source StateSource, publisher Publisher, logger *logging.Logger) (*Poller, error) {
	if cfg.Interval <= 0 {
		return nil, fmt.Errorf("poll interval must be positive, got %v", cfg.Interval)
	}
	if cfg.LogEvery <= 0 {
		cfg.LogEvery = DefaultLogEvery
	}
	if logger == nil {
		logger = logging.Nop()
	}

	return &Poller{
		cfg:       cfg,
		conn:      conn,
		source:    source,
		publisher: publisher,
		logger:    logger,
	}, nil
}

// Attempts returns the number of consecutive failed connect attempts
func (p *Poller) Attempts() int64 {
	return p.attempts.Load()
}

// Run polls until ctx is cancelled, sleeping one interval after every
// iteration. On return the connection is closed.
func (p *Poller) Run(ctx context.Context) {
	timer := time.NewTimer(p.cfg.Interval)
	defer timer.Stop()
	defer p.shutdown()

	for {
		if ctx.Err() != nil {
			return
		}

		p.PollOnce(ctx)

		timer.Reset(p.cfg.Interval)
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}
	}
}

// PollOnce runs one iteration: connect if needed, then read and publish.
// It returns nil when a snapshot was published.
func (p *Poller) PollOnce(ctx context.Context) error {
	if !p.conn.Connected() {
		if err := p.connect(ctx); err != nil {
			return err
		}
	}

	state, report := p.source.GetState()
	if err := report.CoreErr(); err != nil && rigctl.IsConnectionClass(err) {
		p.logger.Error("poller", "error polling radio state", map[string]interface{}{
			"error":  err.Error(),
			"failed": report.Failed(),
		})
		if derr := p.conn.Disconnect(); derr != nil {
			p.logger.Debugf("poller", "disconnect: %v", derr)
		}
		return err
	}

	p.publisher.PublishState(protocol.NewStateMessage(state))
	return nil
}

func (p *Poller) connect(ctx context.Context) error {
	if p.attempts.Load() == 0 {
		p.logger.Info("poller", "Attempting to connect to rigctld...")
	}

	if err := p.conn.Connect(ctx); err != nil {
		n := p.attempts.Add(1)
		if n%int64(p.cfg.LogEvery) == 1 {
			p.logger.Warn("poller", "Cannot connect to rigctld", map[string]interface{}{
				"attempt": n,
				"address": p.conn.Address(),
				"error":   err.Error(),
			})
		}
		return fmt.Errorf("%w: %w", ErrNotConnected, err)
	}

	p.logger.Infof("poller", "Connected to rigctld at %s", p.conn.Address())
	p.attempts.Store(0)
	return nil
}

func (p *Poller) shutdown() {
	if p.conn.Connected() {
		if err := p.conn.Disconnect(); err != nil {
			p.logger.Debugf("poller", "disconnect on shutdown: %v", err)
		}
	}
}
