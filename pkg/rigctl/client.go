// Package rigctl is a client for the hamlib rigctld TCP protocol.
//
// rigctld speaks a half-duplex, line-oriented protocol: lowercase commands
// query (f, m, l, u, p, j), uppercase commands set (F, M, L, U, P, J) and are
// answered with "RPRT <code>". There are no request identifiers, so the
// client serializes every exchange behind one mutex and purges late replies
// after a timeout before the next request may be written.
//
// The w command passes vendor CAT text straight through to the rig. Its
// replies end with a terminator character (";" for Kenwood-style rigs)
// followed by one sentinel byte instead of a newline, and writes get no
// reply at all.
package rigctl

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dougsko/rigbridge/pkg/logging"
	"github.com/dougsko/rigbridge/pkg/verbose"
)

const (
	DefaultTimeout      = 5 * time.Second
	DefaultDrainTimeout = 100 * time.Millisecond
	DefaultTerminator   = ';'
)

// Options configures a Client
type Options struct {
	Address      string
	Timeout      time.Duration // bound on each flush and each read
	DrainTimeout time.Duration // bound on the purge read after a timeout
	Terminator   byte          // end of a raw passthrough reply
	Logger       *logging.Logger
}

// Client owns the single connection to rigctld
type Client struct {
	opts   Options
	logger *logging.Logger

	// mutex guards conn and reader and is held for a whole exchange
	mutex     sync.Mutex
	conn      net.Conn
	reader    *bufio.Reader
	connected atomic.Bool
}

// NewClient creates a disconnected client
func NewClient(opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.DrainTimeout <= 0 {
		opts.DrainTimeout = DefaultDrainTimeout
	}
	if opts.Terminator == 0 {
		opts.Terminator = DefaultTerminator
	}
	if opts.Logger == nil {
		opts.Logger = logging.Nop()
	}

	return &Client{
		opts:   opts,
		logger: opts.Logger,
	}
}

// Address returns the rigctld address this client dials
func (c *Client) Address() string {
	return c.opts.Address
}

// Connect opens the TCP connection. An existing connection is closed first.
func (c *Client) Connect(ctx context.Context) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if c.conn != nil {
		c.closeLocked()
	}

	dialer := net.Dialer{Timeout: c.opts.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", c.opts.Address)
	if err != nil {
		return fmt.Errorf("dial %s: %w: %w", c.opts.Address, ErrConnection, err)
	}

	c.conn = conn
	c.reader = bufio.NewReader(conn)
	c.connected.Store(true)
	c.logger.Debugf("rigctl", "connected to %s", c.opts.Address)
	return nil
}

// Disconnect closes the connection if open. It is always safe to call.
func (c *Client) Disconnect() error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	return c.closeLocked()
}

// Connected reports whether a connection handle exists
func (c *Client) Connected() bool {
	return c.connected.Load()
}

func (c *Client) closeLocked() error {
	if c.conn == nil {
		return nil
	}

	err := c.conn.Close()
	c.conn = nil
	c.reader = nil
	c.connected.Store(false)
	c.logger.Debugf("rigctl", "disconnected from %s", c.opts.Address)
	return err
}

// Exchange writes one request line and returns the single reply line
func (c *Client) Exchange(line string) (string, error) {
	lines, err := c.exchange(line, 1)
	if err != nil {
		return "", err
	}
	return lines[0], nil
}

// ExchangeMultiLine writes one request line and reads n reply lines before
// releasing the connection. If the first line is an error report, rigctld
// sends nothing further and only that line is returned.
func (c *Client) ExchangeMultiLine(line string, n int) ([]string, error) {
	return c.exchange(line, n)
}

func (c *Client) exchange(line string, n int) ([]string, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if err := c.writeLocked(line); err != nil {
		return nil, err
	}

	lines := make([]string, 0, n)
	for i := 0; i < n; i++ {
		resp, err := c.readLocked(line, '\n')
		if err != nil {
			return nil, err
		}
		resp = strings.TrimRight(resp, "\r\n")
		verbose.Received(c.logger, resp)
		lines = append(lines, resp)

		if i == 0 && isErrorReport(resp) {
			break
		}
	}
	return lines, nil
}

// ExchangeRaw sends a vendor command through "w" and returns the reply up to
// and including the terminator. The sentinel byte after it is discarded.
func (c *Client) ExchangeRaw(native string) (string, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	request := "w " + native
	if err := c.writeLocked(request); err != nil {
		return "", err
	}

	resp, err := c.readLocked(request, c.opts.Terminator)
	if err != nil {
		return "", err
	}
	if _, err := c.reader.ReadByte(); err != nil {
		return "", c.failLocked(request, err)
	}

	resp = strings.TrimLeft(resp, "\r\n")
	verbose.Received(c.logger, resp)
	return resp, nil
}

// WriteRaw sends a vendor set command through "w". These writes are never
// acknowledged, so it returns as soon as the line is flushed.
func (c *Client) WriteRaw(native string) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	return c.writeLocked("w " + native)
}

func (c *Client) writeLocked(line string) error {
	if c.conn == nil {
		return fmt.Errorf("%s: %w", line, ErrConnection)
	}

	verbose.Sent(c.logger, line)
	if err := c.conn.SetWriteDeadline(time.Now().Add(c.opts.Timeout)); err != nil {
		return c.failLocked(line, err)
	}
	if _, err := c.conn.Write([]byte(line + "\n")); err != nil {
		return c.failLocked(line, err)
	}
	return nil
}

func (c *Client) readLocked(request string, delim byte) (string, error) {
	if err := c.conn.SetReadDeadline(time.Now().Add(c.opts.Timeout)); err != nil {
		return "", c.failLocked(request, err)
	}
	resp, err := c.reader.ReadString(delim)
	if err != nil {
		return "", c.failLocked(request, err)
	}
	return resp, nil
}

// failLocked classifies an I/O error. A timeout purges whatever arrives
// within the drain window so it cannot be read as the reply to the next
// request; anything else tears the connection down.
func (c *Client) failLocked(request string, err error) error {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		c.drainLocked()
		return fmt.Errorf("%s: %w", request, ErrTimeout)
	}

	c.closeLocked()
	return fmt.Errorf("%s: %w: %w", request, ErrConnection, err)
}

func (c *Client) drainLocked() {
	if c.conn == nil {
		return
	}
	if err := c.conn.SetReadDeadline(time.Now().Add(c.opts.DrainTimeout)); err != nil {
		c.closeLocked()
		return
	}

	discarded := 0
	buf := make([]byte, 512)
	for {
		n, err := c.reader.Read(buf)
		discarded += n
		if err != nil {
			var netErr net.Error
			if !errors.As(err, &netErr) || !netErr.Timeout() {
				c.closeLocked()
				return
			}
			break
		}
	}

	if discarded > 0 {
		c.logger.Debugf("rigctl", "discarded %d late bytes after timeout", discarded)
	}
	c.conn.SetReadDeadline(time.Time{})
}
