package client

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/websocket"

	"github.com/dougsko/rigbridge/pkg/engine"
	"github.com/dougsko/rigbridge/pkg/protocol"
)

// SessionClient talks to a running rigbridge over its WebSocket and HTTP API
type SessionClient struct {
	baseURL  string
	username string
	password string
	timeout  time.Duration
	http     *http.Client
}

// NewSessionClient creates a client for the daemon at addr (host:port)
func NewSessionClient(addr string) *SessionClient {
	return &SessionClient{
		baseURL: "http://" + addr,
		timeout: 5 * time.Second,
		http:    &http.Client{Timeout: 5 * time.Second},
	}
}

// SetCredentials enables HTTP basic auth on every request
func (c *SessionClient) SetCredentials(username, password string) {
	c.username = username
	c.password = password
}

// SetTimeout bounds each request
func (c *SessionClient) SetTimeout(timeout time.Duration) {
	c.timeout = timeout
	c.http.Timeout = timeout
}

func (c *SessionClient) header() http.Header {
	header := http.Header{}
	if c.username != "" {
		token := base64.StdEncoding.EncodeToString([]byte(c.username + ":" + c.password))
		header.Set("Authorization", "Basic "+token)
	}
	return header
}

func (c *SessionClient) dial(ctx context.Context) (*websocket.Conn, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, err
	}
	u.Scheme = "ws"
	u.Path = "/ws"

	dialer := websocket.Dialer{HandshakeTimeout: c.timeout}
	conn, resp, err := dialer.DialContext(ctx, u.String(), c.header())
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("failed to connect to %s: %s", u, resp.Status)
		}
		return nil, fmt.Errorf("failed to connect to %s: %w", u, err)
	}
	return conn, nil
}

// SendCommand sends one command and returns the reply: protocol.Ack,
// protocol.ErrorMessage or, for get_state, protocol.StateMessage. State
// pushes that arrive before the reply are skipped.
func (c *SessionClient) SendCommand(req protocol.CommandRequest) (interface{}, error) {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	conn, err := c.dial(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	conn.SetWriteDeadline(time.Now().Add(c.timeout))
	if err := conn.WriteJSON(req); err != nil {
		return nil, fmt.Errorf("send error: %w", err)
	}

	conn.SetReadDeadline(time.Now().Add(c.timeout))
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return nil, fmt.Errorf("read error: %w", err)
		}

		msg, err := protocol.Decode(data)
		if err != nil {
			return nil, fmt.Errorf("parse error: %w", err)
		}
		if _, isState := msg.(protocol.StateMessage); isState && req.Cmd != protocol.CmdGetState {
			continue
		}
		return msg, nil
	}
}

// Set sends a set command and fails unless the rig acknowledged it
func (c *SessionClient) Set(cmd string, value interface{}) error {
	reply, err := c.SendCommand(protocol.CommandRequest{Cmd: cmd, Value: value})
	if err != nil {
		return err
	}
	return replyError(reply)
}

// SetFrequency tunes the rig
func (c *SessionClient) SetFrequency(hz int64) error {
	return c.Set(protocol.CmdSetFreq, hz)
}

// GetState requests a snapshot
func (c *SessionClient) GetState() (*protocol.StateMessage, error) {
	reply, err := c.SendCommand(protocol.CommandRequest{Cmd: protocol.CmdGetState})
	if err != nil {
		return nil, err
	}
	if state, ok := reply.(protocol.StateMessage); ok {
		return &state, nil
	}
	if err := replyError(reply); err != nil {
		return nil, err
	}
	return nil, fmt.Errorf("unexpected reply %T", reply)
}

// Watch calls fn for every state push until ctx is done or fn returns false
func (c *SessionClient) Watch(ctx context.Context, fn func(protocol.StateMessage) bool) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	conn, err := c.dial(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	for {
		var state protocol.StateMessage
		if err := conn.ReadJSON(&state); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("read error: %w", err)
		}
		if state.Type != protocol.TypeState {
			continue
		}
		if !fn(state) {
			return nil
		}
	}
}

// GetStatus reads the daemon status
func (c *SessionClient) GetStatus() (*engine.Status, error) {
	req, err := http.NewRequest(http.MethodGet, c.baseURL+"/api/v1/status", nil)
	if err != nil {
		return nil, err
	}
	req.Header = c.header()

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to get status: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status error: %s", resp.Status)
	}

	var status engine.Status
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, fmt.Errorf("failed to parse status: %w", err)
	}
	return &status, nil
}

func replyError(reply interface{}) error {
	switch r := reply.(type) {
	case protocol.Ack:
		if !r.Success {
			return fmt.Errorf("%s: rejected by rig", r.Cmd)
		}
		return nil
	case protocol.ErrorMessage:
		return errors.New(r.Message)
	default:
		return nil
	}
}
