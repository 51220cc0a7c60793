package engine

import (
	"errors"
	"net"
	"path/filepath"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dougsko/rigbridge/pkg/config"
	"github.com/dougsko/rigbridge/pkg/protocol"
	"github.com/dougsko/rigbridge/pkg/radio"
	"github.com/dougsko/rigbridge/pkg/rigctl/rigctltest"
)

type chanSink struct {
	mutex    sync.Mutex
	messages []interface{}
	fail     bool
}

func (s *chanSink) Send(msg interface{}) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.fail {
		return errors.New("closed")
	}
	s.messages = append(s.messages, msg)
	return nil
}

func (s *chanSink) count() int {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return len(s.messages)
}

func testConfig(t *testing.T, addr string) *config.Config {
	t.Helper()
	host, port, err := net.SplitHostPort(addr)
	require.NoError(t, err)

	cfg := config.Default()
	cfg.Rigctld.Host = host
	cfg.Rigctld.Port, err = strconv.Atoi(port)
	require.NoError(t, err)
	cfg.Rigctld.TimeoutMs = 500
	cfg.Polling.IntervalMs = 10
	return cfg
}

func startEngine(t *testing.T, cfg *config.Config) *Engine {
	t.Helper()
	e, err := New(cfg, nil)
	require.NoError(t, err)
	require.NoError(t, e.Start())
	t.Cleanup(func() { e.Stop() })
	return e
}

func TestEngineLifecycle(t *testing.T) {
	server, err := rigctltest.NewServer(nil)
	require.NoError(t, err)
	defer server.Close()

	e, err := New(testConfig(t, server.Addr()), nil)
	require.NoError(t, err)

	_, ok := e.LatestState()
	assert.False(t, ok)

	require.NoError(t, e.Start())
	assert.Error(t, e.Start())

	require.Eventually(t, func() bool {
		_, ok := e.LatestState()
		return ok
	}, 2*time.Second, 10*time.Millisecond)
	assert.True(t, e.Connected())

	latest, _ := e.LatestState()
	assert.Equal(t, "state", latest.Type)
	assert.Equal(t, int64(14074000), latest.Freq)

	require.NoError(t, e.Stop())
	assert.False(t, e.Connected())
	require.NoError(t, e.Stop())
}

func TestEngineSubscribe(t *testing.T) {
	server, err := rigctltest.NewServer(nil)
	require.NoError(t, err)
	defer server.Close()

	e := startEngine(t, testConfig(t, server.Addr()))
	require.Eventually(t, func() bool {
		_, ok := e.LatestState()
		return ok
	}, 2*time.Second, 10*time.Millisecond)

	t.Run("Late Joiner Gets Latest Immediately", func(t *testing.T) {
		sink := &chanSink{}
		require.NoError(t, e.Subscribe(sink))
		defer e.Unsubscribe(sink)

		require.GreaterOrEqual(t, sink.count(), 1)
		sink.mutex.Lock()
		first := sink.messages[0]
		sink.mutex.Unlock()
		assert.IsType(t, protocol.StateMessage{}, first)

		assert.Eventually(t, func() bool { return sink.count() >= 3 }, 2*time.Second, 10*time.Millisecond)
	})

	t.Run("Failing Initial Send", func(t *testing.T) {
		before := e.Status().Subscribers
		err := e.Subscribe(&chanSink{fail: true})
		assert.Error(t, err)
		assert.Equal(t, before, e.Status().Subscribers)
	})

	t.Run("Polled State Follows Rig", func(t *testing.T) {
		server.Radio().SetFrequency(10136000)
		assert.Eventually(t, func() bool {
			latest, _ := e.LatestState()
			return latest.Freq == 10136000
		}, 2*time.Second, 10*time.Millisecond)
	})
}

func TestEngineCommands(t *testing.T) {
	server, err := rigctltest.NewServer(nil)
	require.NoError(t, err)
	defer server.Close()

	cfg := testConfig(t, server.Addr())
	cfg.Journal.Enabled = true
	cfg.Journal.DatabasePath = filepath.Join(t.TempDir(), "journal.db")
	e := startEngine(t, cfg)
	require.Eventually(t, e.Connected, 2*time.Second, 10*time.Millisecond)

	reply := e.HandleCommand(protocol.CommandRequest{Cmd: "set_freq", Value: 7074000.0})
	assert.Equal(t, protocol.NewAck("set_freq", true), reply)
	assert.Equal(t, int64(7074000), server.Radio().Frequency())

	reply = e.HandleCommand(protocol.CommandRequest{Cmd: "get_state"})
	state, ok := reply.(protocol.StateMessage)
	require.True(t, ok)
	assert.Equal(t, int64(7074000), state.Freq)

	reply = e.HandleCommand(protocol.CommandRequest{Cmd: "bogus"})
	assert.Equal(t, protocol.NewErrorMessage("Unknown command: bogus"), reply)

	require.NotNil(t, e.Journal())
	entries, err := e.Journal().Recent(10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "get_state", entries[0].Command)
	assert.Equal(t, "set_freq", entries[1].Command)

	status := e.Status()
	assert.True(t, status.Connected)
	assert.True(t, status.Journal)
	assert.Equal(t, "level", status.Dialect)
	assert.Equal(t, Version, status.Version)
}

func TestEngineWithoutRigctld(t *testing.T) {
	server, err := rigctltest.NewServer(nil)
	require.NoError(t, err)
	addr := server.Addr()
	server.Close()

	cfg := testConfig(t, addr)
	cfg.Rigctld.TimeoutMs = 100
	e := startEngine(t, cfg)

	reply := e.HandleCommand(protocol.CommandRequest{Cmd: "set_freq", Value: 7074000.0})
	assert.Equal(t, protocol.NewErrorMessage("Radio not connected"), reply)

	assert.Eventually(t, func() bool { return e.Status().ReconnectAttempts >= 2 }, 2*time.Second, 10*time.Millisecond)
	_, ok := e.LatestState()
	assert.False(t, ok)
}

func TestNewDialect(t *testing.T) {
	cfg := config.Default()
	assert.Equal(t, radio.LevelDialect{}, NewDialect(cfg))

	cfg.Rigctld.Dialect = config.DialectRaw
	assert.Equal(t, radio.RawDialect{
		AGCCommand: "ZZGT;",
		RFGain:     radio.RawRange{Command: "ZZAR;", Min: -20, Max: 120},
		Power:      radio.RawRange{Command: "ZZPC;", Min: 0, Max: 100},
	}, NewDialect(cfg))
}

func TestEngineRawDialect(t *testing.T) {
	server, err := rigctltest.NewServer(nil)
	require.NoError(t, err)
	defer server.Close()
	server.Radio().SetRawReply("ZZGT;", "ZZGT4;")

	cfg := testConfig(t, server.Addr())
	cfg.Rigctld.Dialect = config.DialectRaw
	e := startEngine(t, cfg)

	assert.Eventually(t, func() bool {
		latest, ok := e.LatestState()
		return ok && latest.AGC == radio.AGCFast
	}, 2*time.Second, 10*time.Millisecond)
	assert.Contains(t, server.Received(), "w ZZGT;")
}
