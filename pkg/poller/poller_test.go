package poller

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dougsko/rigbridge/pkg/dispatch"
	"github.com/dougsko/rigbridge/pkg/logging"
	"github.com/dougsko/rigbridge/pkg/protocol"
	"github.com/dougsko/rigbridge/pkg/radio"
	"github.com/dougsko/rigbridge/pkg/rigctl"
	"github.com/dougsko/rigbridge/pkg/rigctl/rigctltest"
)

type fakeConn struct {
	mutex       sync.Mutex
	connected   bool
	failures    int // connect attempts left to fail
	connects    int
	disconnects int
}

func (f *fakeConn) Address() string { return "fake:4532" }

func (f *fakeConn) Connected() bool {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	return f.connected
}

func (f *fakeConn) Connect(ctx context.Context) error {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.connects++
	if f.failures > 0 {
		f.failures--
		return fmt.Errorf("dial: %w", rigctl.ErrConnection)
	}
	f.connected = true
	return nil
}

func (f *fakeConn) Disconnect() error {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.disconnects++
	f.connected = false
	return nil
}

type fakeSource struct {
	state  radio.RadioState
	report radio.Report
	calls  int
}

func (f *fakeSource) GetState() (radio.RadioState, radio.Report) {
	f.calls++
	return f.state, f.report
}

type recordingPublisher struct {
	mutex    sync.Mutex
	messages []protocol.StateMessage
}

func (r *recordingPublisher) PublishState(msg protocol.StateMessage) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.messages = append(r.messages, msg)
}

func (r *recordingPublisher) count() int {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return len(r.messages)
}

func TestNew(t *testing.T) {
	_, err := New(Config{Interval: 0}, &fakeConn{}, &fakeSource{}, &recordingPublisher{}, nil)
	assert.Error(t, err)

	p, err := New(Config{Interval: time.Millisecond}, &fakeConn{}, &fakeSource{}, &recordingPublisher{}, nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultLogEvery, p.cfg.LogEvery)
}

func TestPollOnce(t *testing.T) {
	t.Run("Connects Then Publishes", func(t *testing.T) {
		conn := &fakeConn{}
		source := &fakeSource{state: radio.DefaultState()}
		pub := &recordingPublisher{}
		p, err := New(Config{Interval: time.Millisecond}, conn, source, pub, nil)
		require.NoError(t, err)

		require.NoError(t, p.PollOnce(context.Background()))
		assert.Equal(t, 1, conn.connects)
		require.Equal(t, 1, pub.count())
		assert.Equal(t, "state", pub.messages[0].Type)
	})

	t.Run("Connect Failure Skips Poll", func(t *testing.T) {
		conn := &fakeConn{failures: 1}
		source := &fakeSource{}
		pub := &recordingPublisher{}
		p, err := New(Config{Interval: time.Millisecond}, conn, source, pub, nil)
		require.NoError(t, err)

		err = p.PollOnce(context.Background())
		assert.ErrorIs(t, err, ErrNotConnected)
		assert.ErrorIs(t, err, rigctl.ErrConnection)
		assert.Equal(t, int64(1), p.Attempts())
		assert.Equal(t, 0, source.calls)
		assert.Equal(t, 0, pub.count())
	})

	t.Run("Core Connection Failure Disconnects", func(t *testing.T) {
		conn := &fakeConn{connected: true}
		source := &fakeSource{
			state: radio.DefaultState(),
			report: radio.Report{Results: []radio.Result{
				{Attribute: radio.AttrFrequency, Core: true, Err: rigctl.ErrTimeout},
			}},
		}
		pub := &recordingPublisher{}
		p, err := New(Config{Interval: time.Millisecond}, conn, source, pub, nil)
		require.NoError(t, err)

		assert.ErrorIs(t, p.PollOnce(context.Background()), rigctl.ErrTimeout)
		assert.Equal(t, 1, conn.disconnects)
		assert.Equal(t, 0, pub.count())
	})

	t.Run("Core Decode Failure Still Publishes", func(t *testing.T) {
		conn := &fakeConn{connected: true}
		source := &fakeSource{
			state: radio.DefaultState(),
			report: radio.Report{Results: []radio.Result{
				{Attribute: radio.AttrMode, Core: true, Err: &rigctl.DecodeError{Want: "integer", Text: "?"}},
			}},
		}
		pub := &recordingPublisher{}
		p, err := New(Config{Interval: time.Millisecond}, conn, source, pub, nil)
		require.NoError(t, err)

		assert.NoError(t, p.PollOnce(context.Background()))
		assert.Equal(t, 0, conn.disconnects)
		assert.Equal(t, 1, pub.count())
	})

	t.Run("Extended Connection Failure Still Publishes", func(t *testing.T) {
		conn := &fakeConn{connected: true}
		source := &fakeSource{
			state: radio.DefaultState(),
			report: radio.Report{Results: []radio.Result{
				{Attribute: radio.AttrRFGain, Core: false, Err: rigctl.ErrConnection},
			}},
		}
		pub := &recordingPublisher{}
		p, err := New(Config{Interval: time.Millisecond}, conn, source, pub, nil)
		require.NoError(t, err)

		assert.NoError(t, p.PollOnce(context.Background()))
		assert.Equal(t, 1, pub.count())
	})
}

func TestReconnectCounter(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.NewWithWriter(&buf, "info", true)

	conn := &fakeConn{failures: 21}
	pub := &recordingPublisher{}
	p, err := New(Config{Interval: time.Millisecond}, conn, &fakeSource{}, pub, logger)
	require.NoError(t, err)

	for i := 1; i <= 21; i++ {
		require.Error(t, p.PollOnce(context.Background()))
		assert.Equal(t, int64(i), p.Attempts())
	}

	// attempts 1, 11 and 21
	assert.Equal(t, 3, strings.Count(buf.String(), "Cannot connect to rigctld"))

	require.NoError(t, p.PollOnce(context.Background()))
	assert.Equal(t, int64(0), p.Attempts())
	assert.Equal(t, 1, pub.count())
	assert.Contains(t, buf.String(), "Connected to rigctld at fake:4532")
}

func TestRun(t *testing.T) {
	t.Run("Publishes On Cadence", func(t *testing.T) {
		server, err := rigctltest.NewServer(nil)
		require.NoError(t, err)
		defer server.Close()

		client := rigctl.NewClient(rigctl.Options{Address: server.Addr()})
		pub := &recordingPublisher{}
		p, err := New(Config{Interval: 20 * time.Millisecond}, client,
			radio.NewAggregator(client, radio.LevelDialect{}, nil), pub, nil)
		require.NoError(t, err)

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan struct{})
		go func() {
			p.Run(ctx)
			close(done)
		}()

		assert.Eventually(t, func() bool { return pub.count() >= 3 }, 2*time.Second, 10*time.Millisecond)

		cancel()
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("Run did not return after cancel")
		}
		assert.False(t, client.Connected())

		pub.mutex.Lock()
		assert.Equal(t, int64(14074000), pub.messages[0].Freq)
		pub.mutex.Unlock()
	})

	t.Run("Reconnects After Peer Drop", func(t *testing.T) {
		server, err := rigctltest.NewServer(nil)
		require.NoError(t, err)
		defer server.Close()

		client := rigctl.NewClient(rigctl.Options{Address: server.Addr(), Timeout: 200 * time.Millisecond})
		pub := &recordingPublisher{}
		p, err := New(Config{Interval: 10 * time.Millisecond}, client,
			radio.NewAggregator(client, radio.LevelDialect{}, nil), pub, nil)
		require.NoError(t, err)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go p.Run(ctx)

		require.Eventually(t, func() bool { return pub.count() >= 1 }, 2*time.Second, 10*time.Millisecond)
		server.DropClients()
		server.Radio().SetFrequency(7074000)

		assert.Eventually(t, func() bool {
			pub.mutex.Lock()
			defer pub.mutex.Unlock()
			last := pub.messages[len(pub.messages)-1]
			return last.Freq == 7074000
		}, 2*time.Second, 10*time.Millisecond)
	})

	t.Run("Unreachable Peer Keeps Retrying", func(t *testing.T) {
		server, err := rigctltest.NewServer(nil)
		require.NoError(t, err)
		addr := server.Addr()
		server.Close()

		client := rigctl.NewClient(rigctl.Options{Address: addr, Timeout: 100 * time.Millisecond})
		p, err := New(Config{Interval: 5 * time.Millisecond}, client,
			radio.NewAggregator(client, nil, nil), &recordingPublisher{}, nil)
		require.NoError(t, err)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go p.Run(ctx)

		assert.Eventually(t, func() bool { return p.Attempts() >= 3 }, 2*time.Second, 5*time.Millisecond)
	})
}

// The poller and two command senders share one connection to a peer that
// echoes every request. A reply read by the wrong caller would show up as a
// foreign request text in an error message.
func TestPollerAndCommandsNeverInterleave(t *testing.T) {
	server, err := rigctltest.NewServer(nil)
	require.NoError(t, err)
	defer server.Close()
	server.SetEcho(true)

	client := rigctl.NewClient(rigctl.Options{Address: server.Addr(), Timeout: 2 * time.Second})
	require.NoError(t, client.Connect(context.Background()))

	aggregator := radio.NewAggregator(client, radio.LevelDialect{}, nil)
	p, err := New(Config{Interval: time.Millisecond}, client, aggregator, &recordingPublisher{}, nil)
	require.NoError(t, err)
	dispatcher := dispatch.New(client, aggregator, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Run(ctx)

	var wg sync.WaitGroup
	for sender := 0; sender < 2; sender++ {
		wg.Add(1)
		go func(sender int) {
			defer wg.Done()
			for i := 0; i < 40; i++ {
				hz := int64(7000000 + sender*100000 + i)
				reply := dispatcher.Dispatch(protocol.SetFrequency{Hz: hz})

				msg, ok := reply.(protocol.ErrorMessage)
				if !assert.True(t, ok, "expected decode error, got %#v", reply) {
					return
				}
				assert.Contains(t, msg.Message, fmt.Sprintf(`"F %d"`, hz))
			}
		}(sender)
	}
	wg.Wait()
}
