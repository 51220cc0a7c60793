// Package dispatch turns session commands into rigctld requests.
package dispatch

import (
	"encoding/json"
	"strings"

	"github.com/dougsko/rigbridge/pkg/logging"
	"github.com/dougsko/rigbridge/pkg/protocol"
	"github.com/dougsko/rigbridge/pkg/radio"
	"github.com/dougsko/rigbridge/pkg/rigctl"
	"github.com/dougsko/rigbridge/pkg/storage"
)

// Rig is the subset of the rigctld client used for set commands
type Rig interface {
	Connected() bool
	SetFreq(freq int64) (bool, error)
	SetMode(mode string, passband int) (bool, error)
	SetLevel(name string, value float64) (bool, error)
	SetFunc(name string, enable bool) (bool, error)
	SetRIT(offset int) (bool, error)
	WriteRaw(native string) error
}

// StateSource produces fresh snapshots for get_state
type StateSource interface {
	GetState() (radio.RadioState, radio.Report)
}

// Recorder stores an audit entry per dispatched command
type Recorder interface {
	Record(entry storage.Entry) error
}

var agcLevels = map[string]float64{
	"OFF":  0.0,
	"FAST": 0.33,
	"SLOW": 0.5,
	"MED":  0.83,
}

// AGCLevel returns the normalized AGC level for a setting name. Names are
// matched case-insensitively; anything unknown selects MED.
func AGCLevel(name string) float64 {
	if v, ok := agcLevels[strings.ToUpper(strings.TrimSpace(name))]; ok {
		return v
	}
	return agcLevels["MED"]
}

// Dispatcher executes commands against the rig
type Dispatcher struct {
	rig      Rig
	state    StateSource
	recorder Recorder
	logger   *logging.Logger
}

// New creates a dispatcher. recorder may be nil.
func New(rig Rig, state StateSource, recorder Recorder, logger *logging.Logger) *Dispatcher {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Dispatcher{
		rig:      rig,
		state:    state,
		recorder: recorder,
		logger:   logger,
	}
}

// HandleRequest parses and executes a session request. The reply is a
// protocol.Ack, protocol.ErrorMessage or protocol.StateMessage.
func (d *Dispatcher) HandleRequest(req protocol.CommandRequest) interface{} {
	if !d.rig.Connected() {
		return protocol.NewErrorMessage(protocol.MsgNotConnected)
	}

	cmd, err := protocol.ParseCommand(req)
	if err != nil {
		d.logger.Debug("dispatch", "rejected request", map[string]interface{}{
			"cmd":   req.Cmd,
			"error": err.Error(),
		})
		return protocol.NewErrorMessage(err.Error())
	}
	return d.Dispatch(cmd)
}

// Dispatch executes one command
func (d *Dispatcher) Dispatch(cmd protocol.Command) interface{} {
	if !d.rig.Connected() {
		return protocol.NewErrorMessage(protocol.MsgNotConnected)
	}

	reply := d.execute(cmd)
	d.record(cmd, reply)
	return reply
}

func (d *Dispatcher) execute(cmd protocol.Command) interface{} {
	var (
		ok  bool
		err error
	)

	switch c := cmd.(type) {
	case protocol.SetFrequency:
		ok, err = d.rig.SetFreq(c.Hz)
	case protocol.SetMode:
		ok, err = d.rig.SetMode(c.Mode, 0)
	case protocol.SetFilterWidth:
		ok, err = d.rig.SetMode(c.Mode, c.Hz)
	case protocol.MomentarySpot:
		ok, err = d.rig.SetFunc(rigctl.FuncSpot, c.Enabled)
	case protocol.SetAGC:
		ok, err = d.rig.SetLevel(rigctl.LevelAGC, AGCLevel(c.Setting))
	case protocol.SetRFGain:
		ok, err = d.rig.SetLevel(rigctl.LevelRFGain, float64(c.Percent)/100.0)
	case protocol.SetPower:
		ok, err = d.rig.SetLevel(rigctl.LevelRFPower, float64(c.Percent)/100.0)
	case protocol.SetBreakIn:
		ok, err = d.rig.SetFunc(rigctl.FuncBreakIn, c.Enabled)
	case protocol.SetRIT:
		ok, err = d.rig.SetRIT(c.Hz)
	case protocol.GetState:
		state, _ := d.state.GetState()
		return protocol.NewStateMessage(state)
	case protocol.SendRaw:
		// passthrough writes are never acknowledged by the rig
		err = d.rig.WriteRaw(c.Native)
		ok = err == nil
	default:
		return protocol.NewErrorMessage((&protocol.UnknownCommandError{Cmd: cmd.Name()}).Error())
	}

	if err != nil {
		d.logger.Warn("dispatch", "command failed", map[string]interface{}{
			"cmd":   cmd.Name(),
			"error": err.Error(),
		})
		return protocol.NewErrorMessage(err.Error())
	}
	if !ok {
		d.logger.Infof("dispatch", "%s not accepted by rig", cmd.Name())
	}
	return protocol.NewAck(cmd.Name(), ok)
}

func (d *Dispatcher) record(cmd protocol.Command, reply interface{}) {
	if d.recorder == nil {
		return
	}

	entry := storage.Entry{Command: cmd.Name()}
	if value, err := json.Marshal(cmd); err == nil {
		entry.Value = string(value)
	}

	switch r := reply.(type) {
	case protocol.Ack:
		entry.Outcome = storage.OutcomeAck
		entry.Success = r.Success
	case protocol.StateMessage:
		entry.Outcome = storage.OutcomeState
		entry.Success = true
	case protocol.ErrorMessage:
		entry.Outcome = storage.OutcomeError
		entry.Error = r.Message
	}

	if err := d.recorder.Record(entry); err != nil {
		d.logger.Warn("dispatch", "failed to journal command", map[string]interface{}{
			"cmd":   cmd.Name(),
			"error": err.Error(),
		})
	}
}
