package protocol

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrInvalidValue is wrapped by ParseCommand when a value has the wrong type
var ErrInvalidValue = errors.New("invalid value")

// UnknownCommandError is returned for a cmd outside the command set
type UnknownCommandError struct {
	Cmd string
}

func (e *UnknownCommandError) Error() string {
	return "Unknown command: " + e.Cmd
}

// Command is one of the commands below. The set is closed: only types in
// this package implement it.
type Command interface {
	Name() string
	isCommand()
}

// SetFrequency tunes the VFO (Hz)
type SetFrequency struct{ Hz int64 }

// SetMode changes mode, letting the rig pick its default passband
type SetMode struct{ Mode string }

// SetFilterWidth changes mode and passband together
type SetFilterWidth struct {
	Mode string
	Hz   int
}

// MomentarySpot toggles the CW spot function
type MomentarySpot struct{ Enabled bool }

// SetAGC selects an AGC setting by name (OFF, FAST, SLOW, MED)
type SetAGC struct{ Setting string }

// SetRFGain sets RF gain in percent
type SetRFGain struct{ Percent int }

// SetPower sets TX power in percent
type SetPower struct{ Percent int }

// SetBreakIn toggles full break-in (QSK)
type SetBreakIn struct{ Enabled bool }

// SetRIT sets the RIT offset (Hz)
type SetRIT struct{ Hz int }

// GetState asks for a fresh snapshot
type GetState struct{}

// SendRaw writes a vendor CAT command through the passthrough
type SendRaw struct{ Native string }

func (SetFrequency) Name() string   { return CmdSetFreq }
func (SetMode) Name() string        { return CmdSetMode }
func (SetFilterWidth) Name() string { return CmdSetFilterWidth }
func (MomentarySpot) Name() string  { return CmdSetSpot }
func (SetAGC) Name() string         { return CmdSetAGC }
func (SetRFGain) Name() string      { return CmdSetRFGain }
func (SetPower) Name() string       { return CmdSetPower }
func (SetBreakIn) Name() string     { return CmdSetBreakIn }
func (SetRIT) Name() string         { return CmdSetRIT }
func (GetState) Name() string       { return CmdGetState }
func (SendRaw) Name() string        { return CmdSendRaw }

func (SetFrequency) isCommand()   {}
func (SetMode) isCommand()        {}
func (SetFilterWidth) isCommand() {}
func (MomentarySpot) isCommand()  {}
func (SetAGC) isCommand()         {}
func (SetRFGain) isCommand()      {}
func (SetPower) isCommand()       {}
func (SetBreakIn) isCommand()     {}
func (SetRIT) isCommand()         {}
func (GetState) isCommand()       {}
func (SendRaw) isCommand()        {}

// ParseCommand converts a session request into a Command. Numeric values
// are not range checked; the rig rejects what it cannot do.
func ParseCommand(req CommandRequest) (Command, error) {
	switch req.Cmd {
	case CmdSetFreq:
		hz, err := toInt64(req.Cmd, req.Value)
		if err != nil {
			return nil, err
		}
		return SetFrequency{Hz: hz}, nil

	case CmdSetMode:
		mode, err := toString(req.Cmd, req.Value)
		if err != nil {
			return nil, err
		}
		return SetMode{Mode: mode}, nil

	case CmdSetFilterWidth:
		hz, err := toInt64(req.Cmd, req.Value)
		if err != nil {
			return nil, err
		}
		mode := req.Mode
		if mode == "" {
			mode = "USB"
		}
		return SetFilterWidth{Mode: mode, Hz: int(hz)}, nil

	case CmdSetSpot:
		return MomentarySpot{Enabled: toBool(req.Value)}, nil

	case CmdSetAGC:
		setting := ""
		if req.Value != nil {
			setting = fmt.Sprint(req.Value)
		}
		return SetAGC{Setting: setting}, nil

	case CmdSetRFGain:
		pct, err := toInt64(req.Cmd, req.Value)
		if err != nil {
			return nil, err
		}
		return SetRFGain{Percent: int(pct)}, nil

	case CmdSetPower:
		pct, err := toInt64(req.Cmd, req.Value)
		if err != nil {
			return nil, err
		}
		return SetPower{Percent: int(pct)}, nil

	case CmdSetBreakIn:
		return SetBreakIn{Enabled: toBool(req.Value)}, nil

	case CmdSetRIT:
		hz, err := toInt64(req.Cmd, req.Value)
		if err != nil {
			return nil, err
		}
		return SetRIT{Hz: int(hz)}, nil

	case CmdGetState:
		return GetState{}, nil

	case CmdSendRaw:
		native, err := toString(req.Cmd, req.Value)
		if err != nil {
			return nil, err
		}
		return SendRaw{Native: native}, nil

	default:
		return nil, &UnknownCommandError{Cmd: req.Cmd}
	}
}

// toInt64 accepts JSON numbers (truncated toward zero) and numeric strings
func toInt64(cmd string, value interface{}) (int64, error) {
	switch v := value.(type) {
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			break
		}
		return int64(v), nil
	case int:
		return int64(v), nil
	case int64:
		return v, nil
	case bool:
		if v {
			return 1, nil
		}
		return 0, nil
	case string:
		s := strings.TrimSpace(v)
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n, nil
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
			return int64(f), nil
		}
	}
	return 0, fmt.Errorf("%s: %w %v", cmd, ErrInvalidValue, value)
}

func toString(cmd string, value interface{}) (string, error) {
	switch v := value.(type) {
	case nil:
		return "", fmt.Errorf("%s: %w: missing value", cmd, ErrInvalidValue)
	case string:
		return v, nil
	default:
		return fmt.Sprint(v), nil
	}
}

func toBool(value interface{}) bool {
	switch v := value.(type) {
	case bool:
		return v
	case float64:
		return v != 0
	case int:
		return v != 0
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "on", "yes":
			return true
		}
	}
	return false
}
