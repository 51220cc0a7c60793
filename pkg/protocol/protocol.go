package protocol

import (
	"encoding/json"

	"github.com/dougsko/rigbridge/pkg/radio"
)

// Message types sent to sessions
const (
	TypeState = "state"
	TypeAck   = "ack"
	TypeError = "error"
)

// Session commands
const (
	CmdSetFreq        = "set_freq"
	CmdSetMode        = "set_mode"
	CmdSetFilterWidth = "set_filter_width"
	CmdSetSpot        = "set_spot"
	CmdSetAGC         = "set_agc"
	CmdSetRFGain      = "set_rf_gain"
	CmdSetPower       = "set_power"
	CmdSetBreakIn     = "set_break_in"
	CmdSetRIT         = "set_rit"
	CmdGetState       = "get_state"
	CmdSendRaw        = "send_raw"
)

// MsgNotConnected is returned for every command while rigctld is unreachable
const MsgNotConnected = "Radio not connected"

// CommandRequest is a command as received from a session
type CommandRequest struct {
	Cmd   string      `json:"cmd"`
	Value interface{} `json:"value,omitempty"`
	Mode  string      `json:"mode,omitempty"`
}

// StateMessage publishes a snapshot to sessions
type StateMessage struct {
	Type string `json:"type"`
	radio.RadioState
}

// Ack acknowledges a set command
type Ack struct {
	Type    string `json:"type"`
	Cmd     string `json:"cmd"`
	Success bool   `json:"success"`
}

// ErrorMessage reports a failed command
type ErrorMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// NewStateMessage wraps a snapshot as a state message
func NewStateMessage(state radio.RadioState) StateMessage {
	return StateMessage{Type: TypeState, RadioState: state}
}

// NewAck creates an acknowledgement
func NewAck(cmd string, success bool) Ack {
	return Ack{Type: TypeAck, Cmd: cmd, Success: success}
}

// NewErrorMessage creates an error message
func NewErrorMessage(message string) ErrorMessage {
	return ErrorMessage{Type: TypeError, Message: message}
}

// Decode parses a message received from the server by its type field.
// It returns StateMessage, Ack or ErrorMessage.
func Decode(data []byte) (interface{}, error) {
	var envelope struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, err
	}

	switch envelope.Type {
	case TypeState:
		var msg StateMessage
		err := json.Unmarshal(data, &msg)
		return msg, err
	case TypeAck:
		var msg Ack
		err := json.Unmarshal(data, &msg)
		return msg, err
	case TypeError:
		var msg ErrorMessage
		err := json.Unmarshal(data, &msg)
		return msg, err
	default:
		return nil, &UnknownTypeError{Type: envelope.Type}
	}
}

// UnknownTypeError is returned by Decode for an unrecognized type field
type UnknownTypeError struct {
	Type string
}

func (e *UnknownTypeError) Error() string {
	return "unknown message type: " + e.Type
}
