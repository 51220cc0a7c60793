package protocol

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/dougsko/rigbridge/pkg/radio"
)

func decodeRequest(t *testing.T, text string) CommandRequest {
	t.Helper()
	var req CommandRequest
	if err := json.Unmarshal([]byte(text), &req); err != nil {
		t.Fatalf("Failed to unmarshal %s: %v", text, err)
	}
	return req
}

func TestParseCommand(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  Command
	}{
		{"Set Frequency", `{"cmd":"set_freq","value":7074000}`, SetFrequency{Hz: 7074000}},
		{"Set Frequency From String", `{"cmd":"set_freq","value":"14074000"}`, SetFrequency{Hz: 14074000}},
		{"Set Frequency Truncates Fraction", `{"cmd":"set_freq","value":7074000.9}`, SetFrequency{Hz: 7074000}},
		{"Set Mode", `{"cmd":"set_mode","value":"CW"}`, SetMode{Mode: "CW"}},
		{"Set Filter Width", `{"cmd":"set_filter_width","value":500,"mode":"CW"}`, SetFilterWidth{Mode: "CW", Hz: 500}},
		{"Set Filter Width Default Mode", `{"cmd":"set_filter_width","value":1800}`, SetFilterWidth{Mode: "USB", Hz: 1800}},
		{"Spot On", `{"cmd":"set_spot","value":true}`, MomentarySpot{Enabled: true}},
		{"Spot Numeric", `{"cmd":"set_spot","value":0}`, MomentarySpot{Enabled: false}},
		{"AGC", `{"cmd":"set_agc","value":"fast"}`, SetAGC{Setting: "fast"}},
		{"AGC Missing Value", `{"cmd":"set_agc"}`, SetAGC{Setting: ""}},
		{"RF Gain", `{"cmd":"set_rf_gain","value":55}`, SetRFGain{Percent: 55}},
		{"Power", `{"cmd":"set_power","value":"100"}`, SetPower{Percent: 100}},
		{"Break In", `{"cmd":"set_break_in","value":"on"}`, SetBreakIn{Enabled: true}},
		{"RIT Negative", `{"cmd":"set_rit","value":-250}`, SetRIT{Hz: -250}},
		{"Get State", `{"cmd":"get_state"}`, GetState{}},
		{"Send Raw", `{"cmd":"send_raw","value":"ZZGT4;"}`, SendRaw{Native: "ZZGT4;"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, err := ParseCommand(decodeRequest(t, tt.input))
			if err != nil {
				t.Fatalf("Expected no error, got: %v", err)
			}
			if cmd != tt.want {
				t.Errorf("Expected %#v, got %#v", tt.want, cmd)
			}
			if cmd.Name() != tt.want.Name() {
				t.Errorf("Expected name %s, got %s", tt.want.Name(), cmd.Name())
			}
		})
	}
}

func TestParseCommandErrors(t *testing.T) {
	t.Run("Unknown Command", func(t *testing.T) {
		_, err := ParseCommand(CommandRequest{Cmd: "set_vfo"})
		if err == nil {
			t.Fatal("Expected error for unknown command")
		}
		if err.Error() != "Unknown command: set_vfo" {
			t.Errorf("Unexpected message: %s", err.Error())
		}

		var unknown *UnknownCommandError
		if !errors.As(err, &unknown) || unknown.Cmd != "set_vfo" {
			t.Errorf("Expected UnknownCommandError, got %T", err)
		}
	})

	t.Run("Non Numeric Frequency", func(t *testing.T) {
		_, err := ParseCommand(decodeRequest(t, `{"cmd":"set_freq","value":"fourteen"}`))
		if !errors.Is(err, ErrInvalidValue) {
			t.Errorf("Expected ErrInvalidValue, got %v", err)
		}
	})

	t.Run("Missing Frequency", func(t *testing.T) {
		_, err := ParseCommand(CommandRequest{Cmd: CmdSetFreq})
		if !errors.Is(err, ErrInvalidValue) {
			t.Errorf("Expected ErrInvalidValue, got %v", err)
		}
	})

	t.Run("Missing Mode", func(t *testing.T) {
		_, err := ParseCommand(CommandRequest{Cmd: CmdSetMode})
		if !errors.Is(err, ErrInvalidValue) {
			t.Errorf("Expected ErrInvalidValue, got %v", err)
		}
	})
}

func TestStateMessageShape(t *testing.T) {
	msg := NewStateMessage(radio.RadioState{
		Freq:        14074000,
		Mode:        "USB",
		FilterWidth: 2400,
		SMeter:      -73,
		RFGain:      80,
		Power:       50,
		AGC:         radio.AGCMed,
		BreakIn:     false,
		RIT:         0,
	})

	data, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("Failed to marshal: %v", err)
	}

	var fields map[string]interface{}
	if err := json.Unmarshal(data, &fields); err != nil {
		t.Fatalf("Failed to unmarshal: %v", err)
	}

	want := []string{"type", "freq", "mode", "filter_width", "smeter", "rf_gain", "power", "agc", "break_in", "rit"}
	if len(fields) != len(want) {
		t.Errorf("Expected %d fields, got %d: %s", len(want), len(fields), data)
	}
	for _, key := range want {
		if _, ok := fields[key]; !ok {
			t.Errorf("Missing field %s in %s", key, data)
		}
	}
	if fields["type"] != "state" || fields["agc"] != "MED" {
		t.Errorf("Unexpected values in %s", data)
	}
}

func TestDecode(t *testing.T) {
	t.Run("Ack", func(t *testing.T) {
		data, _ := json.Marshal(NewAck(CmdSetFreq, true))
		if !strings.Contains(string(data), `"type":"ack"`) {
			t.Errorf("Unexpected ack JSON: %s", data)
		}

		msg, err := Decode(data)
		if err != nil {
			t.Fatalf("Expected no error, got: %v", err)
		}
		ack, ok := msg.(Ack)
		if !ok || ack.Cmd != CmdSetFreq || !ack.Success {
			t.Errorf("Unexpected ack: %#v", msg)
		}
	})

	t.Run("Error", func(t *testing.T) {
		data, _ := json.Marshal(NewErrorMessage(MsgNotConnected))
		msg, err := Decode(data)
		if err != nil {
			t.Fatalf("Expected no error, got: %v", err)
		}
		if e, ok := msg.(ErrorMessage); !ok || e.Message != "Radio not connected" {
			t.Errorf("Unexpected error message: %#v", msg)
		}
	})

	t.Run("State", func(t *testing.T) {
		msg, err := Decode([]byte(`{"type":"state","freq":7074000,"mode":"LSB","agc":"FAST"}`))
		if err != nil {
			t.Fatalf("Expected no error, got: %v", err)
		}
		state, ok := msg.(StateMessage)
		if !ok || state.Freq != 7074000 || state.Mode != "LSB" || state.AGC != radio.AGCFast {
			t.Errorf("Unexpected state: %#v", msg)
		}
	})

	t.Run("Unknown Type", func(t *testing.T) {
		if _, err := Decode([]byte(`{"type":"hello"}`)); err == nil {
			t.Error("Expected error for unknown type")
		}
	})
}
