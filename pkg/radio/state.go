// Package radio builds RadioState snapshots from a rigctld connection.
package radio

// Common mode names reported by rigctld
const (
	ModeUSB    = "USB"
	ModeLSB    = "LSB"
	ModeCW     = "CW"
	ModeCWR    = "CWR"
	ModeAM     = "AM"
	ModeFM     = "FM"
	ModeWFM    = "WFM"
	ModeRTTY   = "RTTY"
	ModeRTTYR  = "RTTYR"
	ModePKTUSB = "PKTUSB"
	ModePKTLSB = "PKTLSB"
	ModeData   = "DATA"
)

// AGC is the front-panel AGC setting shown to operators
type AGC string

const (
	AGCOff  AGC = "OFF"
	AGCSlow AGC = "SLOW"
	AGCMed  AGC = "MED"
	AGCFast AGC = "FAST"
)

// Attribute names, matching the JSON field names of RadioState
const (
	AttrFrequency = "freq"
	AttrMode      = "mode"
	AttrSMeter    = "smeter"
	AttrAGC       = "agc"
	AttrRFGain    = "rf_gain"
	AttrPower     = "power"
	AttrBreakIn   = "break_in"
	AttrRIT       = "rit"
)

// RadioState is one snapshot of the rig
type RadioState struct {
	Freq        int64  `json:"freq"`
	Mode        string `json:"mode"`
	FilterWidth int    `json:"filter_width"`
	SMeter      int    `json:"smeter"`
	RFGain      int    `json:"rf_gain"`
	Power       int    `json:"power"`
	AGC         AGC    `json:"agc"`
	BreakIn     bool   `json:"break_in"`
	RIT         int    `json:"rit"`
}

// DefaultState returns the values substituted for attributes that could not
// be read.
func DefaultState() RadioState {
	return RadioState{
		Freq:        0,
		Mode:        ModeUSB,
		FilterWidth: 2400,
		SMeter:      -100,
		RFGain:      80,
		Power:       50,
		AGC:         AGCMed,
		BreakIn:     false,
		RIT:         0,
	}
}
