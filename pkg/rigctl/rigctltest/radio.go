// Package rigctltest provides an in-process rigctld emulator for tests and
// local development.
package rigctltest

import (
	"sync"
)

// MockRadio is the rig state served by Server
type MockRadio struct {
	mutex sync.RWMutex

	frequency int64
	mode      string
	passband  int
	rit       int
	levels    map[string]float64
	funcs     map[string]bool
	parms     map[string]int

	// vendor queries and their replies, including the terminator
	rawReplies map[string]string
	rawWrites  []string
}

// NewMockRadio creates a radio on 20m FT8 with typical control values
func NewMockRadio() *MockRadio {
	return &MockRadio{
		frequency: 14074000,
		mode:      "USB",
		passband:  2400,
		levels: map[string]float64{
			"AGC":      0.83,
			"RFGAIN":   0.8,
			"RFPOWER":  0.5,
			"STRENGTH": -73,
		},
		funcs: map[string]bool{
			"SPOT": false,
			"BKIN": false,
		},
		parms: map[string]int{},
		rawReplies: map[string]string{
			"ZZGT;": "ZZGT3;",
			"ZZAR;": "ZZAR+050;",
			"ZZPC;": "ZZPC050;",
		},
	}
}

// Frequency returns the current frequency
func (r *MockRadio) Frequency() int64 {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return r.frequency
}

// SetFrequency changes the frequency without going through the wire
func (r *MockRadio) SetFrequency(freq int64) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.frequency = freq
}

// Mode returns mode and passband
func (r *MockRadio) Mode() (string, int) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return r.mode, r.passband
}

// RIT returns the RIT offset
func (r *MockRadio) RIT() int {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return r.rit
}

// Level returns a level and whether the radio supports it
func (r *MockRadio) Level(name string) (float64, bool) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	v, ok := r.levels[name]
	return v, ok
}

// SetLevel changes a level without going through the wire
func (r *MockRadio) SetLevel(name string, value float64) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.levels[name] = value
}

// Func returns a function state and whether the radio supports it
func (r *MockRadio) Func(name string) (bool, bool) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	v, ok := r.funcs[name]
	return v, ok
}

// SetFunc changes a function without going through the wire
func (r *MockRadio) SetFunc(name string, on bool) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.funcs[name] = on
}

// SetRawReply registers the reply for a vendor query
func (r *MockRadio) SetRawReply(query, reply string) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.rawReplies[query] = reply
}

// RawWrites returns vendor commands that were sent without a reply
func (r *MockRadio) RawWrites() []string {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return append([]string(nil), r.rawWrites...)
}
