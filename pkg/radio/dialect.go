package radio

import (
	"fmt"
	"math"

	"github.com/dougsko/rigbridge/pkg/rigctl"
)

// Rig is the subset of the rigctld client the aggregator reads from
type Rig interface {
	GetFreq() (int64, error)
	GetMode() (string, int, error)
	GetSMeter() (int, error)
	GetLevel(name string) (float64, error)
	GetFunc(name string) (bool, error)
	GetRIT() (int, error)
	RawQueryInt(native string) (int, error)
}

// Dialect reads the attributes whose encoding differs between rigs
type Dialect interface {
	Name() string
	ReadAGC(rig Rig) (AGC, error)
	ReadRFGain(rig Rig) (int, error)
	ReadPower(rig Rig) (int, error)
}

// Percent converts a normalized 0.0-1.0 level to a whole percentage
func Percent(level float64) int {
	return int(math.Round(level * 100))
}

// AGCFromLevel maps the normalized AGC level onto the four UI settings.
// Thresholds are fixed and do not invert the values written by set_agc.
func AGCFromLevel(level float64) AGC {
	switch {
	case level < 0.1:
		return AGCOff
	case level < 0.4:
		return AGCFast
	case level < 0.7:
		return AGCSlow
	default:
		return AGCMed
	}
}

var agcCodes = map[int]AGC{
	0: AGCOff,
	1: AGCSlow,
	2: AGCSlow,
	3: AGCMed,
	4: AGCFast,
	5: AGCMed,
}

// AGCFromCode maps a vendor AGC code (ZZGT) onto the four UI settings
func AGCFromCode(code int) (AGC, bool) {
	agc, ok := agcCodes[code]
	return agc, ok
}

// LevelDialect reads everything through rigctld's normalized levels
type LevelDialect struct{}

func (LevelDialect) Name() string { return "level" }

func (LevelDialect) ReadAGC(rig Rig) (AGC, error) {
	v, err := rig.GetLevel(rigctl.LevelAGC)
	if err != nil {
		return "", err
	}
	return AGCFromLevel(v), nil
}

func (LevelDialect) ReadRFGain(rig Rig) (int, error) {
	v, err := rig.GetLevel(rigctl.LevelRFGain)
	if err != nil {
		return 0, err
	}
	return Percent(v), nil
}

func (LevelDialect) ReadPower(rig Rig) (int, error) {
	v, err := rig.GetLevel(rigctl.LevelRFPower)
	if err != nil {
		return 0, err
	}
	return Percent(v), nil
}

// RawRange is a vendor query whose integer reply spans [Min, Max]
type RawRange struct {
	Command string
	Min     int
	Max     int
}

// Scale maps a raw reading onto 0-100, clamped
func (r RawRange) Scale(raw int) int {
	if r.Max <= r.Min {
		return 0
	}
	pct := int(math.Round(float64(raw-r.Min) * 100 / float64(r.Max-r.Min)))
	if pct < 0 {
		return 0
	}
	if pct > 100 {
		return 100
	}
	return pct
}

// RawDialect reads AGC, RF gain and power with vendor passthrough queries
type RawDialect struct {
	AGCCommand string
	RFGain     RawRange
	Power      RawRange
}

func (RawDialect) Name() string { return "raw" }

func (d RawDialect) ReadAGC(rig Rig) (AGC, error) {
	code, err := rig.RawQueryInt(d.AGCCommand)
	if err != nil {
		return "", err
	}
	agc, ok := AGCFromCode(code)
	if !ok {
		return "", &rigctl.DecodeError{Want: "AGC code", Text: fmt.Sprint(code)}
	}
	return agc, nil
}

func (d RawDialect) ReadRFGain(rig Rig) (int, error) {
	raw, err := rig.RawQueryInt(d.RFGain.Command)
	if err != nil {
		return 0, err
	}
	return d.RFGain.Scale(raw), nil
}

func (d RawDialect) ReadPower(rig Rig) (int, error) {
	raw, err := rig.RawQueryInt(d.Power.Command)
	if err != nil {
		return 0, err
	}
	return d.Power.Scale(raw), nil
}
