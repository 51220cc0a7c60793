package radio

import (
	"github.com/dougsko/rigbridge/pkg/logging"
	"github.com/dougsko/rigbridge/pkg/rigctl"
)

// Result is the outcome of reading one attribute. Err is nil when the value
// came from the rig; otherwise the attribute holds its default.
type Result struct {
	Attribute string
	Core      bool
	Err       error
}

// Report lists the per-attribute results of one GetState call, in query order
type Report struct {
	Results []Result
}

// CoreErr returns the first failure among the core attributes
func (r Report) CoreErr() error {
	for _, res := range r.Results {
		if res.Core && res.Err != nil {
			return res.Err
		}
	}
	return nil
}

// Failed lists the attributes that fell back to defaults
func (r Report) Failed() []string {
	var failed []string
	for _, res := range r.Results {
		if res.Err != nil {
			failed = append(failed, res.Attribute)
		}
	}
	return failed
}

// Aggregator collects a full RadioState with per-attribute fallbacks
type Aggregator struct {
	rig     Rig
	dialect Dialect
	logger  *logging.Logger
}

// NewAggregator creates an aggregator. A nil dialect selects LevelDialect.
func NewAggregator(rig Rig, dialect Dialect, logger *logging.Logger) *Aggregator {
	if dialect == nil {
		dialect = LevelDialect{}
	}
	if logger == nil {
		logger = logging.Nop()
	}
	return &Aggregator{
		rig:     rig,
		dialect: dialect,
		logger:  logger,
	}
}

// Dialect returns the active dialect
func (a *Aggregator) Dialect() Dialect {
	return a.dialect
}

// GetState queries every attribute in a fixed order. It always returns a
// complete snapshot; failures are reported in the Report only.
func (a *Aggregator) GetState() (RadioState, Report) {
	state := DefaultState()
	var report Report

	record := func(attr string, core bool, err error) {
		report.Results = append(report.Results, Result{Attribute: attr, Core: core, Err: err})
		if err == nil {
			return
		}
		fields := map[string]interface{}{"attribute": attr, "error": err.Error()}
		if core {
			a.logger.Warn("radio", "core attribute unavailable, using default", fields)
		} else {
			a.logger.Debug("radio", "extended attribute unavailable, using default", fields)
		}
	}

	// core
	freq, err := a.rig.GetFreq()
	if err == nil {
		state.Freq = freq
	}
	record(AttrFrequency, true, err)

	mode, width, err := a.rig.GetMode()
	if err == nil {
		state.Mode = mode
		state.FilterWidth = width
	}
	record(AttrMode, true, err)

	smeter, err := a.rig.GetSMeter()
	if err == nil {
		state.SMeter = smeter
	}
	record(AttrSMeter, true, err)

	// extended, dialect-specific first so the two dialects never interleave
	agc, err := a.dialect.ReadAGC(a.rig)
	if err == nil {
		state.AGC = agc
	}
	record(AttrAGC, false, err)

	gain, err := a.dialect.ReadRFGain(a.rig)
	if err == nil {
		state.RFGain = gain
	}
	record(AttrRFGain, false, err)

	power, err := a.dialect.ReadPower(a.rig)
	if err == nil {
		state.Power = power
	}
	record(AttrPower, false, err)

	breakIn, err := a.rig.GetFunc(rigctl.FuncBreakIn)
	if err == nil {
		state.BreakIn = breakIn
	}
	record(AttrBreakIn, false, err)

	rit, err := a.rig.GetRIT()
	if err == nil {
		state.RIT = rit
	}
	record(AttrRIT, false, err)

	return state, report
}
