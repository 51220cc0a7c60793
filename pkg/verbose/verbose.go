// Package verbose holds the process-wide switch for rigctld wire tracing.
package verbose

import (
	"sync/atomic"

	"github.com/dougsko/rigbridge/pkg/logging"
)

var enabled atomic.Bool

// SetEnabled sets the global verbose flag
func SetEnabled(enable bool) {
	enabled.Store(enable)
}

// IsEnabled returns whether wire tracing is enabled
func IsEnabled() bool {
	return enabled.Load()
}

// Sent traces a line written to the control daemon
func Sent(logger *logging.Logger, line string) {
	if enabled.Load() {
		logger.Debug("wire", "-> "+line)
	}
}

// Received traces a line read from the control daemon
func Received(logger *logging.Logger, line string) {
	if enabled.Load() {
		logger.Debug("wire", "<- "+line)
	}
}
