package rigctl

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	// ErrConnection indicates there is no usable connection to rigctld:
	// never connected, disconnected, or closed by the peer.
	ErrConnection = errors.New("not connected to rigctld")

	// ErrTimeout indicates rigctld did not accept a request or answer it
	// within the exchange timeout.
	ErrTimeout = errors.New("rigctld timeout")

	// ErrDecode indicates a reply that could not be parsed as the expected type.
	ErrDecode = errors.New("cannot decode rigctld reply")

	// ErrRejected indicates rigctld answered a query with a negative RPRT
	// code, usually because the rig does not implement the attribute.
	ErrRejected = errors.New("rigctld rejected request")
)

// DecodeError carries the reply text that failed to parse.
type DecodeError struct {
	Want string
	Text string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("cannot decode %q as %s", e.Text, e.Want)
}

func (e *DecodeError) Unwrap() error { return ErrDecode }

// ReportError is returned when a query is answered with RPRT <negative>.
type ReportError struct {
	Request string
	Code    int
}

func (e *ReportError) Error() string {
	return fmt.Sprintf("%s: RPRT %d", e.Request, e.Code)
}

func (e *ReportError) Unwrap() error { return ErrRejected }

// IsConnectionClass reports whether err means the connection itself is
// unusable (not connected, closed, or timed out) rather than a bad reply.
func IsConnectionClass(err error) bool {
	return errors.Is(err, ErrConnection) || errors.Is(err, ErrTimeout)
}

// ParseReport extracts the code from an "RPRT <code>" line.
func ParseReport(line string) (int, bool) {
	rest, ok := strings.CutPrefix(strings.TrimSpace(line), "RPRT ")
	if !ok {
		return 0, false
	}
	code, err := strconv.Atoi(strings.TrimSpace(rest))
	if err != nil {
		return 0, false
	}
	return code, true
}

// isErrorReport reports whether line is an RPRT line with a non-zero code.
func isErrorReport(line string) bool {
	code, ok := ParseReport(line)
	return ok && code != 0
}
