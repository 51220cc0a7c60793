package rigctl

import (
	"fmt"
	"strconv"
	"strings"
)

// Well-known level, function and parameter names
const (
	LevelAGC      = "AGC"
	LevelRFGain   = "RFGAIN"
	LevelRFPower  = "RFPOWER"
	LevelStrength = "STRENGTH"

	FuncSpot    = "SPOT"
	FuncBreakIn = "BKIN"
)

// GetFreq returns the current frequency in Hz (f)
func (c *Client) GetFreq() (int64, error) {
	resp, err := c.Exchange("f")
	if err != nil {
		return 0, err
	}
	return decodeInt64("f", resp)
}

// SetFreq sets the frequency in Hz (F)
func (c *Client) SetFreq(freq int64) (bool, error) {
	return c.set(fmt.Sprintf("F %d", freq))
}

// GetMode returns mode and passband width (m, two reply lines)
func (c *Client) GetMode() (string, int, error) {
	lines, err := c.ExchangeMultiLine("m", 2)
	if err != nil {
		return "", 0, err
	}
	if code, ok := ParseReport(lines[0]); ok && code != 0 {
		return "", 0, &ReportError{Request: "m", Code: code}
	}
	if len(lines) < 2 {
		return "", 0, &DecodeError{Want: "mode and passband", Text: strings.Join(lines, "\n")}
	}

	mode := strings.TrimSpace(lines[0])
	if mode == "" {
		return "", 0, &DecodeError{Want: "mode", Text: lines[0]}
	}
	width, err := decodeInt("m", lines[1])
	if err != nil {
		return "", 0, err
	}
	return mode, width, nil
}

// SetMode sets mode and passband (M). A passband of 0 selects the rig's
// default width for the mode.
func (c *Client) SetMode(mode string, passband int) (bool, error) {
	return c.set(fmt.Sprintf("M %s %d", mode, passband))
}

// GetLevel returns a normalized level, usually 0.0-1.0 (l)
func (c *Client) GetLevel(name string) (float64, error) {
	request := "l " + name
	resp, err := c.Exchange(request)
	if err != nil {
		return 0, err
	}
	return decodeFloat(request, resp)
}

// SetLevel sets a normalized level (L)
func (c *Client) SetLevel(name string, value float64) (bool, error) {
	return c.set(fmt.Sprintf("L %s %s", name, FormatLevel(value)))
}

// GetSMeter returns the signal strength in dBm (l STRENGTH)
func (c *Client) GetSMeter() (int, error) {
	request := "l " + LevelStrength
	resp, err := c.Exchange(request)
	if err != nil {
		return 0, err
	}
	return decodeInt(request, resp)
}

// GetFunc returns whether a function is enabled (u)
func (c *Client) GetFunc(name string) (bool, error) {
	request := "u " + name
	resp, err := c.Exchange(request)
	if err != nil {
		return false, err
	}
	if code, ok := ParseReport(resp); ok && code != 0 {
		return false, &ReportError{Request: request, Code: code}
	}

	switch strings.TrimSpace(resp) {
	case "1":
		return true, nil
	case "0":
		return false, nil
	default:
		return false, &DecodeError{Want: "function state", Text: resp}
	}
}

// SetFunc enables or disables a function (U)
func (c *Client) SetFunc(name string, enable bool) (bool, error) {
	value := "0"
	if enable {
		value = "1"
	}
	return c.set(fmt.Sprintf("U %s %s", name, value))
}

// GetParm returns an integer parameter (p)
func (c *Client) GetParm(name string) (int, error) {
	request := "p " + name
	resp, err := c.Exchange(request)
	if err != nil {
		return 0, err
	}
	return decodeInt(request, resp)
}

// SetParm sets an integer parameter (P)
func (c *Client) SetParm(name string, value int) (bool, error) {
	return c.set(fmt.Sprintf("P %s %d", name, value))
}

// GetRIT returns the RIT offset in Hz (j)
func (c *Client) GetRIT() (int, error) {
	resp, err := c.Exchange("j")
	if err != nil {
		return 0, err
	}
	return decodeInt("j", resp)
}

// SetRIT sets the RIT offset in Hz (J)
func (c *Client) SetRIT(offset int) (bool, error) {
	return c.set(fmt.Sprintf("J %d", offset))
}

// RawQueryInt sends a vendor query such as "ZZGT;" and parses the integer
// between the echoed command prefix and the terminator ("ZZGT3;" -> 3).
func (c *Client) RawQueryInt(native string) (int, error) {
	resp, err := c.ExchangeRaw(native)
	if err != nil {
		return 0, err
	}

	term := string(c.opts.Terminator)
	body := strings.TrimSuffix(strings.TrimSpace(resp), term)
	body = strings.TrimPrefix(body, strings.TrimSuffix(native, term))

	value, err := strconv.Atoi(strings.TrimSpace(body))
	if err != nil {
		return 0, &DecodeError{Want: "integer", Text: resp}
	}
	return value, nil
}

// set sends a set command and reports whether rigctld answered RPRT 0
func (c *Client) set(request string) (bool, error) {
	resp, err := c.Exchange(request)
	if err != nil {
		return false, err
	}
	code, ok := ParseReport(resp)
	if !ok {
		return false, &DecodeError{Want: "RPRT", Text: resp}
	}
	if code != 0 {
		c.logger.Debugf("rigctl", "%s rejected with RPRT %d", request, code)
	}
	return code == 0, nil
}

// FormatLevel renders a level value with at least one fractional digit
func FormatLevel(value float64) string {
	s := strconv.FormatFloat(value, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

func decodeInt64(request, resp string) (int64, error) {
	if code, ok := ParseReport(resp); ok && code != 0 {
		return 0, &ReportError{Request: request, Code: code}
	}
	value, err := strconv.ParseInt(strings.TrimSpace(resp), 10, 64)
	if err != nil {
		return 0, &DecodeError{Want: "integer", Text: resp}
	}
	return value, nil
}

func decodeInt(request, resp string) (int, error) {
	value, err := decodeInt64(request, resp)
	return int(value), err
}

func decodeFloat(request, resp string) (float64, error) {
	if code, ok := ParseReport(resp); ok && code != 0 {
		return 0, &ReportError{Request: request, Code: code}
	}
	value, err := strconv.ParseFloat(strings.TrimSpace(resp), 64)
	if err != nil {
		return 0, &DecodeError{Want: "float", Text: resp}
	}
	return value, nil
}
