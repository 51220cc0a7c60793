package rigctltest

import (
	"bufio"
	"fmt"
	"log"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	reportOK          = "RPRT 0"
	reportInvalid     = "RPRT -1"
	reportUnsupported = "RPRT -11"
	reportUnknown     = "RPRT -4"
)

// Server is a fake rigctld listening on a local TCP port
type Server struct {
	radio    *MockRadio
	listener net.Listener
	wg       sync.WaitGroup

	// Sentinel is written after every raw reply
	Sentinel byte

	mutex    sync.Mutex
	conns    map[net.Conn]struct{}
	received []string
	echo     bool
	delays   map[string]time.Duration
	rejected map[string]bool
	closed   bool
}

// NewServer starts a server on 127.0.0.1 with an ephemeral port
func NewServer(radio *MockRadio) (*Server, error) {
	return Listen("127.0.0.1:0", radio)
}

// Listen starts a server on addr
func Listen(addr string, radio *MockRadio) (*Server, error) {
	if radio == nil {
		radio = NewMockRadio()
	}

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	s := &Server{
		radio:    radio,
		listener: listener,
		Sentinel: '\n',
		conns:    make(map[net.Conn]struct{}),
		delays:   make(map[string]time.Duration),
		rejected: make(map[string]bool),
	}

	s.wg.Add(1)
	go s.acceptConnections()
	return s, nil
}

// Addr returns the listening address
func (s *Server) Addr() string {
	return s.listener.Addr().String()
}

// Radio returns the backing radio
func (s *Server) Radio() *MockRadio {
	return s.radio
}

// SetEcho makes every request line be answered with itself. The mode
// query is echoed twice since the client waits for two lines.
func (s *Server) SetEcho(echo bool) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.echo = echo
}

// Delay holds back replies to requests matching prefix
func (s *Server) Delay(prefix string, d time.Duration) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.delays[prefix] = d
}

// Reject answers requests matching prefix with RPRT -11
func (s *Server) Reject(prefix string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.rejected[prefix] = true
}

// Received returns every request line seen so far
func (s *Server) Received() []string {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return append([]string(nil), s.received...)
}

// DropClients closes every open client connection
func (s *Server) DropClients() {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	for conn := range s.conns {
		conn.Close()
		delete(s.conns, conn)
	}
}

// Close stops the server and drops all clients
func (s *Server) Close() error {
	s.mutex.Lock()
	s.closed = true
	s.mutex.Unlock()

	err := s.listener.Close()
	s.DropClients()
	s.wg.Wait()
	return err
}

func (s *Server) isClosed() bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.closed
}

func (s *Server) acceptConnections() {
	defer s.wg.Done()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if !s.isClosed() {
				log.Printf("rigctltest: accept error: %v", err)
			}
			return
		}

		s.mutex.Lock()
		s.conns[conn] = struct{}{}
		s.mutex.Unlock()

		s.wg.Add(1)
		go s.handleConnection(conn)
	}
}

func (s *Server) handleConnection(conn net.Conn) {
	defer s.wg.Done()
	defer func() {
		s.mutex.Lock()
		delete(s.conns, conn)
		s.mutex.Unlock()
		conn.Close()
	}()

	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}

		reply, delay := s.respond(line)
		if delay > 0 {
			time.Sleep(delay)
		}
		if reply == "" {
			continue
		}
		if _, err := conn.Write([]byte(reply)); err != nil {
			return
		}
	}
}

func matches(rules map[string]bool, line string) bool {
	for prefix := range rules {
		if line == prefix || strings.HasPrefix(line, prefix+" ") {
			return true
		}
	}
	return false
}

// respond returns the exact bytes to write back and how long to wait first
func (s *Server) respond(line string) (string, time.Duration) {
	s.mutex.Lock()
	s.received = append(s.received, line)
	echo := s.echo
	var delay time.Duration
	for prefix, d := range s.delays {
		if line == prefix || strings.HasPrefix(line, prefix+" ") {
			delay = d
		}
	}
	rejected := matches(s.rejected, line)
	s.mutex.Unlock()

	switch {
	case echo && line == "m":
		return line + "\n" + line + "\n", delay
	case echo:
		return line + "\n", delay
	case rejected:
		if strings.HasPrefix(line, "w ") {
			return "?;" + string(s.Sentinel), delay
		}
		return reportUnsupported + "\n", delay
	}

	if native, ok := strings.CutPrefix(line, "w "); ok {
		return s.radio.handleRaw(native, s.Sentinel), delay
	}
	return s.radio.handle(line), delay
}

func (r *MockRadio) handleRaw(native string, sentinel byte) string {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if reply, ok := r.rawReplies[native]; ok {
		return reply + string(sentinel)
	}
	r.rawWrites = append(r.rawWrites, native)
	return ""
}

func (r *MockRadio) handle(line string) string {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	fields := strings.Fields(line)
	args := fields[1:]

	switch fields[0] {
	case "f":
		return fmt.Sprintf("%d\n", r.frequency)

	case "F":
		if len(args) < 1 {
			return reportInvalid + "\n"
		}
		freq, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil || freq < 0 {
			return reportInvalid + "\n"
		}
		r.frequency = freq
		return reportOK + "\n"

	case "m":
		return fmt.Sprintf("%s\n%d\n", r.mode, r.passband)

	case "M":
		if len(args) < 2 {
			return reportInvalid + "\n"
		}
		passband, err := strconv.Atoi(args[1])
		if err != nil {
			return reportInvalid + "\n"
		}
		r.mode = args[0]
		if passband > 0 {
			r.passband = passband
		}
		return reportOK + "\n"

	case "l":
		if len(args) < 1 {
			return reportInvalid + "\n"
		}
		v, ok := r.levels[args[0]]
		if !ok {
			return reportUnsupported + "\n"
		}
		if args[0] == "STRENGTH" {
			return fmt.Sprintf("%d\n", int(v))
		}
		return fmt.Sprintf("%.6f\n", v)

	case "L":
		if len(args) < 2 {
			return reportInvalid + "\n"
		}
		v, err := strconv.ParseFloat(args[1], 64)
		if err != nil {
			return reportInvalid + "\n"
		}
		if _, ok := r.levels[args[0]]; !ok {
			return reportUnsupported + "\n"
		}
		r.levels[args[0]] = v
		return reportOK + "\n"

	case "u":
		if len(args) < 1 {
			return reportInvalid + "\n"
		}
		on, ok := r.funcs[args[0]]
		if !ok {
			return reportUnsupported + "\n"
		}
		if on {
			return "1\n"
		}
		return "0\n"

	case "U":
		if len(args) < 2 || (args[1] != "0" && args[1] != "1") {
			return reportInvalid + "\n"
		}
		if _, ok := r.funcs[args[0]]; !ok {
			return reportUnsupported + "\n"
		}
		r.funcs[args[0]] = args[1] == "1"
		return reportOK + "\n"

	case "p":
		if len(args) < 1 {
			return reportInvalid + "\n"
		}
		v, ok := r.parms[args[0]]
		if !ok {
			return reportUnsupported + "\n"
		}
		return fmt.Sprintf("%d\n", v)

	case "P":
		if len(args) < 2 {
			return reportInvalid + "\n"
		}
		v, err := strconv.Atoi(args[1])
		if err != nil {
			return reportInvalid + "\n"
		}
		r.parms[args[0]] = v
		return reportOK + "\n"

	case "j":
		return fmt.Sprintf("%d\n", r.rit)

	case "J":
		if len(args) < 1 {
			return reportInvalid + "\n"
		}
		offset, err := strconv.Atoi(args[0])
		if err != nil || offset < -9999 || offset > 9999 {
			return reportInvalid + "\n"
		}
		r.rit = offset
		return reportOK + "\n"

	default:
		return reportUnknown + "\n"
	}
}
