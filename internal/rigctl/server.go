// Package rigctl implements a line-oriented TCP control server compatible
// with a subset of the widely-used rigctld protocol, on 127.0.0.1:4532 by
// default.
package rigctl

import (
	"bufio"
	"fmt"
	"net"
	"os/exec"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/hamradio-go/trusdx-bridge/internal/catqueue"
	"github.com/hamradio-go/trusdx-bridge/internal/state"
)

// DefaultAddr is the rigctld-compatible bind address.
const DefaultAddr = "127.0.0.1:4532"

// RadioWriter is the subset of *radio.Link the "T" command needs: it is the
// one external path that writes to the serial port without going through
// the CAT queue, since TX entry must be synchronous with the audio
// bridge's observation of the tx flag.
type RadioWriter interface {
	StartTransmitBaseband() error
	EnableStreamingSpeakerOff() error
}

// Server is the Control Server component.
type Server struct {
	addr  string
	state *state.Shared
	queue *catqueue.Queue
	radio RadioWriter

	listener net.Listener
}

// New constructs a Server bound to addr (DefaultAddr if empty).
func New(addr string, shared *state.Shared, queue *catqueue.Queue, radio RadioWriter) *Server {
	if addr == "" {
		addr = DefaultAddr
	}
	return &Server{addr: addr, state: shared, queue: queue, radio: radio}
}

// bestEffortClearPort kills whatever stale listener may already hold addr's
// port. Failures are ignored; this is advisory, not required for
// correctness.
func bestEffortClearPort(addr string) {
	_, port, err := net.SplitHostPort(addr)
	if err != nil {
		return
	}
	_ = exec.Command("fuser", "-k", port+"/tcp").Run()
}

// ListenAndServe binds the control port and accepts connections until the
// listener is closed. It runs one goroutine per connection.
func (s *Server) ListenAndServe() error {
	bestEffortClearPort(s.addr)

	l, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("rigctl: listen %s: %w", s.addr, err)
	}
	s.listener = l
	log.Infof("rigctl: listening on %s", s.addr)

	for {
		conn, err := l.Accept()
		if err != nil {
			return err
		}
		go s.handleConn(conn)
	}
}

// Close stops accepting new connections.
func (s *Server) Close() error {
	if s.listener == nil {
		return nil
	}
	return s.listener.Close()
}

func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()
	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		reply, quit := s.dispatch(line)
		if reply != "" {
			if _, err := conn.Write([]byte(reply)); err != nil {
				return
			}
		}
		if quit {
			return
		}
	}
}

// dispatch handles one rigctl line and returns the reply to write (already
// newline-terminated) and whether the connection should close.
func (s *Server) dispatch(line string) (reply string, quit bool) {
	switch line[0] {
	case '\\':
		return s.metaReply(line[1:]), false
	case 'f':
		return fmt.Sprintf("%d\n", s.state.FreqHz()), false
	case 'F':
		return s.setFreq(line), false
	case 'm':
		return "USB\n2400\n", false
	case 'M':
		return s.setMode(line), false
	case 'v':
		return "VFOA\n", false
	case 'V':
		return "RPRT 0\n", false
	case 't':
		if s.state.TX() {
			return "1\n", false
		}
		return "0\n", false
	case 'T':
		return s.setTX(line), false
	case 'q':
		return "RPRT 0\n", true
	default:
		return "RPRT 0\n", false
	}
}

func (s *Server) setFreq(line string) string {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return "RPRT -1\n"
	}
	hz, ok := parseFreq(fields[1])
	if !ok {
		return "RPRT -1\n"
	}
	s.state.SetFreqHz(hz)
	s.queue.EnqueueString(fmt.Sprintf("FA%011d;", hz))
	return "RPRT 0\n"
}

// parseFreq accepts either an integer or a float (rounded) frequency in Hz.
func parseFreq(field string) (uint64, bool) {
	if hz, err := strconv.ParseUint(field, 10, 64); err == nil {
		return hz, true
	}
	if f, err := strconv.ParseFloat(field, 64); err == nil && f >= 0 {
		return uint64(f + 0.5), true
	}
	return 0, false
}

// setMode enqueues the MD<digit>; command for the requested mode name,
// defaulting to USB when the argument is missing or unrecognized.
func (s *Server) setMode(line string) string {
	mode := state.ModeUSB
	if fields := strings.Fields(line); len(fields) >= 2 {
		mode = fields[1]
	}
	s.queue.EnqueueString(fmt.Sprintf("MD%c;", state.DigitFromMode(mode)))
	return "RPRT 0\n"
}

func (s *Server) setTX(line string) string {
	fields := strings.Fields(line)
	on := false
	if len(fields) >= 2 {
		if v, err := strconv.Atoi(fields[1]); err == nil {
			on = v != 0
		}
	}

	var err error
	if on {
		err = s.radio.StartTransmitBaseband()
	} else {
		err = s.radio.EnableStreamingSpeakerOff()
	}
	if err != nil {
		log.Debugf("rigctl: T command radio write: %v", err)
	}
	s.state.SetTX(on)
	return "RPRT 0\n"
}

// metaReply answers the '\'-prefixed rigctld meta commands with fixed
// canned replies; \dump_state returns the fixed block hamlib clients
// expect before they will issue further commands.
func (s *Server) metaReply(meta string) string {
	switch meta {
	case "chk_vfo":
		return "0\n"
	case "get_powerstat":
		return "1\n"
	case "dump_state":
		lines := []string{
			"0", "0", "0",
			"0 0 0 0 0 0 0",
			"0 0 0 0 0 0 0",
			"0 0",
			"0 0",
			"0", "0", "0", "0",
			"0 0 0 0 0 0 0",
			"0 0 0 0 0 0 0",
			"0", "0", "0", "0", "0", "0",
		}
		return strings.Join(lines, "\n") + "\n"
	case "dump_caps":
		return "RPRT 0\n"
	default:
		return "RPRT 0\n"
	}
}
