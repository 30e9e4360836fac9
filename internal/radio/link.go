// Package radio wraps the serial link to the truSDX transceiver: command
// encoding, RTS/DTR line-signal control with a last-value cache, raw audio
// writes, and device discovery by USB vendor/product id.
package radio

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	serial "github.com/daedaluz/goserial"
	log "github.com/sirupsen/logrus"
)

const (
	baudRate    = 115200
	readTimeout = 10 * time.Millisecond
)

// LineSignals is the process-wide cache of the last requested RTS/DTR
// values, read by status UIs. It reflects requested state, not a hardware
// read-back. Pass by reference; never reassign once constructed.
type LineSignals struct {
	rts atomic.Bool
	dtr atomic.Bool
}

func (l *LineSignals) RTS() bool { return l.rts.Load() }
func (l *LineSignals) DTR() bool { return l.dtr.Load() }

// Link owns the opened serial device. All mutation (writes, line-signal
// changes) is serialized through mu; this is the single exclusive lock
// that the single-writer rule requires.
type Link struct {
	mu   sync.Mutex
	port *serial.Port
	sig  *LineSignals
}

// Open finds the CH340 device (or uses devicePath if non-empty), configures
// it 115200 8-N-1 with no flow control and a ~10ms read timeout, and
// returns a Link ready for CAT and audio I/O.
func Open(devicePath string) (*Link, error) {
	if devicePath == "" {
		found, err := FindDevice()
		if err != nil {
			return nil, err
		}
		devicePath = found
	}

	opts := serial.NewOptions().SetReadTimeout(readTimeout)
	port, err := serial.Open(devicePath, opts)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", devicePath, err)
	}

	if err := configure(port); err != nil {
		port.Close()
		return nil, fmt.Errorf("configure %s: %w", devicePath, err)
	}

	log.Infof("radio: opened %s at %d baud", devicePath, baudRate)
	return &Link{port: port, sig: &LineSignals{}}, nil
}

func configure(port *serial.Port) error {
	attrs, err := port.GetAttr()
	if err != nil {
		return err
	}
	attrs.MakeRaw()
	attrs.Cflag &= ^(serial.CSIZE | serial.PARENB)
	attrs.Cflag |= serial.CS8 | serial.CREAD | serial.CLOCAL
	attrs.SetSpeed(serial.B115200)
	return port.SetAttr(serial.TCSANOW, attrs)
}

// Signals returns the shared RTS/DTR cache so it can be handed to status UIs.
func (l *Link) Signals() *LineSignals { return l.sig }

// Close releases the underlying device.
func (l *Link) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.port.Close()
}

// SetRTS asserts or releases RTS and, only on success, updates the cache
// (the cache is updated only on a successful write).
func (l *Link) SetRTS(high bool) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.setRTSLocked(high)
}

func (l *Link) setRTSLocked(high bool) error {
	var err error
	if high {
		err = l.port.EnableModemLines(serial.TIOCM_RTS)
	} else {
		err = l.port.DisableModemLines(serial.TIOCM_RTS)
	}
	if err == nil {
		l.sig.rts.Store(high)
	}
	return err
}

// SetDTR asserts or releases DTR and, only on success, updates the cache.
func (l *Link) SetDTR(high bool) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	var err error
	if high {
		err = l.port.EnableModemLines(serial.TIOCM_DTR)
	} else {
		err = l.port.DisableModemLines(serial.TIOCM_DTR)
	}
	if err == nil {
		l.sig.dtr.Store(high)
	}
	return err
}

// flushLocked waits for queued output to drain, bracketing command writes so the
// radio sees a clean frame boundary.
func (l *Link) flushLocked() {
	_ = l.port.Drain()
}

// sendLocked writes a complete command with a flush bracket on either side.
func (l *Link) sendLocked(cmd string) error {
	log.Debugf("[CAT -> Rig]: %s", cmd)
	l.flushLocked()
	_, err := l.port.Write([]byte(cmd))
	l.flushLocked()
	return err
}

// SendCommand writes a single already-terminated CAT command to the radio.
func (l *Link) SendCommand(cmd string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.sendLocked(cmd)
}

// SendCommands writes several already-terminated CAT commands as one held
// lock, so queued CAT frames never interleave on the wire.
func (l *Link) SendCommands(cmds [][]byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	var firstErr error
	l.flushLocked()
	for _, c := range cmds {
		log.Debugf("[CAT -> Rig]: %s", c)
		if _, err := l.port.Write(c); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	l.flushLocked()
	return firstErr
}

// EnableStreamingSpeakerOff asserts RTS, sends ";RX;UA2;", then releases
// RTS, asking the radio to resume framed RX audio with its local speaker
// muted.
func (l *Link) EnableStreamingSpeakerOff() error {
	return l.streamEnable(CmdUA2)
}

// EnableStreamingSpeakerOn is the speaker-on variant (";RX;UA1;").
func (l *Link) EnableStreamingSpeakerOn() error {
	return l.streamEnable(CmdUA1)
}

func (l *Link) streamEnable(uaCmd string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.setRTSLocked(true); err != nil {
		return err
	}
	err := l.sendLocked(CmdRX + uaCmd)
	if rerr := l.setRTSLocked(false); rerr != nil && err == nil {
		err = rerr
	}
	return err
}

// StartTransmitBaseband sends ";TX0;", entering transmit on the base-band
// audio path.
func (l *Link) StartTransmitBaseband() error {
	return l.SendCommand(CmdTX0)
}

// SetMode sends the MD<digit>; command for the given mode digit
// ('0' through '5').
func (l *Link) SetMode(digit byte) error {
	return l.SendCommand(modeCommand(digit))
}

// SendAudioRaw writes a TX audio payload directly to the serial device with
// no framing. Callers must have already escaped ';' bytes.
func (l *Link) SendAudioRaw(payload []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, err := l.port.Write(payload)
	return err
}

// Read reads up to len(buf) bytes from the serial port, honoring the
// configured ~10ms timeout. A timeout is reported as (0, nil): an expected,
// frequent condition, not an error.
func (l *Link) Read(buf []byte) (int, error) {
	n, err := l.port.Read(buf)
	if err != nil {
		return 0, nil
	}
	return n, nil
}
