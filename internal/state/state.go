// Package state holds the scalars shared between the audio bridge, the
// control server and the UI surfaces. Each scalar owns its own lock; no
// invariant spans more than one field, so there is no lock ordering to
// respect.
package state

import (
	"sync"
	"sync/atomic"
)

// Mode names the radio can report via MD<digit>; CAT frames.
const (
	ModeLSB = "LSB"
	ModeUSB = "USB"
	ModeCW  = "CW"
	ModeFM  = "FM"
	ModeAM  = "AM"
)

// Shared is the process-wide state block. Zero value is
// not ready for use; construct with New.
type Shared struct {
	freqMu sync.Mutex
	freqHz uint64

	modeMu sync.Mutex
	mode   string

	tx atomic.Bool

	inputMu    sync.Mutex
	inputLevel float32

	outputMu    sync.Mutex
	outputLevel float32

	streamingStarted atomic.Bool
	stop             atomic.Bool
	shuttingDown     atomic.Bool
}

// New returns a Shared initialized with mode USB and all flags clear,
// matching the bootstrap sequence's MD2 (USB) default.
func New() *Shared {
	s := &Shared{}
	s.mode = ModeUSB
	return s
}

func (s *Shared) FreqHz() uint64 {
	s.freqMu.Lock()
	defer s.freqMu.Unlock()
	return s.freqHz
}

func (s *Shared) SetFreqHz(hz uint64) {
	s.freqMu.Lock()
	s.freqHz = hz
	s.freqMu.Unlock()
}

func (s *Shared) Mode() string {
	s.modeMu.Lock()
	defer s.modeMu.Unlock()
	return s.mode
}

func (s *Shared) SetMode(mode string) {
	s.modeMu.Lock()
	s.mode = mode
	s.modeMu.Unlock()
}

// TX reports whether the Control Server currently wants the radio keyed.
func (s *Shared) TX() bool { return s.tx.Load() }

// SetTX is the Control Server's sole write path for transmit intent.
func (s *Shared) SetTX(tx bool) { s.tx.Store(tx) }

func (s *Shared) InputLevel() float32 {
	s.inputMu.Lock()
	defer s.inputMu.Unlock()
	return s.inputLevel
}

func (s *Shared) SetInputLevel(v float32) {
	s.inputMu.Lock()
	s.inputLevel = v
	s.inputMu.Unlock()
}

func (s *Shared) OutputLevel() float32 {
	s.outputMu.Lock()
	defer s.outputMu.Unlock()
	return s.outputLevel
}

func (s *Shared) SetOutputLevel(v float32) {
	s.outputMu.Lock()
	s.outputLevel = v
	s.outputMu.Unlock()
}

// StreamingStarted is true only between an observed "US...;" frame and the
// next TX entry.
func (s *Shared) StreamingStarted() bool     { return s.streamingStarted.Load() }
func (s *Shared) SetStreamingStarted(v bool) { s.streamingStarted.Store(v) }

func (s *Shared) Stop() bool     { return s.stop.Load() }
func (s *Shared) SetStop(v bool) { s.stop.Store(v) }

func (s *Shared) ShuttingDown() bool     { return s.shuttingDown.Load() }
func (s *Shared) SetShuttingDown(v bool) { s.shuttingDown.Store(v) }

// ModeFromDigit maps the digit following "MD" in an MD<digit>; CAT frame to
// a mode name, defaulting to USB for anything unrecognized.
func ModeFromDigit(d byte) string {
	switch d {
	case '1':
		return ModeLSB
	case '2':
		return ModeUSB
	case '3':
		return ModeCW
	case '4':
		return ModeFM
	case '5':
		return ModeAM
	default:
		return ModeUSB
	}
}

// DigitFromMode is the inverse of ModeFromDigit, used by the control server
// to encode the MD<digit>; command for a requested mode name. Unrecognized
// names map to USB.
func DigitFromMode(mode string) byte {
	switch mode {
	case ModeLSB:
		return '1'
	case ModeUSB:
		return '2'
	case ModeCW:
		return '3'
	case ModeFM:
		return '4'
	case ModeAM:
		return '5'
	default:
		return '2'
	}
}
