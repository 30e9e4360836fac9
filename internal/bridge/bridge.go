package bridge

import (
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/hamradio-go/trusdx-bridge/internal/catqueue"
	"github.com/hamradio-go/trusdx-bridge/internal/state"
)

// SerialPort is the subset of *radio.Link the bridge needs. Satisfied
// structurally by *radio.Link; declared here so tests can supply a fake.
type SerialPort interface {
	Read(buf []byte) (int, error)
	SendCommands(cmds [][]byte) error
	SendAudioRaw(payload []byte) error
	EnableStreamingSpeakerOff() error
}

// AudioIO is the subset of *audio.Handles the bridge needs.
type AudioIO interface {
	WritePlayback(samples []float32) error
	ReadCapture() ([]int16, error)
	DrainCapture(maxReads int)
}

// rxReadSize is the per-iteration serial read cap in the RX branch.
const rxReadSize = 512

// TX/RX transition timing.
const (
	txFallingDelay      = 30 * time.Millisecond
	streamingFirstWait  = 200 * time.Millisecond
	streamingPollPeriod = 5 * time.Millisecond
	streamingSecondWait = 100 * time.Millisecond
	txRisingDrainReads  = 10
)

// Bridge is the audio bridge state machine: the sole reader of the serial
// port and the sole writer to it during steady-state operation.
type Bridge struct {
	link  SerialPort
	audio AudioIO
	state *state.Shared
	queue *catqueue.Queue

	textBuf      []byte
	waveBuf      []byte
	inboundAudio bool
	prevTX       bool

	txScratch []byte // 48-byte scratch for the encoded TX frame
	rxScratch []byte // rxReadSize-byte scratch for serial reads

	// sleep is overridable so tests don't pay the real transition delays.
	sleep func(time.Duration)
	now   func() time.Time
}

// New constructs a Bridge over the given link, audio handles, shared state
// and CAT queue.
func New(link SerialPort, audioIO AudioIO, shared *state.Shared, queue *catqueue.Queue) *Bridge {
	return &Bridge{
		link:      link,
		audio:     audioIO,
		state:     shared,
		queue:     queue,
		textBuf:   make([]byte, 0, 64),
		waveBuf:   make([]byte, 0, maxWaveFrame),
		txScratch: make([]byte, FrameSamples),
		rxScratch: make([]byte, rxReadSize),
		sleep:     time.Sleep,
		now:       time.Now,
	}
}

// Run executes the top-level loop until Stop is observed. It is meant to
// be called on its own goroutine.
func (b *Bridge) Run() {
	for !b.state.Stop() {
		b.step()
	}
}

// step runs one iteration of the top-level loop. Tests call it directly to
// single-step the state machine.
func (b *Bridge) step() {
	isTX := b.state.TX()
	startingTX := isTX && !b.prevTX
	startingRX := !isTX && b.prevTX

	if startingTX {
		b.onTXEnter()
	}
	if startingRX {
		b.onRXEnter()
	}
	b.prevTX = isTX

	if isTX {
		b.txIteration()
	} else {
		b.rxIteration()
	}
}

// onTXEnter drains stale capture audio so the first transmitted frame isn't
// pre-keying silence already buffered by the virtual sink, and clears the
// streaming-started flag, which holds only between an observed "US...;"
// frame and the next TX entry.
func (b *Bridge) onTXEnter() {
	b.audio.DrainCapture(txRisingDrainReads)
	b.state.SetStreamingStarted(false)
}

// onRXEnter runs the TX→RX transition: clear sub-state, wait for the
// radio to settle, ask it to resume streaming, and retry once if it
// doesn't announce streaming within the first window.
func (b *Bridge) onRXEnter() {
	b.inboundAudio = false
	b.waveBuf = b.waveBuf[:0]
	b.textBuf = b.textBuf[:0]
	b.state.SetStreamingStarted(false)

	b.sleep(txFallingDelay)
	if err := b.link.EnableStreamingSpeakerOff(); err != nil {
		log.Debugf("bridge: enable streaming: %v", err)
	}

	if b.waitForStreaming(streamingFirstWait) {
		return
	}

	if err := b.link.EnableStreamingSpeakerOff(); err != nil {
		log.Debugf("bridge: resend enable streaming: %v", err)
	}
	if !b.waitForStreaming(streamingSecondWait) {
		log.Debugf("bridge: streaming not confirmed; leaving to periodic poll")
	}
}

func (b *Bridge) waitForStreaming(timeout time.Duration) bool {
	deadline := b.now().Add(timeout)
	for !b.state.StreamingStarted() && b.now().Before(deadline) {
		b.sleep(streamingPollPeriod)
	}
	return b.state.StreamingStarted()
}

// txIteration is one iteration of the TX branch: one captured audio frame
// becomes at most one raw serial write.
func (b *Bridge) txIteration() {
	if !b.queue.Empty() {
		b.drainCAT()
	}

	b.state.SetInputLevel(0)

	samples, err := b.audio.ReadCapture()
	if err != nil {
		return
	}

	rms := RMS(samples)
	b.state.SetOutputLevel(rms)
	if belowSilenceGate(rms) {
		return
	}

	frame := encodeTXFrame(samples, b.txScratch)
	if err := b.link.SendAudioRaw(frame); err != nil {
		log.Debugf("bridge: send TX audio: %v", err)
	}
}

// rxIteration is one iteration of the RX branch.
func (b *Bridge) rxIteration() {
	b.state.SetOutputLevel(0)

	n, err := b.link.Read(b.rxScratch)
	if err != nil || n == 0 {
		return
	}

	b.demux(b.rxScratch[:n])
}

// demux dispatches each received byte to the audio or text sub-state.
func (b *Bridge) demux(data []byte) {
	for _, c := range data {
		if b.inboundAudio {
			b.handleAudioByte(c)
			continue
		}
		b.handleTextByte(c)
	}
}

func (b *Bridge) handleAudioByte(c byte) {
	if c == ';' {
		b.flushWave()
		b.inboundAudio = false
		b.drainCAT()
		return
	}
	b.waveBuf = append(b.waveBuf, c)
	if len(b.waveBuf) >= maxWaveFrame {
		b.flushWave()
	}
}

func (b *Bridge) handleTextByte(c byte) {
	b.textBuf = append(b.textBuf, c)

	if len(b.textBuf) == 2 && b.textBuf[0] == 'U' && b.textBuf[1] == 'S' {
		b.textBuf = b.textBuf[:0]
		b.inboundAudio = true
		b.state.SetStreamingStarted(true)
		return
	}

	if c == ';' {
		b.parseCATFrame(b.textBuf)
		b.textBuf = b.textBuf[:0]
		b.drainCAT()
	}
}

// parseCATFrame updates shared state from a completed, ';'-terminated CAT
// text frame (the ';' itself is included at the end of text).
func (b *Bridge) parseCATFrame(text []byte) {
	log.Debugf("[CAT <- Rig]: %s", text)
	body := text
	if len(body) > 0 && body[len(body)-1] == ';' {
		body = body[:len(body)-1]
	}
	switch {
	case isFACommand(body):
		if hz, ok := parseFA(body); ok {
			b.state.SetFreqHz(hz)
		}
	case isMDCommand(body):
		b.state.SetMode(state.ModeFromDigit(parseMDDigit(body)))
	}
}

// flushWave converts the accumulated wave buffer to float samples, updates
// the input level meter and writes the block to the playback stream, then
// clears the buffer.
func (b *Bridge) flushWave() {
	if len(b.waveBuf) == 0 {
		return
	}
	b.state.SetInputLevel(peakInputLevel(b.waveBuf))
	samples := decodeWaveFrame(b.waveBuf)
	if err := b.audio.WritePlayback(samples); err != nil {
		log.Debugf("bridge: write playback: %v", err)
	}
	b.waveBuf = b.waveBuf[:0]
}

// drainCAT swaps the CAT queue's pending commands out and writes them under
// one serial-lock hold. It runs only at the three points where an outbound
// write cannot race an incoming audio payload: at the start of each TX
// iteration, after a completed CAT text frame, and after an RX audio frame
// flush.
func (b *Bridge) drainCAT() {
	cmds := b.queue.Drain()
	if cmds == nil {
		return
	}
	if err := b.link.SendCommands(cmds); err != nil {
		log.Debugf("bridge: drain CAT queue: %v", err)
	}
}
