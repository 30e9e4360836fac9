package bridge

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hamradio-go/trusdx-bridge/internal/catqueue"
	"github.com/hamradio-go/trusdx-bridge/internal/state"
)

// fakeSerial is an in-memory SerialPort used to drive the demux/transition
// logic without a real device.
type fakeSerial struct {
	inbound          []byte // bytes to hand back from Read, consumed in order
	sentCommandBatch [][]byte
	sentAudio        [][]byte
	enableCalls      int
}

func (f *fakeSerial) Read(buf []byte) (int, error) {
	if len(f.inbound) == 0 {
		return 0, nil
	}
	n := copy(buf, f.inbound)
	f.inbound = f.inbound[n:]
	return n, nil
}

func (f *fakeSerial) SendCommands(cmds [][]byte) error {
	f.sentCommandBatch = append(f.sentCommandBatch, cmds...)
	return nil
}

func (f *fakeSerial) SendAudioRaw(payload []byte) error {
	cp := make([]byte, len(payload))
	copy(cp, payload)
	f.sentAudio = append(f.sentAudio, cp)
	return nil
}

func (f *fakeSerial) EnableStreamingSpeakerOff() error {
	f.enableCalls++
	return nil
}

type fakeAudio struct {
	played      [][]float32
	captureFunc func() ([]int16, error)
	drainCalls  int
}

func (f *fakeAudio) WritePlayback(samples []float32) error {
	cp := make([]float32, len(samples))
	copy(cp, samples)
	f.played = append(f.played, cp)
	return nil
}

func (f *fakeAudio) ReadCapture() ([]int16, error) {
	if f.captureFunc != nil {
		return f.captureFunc()
	}
	return make([]int16, FrameSamples), nil
}

func (f *fakeAudio) DrainCapture(maxReads int) {
	f.drainCalls++
}

func newTestBridge(serial *fakeSerial, aud *fakeAudio) (*Bridge, *state.Shared, *catqueue.Queue) {
	st := state.New()
	q := catqueue.New()
	b := New(serial, aud, st, q)

	// A virtual clock keeps transition-timing tests instant and deterministic:
	// sleep advances the clock instead of blocking the test goroutine.
	clock := time.Unix(0, 0)
	b.sleep = func(d time.Duration) { clock = clock.Add(d) }
	b.now = func() time.Time { return clock }

	return b, st, q
}

func TestInboundFrequencyUpdate(t *testing.T) {
	serial := &fakeSerial{}
	aud := &fakeAudio{}
	b, st, _ := newTestBridge(serial, aud)

	b.demux([]byte("FA00014074000;"))

	require.Equal(t, uint64(14074000), st.FreqHz())
	require.Empty(t, aud.played)
}

func TestInboundAudioFrame(t *testing.T) {
	serial := &fakeSerial{}
	aud := &fakeAudio{}
	b, st, _ := newTestBridge(serial, aud)

	b.demux([]byte("US\x80\x80\x80\x80;"))

	require.Len(t, aud.played, 1)
	require.Equal(t, []float32{0, 0, 0, 0}, aud.played[0])
	require.Equal(t, float32(0), st.InputLevel())
	require.False(t, b.inboundAudio)
}

func TestInboundAudioThenCAT(t *testing.T) {
	serial := &fakeSerial{}
	aud := &fakeAudio{}
	b, st, _ := newTestBridge(serial, aud)

	b.demux([]byte("US\xC0\x40;MD1;"))

	require.Len(t, aud.played, 1)
	require.InDelta(t, float32(1.0), st.InputLevel(), 0.0001)
	require.Equal(t, state.ModeLSB, st.Mode())
}

func TestUSOnlyRecognizedAsExactTwoByteBuffer(t *testing.T) {
	serial := &fakeSerial{}
	aud := &fakeAudio{}
	b, st, _ := newTestBridge(serial, aud)

	// "U","S" arriving after unrelated text already sits in the text buffer
	// is NOT a stream marker; no Kenwood reply starts with "US". It is just
	// more text for the current CAT frame, and produces no stale state
	// update since "XUS" matches neither FA nor MD.
	b.demux([]byte("XUS;"))

	require.Empty(t, aud.played)
	require.False(t, b.inboundAudio)
	require.Equal(t, state.ModeUSB, st.Mode()) // unchanged from New()'s default
}

func TestUSAsFirstTwoBytesEntersAudioSubState(t *testing.T) {
	serial := &fakeSerial{}
	aud := &fakeAudio{}
	b, st, _ := newTestBridge(serial, aud)

	b.demux([]byte("US"))

	require.True(t, b.inboundAudio)
	require.True(t, st.StreamingStarted())
	require.Empty(t, b.textBuf)
}

func TestWaveBufFlushesAt512Bytes(t *testing.T) {
	serial := &fakeSerial{}
	aud := &fakeAudio{}
	b, _, _ := newTestBridge(serial, aud)

	data := append([]byte("US"), make([]byte, 600)...)
	for i := 2; i < len(data); i++ {
		data[i] = 0x80
	}
	b.demux(data)

	require.True(t, b.inboundAudio, "still mid-frame after a forced 512-byte flush")
	require.Len(t, aud.played, 1)
	require.Len(t, aud.played[0], 512)
	require.Len(t, b.waveBuf, 600-512)
}

func TestSetFrequencyThenDrainWritesFA(t *testing.T) {
	serial := &fakeSerial{}
	aud := &fakeAudio{}
	b, st, q := newTestBridge(serial, aud)

	st.SetFreqHz(7074000)
	q.EnqueueString("FA00007074000;")

	b.demux([]byte("MD2;")) // any completed CAT frame triggers a drain

	require.Contains(t, serial.sentCommandBatch, []byte("FA00007074000;"))
}

func TestTXFrameSilenceGated(t *testing.T) {
	serial := &fakeSerial{}
	aud := &fakeAudio{captureFunc: func() ([]int16, error) { return make([]int16, FrameSamples), nil }}
	b, st, _ := newTestBridge(serial, aud)
	st.SetTX(true)

	b.txIteration()

	require.Empty(t, serial.sentAudio)
	require.Equal(t, float32(0), st.OutputLevel())
}

func TestTXFrameAboveSilenceGateIsSentAndEscaped(t *testing.T) {
	serial := &fakeSerial{}
	loud := make([]int16, FrameSamples)
	for i := range loud {
		loud[i] = 20000
	}
	aud := &fakeAudio{captureFunc: func() ([]int16, error) { return loud, nil }}
	b, _, _ := newTestBridge(serial, aud)
	b.state.SetTX(true)

	b.txIteration()

	require.Len(t, serial.sentAudio, 1)
	for _, by := range serial.sentAudio[0] {
		require.NotEqual(t, byte(';'), by)
	}
}

func TestSemicolonEscapeInTXFrame(t *testing.T) {
	dst := make([]byte, 3)
	out := encodeTXFrame([]int16{0, 0, 0}, dst)
	// Force a synthetic pre-escape collision to exercise escaping directly.
	out[0] = ';'
	out[2] = ';'
	escapeSemicolon(out)
	require.Equal(t, []byte{0x3A, out[1], 0x3A}, out)
}

func TestRXToTXTransitionDrainsCapture(t *testing.T) {
	serial := &fakeSerial{}
	aud := &fakeAudio{}
	b, st, _ := newTestBridge(serial, aud)

	st.SetTX(true)
	b.step()

	require.Equal(t, 1, aud.drainCalls)
}

func TestTXToRXTransitionRequestsStreaming(t *testing.T) {
	serial := &fakeSerial{}
	aud := &fakeAudio{}
	b, st, _ := newTestBridge(serial, aud)

	b.prevTX = true
	st.SetTX(false)
	b.step()

	require.GreaterOrEqual(t, serial.enableCalls, 1)
	require.False(t, st.StreamingStarted())
}

func TestStreamingStartedClearedOnTXEntry(t *testing.T) {
	serial := &fakeSerial{}
	aud := &fakeAudio{}
	b, st, _ := newTestBridge(serial, aud)

	st.SetStreamingStarted(true)
	b.onTXEnter()

	require.False(t, st.StreamingStarted())
}
