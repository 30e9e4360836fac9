package rigctl

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hamradio-go/trusdx-bridge/internal/catqueue"
	"github.com/hamradio-go/trusdx-bridge/internal/state"
)

type fakeRadio struct {
	txStarted   int
	streamCalls int
}

func (f *fakeRadio) StartTransmitBaseband() error     { f.txStarted++; return nil }
func (f *fakeRadio) EnableStreamingSpeakerOff() error { f.streamCalls++; return nil }

func newTestServer() (*Server, *state.Shared, *catqueue.Queue, *fakeRadio) {
	st := state.New()
	q := catqueue.New()
	r := &fakeRadio{}
	return New("", st, q, r), st, q, r
}

func TestSetFrequencyEnqueuesFAAndUpdatesState(t *testing.T) {
	s, st, q, _ := newTestServer()

	reply, quit := s.dispatch("F 7074000")

	require.Equal(t, "RPRT 0\n", reply)
	require.False(t, quit)
	require.Equal(t, uint64(7074000), st.FreqHz())

	drained := q.Drain()
	require.Equal(t, [][]byte{[]byte("FA00007074000;")}, drained)
}

func TestGetFreqAfterSet(t *testing.T) {
	s, _, _, _ := newTestServer()
	s.dispatch("F 14074000")
	reply, _ := s.dispatch("f")
	require.Equal(t, "14074000\n", reply)
}

func TestSetFreqInvalidReturnsErrorCode(t *testing.T) {
	s, _, _, _ := newTestServer()
	reply, _ := s.dispatch("F notanumber")
	require.Equal(t, "RPRT -1\n", reply)
}

func TestSetFreqAcceptsFloatRounded(t *testing.T) {
	s, st, _, _ := newTestServer()
	reply, _ := s.dispatch("F 14074000.6")
	require.Equal(t, "RPRT 0\n", reply)
	require.Equal(t, uint64(14074001), st.FreqHz())
}

func TestTXToggleOnThenGet(t *testing.T) {
	s, st, _, radio := newTestServer()

	reply, _ := s.dispatch("T 1")
	require.Equal(t, "RPRT 0\n", reply)
	require.True(t, st.TX())
	require.Equal(t, 1, radio.txStarted)

	reply, _ = s.dispatch("t")
	require.Equal(t, "1\n", reply)
}

func TestTXToggleOffThenGet(t *testing.T) {
	s, st, _, radio := newTestServer()
	st.SetTX(true)

	reply, _ := s.dispatch("T 0")
	require.Equal(t, "RPRT 0\n", reply)
	require.False(t, st.TX())
	require.Equal(t, 1, radio.streamCalls)

	reply, _ = s.dispatch("t")
	require.Equal(t, "0\n", reply)
}

func TestModeAndVFOQueries(t *testing.T) {
	s, _, _, _ := newTestServer()
	reply, _ := s.dispatch("m")
	require.Equal(t, "USB\n2400\n", reply)

	reply, _ = s.dispatch("v")
	require.Equal(t, "VFOA\n", reply)
}

func TestSetModeEnqueuesMDCommand(t *testing.T) {
	s, _, q, _ := newTestServer()

	reply, _ := s.dispatch("M LSB 2400")
	require.Equal(t, "RPRT 0\n", reply)
	require.Equal(t, [][]byte{[]byte("MD1;")}, q.Drain())

	reply, _ = s.dispatch("M CW 500")
	require.Equal(t, "RPRT 0\n", reply)
	require.Equal(t, [][]byte{[]byte("MD3;")}, q.Drain())
}

func TestSetModeUnknownOrMissingDefaultsToUSB(t *testing.T) {
	s, _, q, _ := newTestServer()

	reply, _ := s.dispatch("M PKTUSB 2400")
	require.Equal(t, "RPRT 0\n", reply)
	require.Equal(t, [][]byte{[]byte("MD2;")}, q.Drain())

	reply, _ = s.dispatch("M")
	require.Equal(t, "RPRT 0\n", reply)
	require.Equal(t, [][]byte{[]byte("MD2;")}, q.Drain())
}

func TestQuitClosesConnection(t *testing.T) {
	s, _, _, _ := newTestServer()
	reply, quit := s.dispatch("q")
	require.Equal(t, "RPRT 0\n", reply)
	require.True(t, quit)
}

func TestUnknownCommandDefaultsToRPRT0(t *testing.T) {
	s, _, _, _ := newTestServer()
	reply, quit := s.dispatch("Z")
	require.Equal(t, "RPRT 0\n", reply)
	require.False(t, quit)
}

func TestMetaCommands(t *testing.T) {
	s, _, _, _ := newTestServer()

	reply, _ := s.dispatch(`\chk_vfo`)
	require.Equal(t, "0\n", reply)

	reply, _ = s.dispatch(`\get_powerstat`)
	require.Equal(t, "1\n", reply)

	reply, _ = s.dispatch(`\dump_caps`)
	require.Equal(t, "RPRT 0\n", reply)

	reply, _ = s.dispatch(`\dump_state`)
	require.Equal(t, 19, len(splitLines(reply)))
}

func splitLines(s string) []string {
	var lines []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			lines = append(lines, s[start:i])
			start = i + 1
		}
	}
	return lines
}

func TestParseFreqAcceptsIntAndFloat(t *testing.T) {
	hz, ok := parseFreq("14074000")
	require.True(t, ok)
	require.Equal(t, uint64(14074000), hz)

	hz, ok = parseFreq("14074000.4")
	require.True(t, ok)
	require.Equal(t, uint64(14074000), hz)

	_, ok = parseFreq("nope")
	require.False(t, ok)
}
