package audio

// Fixed sample rates; the bridge never resamples.
const (
	RXRateHz = 7812  // playback into the TRUSDX sink
	TXRateHz = 11520 // capture from the TRUSDX.monitor source
)

// FrameSamples is one TX audio frame: 48 samples of 16-bit signed PCM
// (96 bytes on the wire from the capture stream).
const FrameSamples = 48

// maxWaveFrame bounds one inbound RX audio frame before it is
// force-flushed, even without a ';' terminator.
const maxWaveFrame = 512

// BufferAttr carries the PulseAudio-style buffer-attribute tuning. The
// portaudio streams consume a latency target derived from TLength rather
// than the raw byte counts.
type BufferAttr struct {
	MaxLength uint32
	TLength   uint32
	PreBuf    uint32
	MinReq    uint32
	FragSize  uint32
}

// ComputeBufferAttr derives the buffer attributes for a given sample rate
// and per-sample byte size: ~20ms target fill, ~10ms prebuffer.
func ComputeBufferAttr(rateHz uint32, sampleSize uint32) BufferAttr {
	return BufferAttr{
		MaxLength: (rateHz / 4) * sampleSize,
		TLength:   (rateHz / 50) * sampleSize,
		PreBuf:    (rateHz / 100) * sampleSize,
		MinReq:    (rateHz / 200) * sampleSize,
		FragSize:  (rateHz / 100) * sampleSize,
	}
}
