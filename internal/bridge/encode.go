// Package bridge implements the audio bridge state machine: it
// demultiplexes inbound serial bytes into CAT text and framed RX audio,
// encodes captured TX audio into the radio's raw byte stream, and drives
// the TX/RX transition protocol and the CAT drain discipline.
package bridge

import "math"

// FrameSamples is one TX audio frame: 48 samples of 16-bit signed PCM.
const FrameSamples = 48

// maxWaveFrame bounds one inbound RX audio frame; at 512 payload bytes the
// frame is force-flushed even without a ';' terminator.
const maxWaveFrame = 512

// EncodeSample converts one 16-bit signed PCM sample to the radio's 8-bit
// offset-binary encoding: byte = clamp(128 + s/256, 0, 255).
func EncodeSample(s int16) byte {
	v := 128 + int(s)/256
	if v < 0 {
		v = 0
	}
	if v > 255 {
		v = 255
	}
	return byte(v)
}

// DecodeSample converts one 8-bit offset-binary byte from the radio back to
// a float sample in [-1, 1): (b - 128) / 128.
func DecodeSample(b byte) float32 {
	return (float32(b) - 128) / 128
}

// escapeSemicolon replaces 0x3B (';') with 0x3A (':') so an encoded audio
// byte can never be mistaken for a CAT frame terminator. It mutates buf in
// place.
func escapeSemicolon(buf []byte) {
	for i, b := range buf {
		if b == ';' {
			buf[i] = ':'
		}
	}
}

// RMS computes the root-mean-square amplitude of a frame of 16-bit signed
// samples, normalized to [0,1] and clamped to 1.0.
func RMS(samples []int16) float32 {
	if len(samples) == 0 {
		return 0
	}
	var sumSq float64
	for _, s := range samples {
		f := float64(s) / 32768.0
		sumSq += f * f
	}
	rms := math.Sqrt(sumSq / float64(len(samples)))
	if rms > 1.0 {
		rms = 1.0
	}
	return float32(rms)
}

// silenceGateThreshold is the RMS below which a TX frame is not
// transmitted. A frame at exactly 0.05 still goes out.
const silenceGateThreshold = 0.05

// belowSilenceGate reports whether rms should suppress transmission this
// frame: strictly less than the threshold.
func belowSilenceGate(rms float32) bool {
	return rms < silenceGateThreshold
}

// peakInputLevel computes the input-level meter value for a flushed RX
// audio frame: 2.1x the peak absolute sample value, clamped to 1.0. The
// 2.1 factor compensates for the headroom lost to the 8-bit offset
// encoding.
func peakInputLevel(waveBuf []byte) float32 {
	var peak float32
	for _, b := range waveBuf {
		f := DecodeSample(b)
		if f < 0 {
			f = -f
		}
		if f > peak {
			peak = f
		}
	}
	level := peak * 2.1
	if level > 1.0 {
		level = 1.0
	}
	return level
}

// decodeWaveFrame converts a raw inbound audio payload to float32 samples
// for the playback stream.
func decodeWaveFrame(waveBuf []byte) []float32 {
	out := make([]float32, len(waveBuf))
	for i, b := range waveBuf {
		out[i] = DecodeSample(b)
	}
	return out
}

// encodeTXFrame encodes 16-bit signed samples into the radio's escaped
// 8-bit offset-binary TX payload, writing into dst (which must be at least
// len(samples) long) and returning the escaped slice.
func encodeTXFrame(samples []int16, dst []byte) []byte {
	for i, s := range samples {
		dst[i] = EncodeSample(s)
	}
	out := dst[:len(samples)]
	escapeSemicolon(out)
	return out
}
