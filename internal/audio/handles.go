// Package audio owns the two portaudio streams into the virtual TRUSDX
// sink and the null-sink's lifecycle.
package audio

import (
	"fmt"
	"time"

	"github.com/gordonklaus/portaudio"
	log "github.com/sirupsen/logrus"
)

// Handles is the open playback (RX) and record (TX) portaudio streams.
type Handles struct {
	playback *portaudio.Stream
	record   *portaudio.Stream

	playbackBuf []float32 // reslice to len(n) before each partial Write
	recordBuf   []int16   // always FrameSamples long
}

// Open initializes portaudio, locates the TRUSDX sink/monitor devices by
// name and opens the playback and record streams at the fixed bridge
// rates. Call Close when done.
func Open() (*Handles, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("portaudio init: %w", err)
	}

	devices, err := portaudio.Devices()
	if err != nil {
		portaudio.Terminate()
		return nil, fmt.Errorf("list audio devices: %w", err)
	}

	sinkDev, err := findDevice(devices, SinkName)
	if err != nil {
		portaudio.Terminate()
		return nil, err
	}
	monitorDev, err := findDevice(devices, MonitorSourceName())
	if err != nil {
		portaudio.Terminate()
		return nil, err
	}

	rxAttr := ComputeBufferAttr(RXRateHz, 4)
	txAttr := ComputeBufferAttr(TXRateHz, 2)

	h := &Handles{
		playbackBuf: make([]float32, maxWaveFrame),
		recordBuf:   make([]int16, FrameSamples),
	}

	outParams := portaudio.LowLatencyParameters(nil, sinkDev)
	outParams.Output.Channels = 1
	outParams.SampleRate = float64(RXRateHz)
	outParams.Output.Latency = fillLatency(rxAttr, 4, RXRateHz)
	h.playback, err = portaudio.OpenStream(outParams, &h.playbackBuf)
	if err != nil {
		portaudio.Terminate()
		return nil, fmt.Errorf("open playback stream: %w", err)
	}

	inParams := portaudio.LowLatencyParameters(monitorDev, nil)
	inParams.Input.Channels = 1
	inParams.SampleRate = float64(TXRateHz)
	inParams.Input.Latency = fillLatency(txAttr, 2, TXRateHz)
	h.record, err = portaudio.OpenStream(inParams, &h.recordBuf)
	if err != nil {
		h.playback.Close()
		portaudio.Terminate()
		return nil, fmt.Errorf("open record stream: %w", err)
	}

	if err := h.playback.Start(); err != nil {
		h.Close()
		return nil, fmt.Errorf("start playback stream: %w", err)
	}
	if err := h.record.Start(); err != nil {
		h.Close()
		return nil, fmt.Errorf("start record stream: %w", err)
	}

	log.Infof("audio: playback %s @ %dHz, record %s @ %dHz", SinkName, RXRateHz, MonitorSourceName(), TXRateHz)
	return h, nil
}

// fillLatency converts the tlength byte count of the buffer-attribute
// formula into a time.Duration target fill; rate/50 samples is always 20ms
// regardless of rate.
func fillLatency(attr BufferAttr, sampleSize uint32, rateHz uint32) time.Duration {
	samples := attr.TLength / sampleSize
	seconds := float64(samples) / float64(rateHz)
	return time.Duration(seconds * float64(time.Second))
}

func findDevice(devices []*portaudio.DeviceInfo, name string) (*portaudio.DeviceInfo, error) {
	for _, d := range devices {
		if d.Name == name {
			return d, nil
		}
	}
	return nil, fmt.Errorf("audio device %q not found", name)
}

// WritePlayback writes the given float32 samples (already decoded from the
// radio's 8-bit offset-binary encoding) to the RX sink. len(samples) must
// not exceed maxWaveFrame.
func (h *Handles) WritePlayback(samples []float32) error {
	full := h.playbackBuf[:cap(h.playbackBuf)]
	n := copy(full, samples)
	h.playbackBuf = full[:n]
	return h.playback.Write()
}

// ReadCapture reads exactly one TX audio frame (FrameSamples 16-bit signed
// samples) from the monitor source.
func (h *Handles) ReadCapture() ([]int16, error) {
	if err := h.record.Read(); err != nil {
		return nil, err
	}
	return h.recordBuf, nil
}

// DrainCapture discards up to maxReads buffers already queued by the
// capture stream, stopping at the first read that returns nothing. Run on
// TX entry so the first transmitted frame isn't stale pre-keying audio.
func (h *Handles) DrainCapture(maxReads int) {
	for i := 0; i < maxReads; i++ {
		avail, err := h.record.AvailableToRead()
		if err != nil || avail <= 0 {
			return
		}
		if err := h.record.Read(); err != nil {
			return
		}
	}
}

// Close stops and closes both streams and terminates portaudio.
func (h *Handles) Close() error {
	var firstErr error
	if h.playback != nil {
		if err := h.playback.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if h.record != nil {
		if err := h.record.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if err := portaudio.Terminate(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
