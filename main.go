package main

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/pflag"

	"github.com/hamradio-go/trusdx-bridge/internal/audio"
	"github.com/hamradio-go/trusdx-bridge/internal/bridge"
	"github.com/hamradio-go/trusdx-bridge/internal/catqueue"
	"github.com/hamradio-go/trusdx-bridge/internal/radio"
	"github.com/hamradio-go/trusdx-bridge/internal/rigctl"
	"github.com/hamradio-go/trusdx-bridge/internal/state"
	"github.com/hamradio-go/trusdx-bridge/internal/ui"
)

// streamingPollCycles and streamingPollPeriod bound the bootstrap
// streaming-confirmation retry: up to 3 cycles of 250ms, resending
// enable_streaming_speaker_off between cycles if still false.
const (
	streamingPollCycles = 3
	streamingPollPeriod = 250 * time.Millisecond

	vfoPollPeriod       = 2 * time.Second
	vfoPollMinSinceTXRX = 500 * time.Millisecond
	uiRenderPeriod      = 10 * time.Millisecond
)

func defaultLogLevel() string {
	levelText, ok := os.LookupEnv("TRUSDX_LOG_LEVEL")
	if !ok {
		levelText = "info"
	}
	return levelText
}

func setLogLevel(levelText string) {
	level, err := log.ParseLevel(levelText)
	if err != nil {
		level = log.InfoLevel
	}
	log.SetLevel(level)
}

func primeStreaming(link *radio.Link, shared *state.Shared) {
	for i := 0; i < streamingPollCycles; i++ {
		if shared.StreamingStarted() {
			return
		}
		if i > 0 {
			if err := link.EnableStreamingSpeakerOff(); err != nil {
				log.Warnf("bootstrap: enable streaming: %v", err)
			}
		}
		time.Sleep(streamingPollPeriod)
	}
	if !shared.StreamingStarted() {
		log.Warn("bootstrap: streaming not confirmed after retry; continuing anyway")
	}
}

func main() {
	device := pflag.String("device", "", "serial device path (autodetected by CH340 vendor/product id if empty)")
	controlAddr := pflag.String("control-addr", rigctl.DefaultAddr, "rigctl-compatible control server bind address")
	logLevel := pflag.String("log-level", defaultLogLevel(), "log level (panic, fatal, error, warn, info, debug, trace)")
	noUI := pflag.Bool("no-ui", false, "disable the terminal level meter")
	pflag.Parse()

	setLogLevel(*logLevel)

	audio.CleanupSink()
	if _, err := audio.CreateSink(); err != nil {
		log.Fatalf("bootstrap: create virtual sink: %v", err)
	}

	link, err := radio.Open(*device)
	if err != nil {
		log.Fatalf("bootstrap: open radio link: %v", err)
	}

	if err := link.SetRTS(false); err != nil {
		log.Warnf("bootstrap: set RTS low: %v", err)
	}
	if err := link.SetDTR(true); err != nil {
		log.Warnf("bootstrap: set DTR high: %v", err)
	}

	shared := state.New()
	queue := catqueue.New()

	if err := link.EnableStreamingSpeakerOff(); err != nil {
		log.Warnf("bootstrap: enable streaming: %v", err)
	}
	if err := link.SetMode('2'); err != nil {
		log.Warnf("bootstrap: set mode USB: %v", err)
	}
	primeStreaming(link, shared)

	handles, err := audio.Open()
	if err != nil {
		log.Fatalf("bootstrap: open audio handles: %v", err)
	}

	br := bridge.New(link, handles, shared, queue)
	go br.Run()

	server := rigctl.New(*controlAddr, shared, queue, link)
	go func() {
		if err := server.ListenAndServe(); err != nil && !shared.ShuttingDown() {
			log.Errorf("rigctl: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	escDone := make(chan struct{})
	var watcher *ui.KeyWatcher
	if !*noUI {
		watcher, err = ui.NewKeyWatcher()
		if err != nil {
			log.Warnf("bootstrap: terminal UI disabled: %v", err)
			*noUI = true
		} else {
			go ui.WatchForEscape(escDone)
			ui.ClearScreen()
		}
	}

	lastTXRXTransition := time.Now()
	lastTX := shared.TX()
	nextVFOPoll := time.Now().Add(vfoPollPeriod)
	nextUIRender := time.Now()

	for !shared.Stop() {
		select {
		case <-sigCh:
			shared.SetShuttingDown(true)
			shared.SetStop(true)
			continue
		case <-escDone:
			shared.SetShuttingDown(true)
			shared.SetStop(true)
			continue
		default:
		}

		now := time.Now()
		tx := shared.TX()
		if tx != lastTX {
			lastTXRXTransition = now
			lastTX = tx
		}

		if !shared.ShuttingDown() && now.After(nextVFOPoll) {
			if !tx && now.Sub(lastTXRXTransition) >= vfoPollMinSinceTXRX {
				queue.EnqueueString(radio.CmdFAQuery)
			}
			nextVFOPoll = now.Add(vfoPollPeriod)
		}

		if !*noUI && !shared.ShuttingDown() && now.After(nextUIRender) {
			ui.RenderLevels(shared, link.Signals())
			nextUIRender = now.Add(uiRenderPeriod)
		}

		time.Sleep(uiRenderPeriod)
	}

	// Give the bridge a loop iteration to observe stop before its streams go away.
	time.Sleep(50 * time.Millisecond)

	if watcher != nil {
		watcher.Restore()
	}
	if err := handles.Close(); err != nil {
		log.Warnf("shutdown: close audio handles: %v", err)
	}
	if err := server.Close(); err != nil {
		log.Warnf("shutdown: close control server: %v", err)
	}
	// UA2 muted the radio's local speaker for the whole session; hand it back.
	if err := link.EnableStreamingSpeakerOn(); err != nil {
		log.Warnf("shutdown: restore radio speaker: %v", err)
	}
	if err := link.Close(); err != nil {
		log.Warnf("shutdown: close radio link: %v", err)
	}
	audio.CleanupSink()
}
