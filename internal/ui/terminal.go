// Package ui implements the terminal level-meter surface and the ESC-key
// shutdown hook. This package only ever reads Shared state; it never
// mutates radio or audio state directly.
package ui

import (
	"fmt"
	"os"
	"strings"

	"github.com/hamradio-go/trusdx-bridge/internal/radio"
	"github.com/hamradio-go/trusdx-bridge/internal/state"
)

const meterWidth = 50

// bar renders a level in [0,1] as a "[####----]" style bar, clamped.
func bar(level float32) string {
	if level < 0 {
		level = 0
	}
	if level > 1 {
		level = 1
	}
	filled := int(level * float32(meterWidth))
	return "[" + strings.Repeat("#", filled) + strings.Repeat("-", meterWidth-filled) + "]"
}

// ClearScreen resets the terminal and homes the cursor, printed once before
// the first render.
func ClearScreen() {
	fmt.Fprint(os.Stdout, "\x1B[2J\x1B[H\n\n\n\n")
}

// RenderLevels redraws the four status lines: input bar, output bar,
// mode/freq/state/RTS line, and a help line.
func RenderLevels(shared *state.Shared, sig *radio.LineSignals) {
	freqMHz := float64(shared.FreqHz()) / 1_000_000.0
	rts := "L"
	if sig.RTS() {
		rts = "H"
	}
	txState := "RX"
	if shared.TX() {
		txState = "TX"
	}

	fmt.Fprint(os.Stdout, "\x1B[4F")
	fmt.Fprint(os.Stdout, "\x1B[2K\r")
	fmt.Fprintf(os.Stdout, "INPUT  %s %5.1f%%\n", bar(shared.InputLevel()), shared.InputLevel()*100)
	fmt.Fprint(os.Stdout, "\x1B[2K\r")
	fmt.Fprintf(os.Stdout, "OUTPUT %s %5.1f%%\n", bar(shared.OutputLevel()), shared.OutputLevel()*100)
	fmt.Fprint(os.Stdout, "\x1B[2K\r")
	fmt.Fprintf(os.Stdout, "MODE: %s FREQ: %.5f MHz STATE: %s RTS:%s\n", shared.Mode(), freqMHz, txState, rts)
	fmt.Fprint(os.Stdout, "\x1B[2K\r")
	fmt.Fprintln(os.Stdout, "Press ESC to exit")
}
