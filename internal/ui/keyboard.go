package ui

import (
	"os"

	"github.com/pkg/term/termios"
	"golang.org/x/sys/unix"
)

const escByte = 0x1B

// KeyWatcher puts stdin into raw mode and reports when ESC is pressed, the
// keyboard shutdown trigger.
type KeyWatcher struct {
	saved unix.Termios
}

// NewKeyWatcher switches stdin to raw mode: no echo, no canonical line
// buffering, one-byte reads.
func NewKeyWatcher() (*KeyWatcher, error) {
	var attrs unix.Termios
	if err := termios.Tcgetattr(os.Stdin.Fd(), &attrs); err != nil {
		return nil, err
	}
	saved := attrs

	raw := attrs
	raw.Lflag &^= unix.ECHO | unix.ICANON | unix.ISIG
	raw.Cc[unix.VMIN] = 1
	raw.Cc[unix.VTIME] = 0
	if err := termios.Tcsetattr(os.Stdin.Fd(), termios.TCSANOW, &raw); err != nil {
		return nil, err
	}

	return &KeyWatcher{saved: saved}, nil
}

// Restore puts stdin back into its original (cooked) mode.
func (k *KeyWatcher) Restore() {
	_ = termios.Tcsetattr(os.Stdin.Fd(), termios.TCSANOW, &k.saved)
}

// WatchForEscape blocks reading single bytes from stdin and closes done when
// ESC is seen. Meant to run on its own goroutine for the process lifetime.
func WatchForEscape(done chan<- struct{}) {
	buf := make([]byte, 1)
	for {
		n, err := os.Stdin.Read(buf)
		if err != nil {
			return
		}
		if n > 0 && buf[0] == escByte {
			close(done)
			return
		}
	}
}
