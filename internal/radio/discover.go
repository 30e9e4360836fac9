package radio

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ch340Vendor and ch340Product identify the truSDX's CH340 USB-to-serial
// bridge.
const (
	ch340Vendor  = "1a86"
	ch340Product = "7523"
)

// FindDevice enumerates /dev/ttyUSB* devices and returns the path of the
// first one whose USB parent reports the CH340 vendor/product id. It
// returns an error if none match.
func FindDevice() (string, error) {
	entries, err := os.ReadDir("/dev")
	if err != nil {
		return "", fmt.Errorf("list /dev: %w", err)
	}

	var candidates []string
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), "ttyUSB") {
			candidates = append(candidates, e.Name())
		}
	}
	sort.Strings(candidates)

	for _, name := range candidates {
		if matchesCH340(name) {
			return filepath.Join("/dev", name), nil
		}
	}
	return "", fmt.Errorf("no CH340 (%s:%s) device found among %v", ch340Vendor, ch340Product, candidates)
}

// matchesCH340 follows /sys/class/tty/<name>/device to its USB parent and
// compares idVendor/idProduct.
func matchesCH340(name string) bool {
	devLink := filepath.Join("/sys/class/tty", name, "device")
	devReal, err := filepath.EvalSymlinks(devLink)
	if err != nil {
		return false
	}
	usbDevice := filepath.Dir(filepath.Dir(devReal))

	vid, err := readIDFile(filepath.Join(usbDevice, "idVendor"))
	if err != nil {
		return false
	}
	pid, err := readIDFile(filepath.Join(usbDevice, "idProduct"))
	if err != nil {
		return false
	}
	return vid == ch340Vendor && pid == ch340Product
}

func readIDFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.ToLower(strings.TrimSpace(string(data))), nil
}
