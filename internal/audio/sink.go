package audio

import (
	"bufio"
	"os/exec"
	"strings"

	log "github.com/sirupsen/logrus"
)

// SinkName and SinkDescription name the virtual null-sink this bridge
// publishes RX audio into and captures TX audio from. Sink lifecycle is
// managed by shelling out to pactl.
const (
	SinkName        = "TRUSDX"
	SinkDescription = "TRUSDX Audio"
	MonitorSuffix   = ".monitor"
)

// CleanupSink unloads any previously loaded audio module that mentions the
// sink name. Errors are logged, not returned: this is a best-effort
// teardown run both at startup and at shutdown.
func CleanupSink() {
	out, err := exec.Command("pactl", "list", "short", "modules").Output()
	if err != nil {
		log.Warnf("audio: pactl list modules: %v", err)
		return
	}

	scanner := bufio.NewScanner(strings.NewReader(string(out)))
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.Contains(line, SinkName) {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		moduleID := fields[0]
		if err := exec.Command("pactl", "unload-module", moduleID).Run(); err != nil {
			log.Warnf("audio: unload module %s: %v", moduleID, err)
		}
	}
}

// CreateSink (re)creates the TRUSDX null-sink and returns the loaded module
// id, or an error if pactl failed to create it.
func CreateSink() (string, error) {
	out, err := exec.Command("pactl",
		"load-module", "module-null-sink",
		"sink_name="+SinkName,
		`sink_properties=device.description="`+SinkDescription+`"`,
	).Output()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

// MonitorSourceName is the monitor source TX audio is captured from.
func MonitorSourceName() string { return SinkName + MonitorSuffix }
