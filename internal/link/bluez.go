package link

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// BluezDirectory lists paired devices through bluetoothctl
type BluezDirectory struct {
	// defaults to bluetoothctl
	Command string
}

func (b BluezDirectory) command() string {
	if b.Command == "" {
		return "bluetoothctl"
	}
	return b.Command
}

func (b BluezDirectory) Bonded(ctx context.Context) ([]Device, error) {
	out, err := exec.CommandContext(ctx, b.command(), "devices", "Paired").Output()
	if err != nil {
		return nil, fmt.Errorf("Couldn't list paired devices:\n%w", err)
	}
	return parsePairedDevices(out), nil
}

// Lines look like "Device XX:XX:XX:XX:XX:XX DeviceName"
func parsePairedDevices(out []byte) []Device {
	var devices []Device
	s := bufio.NewScanner(bytes.NewReader(out))
	for s.Scan() {
		line := strings.TrimSpace(s.Text())
		if !strings.HasPrefix(line, "Device ") {
			continue
		}
		parts := strings.SplitN(strings.TrimPrefix(line, "Device "), " ", 2)
		d := Device{Address: parts[0]}
		if len(parts) == 2 {
			d.Name = strings.TrimSpace(parts[1])
		}
		devices = append(devices, d)
	}
	return devices
}

// BluezRadio reports the default controller's power state via bluetoothctl
type BluezRadio struct {
	Command string
}

func (b BluezRadio) Enabled(ctx context.Context) (bool, error) {
	cmd := b.Command
	if cmd == "" {
		cmd = "bluetoothctl"
	}
	out, err := exec.CommandContext(ctx, cmd, "show").Output()
	if err != nil {
		return false, fmt.Errorf("Couldn't query controller:\n%w", err)
	}
	return parsePowered(out), nil
}

func parsePowered(out []byte) bool {
	s := bufio.NewScanner(bytes.NewReader(out))
	for s.Scan() {
		k, v, ok := strings.Cut(strings.TrimSpace(s.Text()), ":")
		if ok && k == "Powered" {
			return strings.TrimSpace(v) == "yes"
		}
	}
	return false
}
