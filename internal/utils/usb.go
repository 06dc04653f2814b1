package utils

import (
	"errors"
	"fmt"

	"github.com/AlecAivazis/survey/v2"
	"github.com/AlecAivazis/survey/v2/terminal"
	"github.com/okinaau/iloader/internal/device"
)

// ErrInterrupted is returned when the user aborts a prompt with ctrl-c.
var ErrInterrupted = errors.New("prompt interrupted")

// PickDevice returns the device with udid, the only attached device, or the
// one the user picks.
func PickDevice(devices []device.Info, udid string) (device.Info, error) {
	if udid != "" {
		for _, d := range devices {
			if d.UniqueID == udid {
				return d, nil
			}
		}
		return device.Info{}, fmt.Errorf("%w: %s", device.ErrDeviceNotFound, udid)
	}

	switch len(devices) {
	case 0:
		return device.Info{}, fmt.Errorf("%w: no devices attached", device.ErrDeviceNotFound)
	case 1:
		return devices[0], nil
	}

	var choices []string
	for _, d := range devices {
		choices = append(choices, fmt.Sprintf("%s (%s, %s)", d.Name, d.UniqueID, d.ConnectionKind))
	}
	selected := 0
	prompt := &survey.Select{
		Message: "Select a device:",
		Options: choices,
	}
	if err := survey.AskOne(prompt, &selected); err != nil {
		if errors.Is(err, terminal.InterruptErr) {
			return device.Info{}, ErrInterrupted
		}
		return device.Info{}, err
	}
	return devices[selected], nil
}

// PromptPath asks for a file path, suggesting defaultName.
func PromptPath(message, defaultName string) (string, error) {
	var out string
	prompt := &survey.Input{
		Message: message,
		Default: defaultName,
	}
	if err := survey.AskOne(prompt, &out); err != nil {
		if errors.Is(err, terminal.InterruptErr) {
			return "", ErrInterrupted
		}
		return "", err
	}
	return out, nil
}
