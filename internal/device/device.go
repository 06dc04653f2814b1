// Package device enumerates attached devices and resolves them to live sessions.
package device

import (
	"fmt"

	"github.com/okinaau/iloader/internal/colors"
)

// UnknownDeviceName is used when a device does not answer its name query.
const UnknownDeviceName = "Unknown Device"

// Handle is what usbmuxd reports for an attached device. It is only valid
// for the enumeration pass that produced it.
type Handle struct {
	DeviceID       int
	UDID           string
	ConnectionType string
}

type ConnectionKind string

const (
	USB     ConnectionKind = "USB"
	Network ConnectionKind = "Network"
	Unknown ConnectionKind = "Unknown"
)

// Kind maps the usbmuxd connection type to a ConnectionKind.
func (h Handle) Kind() ConnectionKind {
	switch h.ConnectionType {
	case "USB":
		return USB
	case "Network":
		return Network
	default:
		return Unknown
	}
}

// Info identifies a device across enumeration passes by its UniqueID.
type Info struct {
	Name           string         `json:"name"`
	SessionID      int            `json:"sessionId"`
	UniqueID       string         `json:"uniqueId"`
	ConnectionKind ConnectionKind `json:"connectionKind"`
}

func (i Info) String() string {
	return fmt.Sprintf(
		colors.Name("%s")+" "+colors.Detail("(%s, %s)"),
		i.Name,
		i.UniqueID,
		i.ConnectionKind,
	)
}
