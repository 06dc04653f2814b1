package device

import (
	"context"

	"github.com/okinaau/iloader/pkg/usb"
	"github.com/okinaau/iloader/pkg/usb/installation"
)

// Transport opens connections to usbmuxd and to services on attached devices.
type Transport interface {
	Connect(ctx context.Context) (Mux, error)
	Lockdown(ctx context.Context, h Handle) (Lockdown, error)
	Installer(ctx context.Context, h Handle) (Installer, error)
	Sandbox(ctx context.Context, h Handle, bundleID string) (Sandbox, error)
	Files(ctx context.Context, h Handle) (Files, error)
}

// Mux is a connection to usbmuxd.
type Mux interface {
	Devices() ([]Handle, error)
	PairRecord(udid string) (*usb.PairRecord, error)
	Close() error
}

// Lockdown is the device's lockdown service.
type Lockdown interface {
	DeviceName() (string, error)
	UniqueDeviceID() (string, error)
	ProductVersion() (string, error)
	StartSession(pr *usb.PairRecord) error
	SetWifiDebugging(on bool) error
	Close() error
}

type Installer interface {
	Browse(appType string, attrs ...string) ([]map[string]any, error)
	Install(packagePath string, progress installation.ProgressFunc) error
	Close() error
}

// Sandbox is the Documents container of one app.
type Sandbox interface {
	MakeDirAll(dir string) error
	WriteFile(name string, data []byte) error
	Close() error
}

// Files is the media partition reachable over AFC.
type Files interface {
	MakeDirAll(dir string) error
	CopyFileToDevice(dst, src string) error
	Close() error
}
