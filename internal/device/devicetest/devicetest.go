// Package devicetest provides an in-memory device.Transport for tests.
package devicetest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"sync"

	"github.com/okinaau/iloader/internal/device"
	"github.com/okinaau/iloader/pkg/usb"
	"github.com/okinaau/iloader/pkg/usb/installation"
	"github.com/okinaau/iloader/pkg/usb/lockdownd"
)

// Device is one simulated attached device.
type Device struct {
	Handle device.Handle
	// Values answers lockdown queries in the default domain.
	Values map[string]any
	// LockdownErr fails every lockdown connection.
	LockdownErr error
	// BeforeLockdown runs before each lockdown connection is handed out and
	// may block. A non-nil error fails the connection.
	BeforeLockdown func(ctx context.Context) error
	// Record is the pair record on file, nil when the device was never paired.
	Record *usb.PairRecord
	// Apps is what the installation proxy browse returns.
	Apps []map[string]any
	// InstallErr fails every Install.
	InstallErr error
	// OnInstall runs after a successful Install with the package path.
	OnInstall func(d *Device, packagePath string)

	mu        sync.Mutex
	settings  map[string]any
	sessions  []*usb.PairRecord
	installed []string
	sandboxes map[string]*Sandbox
	media     *Sandbox
}

// Setting returns a value written through lockdown, such as the wifi debugging flag.
func (d *Device) Setting(domain, key string) any {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.settings[domain+"/"+key]
}

// Sessions returns the pair records lockdown sessions were started with.
func (d *Device) Sessions() []*usb.PairRecord {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]*usb.PairRecord(nil), d.sessions...)
}

// Installed returns the package paths passed to Install.
func (d *Device) Installed() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.installed...)
}

// Sandbox returns the Documents container of bundleID, creating it if needed.
func (d *Device) Sandbox(bundleID string) *Sandbox {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.sandboxLocked(bundleID)
}

func (d *Device) sandboxLocked(bundleID string) *Sandbox {
	if d.sandboxes == nil {
		d.sandboxes = map[string]*Sandbox{}
	}
	sb, ok := d.sandboxes[bundleID]
	if !ok {
		sb = newSandbox()
		d.sandboxes[bundleID] = sb
	}
	return sb
}

// Media returns the AFC media partition.
func (d *Device) Media() *Sandbox {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.media == nil {
		d.media = newSandbox()
	}
	return d.media
}

// Transport is a device.Transport over simulated devices.
type Transport struct {
	// ConnectErr makes usbmuxd unreachable.
	ConnectErr error

	mu      sync.Mutex
	devices []*Device
	calls   int
}

func New(devices ...*Device) *Transport {
	return &Transport{devices: devices}
}

// Calls counts every connection attempt made through the transport.
func (t *Transport) Calls() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.calls
}

func (t *Transport) lookup(h device.Handle) (*Device, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.calls++
	for _, d := range t.devices {
		if d.Handle.UDID == h.UDID {
			return d, nil
		}
	}
	return nil, usb.ErrBadDevice
}

func (t *Transport) Connect(ctx context.Context) (device.Mux, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.calls++
	if t.ConnectErr != nil {
		return nil, t.ConnectErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &mux{devices: append([]*Device(nil), t.devices...)}, nil
}

func (t *Transport) Lockdown(ctx context.Context, h device.Handle) (device.Lockdown, error) {
	d, err := t.lookup(h)
	if err != nil {
		return nil, err
	}
	if d.BeforeLockdown != nil {
		if err := d.BeforeLockdown(ctx); err != nil {
			return nil, err
		}
	}
	if d.LockdownErr != nil {
		return nil, d.LockdownErr
	}
	return &lockdown{d: d}, nil
}

func (t *Transport) Installer(ctx context.Context, h device.Handle) (device.Installer, error) {
	d, err := t.lookup(h)
	if err != nil {
		return nil, err
	}
	return &installer{d: d}, nil
}

func (t *Transport) Sandbox(ctx context.Context, h device.Handle, bundleID string) (device.Sandbox, error) {
	d, err := t.lookup(h)
	if err != nil {
		return nil, err
	}
	return d.Sandbox(bundleID), nil
}

func (t *Transport) Files(ctx context.Context, h device.Handle) (device.Files, error) {
	d, err := t.lookup(h)
	if err != nil {
		return nil, err
	}
	return d.Media(), nil
}

type mux struct {
	devices []*Device
}

func (m *mux) Devices() ([]device.Handle, error) {
	handles := make([]device.Handle, 0, len(m.devices))
	for _, d := range m.devices {
		handles = append(handles, d.Handle)
	}
	return handles, nil
}

func (m *mux) PairRecord(udid string) (*usb.PairRecord, error) {
	for _, d := range m.devices {
		if d.Handle.UDID == udid && d.Record != nil {
			pr := *d.Record
			return &pr, nil
		}
	}
	return nil, fmt.Errorf("%w for %s", usb.ErrNoPairRecord, udid)
}

func (m *mux) Close() error { return nil }

type lockdown struct {
	d *Device
}

func (l *lockdown) value(key string) (string, error) {
	v, ok := l.d.Values[key]
	if !ok {
		return "", fmt.Errorf("failed to get value %s: MissingValue", key)
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("value %s is %T, not a string", key, v)
	}
	return s, nil
}

func (l *lockdown) DeviceName() (string, error)     { return l.value("DeviceName") }
func (l *lockdown) UniqueDeviceID() (string, error) { return l.value("UniqueDeviceID") }
func (l *lockdown) ProductVersion() (string, error) { return l.value("ProductVersion") }

func (l *lockdown) SetWifiDebugging(on bool) error {
	l.d.mu.Lock()
	defer l.d.mu.Unlock()
	if l.d.settings == nil {
		l.d.settings = map[string]any{}
	}
	l.d.settings[lockdownd.WirelessLockdownDomain+"/EnableWifiDebugging"] = on
	return nil
}

func (l *lockdown) StartSession(pr *usb.PairRecord) error {
	if pr == nil {
		return errors.New("no pair record")
	}
	if l.d.Record == nil || pr.HostID != l.d.Record.HostID {
		return errors.New("failed to start lockdown session: InvalidHostID")
	}
	l.d.mu.Lock()
	l.d.sessions = append(l.d.sessions, pr)
	l.d.mu.Unlock()
	return nil
}

func (l *lockdown) Close() error { return nil }

type installer struct {
	d *Device
}

func (i *installer) Browse(appType string, attrs ...string) ([]map[string]any, error) {
	i.d.mu.Lock()
	defer i.d.mu.Unlock()
	return append([]map[string]any(nil), i.d.Apps...), nil
}

func (i *installer) Install(packagePath string, progress installation.ProgressFunc) error {
	if i.d.InstallErr != nil {
		return i.d.InstallErr
	}
	if progress != nil {
		progress(&installation.ProgressEvent{Status: "InstallingApplication", PercentComplete: 50})
		progress(&installation.ProgressEvent{Status: "Complete", PercentComplete: 100})
	}
	i.d.mu.Lock()
	i.d.installed = append(i.d.installed, packagePath)
	i.d.mu.Unlock()
	if i.d.OnInstall != nil {
		i.d.OnInstall(i.d, packagePath)
	}
	return nil
}

func (i *installer) Close() error { return nil }

// Sandbox is an in-memory AFC tree.
type Sandbox struct {
	mu    sync.Mutex
	dirs  map[string]bool
	files map[string][]byte
}

func newSandbox() *Sandbox {
	return &Sandbox{
		dirs:  map[string]bool{"/": true},
		files: map[string][]byte{},
	}
}

func (s *Sandbox) MakeDirAll(dir string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for p := path.Clean("/" + dir); p != "/"; p = path.Dir(p) {
		s.dirs[p] = true
	}
	return nil
}

func (s *Sandbox) WriteFile(name string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.dirs[path.Dir(name)] {
		return fmt.Errorf("failed to open %s: object not found", name)
	}
	s.files[name] = append([]byte(nil), data...)
	return nil
}

func (s *Sandbox) CopyFileToDevice(dst, src string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return s.WriteFile(dst, data)
}

// File returns the content of name and whether it exists.
func (s *Sandbox) File(name string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.files[name]
	return data, ok
}

func (s *Sandbox) Close() error { return nil }
