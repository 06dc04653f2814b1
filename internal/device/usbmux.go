package device

import (
	"context"

	"github.com/okinaau/iloader/pkg/usb"
	"github.com/okinaau/iloader/pkg/usb/afc"
	"github.com/okinaau/iloader/pkg/usb/housearrest"
	"github.com/okinaau/iloader/pkg/usb/installation"
	"github.com/okinaau/iloader/pkg/usb/lockdownd"
)

// USBMux is the Transport backed by the local usbmuxd.
type USBMux struct{}

var _ Lockdown = (*lockdownd.Client)(nil)

type muxConn struct {
	conn *usb.Conn
}

func (USBMux) Connect(ctx context.Context) (Mux, error) {
	conn, err := usb.NewConnContext(ctx)
	if err != nil {
		return nil, err
	}
	return &muxConn{conn: conn}, nil
}

func (m *muxConn) Devices() ([]Handle, error) {
	devices, err := m.conn.ListDevices()
	if err != nil {
		return nil, err
	}
	handles := make([]Handle, 0, len(devices))
	for _, d := range devices {
		handles = append(handles, Handle{
			DeviceID:       d.DeviceID,
			UDID:           d.UDID,
			ConnectionType: d.ConnectionType,
		})
	}
	return handles, nil
}

func (m *muxConn) PairRecord(udid string) (*usb.PairRecord, error) {
	return m.conn.ReadPairRecord(udid)
}

func (m *muxConn) Close() error {
	return m.conn.Close()
}

func (USBMux) Lockdown(ctx context.Context, h Handle) (Lockdown, error) {
	lc, err := lockdownd.Dial(ctx, h.UDID)
	if err != nil {
		return nil, err
	}
	return lc, nil
}

func (USBMux) Installer(ctx context.Context, h Handle) (Installer, error) {
	ic, err := installation.NewClient(ctx, h.UDID)
	if err != nil {
		return nil, err
	}
	return ic, nil
}

func (USBMux) Sandbox(ctx context.Context, h Handle, bundleID string) (Sandbox, error) {
	ha, err := housearrest.NewClient(ctx, h.UDID)
	if err != nil {
		return nil, err
	}
	docs, err := ha.VendDocuments(bundleID)
	if err != nil {
		ha.Close()
		return nil, err
	}
	return docs, nil
}

func (USBMux) Files(ctx context.Context, h Handle) (Files, error) {
	fc, err := afc.NewClient(ctx, h.UDID)
	if err != nil {
		return nil, err
	}
	return fc, nil
}
