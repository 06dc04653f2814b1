package device

import (
	"context"
	"fmt"

	"github.com/okinaau/iloader/pkg/usb"
)

// Session is a resolved device. Every channel it opens uses a fresh
// connection to usbmuxd.
type Session struct {
	Info   Info
	Handle Handle

	transport Transport
}

// NewSession is used by callers that already hold a live handle.
func NewSession(t Transport, info Info, h Handle) *Session {
	return &Session{Info: info, Handle: h, transport: t}
}

func (s *Session) protocolErr(what string, err error) error {
	return fmt.Errorf("%w: %s for device %s: %w", ErrProtocol, what, s.Info.Name, err)
}

func (s *Session) query(ctx context.Context, key string, get func(Lockdown) (string, error)) (string, error) {
	lc, err := s.transport.Lockdown(ctx, s.Handle)
	if err != nil {
		return "", s.protocolErr("unable to connect to lockdown", err)
	}
	defer lc.Close()

	v, err := get(lc)
	if err != nil {
		return "", s.protocolErr("failed to get "+key, err)
	}
	return v, nil
}

// Name queries the DeviceName lockdown value.
func (s *Session) Name(ctx context.Context) (string, error) {
	return s.query(ctx, "DeviceName", Lockdown.DeviceName)
}

// UDID queries the UniqueDeviceID lockdown value.
func (s *Session) UDID(ctx context.Context) (string, error) {
	return s.query(ctx, "UniqueDeviceID", Lockdown.UniqueDeviceID)
}

// ProductVersion queries the iOS version the device runs.
func (s *Session) ProductVersion(ctx context.Context) (string, error) {
	return s.query(ctx, "ProductVersion", Lockdown.ProductVersion)
}

// PairRecord reads the pair record usbmuxd keeps for udid. A missing record
// is reported as usb.ErrNoPairRecord.
func (s *Session) PairRecord(ctx context.Context, udid string) (*usb.PairRecord, error) {
	mux, err := s.transport.Connect(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTransportUnavailable, err)
	}
	defer mux.Close()

	pr, err := mux.PairRecord(udid)
	if err != nil {
		return nil, fmt.Errorf("failed to get pairing record for device %s: %w", s.Info.Name, err)
	}
	return pr, nil
}

func (s *Session) Lockdown(ctx context.Context) (Lockdown, error) {
	lc, err := s.transport.Lockdown(ctx, s.Handle)
	if err != nil {
		return nil, s.protocolErr("unable to connect to lockdown", err)
	}
	return lc, nil
}

func (s *Session) Installer(ctx context.Context) (Installer, error) {
	ic, err := s.transport.Installer(ctx, s.Handle)
	if err != nil {
		return nil, s.protocolErr("failed to connect to installation proxy", err)
	}
	return ic, nil
}

func (s *Session) Sandbox(ctx context.Context, bundleID string) (Sandbox, error) {
	sb, err := s.transport.Sandbox(ctx, s.Handle, bundleID)
	if err != nil {
		return nil, s.protocolErr("failed to vend documents of "+bundleID, err)
	}
	return sb, nil
}

func (s *Session) Files(ctx context.Context) (Files, error) {
	fc, err := s.transport.Files(ctx, s.Handle)
	if err != nil {
		return nil, s.protocolErr("failed to connect to AFC", err)
	}
	return fc, nil
}
