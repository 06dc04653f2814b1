package device

import (
	"context"
	"fmt"

	"github.com/apex/log"
	"golang.org/x/sync/errgroup"
)

// Registry enumerates attached devices and resolves them to sessions.
type Registry struct {
	transport Transport
}

func NewRegistry(t Transport) *Registry {
	return &Registry{transport: t}
}

func (r *Registry) handles(ctx context.Context) ([]Handle, error) {
	mux, err := r.transport.Connect(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTransportUnavailable, err)
	}
	defer mux.Close()

	handles, err := mux.Devices()
	if err != nil {
		return nil, fmt.Errorf("%w: failed to list devices: %w", ErrTransportUnavailable, err)
	}
	return handles, nil
}

// List returns one Info per attached device, in usbmuxd order. Devices are
// identified concurrently; a device that does not answer is listed as
// UnknownDeviceName instead of failing the whole call.
func (r *Registry) List(ctx context.Context) ([]Info, error) {
	handles, err := r.handles(ctx)
	if err != nil {
		return nil, err
	}

	infos := make([]Info, len(handles))
	var g errgroup.Group
	for i, h := range handles {
		g.Go(func() error {
			infos[i] = r.identify(ctx, h)
			return nil
		})
	}
	_ = g.Wait()

	return infos, nil
}

func (r *Registry) identify(ctx context.Context, h Handle) Info {
	info := Info{
		Name:           UnknownDeviceName,
		SessionID:      h.DeviceID,
		UniqueID:       h.UDID,
		ConnectionKind: h.Kind(),
	}
	s := &Session{Info: info, Handle: h, transport: r.transport}
	name, err := s.Name(ctx)
	if err != nil {
		log.WithError(err).WithField("udid", h.UDID).Warn("unable to query device name")
		return info
	}
	info.Name = name
	return info
}

// Resolve maps info back to the live handle of the attached device.
func (r *Registry) Resolve(ctx context.Context, info Info) (*Session, error) {
	handles, err := r.handles(ctx)
	if err != nil {
		return nil, err
	}
	for _, h := range handles {
		if h.UDID == info.UniqueID {
			return &Session{Info: info, Handle: h, transport: r.transport}, nil
		}
	}
	return nil, fmt.Errorf("%w: %s (%s) is no longer attached", ErrDeviceNotFound, info.Name, info.UniqueID)
}
