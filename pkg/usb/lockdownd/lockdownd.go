package lockdownd

import (
	"context"
	"fmt"

	"github.com/okinaau/iloader/pkg/usb"
)

const lockdownPort = 62078

const (
	// WirelessLockdownDomain holds the wireless access settings of a device.
	WirelessLockdownDomain = "com.apple.mobile.wireless_lockdown"
)

type Client struct {
	*usb.Client
}

type startSessionRequest struct {
	Label           string
	ProtocolVersion string
	Request         string
	HostID          string
	SystemBUID      string
}

type startSessionResponse struct {
	Request          string
	Result           string
	Error            string `plist:"Error,omitempty"`
	EnableSessionSSL bool
	SessionID        string
}

// Dial opens an unauthenticated lockdown connection. Only the values a
// device hands out before pairing (DeviceName, UniqueDeviceID, ...) can be
// read until StartSession succeeds.
func Dial(ctx context.Context, udid string) (*Client, error) {
	cli, err := usb.Dial(ctx, udid, lockdownPort)
	if err != nil {
		return nil, err
	}
	return &Client{cli}, nil
}

// NewClient opens a lockdown connection and starts a session with the pair
// record usbmuxd has on file for udid. ctx bounds the session handshake.
func NewClient(ctx context.Context, udid string) (*Client, error) {
	cli, err := usb.NewClient(ctx, udid, lockdownPort)
	if err != nil {
		return nil, err
	}
	lc := &Client{cli}
	stop := context.AfterFunc(ctx, func() { lc.Close() })
	err = lc.StartSession(cli.PairRecord())
	if !stop() {
		lc.Close()
		return nil, ctx.Err()
	}
	if err != nil {
		lc.Close()
		return nil, err
	}
	return lc, nil
}

// StartSession authenticates the connection with pr, upgrading it to TLS
// when the device asks for it.
func (lc *Client) StartSession(pr *usb.PairRecord) error {
	if pr == nil {
		return fmt.Errorf("failed to start lockdown session: no pair record")
	}
	lc.SetPairRecord(pr)
	req := &startSessionRequest{
		Label:           usb.BundleID,
		ProtocolVersion: "2",
		Request:         "StartSession",
		HostID:          pr.HostID,
		SystemBUID:      pr.SystemBUID,
	}
	var resp startSessionResponse
	if err := lc.Request(req, &resp); err != nil {
		return err
	}
	if resp.Error != "" {
		return fmt.Errorf("failed to start lockdown session: %s", resp.Error)
	}

	if resp.EnableSessionSSL {
		if err := lc.EnableSSL(); err != nil {
			return fmt.Errorf("failed to enable SSL for lockdown service: %v", err)
		}
	}

	return nil
}

// NewClientForService starts serviceName through lockdown and connects to it.
func NewClientForService(ctx context.Context, serviceName, udid string, withEscrowBag bool) (*usb.Client, error) {
	lc, err := NewClient(ctx, udid)
	if err != nil {
		return nil, fmt.Errorf("failed to create lockdownd client for service %s: %w", serviceName, err)
	}
	defer lc.Close()

	svc, err := lc.StartService(serviceName, withEscrowBag)
	if err != nil {
		return nil, fmt.Errorf("failed to start service %s: %w", serviceName, err)
	}

	cli, err := usb.NewClient(ctx, udid, svc.Port)
	if err != nil {
		return nil, fmt.Errorf("failed to create usbmux client for service %s on port %d: %w", serviceName, svc.Port, err)
	}

	if svc.EnableServiceSSL {
		if err := cli.EnableSSL(); err != nil {
			cli.Close()
			return nil, fmt.Errorf("failed to enable SSL for lockdown service %s: %w", serviceName, err)
		}
	}

	return cli, nil
}

type startServiceRequest struct {
	Label     string
	Request   string `plist:"Request"`
	Service   string
	EscrowBag []byte `plist:"EscrowBag,omitempty"`
}

type StartServiceResponse struct {
	Request          string
	Result           string
	Error            string `plist:"Error,omitempty"`
	Service          string
	Port             int
	EnableServiceSSL bool
}

func (lc *Client) StartService(service string, withEscrowBag bool) (*StartServiceResponse, error) {
	req := &startServiceRequest{
		Label:   usb.BundleID,
		Request: "StartService",
		Service: service,
	}
	if withEscrowBag && lc.PairRecord() != nil {
		req.EscrowBag = lc.PairRecord().EscrowBag
	}

	var resp StartServiceResponse
	if err := lc.Request(req, &resp); err != nil {
		return nil, err
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("%s", resp.Error)
	}

	return &resp, nil
}

type setValueRequest struct {
	Request string
	Label   string
	Domain  string `plist:"Domain,omitempty"`
	Key     string `plist:"Key,omitempty"`
	Value   any    `plist:"Value,omitempty"`
}

type getValueRequest struct {
	Request string
	Label   string
	Domain  string `plist:"Domain,omitempty"`
	Key     string `plist:"Key,omitempty"`
}

type valueResponse struct {
	Domain  string `plist:"Domain,omitempty"`
	Error   string `plist:"Error,omitempty"`
	Key     string `plist:"Key,omitempty"`
	Request string `plist:"Request,omitempty"`
	Value   any    `plist:"Value,omitempty"`
}

func (lc *Client) GetValue(domain, key string) (any, error) {
	req := &getValueRequest{
		Request: "GetValue",
		Label:   usb.BundleID,
		Domain:  domain,
		Key:     key,
	}
	var resp valueResponse
	if err := lc.Request(req, &resp); err != nil {
		return nil, err
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("failed to get value %s: %s", key, resp.Error)
	}
	return resp.Value, nil
}

func (lc *Client) SetValue(domain, key string, value any) error {
	req := &setValueRequest{
		Request: "SetValue",
		Label:   usb.BundleID,
		Domain:  domain,
		Key:     key,
		Value:   value,
	}
	var resp valueResponse
	if err := lc.Request(req, &resp); err != nil {
		return err
	}
	if resp.Error != "" {
		return fmt.Errorf("failed to set value %s: %s", key, resp.Error)
	}
	return nil
}

// GetString reads a string valued key.
func (lc *Client) GetString(domain, key string) (string, error) {
	v, err := lc.GetValue(domain, key)
	if err != nil {
		return "", err
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("value %s is %T, not a string", key, v)
	}
	return s, nil
}

func (lc *Client) DeviceName() (string, error) {
	return lc.GetString("", "DeviceName")
}

func (lc *Client) UniqueDeviceID() (string, error) {
	return lc.GetString("", "UniqueDeviceID")
}

func (lc *Client) ProductVersion() (string, error) {
	return lc.GetString("", "ProductVersion")
}

// SetWifiDebugging toggles debugging over the network in the wireless lockdown domain.
func (lc *Client) SetWifiDebugging(on bool) error {
	return lc.SetValue(WirelessLockdownDomain, "EnableWifiDebugging", on)
}

func (lc *Client) Close() error {
	return lc.Client.Close()
}
