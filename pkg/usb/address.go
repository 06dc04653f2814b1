package usb

import (
	"context"
	"fmt"
	"net"
	"strings"

	"github.com/caarlos0/env/v8"
)

// muxEnv is read every time a connection is dialed so a changed
// environment is picked up without restarting the process.
type muxEnv struct {
	SocketAddress string `env:"USBMUXD_SOCKET_ADDRESS"`
}

// MuxAddress returns the network and address of the usbmuxd endpoint.
//
// USBMUXD_SOCKET_ADDRESS accepts "host:port" (TCP), "UNIX:/path/to/socket"
// or a bare absolute socket path. When unset the platform default is used.
func MuxAddress() (string, string, error) {
	var e muxEnv
	if err := env.Parse(&e); err != nil {
		return "", "", fmt.Errorf("failed to parse usbmuxd environment: %w", err)
	}
	return ParseMuxAddress(e.SocketAddress)
}

// ParseMuxAddress parses a usbmuxd endpoint in USBMUXD_SOCKET_ADDRESS form.
func ParseMuxAddress(addr string) (string, string, error) {
	addr = strings.TrimSpace(addr)
	switch {
	case addr == "":
		return defaultMuxNetwork, defaultMuxAddress, nil
	case strings.HasPrefix(addr, "UNIX:"):
		return "unix", strings.TrimPrefix(addr, "UNIX:"), nil
	case strings.HasPrefix(addr, "/"):
		return "unix", addr, nil
	}
	addr = strings.TrimPrefix(addr, "TCP:")
	if _, _, err := net.SplitHostPort(addr); err != nil {
		return "", "", fmt.Errorf("invalid usbmuxd address %q: %w", addr, err)
	}
	return "tcp", addr, nil
}

func usbmuxdDial(ctx context.Context) (net.Conn, error) {
	network, address, err := MuxAddress()
	if err != nil {
		return nil, err
	}
	var d net.Dialer
	return d.DialContext(ctx, network, address)
}
