package housearrest

import (
	"context"
	"fmt"

	"github.com/okinaau/iloader/pkg/usb"
	"github.com/okinaau/iloader/pkg/usb/afc"
	"github.com/okinaau/iloader/pkg/usb/lockdownd"
)

const (
	serviceName = "com.apple.mobile.house_arrest"
)

type vendRequest struct {
	Command    string `plist:"Command"`
	Identifier string `plist:"Identifier"`
}

type vendResponse struct {
	Status string `plist:"Status,omitempty"`
	Error  string `plist:"Error,omitempty"`
}

// Client vends the sandbox containers of installed apps.
type Client struct {
	c *usb.Client
}

func NewClient(ctx context.Context, udid string) (*Client, error) {
	c, err := lockdownd.NewClientForService(ctx, serviceName, udid, false)
	if err != nil {
		return nil, err
	}
	return NewClientFromConn(c), nil
}

func NewClientFromConn(c *usb.Client) *Client {
	return &Client{c: c}
}

// VendDocuments exposes the Documents directory of bundleID over AFC.
// The returned client owns the connection; closing it closes this client too.
func (c *Client) VendDocuments(bundleID string) (*afc.Client, error) {
	const command = "VendDocuments"
	var resp vendResponse
	if err := c.c.Request(&vendRequest{
		Command:    command,
		Identifier: bundleID,
	}, &resp); err != nil {
		return nil, fmt.Errorf("failed to %s %s: %w", command, bundleID, err)
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("failed to %s %s: %s", command, bundleID, resp.Error)
	}
	if resp.Status != "Complete" {
		return nil, fmt.Errorf("failed to %s %s: unexpected status %q", command, bundleID, resp.Status)
	}
	return afc.NewClientFromConn(c.c), nil
}

func (c *Client) Close() error {
	return c.c.Close()
}
