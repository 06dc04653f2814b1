package installation

import (
	"context"
	"fmt"

	"github.com/okinaau/iloader/pkg/usb"
	"github.com/okinaau/iloader/pkg/usb/lockdownd"
)

const (
	serviceName = "com.apple.mobile.installation_proxy"
	// StagingDir is the AFC directory packages are uploaded to before Install.
	StagingDir = "/PublicStaging"
)

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

// Browse lists the installed apps, following the proxy's paged replies until
// it reports Complete.
func (c *Client) Browse(appType string, attrs ...string) ([]map[string]any, error) {
	req := &BrowseRequest{
		Command: NewCommand("Browse", attrs...).WithApplicationType(appType),
	}
	if err := c.c.Send(req); err != nil {
		return nil, err
	}

	var apps []map[string]any
	for {
		var resp BrowseResult
		if err := c.c.Recv(&resp); err != nil {
			return nil, err
		}
		if resp.Error != "" {
			return nil, fmt.Errorf("browse failed: %s", resp.Error)
		}
		apps = append(apps, resp.CurrentList...)
		if resp.Status == "Complete" {
			return apps, nil
		}
	}
}

type ProgressFunc func(*ProgressEvent)

func (c *Client) watchProgress(cb ProgressFunc) error {
	for {
		ev := &ProgressEvent{}
		if err := c.c.Recv(ev); err != nil {
			return err
		}
		if ev.Error != "" {
			if ev.ErrorDescription != "" {
				return fmt.Errorf("%s: %s", ev.Error, ev.ErrorDescription)
			}
			return fmt.Errorf("%s", ev.Error)
		}
		// Some iOS versions send a message that is not a status message.
		if ev.Status == "" {
			continue
		}
		if ev.Status == "Complete" {
			ev.PercentComplete = 100
		}
		if cb != nil {
			cb(ev)
		}
		if ev.Status == "Complete" {
			return nil
		}
	}
}

// Install installs a package previously uploaded to packagePath over AFC.
func (c *Client) Install(packagePath string, progressCb ProgressFunc) error {
	req := &InstallRequest{
		Command:     NewCommand("Install"),
		PackagePath: packagePath,
	}
	if err := c.c.Send(req); err != nil {
		return err
	}
	return c.watchProgress(progressCb)
}

func (c *Client) Close() error {
	return c.c.Close()
}
