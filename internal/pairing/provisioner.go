package pairing

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/apex/log"
	"github.com/mitchellh/mapstructure"
	"github.com/okinaau/iloader/internal/device"
	"github.com/okinaau/iloader/pkg/usb"
)

const documentsDir = "/Documents"

// Provisioner fetches pairing credentials and places them where apps find them.
type Provisioner struct {
	registry *device.Registry
	matcher  Matcher
}

func NewProvisioner(r *device.Registry, m Matcher) *Provisioner {
	return &Provisioner{registry: r, matcher: m}
}

// FetchCredential reads the pair record of dev, binds it to the device's
// current UDID and enables wifi debugging with it.
func (p *Provisioner) FetchCredential(ctx context.Context, dev device.Info) (*Credential, error) {
	cred, _, err := p.fetch(ctx, dev)
	return cred, err
}

func (p *Provisioner) fetch(ctx context.Context, dev device.Info) (*Credential, *device.Session, error) {
	s, err := p.registry.Resolve(ctx, dev)
	if err != nil {
		return nil, nil, err
	}

	udid, err := s.UDID(ctx)
	if err != nil {
		return nil, nil, err
	}

	// the device has to report the identity it was resolved by
	cred := &Credential{UDID: udid}
	if err := cred.Verify(s.Handle.UDID); err != nil {
		return nil, nil, fmt.Errorf("device %s: %w", dev.Name, err)
	}

	pr, err := s.PairRecord(ctx, udid)
	if err != nil {
		if errors.Is(err, usb.ErrNoPairRecord) {
			return nil, nil, fmt.Errorf("%w: %w", ErrPairingUnavailable, err)
		}
		return nil, nil, err
	}
	cred.Record = *pr

	lc, err := s.Lockdown(ctx)
	if err != nil {
		return nil, nil, err
	}
	defer lc.Close()

	if err := lc.StartSession(&cred.Record); err != nil {
		return nil, nil, fmt.Errorf("%w: failed to start lockdown session for device %s: %w", device.ErrProtocol, dev.Name, err)
	}
	if err := lc.SetWifiDebugging(true); err != nil {
		return nil, nil, fmt.Errorf("%w: failed to enable wifi debugging for device %s: %w", device.ErrProtocol, dev.Name, err)
	}

	log.WithFields(log.Fields{"device": dev.Name, "udid": udid}).Debug("fetched pairing record")
	return cred, s, nil
}

func documentsPath(relPath string) (string, error) {
	target := path.Join(documentsDir, relPath)
	if !strings.HasPrefix(target, documentsDir+"/") {
		return "", fmt.Errorf("invalid pairing file path %q", relPath)
	}
	return target, nil
}

// PlaceCredential writes the pairing file of dev to relPath inside the
// Documents directory of bundleID, replacing any existing file.
func (p *Provisioner) PlaceCredential(ctx context.Context, dev device.Info, bundleID, relPath string) error {
	target, err := documentsPath(relPath)
	if err != nil {
		return err
	}

	cred, s, err := p.fetch(ctx, dev)
	if err != nil {
		return err
	}
	data, err := cred.Serialize()
	if err != nil {
		return err
	}

	sb, err := s.Sandbox(ctx, bundleID)
	if err != nil {
		return err
	}
	defer sb.Close()

	if err := sb.MakeDirAll(path.Dir(target)); err != nil {
		return fmt.Errorf("%w: failed to create %s in %s: %w", device.ErrProtocol, path.Dir(target), bundleID, err)
	}
	if err := sb.WriteFile(target, data); err != nil {
		return fmt.Errorf("%w: failed to write pairing file to %s: %w", device.ErrProtocol, bundleID, err)
	}

	log.WithFields(log.Fields{"device": dev.Name, "bundle": bundleID}).Infof("placed pairing file at %s", target)
	return nil
}

// ExportCredential writes the pairing file of dev to the path dst chooses
// and returns that path.
func (p *Provisioner) ExportCredential(ctx context.Context, dev device.Info, dst Destination) (string, error) {
	cred, err := p.FetchCredential(ctx, dev)
	if err != nil {
		return "", err
	}
	data, err := cred.Serialize()
	if err != nil {
		return "", err
	}

	out, err := dst.Choose(DefaultExportName)
	if err != nil {
		if errors.Is(err, ErrCancelled) {
			return "", ErrCancelled
		}
		return "", err
	}
	if out == "" {
		return "", ErrCancelled
	}

	if err := writeFileAtomic(out, data); err != nil {
		return "", fmt.Errorf("failed to write pairing file: %w", err)
	}
	log.WithField("device", dev.Name).Infof("exported pairing file to %s", out)
	return out, nil
}

// writeFileAtomic writes data next to name and renames it into place.
func writeFileAtomic(name string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(name), "."+filepath.Base(name)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), name)
}

func isDir(name string) bool {
	fi, err := os.Stat(name)
	return err == nil && fi.IsDir()
}

type installedApp struct {
	BundleID    string `mapstructure:"CFBundleIdentifier"`
	DisplayName string `mapstructure:"CFBundleDisplayName"`
}

func (p *Provisioner) installed(ctx context.Context, dev device.Info) (map[string]string, error) {
	s, err := p.registry.Resolve(ctx, dev)
	if err != nil {
		return nil, err
	}
	ic, err := s.Installer(ctx)
	if err != nil {
		return nil, err
	}
	defer ic.Close()

	apps, err := ic.Browse("User", "CFBundleIdentifier", "CFBundleDisplayName")
	if err != nil {
		return nil, fmt.Errorf("%w: failed to get installed apps of %s: %w", device.ErrProtocol, dev.Name, err)
	}

	installed := make(map[string]string, len(apps))
	for _, a := range apps {
		var app installedApp
		if err := mapstructure.Decode(a, &app); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrMalformedAppMetadata, err)
		}
		if app.BundleID == "" || app.DisplayName == "" {
			return nil, fmt.Errorf("%w: app %q has no display name", ErrMalformedAppMetadata, app.BundleID)
		}
		installed[app.BundleID] = app.DisplayName
	}
	return installed, nil
}

// ListInstalledApps returns the catalog apps installed on dev.
func (p *Provisioner) ListInstalledApps(ctx context.Context, dev device.Info) ([]App, error) {
	installed, err := p.installed(ctx, dev)
	if err != nil {
		return nil, err
	}
	return p.matcher.Match(installed), nil
}

// FindPrimaryApp looks for SideStore, or LiveContainer first when
// includeVariant is set. It returns nil when neither is installed.
func (p *Provisioner) FindPrimaryApp(ctx context.Context, dev device.Info, includeVariant bool) (*App, error) {
	installed, err := p.installed(ctx, dev)
	if err != nil {
		return nil, err
	}
	names := []string{SideStore}
	if includeVariant {
		names = []string{LiveContainer, SideStore}
	}
	app, _ := p.matcher.First(installed, names...)
	return app, nil
}
