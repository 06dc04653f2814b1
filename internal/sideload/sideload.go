// Package sideload installs app packages on a device with a developer account.
package sideload

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/apex/log"
	"github.com/blacktop/go-plist"
	semver "github.com/hashicorp/go-version"
	"github.com/okinaau/iloader/internal/account"
	"github.com/okinaau/iloader/internal/device"
	"github.com/okinaau/iloader/internal/utils"
	"github.com/okinaau/iloader/pkg/usb/installation"
)

// ErrIncompatible is returned when the package needs a newer iOS than the device runs.
var ErrIncompatible = errors.New("app is not compatible with device")

// Sideloader installs the package at ipaPath on the device behind s.
type Sideloader interface {
	Sideload(ctx context.Context, s *device.Session, ipaPath string) error
}

// Accounts hands out the signed in developer account.
type Accounts interface {
	Session() (*account.Credentials, error)
}

type Config struct {
	MachineName string
	StoreDir    string
}

// Receipt is recorded in the store for every install.
type Receipt struct {
	BundleID    string    `plist:"CFBundleIdentifier"`
	Name        string    `plist:"CFBundleDisplayName,omitempty"`
	Version     string    `plist:"CFBundleShortVersionString,omitempty"`
	Device      string    `plist:"DeviceName"`
	UDID        string    `plist:"UniqueDeviceID"`
	MachineName string    `plist:"MachineName"`
	InstalledAt time.Time `plist:"InstalledAt"`
}

// Installer stages a package over AFC and installs it with the installation proxy.
type Installer struct {
	accounts Accounts
	conf     Config
}

func NewInstaller(accounts Accounts, conf Config) *Installer {
	return &Installer{accounts: accounts, conf: conf}
}

func (i *Installer) Sideload(ctx context.Context, s *device.Session, ipaPath string) error {
	creds, err := i.accounts.Session()
	if err != nil {
		return err
	}

	bundle, err := installation.AppBundleFromIPA(ipaPath)
	if err != nil {
		return fmt.Errorf("failed to read app bundle %s: %w", ipaPath, err)
	}
	ctxLog := log.WithFields(log.Fields{
		"device":  s.Info.Name,
		"bundle":  bundle.CFBundleIdentifier,
		"version": bundle.CFBundleShortVersionString,
		"account": creds.Redacted(),
		"machine": i.conf.MachineName,
	})
	ctxLog.Info("Sideloading")

	if err := i.checkCompatible(ctx, s, bundle); err != nil {
		return err
	}

	fc, err := s.Files(ctx)
	if err != nil {
		return err
	}
	defer fc.Close()

	staged := path.Join(installation.StagingDir, filepath.Base(ipaPath))
	if err := fc.MakeDirAll(installation.StagingDir); err != nil {
		return fmt.Errorf("failed to create %s on device %s: %w", installation.StagingDir, s.Info.Name, err)
	}
	utils.Indent(ctxLog.WithField("path", staged).Debug, 2)("Uploading package")
	if err := fc.CopyFileToDevice(staged, ipaPath); err != nil {
		return fmt.Errorf("failed to upload %s to device %s: %w", ipaPath, s.Info.Name, err)
	}

	ic, err := s.Installer(ctx)
	if err != nil {
		return err
	}
	defer ic.Close()

	if err := ic.Install(staged, func(ev *installation.ProgressEvent) {
		utils.Indent(ctxLog.WithField("percent", ev.PercentComplete).Debug, 2)(ev.Status)
	}); err != nil {
		return fmt.Errorf("failed to install %s on device %s: %w", bundle.CFBundleIdentifier, s.Info.Name, err)
	}

	if err := i.record(s, bundle); err != nil {
		ctxLog.WithError(err).Warn("failed to record install")
	}
	ctxLog.Info("Installed")
	return nil
}

func (i *Installer) checkCompatible(ctx context.Context, s *device.Session, bundle *installation.AppBundle) error {
	if bundle.MinimumOSVersion == "" {
		return nil
	}
	pv, err := s.ProductVersion(ctx)
	if err != nil {
		return err
	}
	devVer, err := semver.NewVersion(pv)
	if err != nil {
		log.WithError(err).Warnf("failed to parse iOS version %q", pv)
		return nil
	}
	minVer, err := semver.NewVersion(bundle.MinimumOSVersion)
	if err != nil {
		log.WithError(err).Warnf("failed to parse MinimumOSVersion %q", bundle.MinimumOSVersion)
		return nil
	}
	if devVer.LessThan(minVer) {
		return fmt.Errorf("%w: %s requires iOS %s, device %s runs %s",
			ErrIncompatible, bundle.CFBundleIdentifier, minVer, s.Info.Name, devVer)
	}
	return nil
}

func (i *Installer) record(s *device.Session, bundle *installation.AppBundle) error {
	if i.conf.StoreDir == "" {
		return nil
	}
	dir := filepath.Join(i.conf.StoreDir, "receipts", s.Info.UniqueID)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return err
	}
	data, err := plist.MarshalIndent(&Receipt{
		BundleID:    bundle.CFBundleIdentifier,
		Name:        bundle.DisplayName(),
		Version:     bundle.CFBundleShortVersionString,
		Device:      s.Info.Name,
		UDID:        s.Info.UniqueID,
		MachineName: i.conf.MachineName,
		InstalledAt: time.Now().UTC(),
	}, plist.XMLFormat, "\t")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, bundle.CFBundleIdentifier+".plist"), data, 0o640)
}
