// Package loader is the command boundary the CLI and the daemon drive.
package loader

import (
	"context"
	"errors"
	"io"

	"github.com/okinaau/iloader/internal/config"
	"github.com/okinaau/iloader/internal/device"
	"github.com/okinaau/iloader/internal/download"
	"github.com/okinaau/iloader/internal/operation"
	"github.com/okinaau/iloader/internal/pairing"
	"github.com/okinaau/iloader/internal/sideload"
	"github.com/okinaau/iloader/internal/workflow"
)

// ErrCancelled is reported when the user aborts the export destination chooser.
var ErrCancelled = pairing.ErrCancelled

// Options wires a Service.
type Options struct {
	Transport device.Transport
	Accounts  sideload.Accounts
	// Progress receives download progress bars, none when nil.
	Progress io.Writer
	// Sideloader replaces the installation proxy sideloader.
	Sideloader sideload.Sideloader
	// Downloader replaces the HTTP downloader.
	Downloader workflow.Downloader
	TempDir    string
}

// Service exposes every call a UI can make. It is safe for concurrent use.
type Service struct {
	registry *device.Registry
	selected *device.Selected
	pairing  *pairing.Provisioner
	workflow *workflow.Workflow
}

func New(conf *config.Config, opts Options) *Service {
	if opts.Transport == nil {
		opts.Transport = device.USBMux{}
	}
	if opts.Sideloader == nil {
		opts.Sideloader = sideload.NewInstaller(opts.Accounts, sideload.Config{
			MachineName: conf.Sideload.MachineName,
			StoreDir:    conf.Sideload.StoreDir,
		})
	}
	if opts.Downloader == nil {
		var dopts []download.Option
		if opts.Progress != nil {
			dopts = append(dopts, download.WithProgress(opts.Progress))
		}
		opts.Downloader = download.NewDownloader(conf.Download.Proxy, conf.Download.Insecure, dopts...)
	}

	reg := device.NewRegistry(opts.Transport)
	sel := &device.Selected{}
	prov := pairing.NewProvisioner(reg, pairing.DefaultMatcher())
	return &Service{
		registry: reg,
		selected: sel,
		pairing:  prov,
		workflow: &workflow.Workflow{
			Registry:   reg,
			Selected:   sel,
			Pairing:    prov,
			Sideloader: opts.Sideloader,
			Downloader: opts.Downloader,
			Releases: workflow.Releases{
				SideStore:            conf.Releases.SideStore,
				SideStoreNightly:     conf.Releases.SideStoreNightly,
				LiveContainer:        conf.Releases.LiveContainer,
				LiveContainerNightly: conf.Releases.LiveContainerNightly,
			},
			TempDir: opts.TempDir,
		},
	}
}

func (s *Service) ListDevices(ctx context.Context) ([]device.Info, error) {
	return s.registry.List(ctx)
}

// SetSelectedDevice selects info, nil clears the selection.
func (s *Service) SetSelectedDevice(info *device.Info) {
	s.selected.Set(info)
}

func (s *Service) SelectedDevice() (device.Info, bool) {
	return s.selected.Get()
}

func (s *Service) RunSideload(ctx context.Context, events chan<- operation.Event, appPath string) error {
	return s.workflow.Sideload(ctx, events, appPath)
}

func (s *Service) RunInstallAndPair(ctx context.Context, events chan<- operation.Event, opts workflow.InstallOptions) error {
	return s.workflow.InstallAndPair(ctx, events, opts)
}

func (s *Service) ListInstalledPairableApps(ctx context.Context) ([]pairing.App, error) {
	dev, err := s.selected.Require()
	if err != nil {
		return nil, err
	}
	return s.pairing.ListInstalledApps(ctx, dev)
}

func (s *Service) PlacePairingCredential(ctx context.Context, bundleID, relPath string) error {
	dev, err := s.selected.Require()
	if err != nil {
		return err
	}
	return s.pairing.PlaceCredential(ctx, dev, bundleID, relPath)
}

// ExportPairingCredential writes the pairing file to the path dst picks and
// returns it.
func (s *Service) ExportPairingCredential(ctx context.Context, dst pairing.Destination) (string, error) {
	dev, err := s.selected.Require()
	if err != nil {
		return "", err
	}
	return s.pairing.ExportCredential(ctx, dev, dst)
}

// IsCancelled reports whether err is a user cancel.
func IsCancelled(err error) bool {
	return errors.Is(err, ErrCancelled)
}
