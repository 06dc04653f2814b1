// Package workflow runs the multi step operations a user triggers.
package workflow

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/apex/log"
	"github.com/okinaau/iloader/internal/device"
	"github.com/okinaau/iloader/internal/operation"
	"github.com/okinaau/iloader/internal/pairing"
	"github.com/okinaau/iloader/internal/sideload"
)

const (
	SideloadOperation = "sideload"
	InstallOperation  = "install_sidestore"

	StepDownload = "download"
	StepInstall  = "install"
	StepPairing  = "pairing"
)

// Downloader fetches url to the local file dest.
type Downloader interface {
	Download(ctx context.Context, url, dest string) error
}

// Releases are the artifact URLs install-and-pair picks from.
type Releases struct {
	SideStore            string
	SideStoreNightly     string
	LiveContainer        string
	LiveContainerNightly string
}

// InstallOptions selects the release flavour.
type InstallOptions struct {
	Nightly       bool `json:"nightly"`
	LiveContainer bool `json:"liveContainer"`
}

func (r Releases) artifact(opts InstallOptions) (url, name string) {
	switch {
	case opts.LiveContainer && opts.Nightly:
		return r.LiveContainerNightly, "LiveContainer+SideStore-Nightly.ipa"
	case opts.LiveContainer:
		return r.LiveContainer, "LiveContainer+SideStore.ipa"
	case opts.Nightly:
		return r.SideStoreNightly, "SideStore-Nightly.ipa"
	default:
		return r.SideStore, "SideStore.ipa"
	}
}

type Workflow struct {
	Registry   *device.Registry
	Selected   *device.Selected
	Pairing    *pairing.Provisioner
	Sideloader sideload.Sideloader
	Downloader Downloader
	Releases   Releases
	// TempDir receives downloaded artifacts, os.TempDir when empty.
	TempDir string
}

func (w *Workflow) sideload(ctx context.Context, dev device.Info, appPath string) error {
	s, err := w.Registry.Resolve(ctx, dev)
	if err != nil {
		return err
	}
	return w.Sideloader.Sideload(ctx, s, appPath)
}

// Sideload installs the package at appPath on the selected device.
func (w *Workflow) Sideload(ctx context.Context, events chan<- operation.Event, appPath string) error {
	op := operation.New(SideloadOperation, events)
	if err := op.Start(StepInstall); err != nil {
		return err
	}

	dev, err := w.Selected.Require()
	if err := op.Check(StepInstall, err); err != nil {
		return err
	}
	if err := op.Check(StepInstall, w.sideload(ctx, dev, appPath)); err != nil {
		return err
	}

	return op.Complete(StepInstall)
}

// InstallAndPair downloads a SideStore release, installs it on the selected
// device and places the device's pairing file inside the installed app.
func (w *Workflow) InstallAndPair(ctx context.Context, events chan<- operation.Event, opts InstallOptions) error {
	op := operation.New(InstallOperation, events)
	if err := op.Start(StepDownload); err != nil {
		return err
	}

	dev, err := w.Selected.Require()
	if err := op.Check(StepDownload, err); err != nil {
		return err
	}
	ctxLog := log.WithFields(log.Fields{"operation": InstallOperation, "device": dev.Name})

	url, name := w.Releases.artifact(opts)
	dir := w.TempDir
	if dir == "" {
		dir = os.TempDir()
	}
	if err := op.Check(StepDownload, os.MkdirAll(dir, 0o750)); err != nil {
		return err
	}
	dest := filepath.Join(dir, name)
	ctxLog.WithField("url", url).Info("Downloading release")
	if err := op.Check(StepDownload, w.Downloader.Download(ctx, url, dest)); err != nil {
		return err
	}
	defer os.Remove(dest)

	if err := op.Advance(StepDownload, StepInstall); err != nil {
		return err
	}
	if err := op.Check(StepInstall, w.sideload(ctx, dev, dest)); err != nil {
		return err
	}

	if err := op.Advance(StepInstall, StepPairing); err != nil {
		return err
	}
	found, err := w.Pairing.FindPrimaryApp(ctx, dev, opts.LiveContainer)
	app, err := operation.FailIfErr(op, StepPairing, found, err)
	if err != nil {
		return err
	}
	if app == nil {
		target := pairing.SideStore
		if opts.LiveContainer {
			target = pairing.LiveContainer
		}
		return op.Fail(StepPairing, fmt.Sprintf("Could not find %s's bundle ID", target))
	}
	ctxLog.WithField("bundle", app.BundleID).Info("Placing pairing file")
	if err := op.Check(StepPairing, w.Pairing.PlaceCredential(ctx, dev, app.BundleID, app.Path)); err != nil {
		return err
	}

	return op.Complete(StepPairing)
}
