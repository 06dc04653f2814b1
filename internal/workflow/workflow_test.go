package workflow

import (
	"archive/zip"
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/99designs/keyring"
	"github.com/okinaau/iloader/internal/account"
	"github.com/okinaau/iloader/internal/device"
	"github.com/okinaau/iloader/internal/device/devicetest"
	"github.com/okinaau/iloader/internal/download"
	"github.com/okinaau/iloader/internal/operation"
	"github.com/okinaau/iloader/internal/pairing"
	"github.com/okinaau/iloader/internal/sideload"
	"github.com/okinaau/iloader/pkg/usb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testUDID = "00008110-001C2D3E"

var testInfo = device.Info{Name: "Test iPhone", SessionID: 3, UniqueID: testUDID, ConnectionKind: device.USB}

func ipa(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("Payload/SideStore.app/Info.plist")
	require.NoError(t, err)
	_, err = w.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?>
<plist version="1.0"><dict>
<key>CFBundleIdentifier</key><string>com.SideStore.SideStore</string>
<key>CFBundleDisplayName</key><string>SideStore</string>
</dict></plist>`))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func testDevice() *devicetest.Device {
	return &devicetest.Device{
		Handle: device.Handle{DeviceID: 3, UDID: testUDID, ConnectionType: "USB"},
		Values: map[string]any{
			"DeviceName":     "Test iPhone",
			"UniqueDeviceID": testUDID,
			"ProductVersion": "17.0",
		},
		Record: &usb.PairRecord{HostID: "HOST-ID", SystemBUID: "BUID"},
	}
}

type fixture struct {
	wf     *Workflow
	tr     *devicetest.Transport
	events chan operation.Event
}

func newFixture(t *testing.T, devices ...*devicetest.Device) *fixture {
	t.Helper()
	f := &fixture{tr: devicetest.New(devices...), events: make(chan operation.Event, 16)}
	body := ipa(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		w.Write(body)
	}))
	t.Cleanup(srv.Close)

	accounts := account.NewStore(keyring.NewArrayKeyring(nil))
	require.NoError(t, accounts.Login(account.Credentials{AppleID: "dev@example.com", Password: "pw"}))

	reg := device.NewRegistry(f.tr)
	f.wf = &Workflow{
		Registry:   reg,
		Selected:   &device.Selected{},
		Pairing:    pairing.NewProvisioner(reg, pairing.DefaultMatcher()),
		Sideloader: sideload.NewInstaller(accounts, sideload.Config{MachineName: "iloader"}),
		Downloader: download.NewDownloader("", false),
		Releases: Releases{
			SideStore:            srv.URL + "/SideStore.ipa",
			SideStoreNightly:     srv.URL + "/missing",
			LiveContainer:        srv.URL + "/LiveContainer+SideStore.ipa",
			LiveContainerNightly: srv.URL + "/missing",
		},
		TempDir: t.TempDir(),
	}
	return f
}

func (f *fixture) drain() []operation.Event {
	close(f.events)
	var evs []operation.Event
	for ev := range f.events {
		evs = append(evs, ev)
	}
	return evs
}

func kinds(evs []operation.Event) []string {
	var out []string
	for _, ev := range evs {
		out = append(out, string(ev.Kind)+":"+ev.Step)
	}
	return out
}

func TestSideload_NoDeviceSelected(t *testing.T) {
	f := newFixture(t, testDevice())
	f.wf.Selected.Set(nil)

	err := f.wf.Sideload(context.Background(), f.events, "/tmp/app.ipa")
	require.ErrorIs(t, err, device.ErrNoDeviceSelected)
	assert.Zero(t, f.tr.Calls())

	evs := f.drain()
	assert.Equal(t, []string{"started:install", "failed:install"}, kinds(evs))
}

func TestSideload(t *testing.T) {
	d := testDevice()
	f := newFixture(t, d)
	f.wf.Selected.Set(&testInfo)

	path := filepath.Join(t.TempDir(), "SideStore.ipa")
	require.NoError(t, os.WriteFile(path, ipa(t), 0o644))

	require.NoError(t, f.wf.Sideload(context.Background(), f.events, path))
	assert.Equal(t, []string{"/PublicStaging/SideStore.ipa"}, d.Installed())
	assert.Equal(t, []string{"started:install", "completed:install"}, kinds(f.drain()))
}

func TestInstallAndPair(t *testing.T) {
	d := testDevice()
	d.OnInstall = func(d *devicetest.Device, _ string) {
		d.Apps = []map[string]any{{"CFBundleIdentifier": "com.SideStore.SideStore", "CFBundleDisplayName": "SideStore"}}
	}
	f := newFixture(t, d)
	f.wf.Selected.Set(&testInfo)

	require.NoError(t, f.wf.InstallAndPair(context.Background(), f.events, InstallOptions{}))

	evs := f.drain()
	assert.Equal(t, []string{"started:download", "advanced:install", "advanced:pairing", "completed:pairing"}, kinds(evs))
	for _, ev := range evs {
		assert.Equal(t, InstallOperation, ev.Operation)
	}
	_, ok := d.Sandbox("com.SideStore.SideStore").File("/Documents/ALTPairingFile.mobiledevicepairing")
	assert.True(t, ok)
	assert.NoFileExists(t, filepath.Join(f.wf.TempDir, "SideStore.ipa"))
}

func TestInstallAndPair_AppNotFound(t *testing.T) {
	d := testDevice()
	d.Apps = []map[string]any{{"CFBundleIdentifier": "com.apple.Pages", "CFBundleDisplayName": "Pages"}}
	f := newFixture(t, d)
	f.wf.Selected.Set(&testInfo)

	err := f.wf.InstallAndPair(context.Background(), f.events, InstallOptions{})
	var stepErr *operation.StepError
	require.ErrorAs(t, err, &stepErr)
	assert.Equal(t, StepPairing, stepErr.Step)

	evs := f.drain()
	require.NotEmpty(t, evs)
	last := evs[len(evs)-1]
	assert.Equal(t, operation.KindFailed, last.Kind)
	assert.Equal(t, StepPairing, last.Step)
	assert.Contains(t, last.Message, "bundle ID")
	assert.Len(t, d.Installed(), 1)
}

func TestInstallAndPair_DownloadFails(t *testing.T) {
	d := testDevice()
	f := newFixture(t, d)
	f.wf.Selected.Set(&testInfo)

	err := f.wf.InstallAndPair(context.Background(), f.events, InstallOptions{Nightly: true})
	require.ErrorIs(t, err, download.ErrDownloadFailed)
	assert.Equal(t, []string{"started:download", "failed:download"}, kinds(f.drain()))
	assert.Empty(t, d.Installed())
}

func TestInstallAndPair_SelectionCopiedOnce(t *testing.T) {
	d := testDevice()
	d.OnInstall = func(d *devicetest.Device, _ string) {
		d.Apps = []map[string]any{
			{"CFBundleIdentifier": "com.kdt.livecontainer", "CFBundleDisplayName": "LiveContainer"},
		}
	}
	f := newFixture(t, d)
	f.wf.Selected.Set(&testInfo)
	f.wf.Downloader = clearing{f.wf.Selected, f.wf.Downloader}

	require.NoError(t, f.wf.InstallAndPair(context.Background(), f.events, InstallOptions{LiveContainer: true}))
	_, ok := d.Sandbox("com.kdt.livecontainer").File("/Documents/SideStore/Documents/ALTPairingFile.mobiledevicepairing")
	assert.True(t, ok)
}

// clearing drops the selection mid run.
type clearing struct {
	sel *device.Selected
	Downloader
}

func (c clearing) Download(ctx context.Context, url, dest string) error {
	c.sel.Clear()
	return c.Downloader.Download(ctx, url, dest)
}

func TestReleases_Artifact(t *testing.T) {
	r := Releases{SideStore: "a", SideStoreNightly: "b", LiveContainer: "c", LiveContainerNightly: "d"}
	tests := []struct {
		opts InstallOptions
		url  string
		name string
	}{
		{InstallOptions{}, "a", "SideStore.ipa"},
		{InstallOptions{Nightly: true}, "b", "SideStore-Nightly.ipa"},
		{InstallOptions{LiveContainer: true}, "c", "LiveContainer+SideStore.ipa"},
		{InstallOptions{Nightly: true, LiveContainer: true}, "d", "LiveContainer+SideStore-Nightly.ipa"},
	}
	for _, tt := range tests {
		url, name := r.artifact(tt.opts)
		assert.Equal(t, tt.url, url)
		assert.Equal(t, tt.name, name)
	}
}
