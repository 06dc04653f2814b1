package loader

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/99designs/keyring"
	"github.com/okinaau/iloader/internal/account"
	"github.com/okinaau/iloader/internal/config"
	"github.com/okinaau/iloader/internal/device"
	"github.com/okinaau/iloader/internal/device/devicetest"
	"github.com/okinaau/iloader/internal/pairing"
	"github.com/okinaau/iloader/pkg/usb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testUDID = "00008030-0011AA22"

func newService(t *testing.T) (*Service, *devicetest.Device, *devicetest.Transport) {
	t.Helper()
	d := &devicetest.Device{
		Handle: device.Handle{DeviceID: 7, UDID: testUDID, ConnectionType: "USB"},
		Values: map[string]any{"DeviceName": "Work iPad", "UniqueDeviceID": testUDID},
		Record: &usb.PairRecord{HostID: "HOST", SystemBUID: "BUID"},
		Apps: []map[string]any{
			{"CFBundleIdentifier": "com.SideStore.SideStore", "CFBundleDisplayName": "SideStore"},
			{"CFBundleIdentifier": "com.stik.stikdebug", "CFBundleDisplayName": "StikDebug"},
		},
	}
	tr := devicetest.New(d)
	svc := New(&config.Config{}, Options{
		Transport: tr,
		Accounts:  account.NewStore(keyring.NewArrayKeyring(nil)),
		TempDir:   t.TempDir(),
	})
	return svc, d, tr
}

func TestService_NothingSelected(t *testing.T) {
	svc, _, tr := newService(t)
	ctx := context.Background()

	_, err := svc.ListInstalledPairableApps(ctx)
	assert.ErrorIs(t, err, device.ErrNoDeviceSelected)
	assert.ErrorIs(t, svc.PlacePairingCredential(ctx, "com.SideStore.SideStore", "ALTPairingFile.mobiledevicepairing"), device.ErrNoDeviceSelected)
	_, err = svc.ExportPairingCredential(ctx, pairing.FixedPath(t.TempDir()))
	assert.ErrorIs(t, err, device.ErrNoDeviceSelected)
	assert.ErrorIs(t, svc.RunSideload(ctx, nil, "app.ipa"), device.ErrNoDeviceSelected)
	assert.Zero(t, tr.Calls())
}

func TestService_Pairing(t *testing.T) {
	svc, d, _ := newService(t)
	ctx := context.Background()

	devices, err := svc.ListDevices(ctx)
	require.NoError(t, err)
	require.Len(t, devices, 1)
	assert.Equal(t, "Work iPad", devices[0].Name)

	svc.SetSelectedDevice(&devices[0])
	sel, ok := svc.SelectedDevice()
	require.True(t, ok)
	assert.Equal(t, testUDID, sel.UniqueID)

	apps, err := svc.ListInstalledPairableApps(ctx)
	require.NoError(t, err)
	var names []string
	for _, a := range apps {
		names = append(names, a.Name)
	}
	assert.Equal(t, []string{"SideStore", "StikDebug (Sideloaded)"}, names)

	require.NoError(t, svc.PlacePairingCredential(ctx, apps[0].BundleID, apps[0].Path))
	_, ok = d.Sandbox(apps[0].BundleID).File("/Documents/ALTPairingFile.mobiledevicepairing")
	assert.True(t, ok)

	dir := t.TempDir()
	out, err := svc.ExportPairingCredential(ctx, pairing.FixedPath(dir))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, pairing.DefaultExportName), out)
	data, err := os.ReadFile(out)
	require.NoError(t, err)
	cred, err := pairing.ParseCredential(data)
	require.NoError(t, err)
	assert.Equal(t, testUDID, cred.UDID)

	_, err = svc.ExportPairingCredential(ctx, pairing.DestinationFunc(func(string) (string, error) {
		return "", ErrCancelled
	}))
	assert.True(t, IsCancelled(err))

	svc.SetSelectedDevice(nil)
	_, ok = svc.SelectedDevice()
	assert.False(t, ok)
}
