package server

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/99designs/keyring"
	"github.com/gin-gonic/gin"
	"github.com/okinaau/iloader/api/types"
	"github.com/okinaau/iloader/internal/account"
	"github.com/okinaau/iloader/internal/commands/loader"
	"github.com/okinaau/iloader/internal/config"
	"github.com/okinaau/iloader/internal/device"
	"github.com/okinaau/iloader/internal/device/devicetest"
	"github.com/okinaau/iloader/pkg/usb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testUDID = "00008120-0002ABCD"

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	d := &devicetest.Device{
		Handle: device.Handle{DeviceID: 2, UDID: testUDID, ConnectionType: "Network"},
		Values: map[string]any{"DeviceName": "Living Room iPad", "UniqueDeviceID": testUDID},
		Record: &usb.PairRecord{HostID: "HOST", SystemBUID: "BUID"},
		Apps: []map[string]any{
			{"CFBundleIdentifier": "com.feather.app", "CFBundleDisplayName": "Feather"},
		},
	}
	svc := loader.New(&config.Config{}, loader.Options{
		Transport: devicetest.New(d),
		Accounts:  account.NewStore(keyring.NewArrayKeyring(nil)),
		TempDir:   t.TempDir(),
	})
	srv := httptest.NewServer(NewServer(&Config{}, svc).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func do(t *testing.T, method, url string, body any) *http.Response {
	t.Helper()
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, url, r)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func TestPing(t *testing.T) {
	srv := newTestServer(t)
	resp := do(t, http.MethodGet, srv.URL+"/v1/_ping", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, "OK", string(body))
}

func TestDevicesAndPairing(t *testing.T) {
	srv := newTestServer(t)

	resp := do(t, http.MethodGet, srv.URL+"/v1/devices/selected", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = do(t, http.MethodGet, srv.URL+"/v1/pairing/apps", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	var devices []device.Info
	resp = do(t, http.MethodGet, srv.URL+"/v1/devices", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decode(t, resp, &devices)
	require.Len(t, devices, 1)
	assert.Equal(t, "Living Room iPad", devices[0].Name)
	assert.Equal(t, device.Network, devices[0].ConnectionKind)

	resp = do(t, http.MethodPut, srv.URL+"/v1/devices/selected", devices[0])
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var apps []map[string]string
	resp = do(t, http.MethodGet, srv.URL+"/v1/pairing/apps", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decode(t, resp, &apps)
	require.Len(t, apps, 1)
	assert.Equal(t, "Feather", apps[0]["name"])
	assert.Equal(t, "com.feather.app", apps[0]["bundleId"])

	resp = do(t, http.MethodPost, srv.URL+"/v1/pairing/place", types.PlaceRequest{BundleID: "com.feather.app", Path: "pairingFile.plist"})
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	var exported types.ExportResponse
	resp = do(t, http.MethodPost, srv.URL+"/v1/pairing/export", types.ExportRequest{Path: t.TempDir()})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decode(t, resp, &exported)
	assert.FileExists(t, exported.Path)

	resp = do(t, http.MethodDelete, srv.URL+"/v1/devices/selected", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestSideloadEvents(t *testing.T) {
	srv := newTestServer(t)

	var op types.OperationResponse
	resp := do(t, http.MethodPost, srv.URL+"/v1/sideload", types.SideloadRequest{Path: "/tmp/app.ipa"})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	decode(t, resp, &op)
	assert.Equal(t, "sideload", op.Name)
	require.NotEmpty(t, op.ID)

	resp = do(t, http.MethodGet, srv.URL+"/v1/operations/"+op.ID+"/events", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	stream := string(body)
	assert.Contains(t, stream, "event:started")
	assert.Contains(t, stream, "event:failed")
	assert.Contains(t, stream, "event:end")
	assert.Contains(t, stream, "no device selected")

	var status types.OperationStatus
	resp = do(t, http.MethodGet, srv.URL+"/v1/operations/"+op.ID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decode(t, resp, &status)
	assert.True(t, status.Done)
	require.Len(t, status.Events, 2)
	assert.Equal(t, "install", status.Events[1].Step)

	resp = do(t, http.MethodGet, srv.URL+"/v1/operations/nope", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = do(t, http.MethodPost, srv.URL+"/v1/sideload", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
