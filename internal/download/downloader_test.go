package download

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDownloader_Download(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/SideStore.ipa" {
			http.NotFound(w, r)
			return
		}
		assert.Equal(t, "iloader-test", r.UserAgent())
		w.Write([]byte("ipa contents"))
	}))
	defer srv.Close()

	d := NewDownloader("", false, WithUserAgent("iloader-test"))
	dir := t.TempDir()

	tests := []struct {
		name    string
		path    string
		want    string
		wantErr bool
	}{
		{name: "ok", path: "/SideStore.ipa", want: "ipa contents"},
		{name: "not found", path: "/missing.ipa", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dest := filepath.Join(dir, tt.name+".ipa")
			err := d.Download(context.Background(), srv.URL+tt.path, dest)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrDownloadFailed)
				assert.NoFileExists(t, dest)
				assert.NoFileExists(t, dest+".download")
				return
			}
			require.NoError(t, err)
			data, err := os.ReadFile(dest)
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(data))
			assert.NoFileExists(t, dest+".download")
		})
	}
}

func TestDownloader_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	dest := filepath.Join(t.TempDir(), "SideStore.ipa")
	err := NewDownloader("", false).Download(context.Background(), addr+"/SideStore.ipa", dest)
	require.ErrorIs(t, err, ErrDownloadFailed)
	assert.NoFileExists(t, dest)
}

func TestDownloader_ResetIsNotRetried(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) > 1 {
			w.Write([]byte("ipa contents"))
			return
		}
		conn, _, err := w.(http.Hijacker).Hijack()
		if err != nil {
			return
		}
		if tcp, ok := conn.(*net.TCPConn); ok {
			tcp.SetLinger(0)
		}
		conn.Close()
	}))
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "SideStore.ipa")
	err := NewDownloader("", false).Download(context.Background(), srv.URL+"/SideStore.ipa", dest)
	require.ErrorIs(t, err, ErrDownloadFailed)
	assert.Equal(t, int32(1), hits.Load())
	assert.NoFileExists(t, dest)
	assert.NoFileExists(t, dest+".download")
}

func TestGetProxy(t *testing.T) {
	proxy := GetProxy("http://127.0.0.1:8080")
	req := httptest.NewRequest(http.MethodGet, "https://github.com", nil)
	u, err := proxy(req)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:8080", u.Host)
}
