package installation

import (
	"archive/zip"
	"net"
	"os"
	"path/filepath"
	"testing"

	"github.com/blacktop/go-plist"
	"github.com/okinaau/iloader/pkg/usb"
)

// fakeProxy reads one request and answers with replies in order.
func fakeProxy(t *testing.T, replies ...any) (*Client, <-chan map[string]any) {
	t.Helper()
	cli, srv := net.Pipe()
	t.Cleanup(func() {
		_ = cli.Close()
		_ = srv.Close()
	})
	got := make(chan map[string]any, 1)
	go func() {
		s := usb.NewClientFromConn(srv, "test", nil)
		var req map[string]any
		if err := s.Recv(&req); err != nil {
			return
		}
		got <- req
		for _, r := range replies {
			if err := s.Send(r); err != nil {
				return
			}
		}
	}()
	return NewClientFromConn(usb.NewClientFromConn(cli, "test", nil)), got
}

func TestClient_Browse(t *testing.T) {
	c, got := fakeProxy(t,
		map[string]any{
			"Status":      "BrowsingApplications",
			"CurrentList": []any{map[string]any{"CFBundleIdentifier": "com.SideStore.SideStore", "CFBundleDisplayName": "SideStore"}},
		},
		map[string]any{
			"Status":      "BrowsingApplications",
			"CurrentList": []any{map[string]any{"CFBundleIdentifier": "com.kdt.livecontainer", "CFBundleDisplayName": "LiveContainer"}},
		},
		map[string]any{"Status": "Complete"},
	)

	apps, err := c.Browse("User", "CFBundleIdentifier", "CFBundleDisplayName")
	if err != nil {
		t.Fatal(err)
	}
	if len(apps) != 2 {
		t.Fatalf("got %d apps, want 2", len(apps))
	}
	if apps[1]["CFBundleDisplayName"] != "LiveContainer" {
		t.Errorf("unexpected second app %v", apps[1])
	}

	req := <-got
	opts, _ := req["ClientOptions"].(map[string]any)
	if req["Command"] != "Browse" || opts["ApplicationType"] != "User" {
		t.Errorf("unexpected request %v", req)
	}
}

func TestClient_Install(t *testing.T) {
	c, got := fakeProxy(t,
		map[string]any{"Status": "CreatingStagingDirectory", "PercentComplete": 5},
		map[string]any{},
		map[string]any{"Status": "InstallingApplication", "PercentComplete": 60},
		map[string]any{"Status": "Complete"},
	)

	var progress []int
	if err := c.Install("/PublicStaging/app.ipa", func(ev *ProgressEvent) {
		progress = append(progress, ev.PercentComplete)
	}); err != nil {
		t.Fatal(err)
	}
	if len(progress) != 3 || progress[2] != 100 {
		t.Errorf("progress = %v, want [5 60 100]", progress)
	}
	if req := <-got; req["PackagePath"] != "/PublicStaging/app.ipa" {
		t.Errorf("unexpected request %v", req)
	}
}

func TestClient_InstallError(t *testing.T) {
	c, _ := fakeProxy(t,
		map[string]any{"Status": "InstallingApplication", "PercentComplete": 20},
		map[string]any{"Error": "ApplicationVerificationFailed", "ErrorDescription": "no valid signature"},
	)

	err := c.Install("/PublicStaging/app.ipa", nil)
	if err == nil || err.Error() != "ApplicationVerificationFailed: no valid signature" {
		t.Errorf("Install() error = %v", err)
	}
}

func writeIPA(t *testing.T, files map[string]any) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "app.ipa")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	zw := zip.NewWriter(f)
	for name, content := range files {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		data, ok := content.([]byte)
		if !ok {
			if data, err = plist.Marshal(content, plist.XMLFormat); err != nil {
				t.Fatal(err)
			}
		}
		if _, err := w.Write(data); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestAppBundleFromIPA(t *testing.T) {
	ipa := writeIPA(t, map[string]any{
		"Payload/SideStore.app/Info.plist": map[string]any{
			"CFBundleIdentifier":         "com.SideStore.SideStore",
			"CFBundleName":               "SideStore",
			"CFBundleShortVersionString": "0.6.1",
			"MinimumOSVersion":           "14.0",
		},
		"Payload/SideStore.app/Frameworks/Foo.framework/Info.plist": []byte("not a plist"),
	})

	bundle, err := AppBundleFromIPA(ipa)
	if err != nil {
		t.Fatal(err)
	}
	if bundle.CFBundleIdentifier != "com.SideStore.SideStore" || bundle.MinimumOSVersion != "14.0" {
		t.Errorf("unexpected bundle %#v", bundle)
	}
	if bundle.DisplayName() != "SideStore" {
		t.Errorf("DisplayName() = %q", bundle.DisplayName())
	}

	if _, err := AppBundleFromIPA(writeIPA(t, map[string]any{"README": []byte("hi")})); err == nil {
		t.Error("expected an error for a package without an app")
	}
}
