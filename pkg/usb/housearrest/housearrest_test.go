package housearrest

import (
	"net"
	"strings"
	"testing"

	"github.com/okinaau/iloader/pkg/usb"
)

func fakeService(t *testing.T, reply map[string]any) (*Client, <-chan map[string]any) {
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
		_ = s.Send(reply)
	}()
	return NewClientFromConn(usb.NewClientFromConn(cli, "test", nil)), got
}

func TestClient_VendDocuments(t *testing.T) {
	c, got := fakeService(t, map[string]any{"Status": "Complete"})

	afcClient, err := c.VendDocuments("com.SideStore.SideStore")
	if err != nil {
		t.Fatal(err)
	}
	if afcClient == nil {
		t.Fatal("expected an AFC client")
	}
	req := <-got
	if req["Command"] != "VendDocuments" || req["Identifier"] != "com.SideStore.SideStore" {
		t.Errorf("unexpected request %v", req)
	}
}

func TestClient_VendDocumentsError(t *testing.T) {
	c, _ := fakeService(t, map[string]any{"Error": "ApplicationLookupFailed"})

	_, err := c.VendDocuments("com.example.missing")
	if err == nil || !strings.Contains(err.Error(), "ApplicationLookupFailed") {
		t.Errorf("VendDocuments() error = %v, want ApplicationLookupFailed", err)
	}
}
