package usb

import (
	"encoding/binary"
	"errors"
	"io"
	"net"
	"testing"

	"github.com/blacktop/go-plist"
)

// fakeMux answers usbmuxd plist requests on one end of a pipe.
func fakeMux(t *testing.T, handle func(req map[string]any) any) *Conn {
	t.Helper()
	cli, srv := net.Pipe()
	t.Cleanup(func() {
		_ = cli.Close()
		_ = srv.Close()
	})
	go func() {
		for {
			var hdr Header
			if err := binary.Read(srv, binary.LittleEndian, &hdr); err != nil {
				return
			}
			data := make([]byte, hdr.Length-HeaderSize)
			if _, err := io.ReadFull(srv, data); err != nil {
				return
			}
			var req map[string]any
			if _, err := plist.Unmarshal(data, &req); err != nil {
				return
			}
			out, err := plist.Marshal(handle(req), plist.XMLFormat)
			if err != nil {
				return
			}
			if err := binary.Write(srv, binary.LittleEndian, Header{
				Length:      uint32(len(out)) + HeaderSize,
				Version:     1,
				MessageType: 8,
				Tag:         hdr.Tag,
			}); err != nil {
				return
			}
			if _, err := srv.Write(out); err != nil {
				return
			}
		}
	}()
	return &Conn{Conn: cli}
}

func TestConn_ListDevices(t *testing.T) {
	conn := fakeMux(t, func(req map[string]any) any {
		if req["MessageType"] != "ListDevices" {
			t.Errorf("unexpected request %v", req["MessageType"])
		}
		return map[string]any{
			"DeviceList": []any{
				map[string]any{
					"MessageType": "Attached",
					"DeviceID":    3,
					"Properties": map[string]any{
						"ConnectionType": "USB",
						"DeviceID":       3,
						"SerialNumber":   "00008101-000A",
					},
				},
				map[string]any{
					"MessageType": "Attached",
					"DeviceID":    7,
					"Properties": map[string]any{
						"ConnectionType": "Network",
						"SerialNumber":   "00008030-000B",
						"UDID":           "00008030-000B",
					},
				},
			},
		}
	})

	devices, err := conn.ListDevices()
	if err != nil {
		t.Fatal(err)
	}
	if len(devices) != 2 {
		t.Fatalf("got %d devices, want 2", len(devices))
	}
	if devices[0].UDID != "00008101-000A" {
		t.Errorf("UDID should fall back to serial number, got %q", devices[0].UDID)
	}
	if devices[1].DeviceID != 7 || devices[1].ConnectionType != "Network" {
		t.Errorf("unexpected network device %#v", devices[1])
	}
}

func TestConn_ReadPairRecord(t *testing.T) {
	record, err := plist.Marshal(PairRecord{
		HostID:     "1C8F3A52-HOST",
		SystemBUID: "BUID",
	}, plist.XMLFormat)
	if err != nil {
		t.Fatal(err)
	}
	conn := fakeMux(t, func(req map[string]any) any {
		if req["PairRecordID"] == "known" {
			return map[string]any{"PairRecordData": record}
		}
		return map[string]any{"MessageType": "Result", "Number": 2}
	})

	pr, err := conn.ReadPairRecord("known")
	if err != nil {
		t.Fatal(err)
	}
	if pr.HostID != "1C8F3A52-HOST" || pr.SystemBUID != "BUID" {
		t.Errorf("unexpected pair record %#v", pr)
	}

	if _, err := conn.ReadPairRecord("unknown"); !errors.Is(err, ErrNoPairRecord) {
		t.Errorf("ReadPairRecord() error = %v, want ErrNoPairRecord", err)
	}
}

func TestConn_Dial(t *testing.T) {
	conn := fakeMux(t, func(req map[string]any) any {
		if req["DeviceID"] == uint64(9) {
			return map[string]any{"MessageType": "Result", "Number": int(ResultValueBadDevice)}
		}
		return map[string]any{"MessageType": "Result", "Number": int(ResultValueOK)}
	})
	if err := conn.Dial(9, 62078); !errors.Is(err, ErrBadDevice) {
		t.Errorf("Dial() error = %v, want ErrBadDevice", err)
	}
	if err := conn.Dial(1, 62078); err != nil {
		t.Errorf("Dial() error = %v", err)
	}
}
