package usb

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"sync/atomic"
	"syscall"

	"github.com/blacktop/go-plist"
)

const (
	ProgName            = "iloader"
	BundleID            = "com.okinaau.iloader"
	ClientVersionString = "iloader-usbmux-0.1.0"
)

var (
	// ErrNoPairRecord is returned when usbmuxd has no pair record on file for a device.
	ErrNoPairRecord = errors.New("no pair record on file")
	// ErrBadDevice is returned when usbmuxd does not know the requested device.
	ErrBadDevice = errors.New("bad device")
)

type Header struct {
	Length      uint32
	Version     uint32
	MessageType uint32
	Tag         uint32
}

var HeaderSize = uint32(binary.Size(Header{}))

type Conn struct {
	net.Conn
	tag uint32
}

// NewConnContext dials usbmuxd at the address from the environment (see MuxAddress).
func NewConnContext(ctx context.Context) (*Conn, error) {
	conn, err := usbmuxdDial(ctx)
	if err != nil {
		return nil, err
	}

	return &Conn{Conn: conn}, nil
}

type ResultValue int

const (
	ResultValueOK ResultValue = iota
	ResultValueBadCommand
	ResultValueBadDevice
	ResultValueConnectionRefused
	ResultValueConnectionUnknown1
	ResultValueConnectionUnknown2
	ResultValueBadVersion
)

type connectMessage struct {
	BundleID            string
	ClientVersionString string
	MessageType         string
	ProgName            string
	LibUSBMuxVersion    uint32 `plist:"kLibUSBMuxVersion"`
	DeviceID            uint32
	PortNumber          uint16
}

type resultResponse struct {
	Number ResultValue
}

// Dial turns the connection into a byte stream to port on the device.
// The connection can not be used for usbmuxd requests afterwards.
func (c *Conn) Dial(deviceId, port int) error {
	req := &connectMessage{
		BundleID:            BundleID,
		ClientVersionString: ClientVersionString,
		MessageType:         "Connect",
		ProgName:            ProgName,
		LibUSBMuxVersion:    3,
		DeviceID:            uint32(deviceId),
		PortNumber:          htonl(uint16(port)),
	}
	var resp resultResponse
	if err := c.Request(req, &resp); err != nil {
		return err
	}

	switch resp.Number {
	case ResultValueOK:
		return nil
	case ResultValueConnectionRefused:
		return syscall.ECONNREFUSED
	case ResultValueBadDevice:
		return ErrBadDevice
	default:
		return fmt.Errorf("usbmuxd connect to port %d failed with result %d", port, resp.Number)
	}
}

type listDevicesRequest struct {
	MessageType         string
	ProgName            string
	ClientVersionString string
}

type listDevicesResponse struct {
	DeviceList []*DeviceAttached
}

type DeviceAttached struct {
	MessageType string
	DeviceID    int
	Properties  *DeviceAttachment
}

type DeviceAttachment struct {
	ConnectionSpeed int
	ConnectionType  string
	DeviceID        int
	LocationID      int
	ProductID       int
	SerialNumber    string
	UDID            string
	USBSerialNumber string
}

func (c *Conn) ListDevices() ([]*DeviceAttachment, error) {
	req := &listDevicesRequest{
		MessageType:         "ListDevices",
		ProgName:            ProgName,
		ClientVersionString: ClientVersionString,
	}
	var resp listDevicesResponse
	if err := c.Request(req, &resp); err != nil {
		return nil, err
	}

	devices := make([]*DeviceAttachment, 0, len(resp.DeviceList))
	for _, device := range resp.DeviceList {
		if device.Properties == nil {
			continue
		}
		// network attachments do not always repeat the id in their properties
		if device.Properties.DeviceID == 0 {
			device.Properties.DeviceID = device.DeviceID
		}
		if device.Properties.UDID == "" {
			device.Properties.UDID = device.Properties.SerialNumber
		}
		devices = append(devices, device.Properties)
	}

	return devices, nil
}

// PairRecord is the host/device trust record stored by usbmuxd.
type PairRecord struct {
	DeviceCertificate []byte
	EscrowBag         []byte `plist:"EscrowBag,omitempty"`
	HostCertificate   []byte
	HostID            string
	HostPrivateKey    []byte
	RootCertificate   []byte
	RootPrivateKey    []byte
	SystemBUID        string
	WiFiMACAddress    string `plist:"WiFiMACAddress,omitempty"`
}

type readPairRecordRequest struct {
	BundleID            string
	ClientVersionString string
	ProgName            string
	MessageType         string
	PairRecordID        string `plist:"PairRecordID"`
	LibUSBMuxVersion    uint32 `plist:"kLibUSBMuxVersion"`
}

type readPairRecordResponse struct {
	PairRecordData []byte      `plist:"PairRecordData,omitempty"`
	Number         ResultValue `plist:"Number,omitempty"`
}

func (c *Conn) ReadPairRecord(udid string) (*PairRecord, error) {
	req := &readPairRecordRequest{
		BundleID:            BundleID,
		MessageType:         "ReadPairRecord",
		ClientVersionString: ClientVersionString,
		ProgName:            ProgName,
		PairRecordID:        udid,
		LibUSBMuxVersion:    3,
	}
	var resp readPairRecordResponse
	if err := c.Request(req, &resp); err != nil {
		return nil, err
	}
	if len(resp.PairRecordData) == 0 {
		return nil, fmt.Errorf("%w for %s (result %d)", ErrNoPairRecord, udid, resp.Number)
	}

	var record PairRecord
	if _, err := plist.Unmarshal(resp.PairRecordData, &record); err != nil {
		return nil, fmt.Errorf("failed to decode pair record for %s: %w", udid, err)
	}

	return &record, nil
}

func (c *Conn) Request(req, resp any) error {
	if err := c.Send(req); err != nil {
		return err
	}

	return c.Recv(resp)
}

func (c *Conn) Send(msg any) error {
	data, err := plist.Marshal(msg, plist.XMLFormat)
	if err != nil {
		return err
	}

	hdr := &Header{
		Length:      uint32(len(data)) + HeaderSize,
		Version:     1,
		MessageType: 8, // plist
		Tag:         atomic.AddUint32(&c.tag, 1),
	}
	if err := binary.Write(c, binary.LittleEndian, hdr); err != nil {
		return err
	}

	return binary.Write(c, binary.LittleEndian, data)
}

func (c *Conn) Recv(msg any) error {
	var hdr Header
	if err := binary.Read(c, binary.LittleEndian, &hdr); err != nil {
		return err
	}
	if hdr.Length < HeaderSize {
		return fmt.Errorf("invalid usbmuxd header length %d", hdr.Length)
	}

	data := make([]byte, hdr.Length-HeaderSize)
	if _, err := io.ReadFull(c, data); err != nil {
		return err
	}

	if _, err := plist.Unmarshal(data, msg); err != nil {
		return err
	}

	return nil
}

func htonl(v uint16) uint16 {
	return (v << 8 & 0xFF00) | (v >> 8 & 0xFF)
}
