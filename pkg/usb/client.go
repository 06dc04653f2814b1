package usb

import (
	"context"
	"crypto/tls"
	"encoding/binary"
	"fmt"
	"io"
	"net"

	"github.com/blacktop/go-plist"
)

// Client is a plist service connection to a port on a device.
type Client struct {
	tlsConn    *tls.Conn
	conn       net.Conn
	udid       string
	deviceID   int
	pairRecord *PairRecord
}

// NewClient connects to port on the device and loads its pair record so the
// connection can be upgraded to TLS.
func NewClient(ctx context.Context, udid string, port int) (*Client, error) {
	return newClient(ctx, udid, port, true)
}

// Dial connects to port on the device without reading a pair record.
func Dial(ctx context.Context, udid string, port int) (*Client, error) {
	return newClient(ctx, udid, port, false)
}

// newClient binds the usbmuxd exchange to ctx. Once it returns, the stream
// is no longer tied to ctx.
func newClient(ctx context.Context, udid string, port int, withPairRecord bool) (*Client, error) {
	conn, err := NewConnContext(ctx)
	if err != nil {
		return nil, err
	}

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	cli, err := connect(conn, udid, port, withPairRecord)
	if !stop() {
		conn.Close()
		return nil, ctx.Err()
	}
	if err != nil {
		conn.Close()
		return nil, err
	}
	return cli, nil
}

func connect(conn *Conn, udid string, port int, withPairRecord bool) (*Client, error) {
	var pairRecord *PairRecord
	if withPairRecord {
		pr, err := conn.ReadPairRecord(udid)
		if err != nil {
			return nil, err
		}
		pairRecord = pr
	}

	devices, err := conn.ListDevices()
	if err != nil {
		return nil, err
	}

	deviceID := -1
	for _, device := range devices {
		if device.UDID == udid {
			deviceID = device.DeviceID
			break
		}
	}

	if deviceID < 0 {
		return nil, fmt.Errorf("unable to find device with udid: %v", udid)
	}

	if err := conn.Dial(deviceID, port); err != nil {
		return nil, err
	}

	return &Client{
		conn:       conn,
		pairRecord: pairRecord,
		udid:       udid,
		deviceID:   deviceID,
	}, nil
}

// NewClientFromConn wraps an already connected service stream.
func NewClientFromConn(conn net.Conn, udid string, pairRecord *PairRecord) *Client {
	return &Client{
		conn:       conn,
		udid:       udid,
		pairRecord: pairRecord,
	}
}

func (c *Client) EnableSSL() error {
	if c.pairRecord == nil {
		return fmt.Errorf("no pair record loaded for %s", c.udid)
	}
	cert, err := tls.X509KeyPair(c.pairRecord.HostCertificate, c.pairRecord.HostPrivateKey)
	if err != nil {
		return err
	}

	c.tlsConn = tls.Client(c.conn, &tls.Config{
		Certificates:       []tls.Certificate{cert},
		InsecureSkipVerify: true,
	})
	if err := c.tlsConn.Handshake(); err != nil {
		return err
	}

	return nil
}

func (c *Client) Request(req, resp any) error {
	if err := c.Send(req); err != nil {
		return err
	}

	return c.Recv(resp)
}

func (c *Client) Send(req any) error {
	data, err := plist.Marshal(req, plist.XMLFormat)
	if err != nil {
		return err
	}

	if err := binary.Write(c.Conn(), binary.BigEndian, uint32(len(data))); err != nil {
		return err
	}

	return binary.Write(c.Conn(), binary.BigEndian, data)
}

func (c *Client) Recv(resp any) error {
	data, err := c.RecvBytes()
	if err != nil {
		return err
	}

	if _, err := plist.Unmarshal(data, resp); err != nil {
		return err
	}

	return nil
}

func (c *Client) RecvBytes() ([]byte, error) {
	size := uint32(0)
	if err := binary.Read(c.Conn(), binary.BigEndian, &size); err != nil {
		return nil, err
	}

	data := make([]byte, size)
	if _, err := io.ReadFull(c.Conn(), data); err != nil {
		return nil, err
	}

	return data, nil
}

func (c *Client) UDID() string {
	return c.udid
}

func (c *Client) DeviceID() int {
	return c.deviceID
}

func (c *Client) Conn() net.Conn {
	if c.tlsConn != nil {
		return c.tlsConn
	}

	return c.conn
}

func (c *Client) PairRecord() *PairRecord {
	return c.pairRecord
}

// SetPairRecord replaces the record used by EnableSSL.
func (c *Client) SetPairRecord(pr *PairRecord) {
	c.pairRecord = pr
}

func (c *Client) Close() error {
	return c.Conn().Close()
}
