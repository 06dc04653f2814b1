package afc

import (
	"encoding/binary"
	"fmt"
	"os"
)

const (
	afcOpStatus         = 0x00000001
	afcOpMakeDir        = 0x00000009 /* MakeDir */
	afcOpFileRefOpen    = 0x0000000d /* FileRefOpen */
	afcOpFileRefOpenRes = 0x0000000e /* FileRefOpenResult */
	afcOpFileRefWrite   = 0x00000010 /* FileRefWrite */
	afcOpFileRefClose   = 0x00000014 /* FileRefClose */
)

// maxChunk bounds a single FileRefWrite packet.
const maxChunk = 1 << 20

// FileRef is a file opened on the device.
type FileRef struct {
	c   *Client
	ref uint64
}

func (f *FileRef) Write(p []byte) (n int, err error) {
	for n < len(p) {
		end := min(n+maxChunk, len(p))
		if err := f.c.requestNoReply(afcOpFileRefWrite, p[n:end], f.ref); err != nil {
			return n, err
		}
		n = end
	}
	return n, nil
}

func (f *FileRef) Close() error {
	return f.c.requestNoReply(afcOpFileRefClose, nil, f.ref)
}

// WriteFile creates or truncates name and writes data to it.
func (c *Client) WriteFile(name string, data []byte) error {
	f, err := c.FileRefOpen(name, os.O_WRONLY|os.O_CREATE|os.O_TRUNC)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", name, err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	return f.Close()
}

func (c *Client) MakeDir(dir string) error {
	return c.requestNoReply(afcOpMakeDir, nil, dir)
}

func (c *Client) FileRefOpen(name string, flags int) (*FileRef, error) {
	mode, err := openFlagsToAfcFlags(flags)
	if err != nil {
		return nil, err
	}
	resp, err := c.request(afcOpFileRefOpen, nil, mode, name)
	if err != nil {
		return nil, err
	}
	if resp.operation != afcOpFileRefOpenRes || len(resp.data) < 8 {
		return nil, fmt.Errorf("unexpected AFC reply %#x to open %s", resp.operation, name)
	}
	return &FileRef{
		c:   c,
		ref: binary.LittleEndian.Uint64(resp.data),
	}, nil
}
