package afc

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"net"
	"strings"
	"sync"
	"testing"

	"github.com/okinaau/iloader/pkg/usb"
)

// memFS is a minimal AFC server keeping directories and files in memory.
type memFS struct {
	mu    sync.Mutex
	dirs  map[string]bool
	files map[string][]byte
	open  map[uint64]string
	next  uint64
}

func newMemFS() *memFS {
	return &memFS{
		dirs:  map[string]bool{"/": true},
		files: map[string][]byte{},
		open:  map[uint64]string{},
	}
}

func (m *memFS) serve(t *testing.T) *Client {
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
			args := make([]byte, hdr.ThisLength-headerSize)
			if _, err := io.ReadFull(srv, args); err != nil {
				return
			}
			payload := make([]byte, hdr.EntireLength-hdr.ThisLength)
			if _, err := io.ReadFull(srv, payload); err != nil {
				return
			}
			op, data := m.handle(hdr.Operation, args, payload)
			out := &Header{
				EntireLength: headerSize + uint64(len(data)),
				ThisLength:   headerSize + uint64(len(data)),
				PacketNum:    hdr.PacketNum,
				Operation:    op,
			}
			copy(out.Magic[:], afcMagic)
			if err := binary.Write(srv, binary.LittleEndian, out); err != nil {
				return
			}
			if _, err := srv.Write(data); err != nil {
				return
			}
		}
	}()
	return NewClientFromConn(usb.NewClientFromConn(cli, "test", nil))
}

func status(code uint64) (uint64, []byte) {
	return afcOpStatus, binary.LittleEndian.AppendUint64(nil, code)
}

func (m *memFS) handle(op uint64, args, payload []byte) (uint64, []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch op {
	case afcOpMakeDir:
		dir := strings.TrimSuffix(string(args), "\x00")
		if m.dirs[dir] {
			return status(afcEObjectExists)
		}
		parent := dir[:strings.LastIndex(dir, "/")]
		if parent == "" {
			parent = "/"
		}
		if !m.dirs[parent] {
			return status(afcEObjectNotFound)
		}
		m.dirs[dir] = true
		return status(afcESuccess)
	case afcOpFileRefOpen:
		name := strings.TrimSuffix(string(args[8:]), "\x00")
		m.next++
		m.open[m.next] = name
		if binary.LittleEndian.Uint64(args) == afcFOpenWronly {
			m.files[name] = nil
		}
		return afcOpFileRefOpenRes, binary.LittleEndian.AppendUint64(nil, m.next)
	case afcOpFileRefWrite:
		name := m.open[binary.LittleEndian.Uint64(args)]
		m.files[name] = append(m.files[name], payload...)
		return status(afcESuccess)
	case afcOpFileRefClose:
		delete(m.open, binary.LittleEndian.Uint64(args))
		return status(afcESuccess)
	default:
		return status(afcEOpNotSupported)
	}
}

func TestClient_MakeDirAll(t *testing.T) {
	fs := newMemFS()
	c := fs.serve(t)

	if err := c.MakeDirAll("/Documents/SideStore/Pairing"); err != nil {
		t.Fatalf("MakeDirAll() error = %v", err)
	}
	for _, dir := range []string{"/Documents", "/Documents/SideStore", "/Documents/SideStore/Pairing"} {
		if !fs.dirs[dir] {
			t.Errorf("directory %s was not created", dir)
		}
	}
	// existing directories are fine
	if err := c.MakeDirAll("/Documents/SideStore"); err != nil {
		t.Errorf("MakeDirAll() on existing dir error = %v", err)
	}
	if err := c.MakeDir("/Documents"); !errors.Is(err, ErrObjectExists) {
		t.Errorf("MakeDir() error = %v, want ErrObjectExists", err)
	}
}

func TestClient_WriteFile(t *testing.T) {
	fs := newMemFS()
	c := fs.serve(t)

	if err := c.WriteFile("/Documents/pairing.plist", []byte("first version that is longer")); err != nil {
		t.Fatal(err)
	}
	want := []byte("second")
	if err := c.WriteFile("/Documents/pairing.plist", want); err != nil {
		t.Fatal(err)
	}
	if got := fs.files["/Documents/pairing.plist"]; !bytes.Equal(got, want) {
		t.Errorf("file content = %q, want %q", got, want)
	}
	if len(fs.open) != 0 {
		t.Errorf("%d file refs left open", len(fs.open))
	}
}

func TestClient_WriteFileChunks(t *testing.T) {
	fs := newMemFS()
	c := fs.serve(t)

	data := bytes.Repeat([]byte{0xAB}, maxChunk*2+17)
	if err := c.WriteFile("/big.bin", data); err != nil {
		t.Fatal(err)
	}
	if got := fs.files["/big.bin"]; !bytes.Equal(got, data) {
		t.Errorf("got %d bytes, want %d", len(got), len(data))
	}
}

func TestOpenFlagsToAfcFlags(t *testing.T) {
	if _, err := openFlagsToAfcFlags(0x7fff); err == nil {
		t.Error("expected an error for unsupported flags")
	}
}
