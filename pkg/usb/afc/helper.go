package afc

import (
	"errors"
	"io"
	"os"
	pathpkg "path"
	"strings"
)

// MakeDirAll creates dir and any missing parents. Directories that already
// exist are not an error.
func (c *Client) MakeDirAll(dir string) error {
	dir = pathpkg.Clean("/" + dir)
	if dir == "/" {
		return nil
	}
	cur := ""
	for _, part := range strings.Split(strings.TrimPrefix(dir, "/"), "/") {
		cur += "/" + part
		if err := c.MakeDir(cur); err != nil && !errors.Is(err, ErrObjectExists) {
			return err
		}
	}
	return nil
}

// CopyFileToDevice copies a source local file to the device
func (c *Client) CopyFileToDevice(dst, src string) error {
	srcFile, err := os.Open(src)
	if err != nil {
		return err
	}
	defer srcFile.Close()

	dstFile, err := c.FileRefOpen(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC)
	if err != nil {
		return err
	}

	if _, err := io.Copy(dstFile, srcFile); err != nil {
		dstFile.Close()
		return err
	}

	return dstFile.Close()
}
