package pairing

import "path/filepath"

// Destination picks where an exported pairing file is written. Implementations
// return ErrCancelled when the user backs out.
type Destination interface {
	Choose(defaultName string) (string, error)
}

// FixedPath always exports to the same path. A directory or empty path gets
// the default file name.
type FixedPath string

func (p FixedPath) Choose(defaultName string) (string, error) {
	if p == "" {
		return defaultName, nil
	}
	if isDir(string(p)) {
		return filepath.Join(string(p), defaultName), nil
	}
	return string(p), nil
}

// DestinationFunc adapts a prompt to a Destination.
type DestinationFunc func(defaultName string) (string, error)

func (f DestinationFunc) Choose(defaultName string) (string, error) {
	return f(defaultName)
}
