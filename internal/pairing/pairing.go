// Package pairing reads a device's pair record and hands it to apps on the
// device or to a file on this host.
package pairing

import "errors"

var (
	// ErrPairingUnavailable is returned when usbmuxd has no pair record for the device.
	ErrPairingUnavailable = errors.New("device is not paired with this computer")
	// ErrMalformedAppMetadata is returned when installed app metadata can not be read.
	ErrMalformedAppMetadata = errors.New("failed to parse installed apps")
	// ErrCancelled is returned when the user aborts choosing an export destination.
	ErrCancelled = errors.New("cancelled")
	// ErrCredentialMismatch is returned when a pair record is not bound to the device it was read for.
	ErrCredentialMismatch = errors.New("pairing record does not match device")
)

// DefaultExportName is the file name suggested when exporting a pairing file.
const DefaultExportName = "pairingFile.plist"
