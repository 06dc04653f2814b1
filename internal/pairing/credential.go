package pairing

import (
	"fmt"

	"github.com/blacktop/go-plist"
	"github.com/okinaau/iloader/pkg/usb"
)

// Credential is a host pair record bound to the device it was read for.
type Credential struct {
	Record usb.PairRecord
	UDID   string
}

type credentialFile struct {
	DeviceCertificate []byte
	EscrowBag         []byte `plist:"EscrowBag,omitempty"`
	HostCertificate   []byte
	HostID            string
	HostPrivateKey    []byte
	RootCertificate   []byte
	RootPrivateKey    []byte
	SystemBUID        string
	UDID              string
	WiFiMACAddress    string `plist:"WiFiMACAddress,omitempty"`
}

// Verify checks the credential belongs to udid.
func (c *Credential) Verify(udid string) error {
	if c.UDID == "" {
		return fmt.Errorf("%w: pairing record has no UDID", ErrCredentialMismatch)
	}
	if c.UDID != udid {
		return fmt.Errorf("%w: pairing record is for %s, not %s", ErrCredentialMismatch, c.UDID, udid)
	}
	return nil
}

// Serialize encodes the credential as the XML pairing file apps import.
func (c *Credential) Serialize() ([]byte, error) {
	data, err := plist.MarshalIndent(credentialFile{
		DeviceCertificate: c.Record.DeviceCertificate,
		EscrowBag:         c.Record.EscrowBag,
		HostCertificate:   c.Record.HostCertificate,
		HostID:            c.Record.HostID,
		HostPrivateKey:    c.Record.HostPrivateKey,
		RootCertificate:   c.Record.RootCertificate,
		RootPrivateKey:    c.Record.RootPrivateKey,
		SystemBUID:        c.Record.SystemBUID,
		UDID:              c.UDID,
		WiFiMACAddress:    c.Record.WiFiMACAddress,
	}, plist.XMLFormat, "\t")
	if err != nil {
		return nil, fmt.Errorf("failed to serialize pairing file: %w", err)
	}
	return data, nil
}

// ParseCredential decodes a pairing file written by Serialize.
func ParseCredential(data []byte) (*Credential, error) {
	var f credentialFile
	if _, err := plist.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse pairing file: %w", err)
	}
	return &Credential{
		Record: usb.PairRecord{
			DeviceCertificate: f.DeviceCertificate,
			EscrowBag:         f.EscrowBag,
			HostCertificate:   f.HostCertificate,
			HostID:            f.HostID,
			HostPrivateKey:    f.HostPrivateKey,
			RootCertificate:   f.RootCertificate,
			RootPrivateKey:    f.RootPrivateKey,
			SystemBUID:        f.SystemBUID,
			WiFiMACAddress:    f.WiFiMACAddress,
		},
		UDID: f.UDID,
	}, nil
}
