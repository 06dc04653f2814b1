package installation

import (
	"archive/zip"
	"fmt"
	"io"
	"regexp"

	"github.com/blacktop/go-plist"
)

var infoPlistName = regexp.MustCompile(`^Payload/[^/]+\.app/Info\.plist$`)

// AppBundle is the subset of an app's Info.plist needed to install it.
type AppBundle struct {
	CFBundleDisplayName        string `plist:"CFBundleDisplayName,omitempty"`
	CFBundleExecutable         string `plist:"CFBundleExecutable,omitempty"`
	CFBundleIdentifier         string `plist:"CFBundleIdentifier"`
	CFBundleName               string `plist:"CFBundleName,omitempty"`
	CFBundleShortVersionString string `plist:"CFBundleShortVersionString,omitempty"`
	CFBundleVersion            string `plist:"CFBundleVersion,omitempty"`
	MinimumOSVersion           string `plist:"MinimumOSVersion,omitempty"`
}

// DisplayName falls back to the bundle name when no display name is set.
func (b *AppBundle) DisplayName() string {
	if b.CFBundleDisplayName != "" {
		return b.CFBundleDisplayName
	}
	return b.CFBundleName
}

// AppBundleFromIPA reads the Info.plist of the app inside an .ipa package.
func AppBundleFromIPA(ipa string) (*AppBundle, error) {
	ipaFile, err := zip.OpenReader(ipa)
	if err != nil {
		return nil, err
	}
	defer ipaFile.Close()

	var infoPlistFile *zip.File
	for _, f := range ipaFile.File {
		if infoPlistName.MatchString(f.Name) {
			infoPlistFile = f
			break
		}
	}
	if infoPlistFile == nil {
		return nil, fmt.Errorf("%s has no Payload/*.app/Info.plist", ipa)
	}

	r, err := infoPlistFile.Open()
	if err != nil {
		return nil, err
	}
	defer r.Close()
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	bundle := &AppBundle{}
	if _, err := plist.Unmarshal(data, bundle); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", infoPlistFile.Name, err)
	}
	if bundle.CFBundleIdentifier == "" {
		return nil, fmt.Errorf("%s has no CFBundleIdentifier", infoPlistFile.Name)
	}
	return bundle, nil
}
