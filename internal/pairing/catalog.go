package pairing

import (
	"regexp"
	"sort"
)

const (
	SideStore     = "SideStore"
	LiveContainer = "LiveContainer"
)

// Entry is an app known to read a pairing file from its Documents directory.
type Entry struct {
	Name string
	Path string
}

// DefaultCatalog lists the supported apps with the Documents relative path
// each one reads its pairing file from.
var DefaultCatalog = []Entry{
	{SideStore, "ALTPairingFile.mobiledevicepairing"},
	{LiveContainer, "SideStore/Documents/ALTPairingFile.mobiledevicepairing"},
	{"Feather", "pairingFile.plist"},
	{"StikDebug", "pairingFile.plist"},
	{"StikDebug (Sideloaded)", "pairingFile.plist"},
	{"StikTest", "stiktest_pairing.plist"},
	{"Protokolle", "pairingFile.plist"},
	{"Antrag", "pairingFile.plist"},
	{"SparseBox", "pairingFile.plist"},
	{"StikStore", "pairingFile.plist"},
	{"ByeTunes", "pairing file/pairingFile.plist"},
}

// VariantRule renames apps whose bundle id matches Pattern by appending
// Suffix, so a sideloaded build is told apart from the store one.
type VariantRule struct {
	Pattern *regexp.Regexp
	Suffix  string
}

var DefaultVariants = []VariantRule{
	{Pattern: regexp.MustCompile(`com\.stik\.stikdebug`), Suffix: " (Sideloaded)"},
}

// App is a catalog entry found installed on a device.
type App struct {
	Name     string `json:"name"`
	BundleID string `json:"bundleId"`
	Path     string `json:"path"`
}

// Matcher intersects installed apps with a catalog.
type Matcher struct {
	Catalog  []Entry
	Variants []VariantRule
}

func DefaultMatcher() Matcher {
	return Matcher{Catalog: DefaultCatalog, Variants: DefaultVariants}
}

func (m Matcher) entry(name string) (Entry, bool) {
	for _, e := range m.Catalog {
		if e.Name == name {
			return e, true
		}
	}
	return Entry{}, false
}

func (m Matcher) presentedName(bundleID, displayName string) string {
	for _, v := range m.Variants {
		if v.Pattern.MatchString(bundleID) {
			return displayName + v.Suffix
		}
	}
	return displayName
}

// Match takes installed display names keyed by bundle id and returns the
// catalog entries present, in catalog order. Bundle ids are visited in
// sorted order and the last one seen for a name wins.
func (m Matcher) Match(installed map[string]string) []App {
	byName := make(map[string]string)
	for _, bundleID := range sortedKeys(installed) {
		name := installed[bundleID]
		if _, ok := m.entry(name); !ok {
			continue
		}
		byName[m.presentedName(bundleID, name)] = bundleID
	}

	var apps []App
	for _, e := range m.Catalog {
		if bundleID, ok := byName[e.Name]; ok {
			apps = append(apps, App{Name: e.Name, BundleID: bundleID, Path: e.Path})
		}
	}
	return apps
}

// First returns the first of names (in preference order) that is installed.
func (m Matcher) First(installed map[string]string, names ...string) (*App, bool) {
	keys := sortedKeys(installed)
	for _, name := range names {
		for _, bundleID := range keys {
			if installed[bundleID] != name {
				continue
			}
			e, _ := m.entry(name)
			return &App{Name: name, BundleID: bundleID, Path: e.Path}, true
		}
	}
	return nil, false
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
