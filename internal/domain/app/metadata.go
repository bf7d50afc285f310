package app

import (
	"net/url"
	"path"
	"strings"
)

// InstallerKind is the closed set of installer technologies a catalog entry can
// declare.
type InstallerKind string

const (
	// KindMSI is a Windows Installer package.
	KindMSI InstallerKind = "msi"
	// KindEXE is a self-extracting executable installer.
	KindEXE InstallerKind = "exe"
	// KindAppx is an app package installed through the package manager.
	KindAppx InstallerKind = "appx"
)

// ParseInstallerKind normalises the catalog spelling of an installer type.
func ParseInstallerKind(raw string) (InstallerKind, bool) {
	switch InstallerKind(strings.ToLower(strings.TrimSpace(raw))) {
	case KindMSI:
		return KindMSI, true
	case KindEXE:
		return KindEXE, true
	case KindAppx:
		return KindAppx, true
	default:
		return "", false
	}
}

// Metadata describes one vetted application in the catalog. Values are
// immutable once the catalog has been loaded.
type Metadata struct {
	ID               string
	Name             string
	Version          string
	URI              string
	SHA256           string
	Kind             InstallerKind
	VettedDomains    []string
	Signature        string
	SignatureKey     string
	Dependencies     []string
	SilentArgs       []string
	UninstallCommand string
	Description      string
}

// HasSignature reports whether both the detached signature and its key are
// declared.
func (m Metadata) HasSignature() bool {
	return m.Signature != "" && m.SignatureKey != ""
}

// ArtifactName derives the local file name for the installer from the source
// URI. It is deterministic so cached artifacts can be located without a fetch.
func (m Metadata) ArtifactName() string {
	raw := strings.TrimSpace(m.URI)
	name := ""
	if u, err := url.Parse(raw); err == nil && len(u.Scheme) > 1 {
		name = path.Base(u.Path)
	} else {
		normalized := strings.ReplaceAll(raw, `\`, "/")
		name = path.Base(normalized)
	}
	if name == "" || name == "." || name == "/" {
		name = m.ID + "-" + m.Version + "." + string(m.Kind)
	}
	return name
}

// DependsOn reports whether id is a direct dependency of m.
func (m Metadata) DependsOn(id string) bool {
	for _, dep := range m.Dependencies {
		if dep == id {
			return true
		}
	}
	return false
}
