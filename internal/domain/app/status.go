package app

import "time"

// Status records the installation state of one application. It is owned by the
// state store; other packages only read it.
type Status struct {
	AppID                 string     `json:"-"`
	Version               string     `json:"version"`
	InstallerPath         string     `json:"installer_path"`
	Installed             bool       `json:"installed"`
	DependenciesInstalled []string   `json:"dependencies_installed"`
	InstalledAt           *time.Time `json:"installed_at,omitempty"`
}

// Satisfies reports whether the status represents an installation of the
// catalog version of meta.
func (s Status) Satisfies(meta Metadata) bool {
	return s.Installed && VersionsMatch(s.Version, meta.Version)
}

// Update describes an installed application with a newer catalog version.
type Update struct {
	AppID            string
	Name             string
	InstalledVersion string
	CatalogVersion   string
}
