package metrics

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPromCounters(t *testing.T) {
	p := NewProm("")

	p.IncInstall("git", "installed")
	p.IncInstall("git", "installed")
	p.IncInstall("vlc", "failed")
	p.IncDownload(true)
	p.IncDownload(false)
	p.IncDownload(false)
	p.IncRetry()
	p.ObserveInstallDuration("git", 12.5)

	families, err := p.Registry().Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, mf := range families {
		names = append(names, mf.GetName())
	}
	assert.ElementsMatch(t, []string{
		"better11_installs_total",
		"better11_downloads_total",
		"better11_download_retries_total",
		"better11_install_duration_seconds",
	}, names)

	text := exposition(t, p)
	assert.Contains(t, text, `better11_installs_total{app="git",status="installed"} 2`)
	assert.Contains(t, text, `better11_installs_total{app="vlc",status="failed"} 1`)
	assert.Contains(t, text, `better11_downloads_total{cache="hit"} 1`)
	assert.Contains(t, text, `better11_downloads_total{cache="miss"} 2`)
	assert.Contains(t, text, "better11_download_retries_total 1")
	assert.Contains(t, text, `better11_install_duration_seconds_count{app="git"} 1`)
}

func exposition(t *testing.T, p *Prom) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "better11.prom")
	require.NoError(t, p.WriteFile(path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestPromInstancesDoNotCollide(t *testing.T) {
	require.NotPanics(t, func() {
		NewProm("better11")
		NewProm("better11")
	})
}

func TestWriteFile(t *testing.T) {
	p := NewProm("better11")
	p.IncInstall("git", "installed")

	assert.Contains(t, exposition(t, p), `better11_installs_total{app="git",status="installed"} 1`)
}

func TestNoop(t *testing.T) {
	var m Noop
	require.NotPanics(t, func() {
		m.IncInstall("a", "b")
		m.IncDownload(true)
		m.IncRetry()
		m.ObserveInstallDuration("a", 1)
	})
}
