package state

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Cornman92/Better11-sub004/internal/domain/app"
	b11errors "github.com/Cornman92/Better11-sub004/pkg/errors"
)

var fixedNow = time.Date(2026, 5, 4, 10, 30, 0, 0, time.UTC)

func openStore(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "state", "installed.json")
	s, err := Open(path, WithClock(func() time.Time { return fixedNow }))
	require.NoError(t, err)
	return s, path
}

func TestOpenMissingFileIsEmpty(t *testing.T) {
	s, _ := openStore(t)
	assert.Empty(t, s.List())
	_, ok := s.Get("git")
	assert.False(t, ok)
}

func TestMarkInstalledRoundTrip(t *testing.T) {
	s, path := openStore(t)

	status, err := s.MarkInstalled("git", "2.44.0", `C:\cache\git.exe`, []string{"vcredist"})
	require.NoError(t, err)
	assert.True(t, status.Installed)

	got, ok := s.Get("git")
	require.True(t, ok)
	assert.Equal(t, "git", got.AppID)
	assert.Equal(t, "2.44.0", got.Version)
	assert.Equal(t, `C:\cache\git.exe`, got.InstallerPath)
	assert.True(t, got.Installed)
	assert.Equal(t, []string{"vcredist"}, got.DependenciesInstalled)
	require.NotNil(t, got.InstalledAt)
	assert.True(t, fixedNow.Equal(*got.InstalledAt))

	require.NoError(t, s.MarkUninstalled("git"))
	got, ok = s.Get("git")
	require.True(t, ok)
	assert.False(t, got.Installed)
	assert.Equal(t, "2.44.0", got.Version)
	assert.Equal(t, `C:\cache\git.exe`, got.InstallerPath)

	reopened, err := Open(path)
	require.NoError(t, err)
	got, ok = reopened.Get("git")
	require.True(t, ok)
	assert.False(t, got.Installed)
	assert.Equal(t, "2.44.0", got.Version)
}

func TestDocumentShape(t *testing.T) {
	s, path := openStore(t)
	_, err := s.MarkInstalled("7zip", "24.05", "/cache/7z.msi", nil)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "\n  \"7zip\": {")

	var doc map[string]map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))
	entry := doc["7zip"]
	assert.Equal(t, "24.05", entry["version"])
	assert.Equal(t, "/cache/7z.msi", entry["installer_path"])
	assert.Equal(t, true, entry["installed"])
	assert.Equal(t, []any{}, entry["dependencies_installed"])
	assert.Equal(t, "2026-05-04T10:30:00Z", entry["installed_at"])
	assert.NotContains(t, entry, "AppID")

	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))
}

func TestListSortedByID(t *testing.T) {
	s, _ := openStore(t)
	for _, id := range []string{"vscode", "7zip", "git"} {
		_, err := s.MarkInstalled(id, "1.0", "", nil)
		require.NoError(t, err)
	}

	var ids []string
	for _, st := range s.List() {
		ids = append(ids, st.AppID)
	}
	assert.Equal(t, []string{"7zip", "git", "vscode"}, ids)
}

func TestMarkUninstalledUnknown(t *testing.T) {
	s, _ := openStore(t)
	err := s.MarkUninstalled("ghost")
	require.Error(t, err)
	assert.True(t, errors.Is(err, app.ErrNotFound))
}

func TestReturnedStatusIsACopy(t *testing.T) {
	s, _ := openStore(t)
	_, err := s.MarkInstalled("git", "1.0", "", []string{"a"})
	require.NoError(t, err)

	got, _ := s.Get("git")
	got.DependenciesInstalled[0] = "mutated"

	again, _ := s.Get("git")
	assert.Equal(t, []string{"a"}, again.DependenciesInstalled)
}

func TestOpenMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	_, err := Open(path)
	require.Error(t, err)
	var pe *b11errors.ParseError
	assert.True(t, errors.As(err, &pe))
}
