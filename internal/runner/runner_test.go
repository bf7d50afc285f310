package runner

import (
	"bytes"
	"context"
	"errors"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Cornman92/Better11-sub004/internal/domain/app"
)

func TestInstallCommand(t *testing.T) {
	tests := []struct {
		name string
		meta app.Metadata
		path string
		want []string
	}{
		{
			name: "msi with extra args",
			meta: app.Metadata{ID: "7zip", Kind: app.KindMSI, SilentArgs: []string{"ALLUSERS=1"}},
			path: `C:\cache\7z.msi`,
			want: []string{"msiexec", "/i", `C:\cache\7z.msi`, "/qn", "/norestart", "ALLUSERS=1"},
		},
		{
			name: "exe default args",
			meta: app.Metadata{ID: "git", Kind: app.KindEXE},
			path: `C:\cache\git.exe`,
			want: []string{`C:\cache\git.exe`, "/quiet", "/norestart"},
		},
		{
			name: "exe catalog args",
			meta: app.Metadata{ID: "git", Kind: app.KindEXE, SilentArgs: []string{"/VERYSILENT", "/NORESTART"}},
			path: `C:\cache\git.exe`,
			want: []string{`C:\cache\git.exe`, "/VERYSILENT", "/NORESTART"},
		},
		{
			name: "appx",
			meta: app.Metadata{ID: "terminal", Kind: app.KindAppx},
			path: `C:\cache\O'Brien.msixbundle`,
			want: []string{"powershell", "-NoProfile", "-NonInteractive", "-Command", `Add-AppxPackage -Path 'C:\cache\O''Brien.msixbundle'`},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := InstallCommand(tt.meta, tt.path)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestInstallCommandRequiresPath(t *testing.T) {
	_, err := InstallCommand(app.Metadata{ID: "x", Kind: app.KindMSI}, "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, app.ErrConfiguration))
}

func TestUninstallCommand(t *testing.T) {
	t.Run("explicit command is tokenized", func(t *testing.T) {
		meta := app.Metadata{ID: "vlc", Kind: app.KindEXE, UninstallCommand: `"C:\Program Files\VideoLAN\VLC\uninstall.exe" /S /NCRC`}
		got, err := UninstallCommand(meta, "")
		require.NoError(t, err)
		assert.Equal(t, []string{`C:\Program Files\VideoLAN\VLC\uninstall.exe`, "/S", "/NCRC"}, got)
	})

	t.Run("msi derives from stored path", func(t *testing.T) {
		got, err := UninstallCommand(app.Metadata{ID: "7zip", Kind: app.KindMSI}, `C:\cache\7z.msi`)
		require.NoError(t, err)
		assert.Equal(t, []string{"msiexec", "/x", `C:\cache\7z.msi`, "/qn", "/norestart"}, got)
	})

	t.Run("msi without path", func(t *testing.T) {
		_, err := UninstallCommand(app.Metadata{ID: "7zip", Kind: app.KindMSI}, "")
		require.Error(t, err)
		assert.True(t, errors.Is(err, app.ErrConfiguration))
	})

	for _, kind := range []app.InstallerKind{app.KindEXE, app.KindAppx} {
		t.Run(string(kind)+" requires explicit command", func(t *testing.T) {
			_, err := UninstallCommand(app.Metadata{ID: "x", Kind: kind}, `C:\cache\x`)
			require.Error(t, err)
			assert.True(t, errors.Is(err, app.ErrConfiguration))
			assert.Contains(t, err.Error(), "explicit uninstall command")
		})
	}
}

func TestSplitCommandLine(t *testing.T) {
	tests := []struct {
		input string
		want  []string
	}{
		{input: `a b  c`, want: []string{"a", "b", "c"}},
		{input: `"C:\Program Files\x.exe" /q`, want: []string{`C:\Program Files\x.exe`, "/q"}},
		{input: `msiexec /x {GUID} "NAME=a b"`, want: []string{"msiexec", "/x", "{GUID}", "NAME=a b"}},
		{input: `prog ""`, want: []string{"prog", ""}},
		{input: `   `, want: nil},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := SplitCommandLine(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := SplitCommandLine(`"unterminated`)
	require.Error(t, err)
}

func TestDryRunRecordsCommand(t *testing.T) {
	r := New(WithDryRun(true))
	res, err := r.Install(context.Background(), app.Metadata{ID: "git", Kind: app.KindEXE}, "/cache/git.exe")
	require.NoError(t, err)
	assert.True(t, res.DryRun)
	assert.Equal(t, 0, res.ExitCode)
	assert.Equal(t, []string{"/cache/git.exe", "/quiet", "/norestart"}, res.Command)
}

func TestRunCapturesOutput(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("POSIX shell assumptions do not hold on Windows")
	}

	var tee bytes.Buffer
	r := New(WithDryRun(false), WithOutput(&tee, nil))
	res, err := r.run(context.Background(), "demo", "install", []string{"sh", "-c", "echo installed"})
	require.NoError(t, err)
	assert.Equal(t, "installed", res.Stdout)
	assert.Equal(t, "installed\n", tee.String())
	assert.False(t, res.DryRun)
}

func TestRunNonZeroExitIsInstallerError(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("POSIX shell assumptions do not hold on Windows")
	}

	r := New(WithDryRun(false))
	res, err := r.run(context.Background(), "demo", "install", []string{"sh", "-c", "echo 'bad package' >&2; exit 1603"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, app.ErrInstaller))
	assert.Equal(t, 1603%256, res.ExitCode)
	assert.Equal(t, "bad package", res.Stderr)
}

func TestRunStartFailure(t *testing.T) {
	r := New(WithDryRun(false))
	res, err := r.run(context.Background(), "demo", "install", []string{"/definitely/not/a/binary"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, app.ErrInstaller))
	assert.Equal(t, -1, res.ExitCode)
}

func TestRunRefusesCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := New(WithDryRun(false))
	_, err := r.run(ctx, "demo", "install", []string{"sh", "-c", "true"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, app.ErrCancelled))
}
