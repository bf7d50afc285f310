package catalog

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Cornman92/Better11-sub004/internal/domain/app"
	b11errors "github.com/Cornman92/Better11-sub004/pkg/errors"
)

var digest = strings.Repeat("ab", 32)

const sampleCatalog = `{
  "applications": [
    {
      "app_id": "dotnet-runtime",
      "name": ".NET Runtime",
      "version": "8.0.4",
      "uri": "https://dl.example.com/dotnet/runtime-8.0.4.exe",
      "sha256": "ABABABABABABABABABABABABABABABABABABABABABABABABABABABABABABABAB",
      "installer_type": "EXE",
      "vetted_domains": ["dl.example.com"],
      "silent_args": ["/install", "/quiet"],
      "uninstall_command": "\"C:\\Program Files\\dotnet\\uninstall.exe\" /quiet"
    },
    {
      "app_id": "powertoys",
      "name": "PowerToys",
      "version": "0.80.1",
      "uri": "file:///srv/installers/PowerToysSetup.msi",
      "sha256": "abababababababababababababababababababababababababababababababab",
      "installer_type": "msi",
      "dependencies": ["dotnet-runtime"],
      "signature": "c2lnbmF0dXJl",
      "signature_key": "a2V5",
      "description": "Windows system utilities"
    }
  ]
}`

func TestParseValidCatalog(t *testing.T) {
	cat, err := Parse([]byte(sampleCatalog), "catalog.json")
	require.NoError(t, err)
	require.Equal(t, 2, cat.Len())

	list, err := cat.List()
	require.NoError(t, err)
	assert.Equal(t, "dotnet-runtime", list[0].ID)
	assert.Equal(t, "powertoys", list[1].ID)

	dotnet, err := cat.Get("dotnet-runtime")
	require.NoError(t, err)
	assert.Equal(t, app.KindEXE, dotnet.Kind)
	assert.Equal(t, digest, dotnet.SHA256)
	assert.Equal(t, []string{"/install", "/quiet"}, dotnet.SilentArgs)
	assert.False(t, dotnet.HasSignature())

	toys, err := cat.Get("powertoys")
	require.NoError(t, err)
	assert.Equal(t, app.KindMSI, toys.Kind)
	assert.True(t, toys.HasSignature())
	assert.Equal(t, []string{"dotnet-runtime"}, toys.Dependencies)

	assert.Equal(t, []string{"powertoys"}, cat.Dependents("dotnet-runtime"))
	assert.Empty(t, cat.Dependents("powertoys"))
}

func TestGetUnknownIDIsNotFound(t *testing.T) {
	cat, err := Parse([]byte(sampleCatalog), "catalog.json")
	require.NoError(t, err)

	_, err = cat.Get("missing")
	require.Error(t, err)
	assert.True(t, errors.Is(err, app.ErrNotFound))
}

func TestParseRejectsInvalidEntries(t *testing.T) {
	valid := func(overrides string) string {
		base := `"app_id": "tool", "name": "Tool", "version": "1.0", "uri": "https://example.com/tool.exe", "sha256": "` + digest + `", "installer_type": "exe"`
		if overrides != "" {
			base += ", " + overrides
		}
		return `{"applications": [{` + base + `}]}`
	}

	withURI := func(uri string) string {
		return `{"applications": [{"app_id": "tool", "name": "Tool", "version": "1.0", "uri": "` + uri + `", "sha256": "` + digest + `", "installer_type": "exe"}]}`
	}

	tests := []struct {
		name    string
		input   string
		field   string
		message string
	}{
		{
			name:  "missing name",
			input: `{"applications": [{"app_id": "tool", "version": "1.0", "uri": "https://example.com/t.exe", "sha256": "` + digest + `", "installer_type": "exe"}]}`,
			field: "applications[0].name",
		},
		{
			name:    "blank version",
			input:   `{"applications": [{"app_id": "tool", "name": "Tool", "version": "  ", "uri": "https://example.com/t.exe", "sha256": "` + digest + `", "installer_type": "exe"}]}`,
			field:   "applications[0].version",
			message: "must not be blank",
		},
		{
			name:    "bad installer type",
			input:   `{"applications": [{"app_id": "tool", "name": "Tool", "version": "1.0", "uri": "https://example.com/t.exe", "sha256": "` + digest + `", "installer_type": "zip"}]}`,
			field:   "applications[0].installer_type",
			message: "must be one of msi, exe, appx",
		},
		{
			name:    "bad digest",
			input:   `{"applications": [{"app_id": "tool", "name": "Tool", "version": "1.0", "uri": "https://example.com/t.exe", "sha256": "xyz", "installer_type": "exe"}]}`,
			field:   "applications[0].sha256",
			message: "hex-encoded",
		},
		{
			name:    "invalid uri",
			input:   `{"applications": [{"app_id": "tool", "name": "Tool", "version": "1.0", "uri": "://broken", "sha256": "` + digest + `", "installer_type": "exe"}]}`,
			field:   "applications[0].uri",
			message: "is not a valid URI",
		},
		{
			name:    "uri is plain text",
			input:   withURI("not a uri at all"),
			field:   "applications[0].uri",
			message: "is not a valid URI",
		},
		{
			name:    "https without host",
			input:   withURI("https://"),
			field:   "applications[0].uri",
			message: "is not a valid URI",
		},
		{
			name:    "http with empty host",
			input:   withURI("http:///path/x.msi"),
			field:   "applications[0].uri",
			message: "is not a valid URI",
		},
		{
			name:    "unsupported scheme",
			input:   withURI("ftp://mirror.example.com/x.msi"),
			field:   "applications[0].uri",
			message: "is not a valid URI",
		},
		{
			name:    "file uri naming a directory",
			input:   withURI("file:///srv/installers/"),
			field:   "applications[0].uri",
			message: "is not a valid URI",
		},
		{
			name:    "signature without key",
			input:   valid(`"signature": "c2ln"`),
			field:   "applications[0].signature_key",
			message: "provided together",
		},
		{
			name:    "key without signature",
			input:   valid(`"signature_key": "a2V5"`),
			field:   "applications[0].signature",
			message: "provided together",
		},
		{
			name:    "non base64 signature",
			input:   valid(`"signature": "not base64!", "signature_key": "a2V5"`),
			field:   "applications[0].signature",
			message: "base64",
		},
		{
			name:  "dependencies wrong type",
			input: valid(`"dependencies": "git"`),
			field: "applications[0].dependencies",
		},
		{
			name:  "silent args element wrong type",
			input: valid(`"silent_args": ["/q", 3]`),
			field: "applications[0].silent_args[1]",
		},
		{
			name:  "missing applications",
			input: `{}`,
			field: "catalog",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.input), "catalog.json")
			require.Error(t, err)

			var ve *b11errors.ValidationError
			require.True(t, errors.As(err, &ve), "expected validation error, got %T: %v", err, err)
			assert.Equal(t, tt.field, ve.Field)
			if tt.message != "" {
				assert.Contains(t, ve.Message, tt.message)
			}
		})
	}
}

func TestParseAcceptsFetchableURIs(t *testing.T) {
	tests := []struct {
		name string
		uri  string
		want string
	}{
		{name: "https", uri: "https://dl.example.com/git.exe", want: "https://dl.example.com/git.exe"},
		{name: "http without file name", uri: "http://mirror.local/", want: "http://mirror.local/"},
		{name: "file uri", uri: "file:///srv/installers/git.msi", want: "file:///srv/installers/git.msi"},
		{name: "relative path", uri: "installers/git.msi", want: "installers/git.msi"},
		{name: "drive path", uri: `C:\\Installers\\Git Setup.exe`, want: `C:\Installers\Git Setup.exe`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := `{"applications": [{"app_id": "tool", "name": "Tool", "version": "1.0", "uri": "` + tt.uri + `", "sha256": "` + digest + `", "installer_type": "exe"}]}`
			cat, err := Parse([]byte(input), "catalog.json")
			require.NoError(t, err)

			meta, err := cat.Get("tool")
			require.NoError(t, err)
			assert.Equal(t, tt.want, meta.URI)
		})
	}
}

func TestParseRejectsDuplicateIDs(t *testing.T) {
	entry := `{"app_id": "tool", "name": "Tool", "version": "1.0", "uri": "https://example.com/t.exe", "sha256": "` + digest + `", "installer_type": "exe"}`
	_, err := Parse([]byte(`{"applications": [`+entry+`, `+entry+`]}`), "catalog.json")
	require.Error(t, err)

	var ve *b11errors.ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "applications[1].app_id", ve.Field)
	assert.Contains(t, ve.Message, `duplicate app_id "tool"`)
}

func TestParseReportsSyntaxLine(t *testing.T) {
	_, err := Parse([]byte("{\n  \"applications\": [\n    {,\n  ]\n}"), "broken.json")
	require.Error(t, err)

	var pe *b11errors.ParseError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, "broken.json", pe.Path)
	assert.Equal(t, 3, pe.Line)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	require.Error(t, err)

	var pe *b11errors.ParseError
	require.True(t, errors.As(err, &pe))
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestPointerToField(t *testing.T) {
	assert.Equal(t, "applications[0].name", pointerToField("/applications/0/name"))
	assert.Equal(t, "applications[3].silent_args[1]", pointerToField("/applications/3/silent_args/1"))
	assert.Equal(t, "", pointerToField(""))
}
