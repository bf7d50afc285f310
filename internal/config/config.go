// Package config loads the installer settings file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"regexp"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	b11errors "github.com/Cornman92/Better11-sub004/pkg/errors"
)

// EnvConfig names the environment variable holding the settings file path.
const EnvConfig = "BETTER11_CONFIG"

// DefaultDirName is the per-user directory holding catalog, state and cache.
const DefaultDirName = ".better11"

// Settings are the resolved installer settings.
type Settings struct {
	CatalogPath     string        `yaml:"catalog_path" validate:"required"`
	StatePath       string        `yaml:"state_path" validate:"required"`
	CacheDir        string        `yaml:"cache_dir" validate:"required"`
	SourceRoot      string        `yaml:"source_root"`
	CacheExpiration time.Duration `yaml:"cache_expiration" validate:"gte=0"`
	Download        Download      `yaml:"download"`
	DryRun          bool          `yaml:"dry_run"`
	LogLevel        string        `yaml:"log_level" validate:"log_level"`
	LogFormat       string        `yaml:"log_format" validate:"oneof=json console"`
	MetricsFile     string        `yaml:"metrics_file"`
}

// Download tunes the artifact downloader.
type Download struct {
	MaxAttempts    int           `yaml:"max_attempts" validate:"gte=1,lte=10"`
	InitialBackoff time.Duration `yaml:"initial_backoff" validate:"gte=0"`
	MaxBackoff     time.Duration `yaml:"max_backoff" validate:"gtefield=InitialBackoff"`
	Timeout        time.Duration `yaml:"timeout" validate:"gt=0"`
}

// Defaults returns settings rooted at ~/.better11. Dry run is on unless the
// process runs on Windows.
func Defaults() *Settings {
	base := DefaultDirName
	if home, err := os.UserHomeDir(); err == nil {
		base = filepath.Join(home, DefaultDirName)
	}
	return &Settings{
		CatalogPath:     filepath.Join(base, "catalog.json"),
		StatePath:       filepath.Join(base, "installed.json"),
		CacheDir:        filepath.Join(base, "downloads"),
		CacheExpiration: 5 * time.Minute,
		Download: Download{
			MaxAttempts:    3,
			InitialBackoff: time.Second,
			MaxBackoff:     30 * time.Second,
			Timeout:        10 * time.Minute,
		},
		DryRun:    runtime.GOOS != "windows",
		LogLevel:  "info",
		LogFormat: "console",
	}
}

// Load reads the settings file at path over the defaults. An empty path falls
// back to $BETTER11_CONFIG; when that is unset too the defaults are returned.
func Load(path string) (*Settings, error) {
	cfg := Defaults()
	if path == "" {
		path = os.Getenv(EnvConfig)
	}
	if path == "" {
		return cfg, Validate(cfg)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, b11errors.NewParseError(path, 0, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, b11errors.NewParseError(path, extractLine(err), err)
	}

	base := filepath.Dir(path)
	cfg.CatalogPath = resolvePath(base, cfg.CatalogPath)
	cfg.StatePath = resolvePath(base, cfg.StatePath)
	cfg.CacheDir = resolvePath(base, cfg.CacheDir)
	cfg.SourceRoot = resolvePath(base, cfg.SourceRoot)
	cfg.MetricsFile = resolvePath(base, cfg.MetricsFile)

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks field constraints.
func Validate(cfg *Settings) error {
	if cfg == nil {
		return b11errors.NewValidationError("config", "settings are nil", nil)
	}
	if err := validatorInstance().Struct(cfg); err != nil {
		return convertValidationError(err)
	}
	return nil
}

// resolvePath expands a leading ~ and anchors relative paths at the settings
// file directory.
func resolvePath(base, p string) string {
	if p == "" {
		return ""
	}
	if p == "~" || strings.HasPrefix(p, "~/") || strings.HasPrefix(p, `~\`) {
		if home, err := os.UserHomeDir(); err == nil {
			p = filepath.Join(home, p[1:])
		}
	}
	if !filepath.IsAbs(p) {
		p = filepath.Join(base, p)
	}
	return filepath.Clean(p)
}

var (
	validatorOnce sync.Once
	validateInst  *validator.Validate

	yamlLineRegex = regexp.MustCompile(`line (\d+)`)
	logLevels     = map[string]struct{}{"debug": {}, "info": {}, "warn": {}, "error": {}}
)

func validatorInstance() *validator.Validate {
	validatorOnce.Do(func() {
		v := validator.New()
		v.RegisterTagNameFunc(func(field reflect.StructField) string {
			name := strings.SplitN(field.Tag.Get("yaml"), ",", 2)[0]
			if name == "-" || name == "" {
				return field.Name
			}
			return name
		})

		_ = v.RegisterValidation("log_level", func(fl validator.FieldLevel) bool {
			_, ok := logLevels[strings.ToLower(fl.Field().String())]
			return ok
		})

		validateInst = v
	})
	return validateInst
}

func convertValidationError(err error) error {
	var ves validator.ValidationErrors
	if !errors.As(err, &ves) || len(ves) == 0 {
		return b11errors.NewValidationError("config", err.Error(), err)
	}
	fe := ves[0]
	field := fe.Namespace()
	if idx := strings.Index(field, "."); idx >= 0 {
		field = field[idx+1:]
	}

	var msg string
	switch fe.Tag() {
	case "required":
		msg = "is required"
	case "log_level":
		msg = fmt.Sprintf("must be one of debug, info, warn, error (got %q)", fe.Value())
	case "oneof":
		msg = fmt.Sprintf("must be one of %s", fe.Param())
	case "gtefield":
		msg = "must not be shorter than initial_backoff"
	default:
		msg = fmt.Sprintf("failed validation for tag '%s'", fe.Tag())
		if fe.Param() != "" {
			msg = fmt.Sprintf("failed validation for tag '%s=%s'", fe.Tag(), fe.Param())
		}
	}
	return b11errors.NewValidationError(field, msg, err)
}

func extractLine(err error) int {
	matches := yamlLineRegex.FindStringSubmatch(err.Error())
	if len(matches) != 2 {
		return 0
	}
	var line int
	if _, scanErr := fmt.Sscanf(matches[1], "%d", &line); scanErr != nil {
		return 0
	}
	return line
}
