// Package appconfig exports and imports named selections of catalog
// applications so a setup can be reproduced on another machine.
package appconfig

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shirou/gopsutil/v3/host"

	"github.com/Cornman92/Better11-sub004/internal/domain/app"
	b11errors "github.com/Cornman92/Better11-sub004/pkg/errors"
)

// FormatVersion is written into every exported document.
const FormatVersion = "1.0"

// Document is the on-disk configuration format.
type Document struct {
	Version       string            `json:"version" validate:"required"`
	Name          string            `json:"name" validate:"nonblank"`
	Description   string            `json:"description,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
	OriginMachine string            `json:"origin_machine,omitempty"`
	Applications  []string          `json:"applications" validate:"min=1,unique,dive,nonblank"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

// HostInfoFunc returns facts about the local machine.
type HostInfoFunc func() (*host.InfoStat, error)

// Exporter builds documents stamped with host details.
type Exporter struct {
	hostInfo HostInfoFunc
	now      func() time.Time
}

// Option customises an Exporter.
type Option func(*Exporter)

// WithHostInfo replaces the gopsutil host lookup.
func WithHostInfo(fn HostInfoFunc) Option {
	return func(e *Exporter) {
		if fn != nil {
			e.hostInfo = fn
		}
	}
}

// WithClock injects the creation timestamp source.
func WithClock(now func() time.Time) Option {
	return func(e *Exporter) {
		if now != nil {
			e.now = now
		}
	}
}

// NewExporter creates an Exporter.
func NewExporter(opts ...Option) *Exporter {
	e := &Exporter{hostInfo: host.Info, now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Export builds a validated document for ids. Host details are best effort.
func (e *Exporter) Export(name, description string, ids []string) (*Document, error) {
	doc := &Document{
		Version:      FormatVersion,
		Name:         name,
		Description:  description,
		CreatedAt:    e.now().UTC(),
		Applications: append([]string(nil), ids...),
		Metadata:     map[string]string{},
	}
	if info, err := e.hostInfo(); err == nil && info != nil {
		doc.OriginMachine = info.Hostname
		setIfPresent(doc.Metadata, "os", info.OS)
		setIfPresent(doc.Metadata, "platform", info.Platform)
		setIfPresent(doc.Metadata, "platform_version", info.PlatformVersion)
		setIfPresent(doc.Metadata, "kernel_arch", info.KernelArch)
	}
	if err := Validate(doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func setIfPresent(m map[string]string, key, value string) {
	if value != "" {
		m[key] = value
	}
}

// Validate requires a name and at least one application id, with no blank or
// repeated ids.
func Validate(doc *Document) error {
	if doc == nil {
		return b11errors.NewValidationError("config", "document is nil", nil)
	}
	if err := validatorInstance().Struct(doc); err != nil {
		return convertValidationError(err)
	}
	return nil
}

// Save writes doc as indented JSON via a temporary file and rename.
func Save(path string, doc *Document) error {
	if err := Validate(doc); err != nil {
		return err
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode configuration: %w", err)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create configuration directory: %w", err)
		}
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write configuration: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replace configuration: %w", err)
	}
	return nil
}

// Load reads and validates a document.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, b11errors.NewParseError(path, 0, err)
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, b11errors.NewParseError(path, 0, err)
	}
	if err := Validate(&doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// BatchInstaller installs a list of application ids.
type BatchInstaller interface {
	BatchInstall(ctx context.Context, ids []string, continueOnError bool) (*app.BatchResult, error)
}

// Import installs every application listed in doc, in order.
func Import(ctx context.Context, installer BatchInstaller, doc *Document, continueOnError bool) (*app.BatchResult, error) {
	if err := Validate(doc); err != nil {
		return nil, err
	}
	return installer.BatchInstall(ctx, doc.Applications, continueOnError)
}

var (
	validatorOnce sync.Once
	validateInst  *validator.Validate
)

func validatorInstance() *validator.Validate {
	validatorOnce.Do(func() {
		v := validator.New()
		v.RegisterTagNameFunc(func(field reflect.StructField) string {
			name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
			if name == "" || name == "-" {
				return field.Name
			}
			return name
		})
		_ = v.RegisterValidation("nonblank", func(fl validator.FieldLevel) bool {
			return strings.TrimSpace(fl.Field().String()) != ""
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

	msg := fmt.Sprintf("failed validation for tag '%s'", fe.Tag())
	switch fe.Tag() {
	case "required", "nonblank":
		msg = "must not be blank"
	case "min":
		msg = "must list at least one application"
	case "unique":
		msg = "must not contain duplicate application ids"
	}
	return b11errors.NewValidationError(field, msg, err)
}
