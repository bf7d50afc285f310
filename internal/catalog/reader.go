// Package catalog loads the vetted application catalog and keeps an expiring
// in-memory copy of it.
package catalog

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/Cornman92/Better11-sub004/internal/domain/app"
	"github.com/Cornman92/Better11-sub004/internal/ports"
	b11errors "github.com/Cornman92/Better11-sub004/pkg/errors"
)

//go:embed catalog.schema.json
var schemaDocument []byte

const schemaResource = "inmemory://better11/catalog.schema.json"

var (
	schemaOnce     sync.Once
	compiledSchema *jsonschema.Schema
	schemaErr      error

	validatorOnce sync.Once
	validateInst  *validator.Validate
)

type document struct {
	Applications []entry `json:"applications" validate:"dive"`
}

type entry struct {
	AppID            string   `json:"app_id" validate:"required,app_id"`
	Name             string   `json:"name" validate:"required,nonblank"`
	Version          string   `json:"version" validate:"required,nonblank"`
	URI              string   `json:"uri" validate:"required,nonblank,catalog_uri"`
	SHA256           string   `json:"sha256" validate:"required,hexadecimal,len=64"`
	InstallerType    string   `json:"installer_type" validate:"required,installer_kind"`
	VettedDomains    []string `json:"vetted_domains" validate:"omitempty,dive,nonblank"`
	Dependencies     []string `json:"dependencies" validate:"omitempty,dive,app_id"`
	SilentArgs       []string `json:"silent_args"`
	Signature        string   `json:"signature" validate:"omitempty,base64"`
	SignatureKey     string   `json:"signature_key" validate:"omitempty,base64"`
	UninstallCommand string   `json:"uninstall_command"`
	Description      string   `json:"description"`
}

// Catalog is an immutable, validated set of application metadata.
type Catalog struct {
	source  string
	entries []app.Metadata
	index   map[string]int
}

// Load reads and parses the catalog file at path.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, b11errors.NewParseError(path, 0, fmt.Errorf("read catalog: %w", err))
	}
	return Parse(data, path)
}

// Parse validates data as a catalog document. Any invalid entry rejects the
// whole document.
func Parse(data []byte, source string) (*Catalog, error) {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, b11errors.NewParseError(source, syntaxLine(data, err), err)
	}

	schema, err := catalogSchema()
	if err != nil {
		return nil, err
	}
	if err := schema.Validate(raw); err != nil {
		return nil, convertSchemaError(err)
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, b11errors.NewParseError(source, syntaxLine(data, err), err)
	}
	if err := validatorInstance().Struct(doc); err != nil {
		return nil, convertValidationError(err)
	}

	cat := &Catalog{
		source:  source,
		entries: make([]app.Metadata, 0, len(doc.Applications)),
		index:   make(map[string]int, len(doc.Applications)),
	}
	for i, e := range doc.Applications {
		if (e.Signature == "") != (e.SignatureKey == "") {
			field := "signature_key"
			if e.Signature == "" {
				field = "signature"
			}
			return nil, b11errors.NewValidationError(fieldFor(i, field), "signature and signature_key must be provided together", nil)
		}
		if _, exists := cat.index[e.AppID]; exists {
			return nil, b11errors.NewValidationError(fieldFor(i, "app_id"), fmt.Sprintf("duplicate app_id %q", e.AppID), nil)
		}

		kind, _ := app.ParseInstallerKind(e.InstallerType)
		cat.index[e.AppID] = len(cat.entries)
		cat.entries = append(cat.entries, app.Metadata{
			ID:               e.AppID,
			Name:             strings.TrimSpace(e.Name),
			Version:          strings.TrimSpace(e.Version),
			URI:              strings.TrimSpace(e.URI),
			SHA256:           strings.ToLower(e.SHA256),
			Kind:             kind,
			VettedDomains:    cloneStrings(e.VettedDomains),
			Signature:        e.Signature,
			SignatureKey:     e.SignatureKey,
			Dependencies:     cloneStrings(e.Dependencies),
			SilentArgs:       cloneStrings(e.SilentArgs),
			UninstallCommand: strings.TrimSpace(e.UninstallCommand),
			Description:      e.Description,
		})
	}
	return cat, nil
}

// Source returns the path or label the catalog was parsed from.
func (c *Catalog) Source() string { return c.source }

// Len returns the number of entries.
func (c *Catalog) Len() int { return len(c.entries) }

// Get returns the metadata for id.
func (c *Catalog) Get(id string) (app.Metadata, error) {
	idx, ok := c.index[id]
	if !ok {
		return app.Metadata{}, app.NewNotFoundError(id)
	}
	return c.entries[idx], nil
}

// List returns every entry in document order.
func (c *Catalog) List() ([]app.Metadata, error) {
	out := make([]app.Metadata, len(c.entries))
	copy(out, c.entries)
	return out, nil
}

// Dependents returns the sorted ids of entries that depend directly on id.
func (c *Catalog) Dependents(id string) []string {
	var out []string
	for _, meta := range c.entries {
		if meta.DependsOn(id) {
			out = append(out, meta.ID)
		}
	}
	sort.Strings(out)
	return out
}

var _ ports.CatalogReader = (*Catalog)(nil)

func catalogSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource(schemaResource, bytes.NewReader(schemaDocument)); err != nil {
			schemaErr = fmt.Errorf("add catalog schema: %w", err)
			return
		}
		compiledSchema, schemaErr = compiler.Compile(schemaResource)
		if schemaErr != nil {
			schemaErr = fmt.Errorf("compile catalog schema: %w", schemaErr)
		}
	})
	return compiledSchema, schemaErr
}

func validatorInstance() *validator.Validate {
	validatorOnce.Do(func() {
		v := validator.New()
		v.RegisterTagNameFunc(func(field reflect.StructField) string {
			name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})

		_ = v.RegisterValidation("nonblank", func(fl validator.FieldLevel) bool {
			return strings.TrimSpace(fl.Field().String()) != ""
		})

		_ = v.RegisterValidation("app_id", func(fl validator.FieldLevel) bool {
			return app.IDPattern.MatchString(fl.Field().String())
		})

		_ = v.RegisterValidation("installer_kind", func(fl validator.FieldLevel) bool {
			_, ok := app.ParseInstallerKind(fl.Field().String())
			return ok
		})

		_ = v.RegisterValidation("catalog_uri", func(fl validator.FieldLevel) bool {
			return fetchableURI(fl.Field().String())
		})

		validateInst = v
	})

	return validateInst
}

var tagMessages = map[string]string{
	"required":       "is required",
	"nonblank":       "must not be blank",
	"app_id":         "must match " + app.IDPattern.String(),
	"hexadecimal":    "must be a hex-encoded digest",
	"len":            "must be a 64 character SHA-256 digest",
	"installer_kind": "must be one of msi, exe, appx",
	"catalog_uri":    "is not a valid URI",
	"base64":         "must be base64 encoded",
}

// convertValidationError maps the first validator failure onto a field path
// such as applications[2].sha256.
func convertValidationError(err error) error {
	var ves validator.ValidationErrors
	if !errors.As(err, &ves) || len(ves) == 0 {
		return b11errors.NewValidationError("applications", err.Error(), err)
	}

	fe := ves[0]
	field := fe.Namespace()
	if idx := strings.Index(field, "."); idx >= 0 {
		field = field[idx+1:]
	}
	msg, ok := tagMessages[fe.Tag()]
	if !ok {
		msg = fmt.Sprintf("failed validation for tag '%s'", fe.Tag())
	}
	return b11errors.NewValidationError(field, msg, err)
}

func convertSchemaError(err error) error {
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return b11errors.NewValidationError("applications", err.Error(), err)
	}
	leaf := ve
	for len(leaf.Causes) > 0 {
		leaf = leaf.Causes[0]
	}
	field := pointerToField(leaf.InstanceLocation)
	if field == "" {
		field = "catalog"
	}
	return b11errors.NewValidationError(field, leaf.Message, err)
}

// pointerToField converts a JSON pointer such as /applications/0/name into
// applications[0].name.
func pointerToField(pointer string) string {
	var b strings.Builder
	for _, part := range strings.Split(strings.Trim(pointer, "/"), "/") {
		if part == "" {
			continue
		}
		if _, err := strconv.Atoi(part); err == nil {
			fmt.Fprintf(&b, "[%s]", part)
			continue
		}
		if b.Len() > 0 {
			b.WriteString(".")
		}
		b.WriteString(part)
	}
	return b.String()
}

// fetchableURI accepts the sources the downloader can fetch: http and https
// with a host, file URIs, and bare or drive-letter paths naming a file.
func fetchableURI(raw string) bool {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return false
	}
	if isDrivePath(raw) {
		return namesFile(raw)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		return u.Hostname() != "" && !strings.ContainsAny(raw, " \t")
	case "file":
		return namesFile(u.Path)
	case "":
		return namesFile(raw)
	default:
		return false
	}
}

func namesFile(p string) bool {
	p = strings.ReplaceAll(p, `\`, "/")
	if strings.HasSuffix(p, "/") {
		return false
	}
	return path.Ext(path.Base(p)) != ""
}

func isDrivePath(p string) bool {
	if len(p) < 2 || p[1] != ':' {
		return false
	}
	c := p[0]
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func fieldFor(index int, field string) string {
	return fmt.Sprintf("applications[%d].%s", index, field)
}

func syntaxLine(data []byte, err error) int {
	var syntaxErr *json.SyntaxError
	if !errors.As(err, &syntaxErr) {
		return 0
	}
	offset := int(syntaxErr.Offset)
	if offset > len(data) {
		offset = len(data)
	}
	return bytes.Count(data[:offset], []byte("\n")) + 1
}

func cloneStrings(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}
