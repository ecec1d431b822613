package config

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"binup/internal/matcher"
)

//go:embed schema.json
var schemaJSON []byte

const schemaURL = "binup-config.schema.json"

// ValidationResult captures a single validation finding.
type ValidationResult struct {
	Level   string `json:"level"` // "error" or "warning"
	Message string `json:"message"`
}

// ConfigError reports a registry file that can't be used.
type ConfigError struct {
	Path    string
	Results []ValidationResult
	Err     error
}

func (e *ConfigError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "invalid config %s", e.Path)
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	for _, r := range e.Results {
		if r.Level != "error" {
			continue
		}
		b.WriteString("\n* ")
		b.WriteString(r.Message)
	}
	return b.String()
}

func (e *ConfigError) Unwrap() error { return e.Err }

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

func compiledSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(schemaJSON))
		if err != nil {
			schemaErr = fmt.Errorf("parse schema: %w", err)
			return
		}
		c := jsonschema.NewCompiler()
		c.AssertFormat()
		if err := c.AddResource(schemaURL, doc); err != nil {
			schemaErr = fmt.Errorf("add schema: %w", err)
			return
		}
		schema, schemaErr = c.Compile(schemaURL)
	})
	return schema, schemaErr
}

// validateSchema checks a decoded YAML value against the embedded schema.
func validateSchema(value any) ([]ValidationResult, error) {
	sch, err := compiledSchema()
	if err != nil {
		return nil, err
	}

	// Normalize YAML scalars (ints, timestamps) to JSON types.
	buf, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("convert config: %w", err)
	}
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(buf))
	if err != nil {
		return nil, fmt.Errorf("convert config: %w", err)
	}

	err = sch.Validate(inst)
	if err == nil {
		return nil, nil
	}
	var verr *jsonschema.ValidationError
	if !errors.As(err, &verr) {
		return nil, err
	}

	printer := message.NewPrinter(language.English)
	var results []ValidationResult
	collectSchemaErrors(verr, printer, &results)
	sort.SliceStable(results, func(i, j int) bool { return results[i].Message < results[j].Message })
	return results, nil
}

func collectSchemaErrors(verr *jsonschema.ValidationError, p *message.Printer, out *[]ValidationResult) {
	if len(verr.Causes) == 0 {
		*out = append(*out, ValidationResult{
			Level:   "error",
			Message: fmt.Sprintf("%s: %s", location(verr.InstanceLocation), verr.ErrorKind.LocalizedString(p)),
		})
		return
	}
	for _, cause := range verr.Causes {
		collectSchemaErrors(cause, p, out)
	}
}

func location(parts []string) string {
	if len(parts) == 0 {
		return "(root)"
	}
	return strings.Join(parts, ".")
}

// Validate runs the checks the schema can't express.
func (c Config) Validate() []ValidationResult {
	var results []ValidationResult
	for _, name := range c.Names() {
		spec := c.Tools[name]
		results = append(results, spec.validate("tools."+name)...)
	}
	if c.Path != "" && !isHomeOrAbs(c.Path) {
		results = append(results, ValidationResult{
			Level:   "warning",
			Message: fmt.Sprintf("path %q is relative to the working directory", c.Path),
		})
	}
	return results
}

func (s ToolSpec) validate(prefix string) []ValidationResult {
	var results []ValidationResult
	for _, field := range []struct{ key, value string }{
		{"release_matcher", s.ReleaseMatcher},
		{"binary_matcher", s.BinaryMatcher},
	} {
		if field.value == "" {
			continue
		}
		if _, err := matcher.Parse(field.value); err != nil {
			results = append(results, ValidationResult{
				Level:   "error",
				Message: fmt.Sprintf("%s.%s: %v", prefix, field.key, err),
			})
		}
	}
	if s.Path != "" && !isHomeOrAbs(s.Path) {
		results = append(results, ValidationResult{
			Level:   "warning",
			Message: fmt.Sprintf("%s.path: %q is relative to the working directory", prefix, s.Path),
		})
	}
	return results
}

// ValidateSpec checks a spec before it is registered.
func ValidateSpec(name string, s ToolSpec) error {
	value := map[string]any{"tools": map[string]any{name: specValue(s)}}
	results, err := validateSchema(value)
	if err != nil {
		return err
	}
	results = append(results, s.validate("tools."+name)...)
	if hasErrors(results) {
		return &ConfigError{Path: "tool " + name, Results: results}
	}
	return nil
}

func specValue(s ToolSpec) map[string]any {
	out := map[string]any{}
	add := func(key, v string) {
		if v != "" {
			out[key] = v
		}
	}
	add("project", s.Project)
	add("release_matcher", s.ReleaseMatcher)
	add("binary_matcher", s.BinaryMatcher)
	add("changelog", s.Changelog)
	add("version_source", s.VersionSource)
	add("path", s.Path)
	add("post", s.Post)
	if s.Prerelease != nil {
		out["prerelease"] = *s.Prerelease
	}
	return out
}

func hasErrors(results []ValidationResult) bool {
	for _, r := range results {
		if r.Level == "error" {
			return true
		}
	}
	return false
}

func isHomeOrAbs(p string) bool {
	return p == "~" || strings.HasPrefix(p, "~/") || filepath.IsAbs(p)
}
