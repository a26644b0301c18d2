// Package config loads txrepl session configuration from CUE files.
//
// A configuration file is a CUE struct unified with an embedded schema. The
// schema closes the struct, so unknown fields are errors, and supplies every
// default.
package config

import (
	_ "embed"
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/txrepl/internal/ir"
)

//go:embed schema.cue
var schemaCUE string

// Config is a resolved session configuration.
type Config struct {
	Strict       bool     `json:"strict"`
	IncludePaths []string `json:"include_paths"`
	LibraryPaths []string `json:"library_paths"`
	NativeString string   `json:"native_string"`
	Journal      string   `json:"journal"`
	PCH          []string `json:"pch"`
	PCHRoots     []string `json:"pch_roots"`
	Prompt       string   `json:"prompt"`
}

// NativeEncoding returns the configured native string encoding.
func (c Config) NativeEncoding() (ir.StringEncoding, error) {
	return ir.ParseEncoding(c.NativeString)
}

// Error is a configuration error with its CUE position, if known.
type Error struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *Error) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Default returns the configuration with every default applied.
func Default() Config {
	cfg, err := Parse("default.cue", nil)
	if err != nil {
		// The embedded schema is fixed; failing here is a build defect.
		panic(fmt.Sprintf("config: defaults: %v", err))
	}
	return cfg
}

// Load reads and validates a configuration file.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, &Error{Field: "file", Message: err.Error()}
	}
	return Parse(path, data)
}

// Parse validates CUE source against the schema and decodes it. filename
// is used in error positions only.
func Parse(filename string, data []byte) (Config, error) {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return Config{}, formatCUEError("schema", err)
	}

	v := ctx.CompileBytes(data, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return Config{}, formatCUEError("syntax", err)
	}

	unified := schema.LookupPath(cue.ParsePath("#Config")).Unify(v)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return Config{}, formatCUEError("config", err)
	}

	var cfg Config
	if err := unified.Decode(&cfg); err != nil {
		return Config{}, formatCUEError("decode", err)
	}
	return cfg, nil
}

// formatCUEError extracts the first error and its position.
func formatCUEError(field string, err error) error {
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return &Error{Field: field, Message: err.Error()}
	}

	first := errs[0]
	e := &Error{Field: field, Message: first.Error()}
	if positions := errors.Positions(first); len(positions) > 0 {
		e.Pos = positions[0]
	}
	return e
}
