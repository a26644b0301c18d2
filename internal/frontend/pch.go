package frontend

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roach88/txrepl/internal/diag"
	"github.com/roach88/txrepl/internal/ir"
)

// PCH is a precompiled artifact: declarations prepared ahead of time by
// another session or build, described by a YAML manifest.
//
//	format_version: 1
//	build_id: txrepl-0.1.0
//	source: prelude.h      # relative to the manifest, or
//	text: |                # inline
//	  namespace std { ... }
type PCH struct {
	FormatVersion int    `yaml:"format_version"`
	BuildID       string `yaml:"build_id"`
	Source        string `yaml:"source,omitempty"`
	Text          string `yaml:"text,omitempty"`

	// Path is where the manifest was found.
	Path string `yaml:"-"`
}

// FindPCH resolves a precompiled artifact locator. Absolute locators are used
// as given; others are tried against the current directory and then each
// root in order.
func FindPCH(locator string, roots []string) (string, error) {
	candidates := []string{locator}
	if !filepath.IsAbs(locator) {
		for _, root := range roots {
			candidates = append(candidates, filepath.Join(root, locator))
		}
	}
	for _, c := range candidates {
		if info, err := os.Stat(c); err == nil && !info.IsDir() {
			return c, nil
		}
	}
	return "", diag.NotFound(locator)
}

// LoadPCH reads and decodes the manifest at path.
func LoadPCH(path string) (*PCH, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, diag.NotFound(path)
		}
		return nil, diag.LoadFailed(path, err)
	}

	var p PCH
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&p); err != nil && !errors.Is(err, io.EOF) {
		return nil, diag.LoadFailed(path, fmt.Errorf("invalid manifest: %w", err))
	}
	if p.FormatVersion == 0 {
		return nil, diag.LoadFailed(path, fmt.Errorf("manifest has no format_version"))
	}
	if p.Source != "" && p.Text != "" {
		return nil, diag.LoadFailed(path, fmt.Errorf("manifest sets both source and text"))
	}
	p.Path = path
	return &p, nil
}

// CheckVersion reports a CodeVersionMismatch warning when the artifact was
// written by a different format version or build.
func (p *PCH) CheckVersion() error {
	switch {
	case p.FormatVersion != ir.PCHFormatVersion:
		return diag.VersionMismatch(p.Path,
			fmt.Sprintf("format %d, expected %d", p.FormatVersion, ir.PCHFormatVersion))
	case p.BuildID != ir.BuildID:
		return diag.VersionMismatch(p.Path,
			fmt.Sprintf("build %q, expected %q", p.BuildID, ir.BuildID))
	}
	return nil
}

// Contents returns the artifact's source text and the origin to compile it
// under.
func (p *PCH) Contents() (text, origin string, err error) {
	if p.Source == "" {
		return p.Text, p.Path, nil
	}
	src := p.Source
	if !filepath.IsAbs(src) {
		src = filepath.Join(filepath.Dir(p.Path), src)
	}
	data, err := os.ReadFile(src)
	if err != nil {
		if os.IsNotExist(err) {
			return "", "", diag.NotFound(p.Source)
		}
		return "", "", diag.LoadFailed(src, err)
	}
	return string(data), src, nil
}
