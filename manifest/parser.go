// Package manifest turns the dependency listings produced by build tools into
// normalized direct/transitive coordinate sets.
package manifest

import (
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/ortelius/pdvd-reposcan/model"
)

var (
	// ErrUnsupportedInputFormat is returned when a file name, content tag or ecosystem key is unknown
	ErrUnsupportedInputFormat = errors.New("unsupported input format")
	// ErrEmptyManifest is returned when no direct dependencies were found but some are required
	ErrEmptyManifest = errors.New("no dependencies found in manifest")
)

// File is one uploaded manifest
type File struct {
	Name    string
	Content []byte
}

// Parser extracts the dependency set from one or more manifest files of a single ecosystem.
// Implementations normalize the result so that Direct and Transitive are disjoint.
type Parser interface {
	Parse(files ...File) (model.DependencySet, error)
}

var parsers = map[string]Parser{
	"npm":      NpmParser{},
	"node":     NpmParser{},
	"maven":    MavenParser{},
	"resolved": ResolvedParser{},
}

// ForEcosystem selects the parser registered for an ecosystem key
func ForEcosystem(ecosystem string) (Parser, error) {
	p, ok := parsers[strings.ToLower(strings.TrimSpace(ecosystem))]
	if !ok {
		return nil, fmt.Errorf("ecosystem %q: %w (supported: %s)", ecosystem, ErrUnsupportedInputFormat, strings.Join(Ecosystems(), ", "))
	}
	return p, nil
}

// Ecosystems lists the registered ecosystem keys in sorted order
func Ecosystems() []string {
	keys := make([]string, 0, len(parsers))
	for k := range parsers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ParseFiles selects the parser for ecosystem and runs it over files
func ParseFiles(ecosystem string, files ...File) (model.DependencySet, error) {
	p, err := ForEcosystem(ecosystem)
	if err != nil {
		return model.DependencySet{}, err
	}
	return p.Parse(files...)
}

// RequireDirect fails with ErrEmptyManifest when deps carries no direct dependency
func RequireDirect(deps model.DependencySet) error {
	if len(deps.Direct) == 0 {
		return ErrEmptyManifest
	}
	return nil
}

func baseName(name string) string {
	return strings.ToLower(path.Base(strings.ReplaceAll(name, "\\", "/")))
}
