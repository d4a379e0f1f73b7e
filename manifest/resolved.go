package manifest

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ortelius/pdvd-reposcan/model"
)

// resolvedEntry is one element of the `_resolved` listing sent by scan clients
type resolvedEntry struct {
	Ecosystem string `json:"ecosystem"`
	Resolved  []struct {
		Package string `json:"package"`
		Version string `json:"version"`
		Deps    []struct {
			Package string `json:"package"`
			Version string `json:"version"`
		} `json:"deps"`
	} `json:"_resolved"`
}

// ResolvedParser reads pre-resolved JSON listings:
//
//	[{"ecosystem": "npm", "_resolved": [{"package": "a", "version": "1", "deps": [{"package": "b", "version": "2"}]}]}]
type ResolvedParser struct{}

// Parse implements Parser
func (ResolvedParser) Parse(files ...File) (model.DependencySet, error) {
	deps := model.NewDependencySet()
	for _, f := range files {
		var entries []resolvedEntry
		if err := json.Unmarshal(f.Content, &entries); err != nil {
			return model.DependencySet{}, fmt.Errorf("%s: %w: %v", f.Name, ErrUnsupportedInputFormat, err)
		}
		for _, entry := range entries {
			ecosystem := strings.ToLower(strings.TrimSpace(entry.Ecosystem))
			if ecosystem == "" {
				return model.DependencySet{}, fmt.Errorf("%s: missing ecosystem: %w", f.Name, ErrUnsupportedInputFormat)
			}
			for _, res := range entry.Resolved {
				if res.Package == "" || res.Version == "" {
					continue
				}
				deps.Direct.Add(model.NewCoordinate(ecosystem, res.Package, res.Version))
				for _, dep := range res.Deps {
					if dep.Package == "" || dep.Version == "" {
						continue
					}
					deps.Transitive.Add(model.NewCoordinate(ecosystem, dep.Package, dep.Version))
				}
			}
		}
	}
	deps.Normalize()
	return deps, nil
}
