package manifest

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/ortelius/pdvd-reposcan/model"
)

// npmNode is one entry of `npm list --prod --json` output
type npmNode struct {
	Version      string             `json:"version"`
	Dependencies map[string]npmNode `json:"dependencies"`
}

// NpmParser reads `npm list --prod --json` trees.
// Top-level entries are direct. Below them only leaf entries are recorded as
// transitive; intermediate entries are walked but not recorded.
type NpmParser struct{}

// Parse implements Parser
func (NpmParser) Parse(files ...File) (model.DependencySet, error) {
	deps := model.NewDependencySet()
	for _, f := range files {
		var root npmNode
		if err := json.Unmarshal(f.Content, &root); err != nil {
			return model.DependencySet{}, fmt.Errorf("%s: %w: %v", f.Name, ErrUnsupportedInputFormat, err)
		}

		for _, name := range sortedKeys(root.Dependencies) {
			node := root.Dependencies[name]
			if node.Version == "" {
				continue
			}
			deps.Direct.Add(model.NewCoordinate("npm", name, node.Version))
			collectNpmLeaves(node.Dependencies, deps.Transitive)
		}
	}
	deps.Normalize()
	return deps, nil
}

func collectNpmLeaves(nodes map[string]npmNode, into model.CoordinateSet) {
	for name, node := range nodes {
		if len(node.Dependencies) > 0 {
			collectNpmLeaves(node.Dependencies, into)
			continue
		}
		if node.Version != "" {
			into.Add(model.NewCoordinate("npm", name, node.Version))
		}
	}
}

func sortedKeys(m map[string]npmNode) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
