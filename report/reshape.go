// Package report groups raw correlation rows into per-package findings and
// merges them into one report per repository.
package report

import (
	"errors"

	"github.com/ortelius/pdvd-reposcan/graph"
)

// ErrReshapeEmpty marks a correlation run that produced no vulnerable package.
// It is informational; an empty report is still a valid result.
var ErrReshapeEmpty = errors.New("correlation returned no vulnerable packages")

// PackageRow is every raw row of one package version folded together
type PackageRow struct {
	Repo    graph.PropertyMap
	Edge    graph.PropertyMap
	Package graph.PropertyMap
	CVEs    []graph.PropertyMap
}

type packageKey struct {
	name    string
	version string
}

// Reshape groups raw rows by the package version's (pname, version).
// Property maps of rows in a group are merged with later values winning, and
// every row's CVE is appended to the group. Groups keep first-seen order.
func Reshape(raw *graph.RawResult) []PackageRow {
	if raw == nil || len(raw.Rows) == 0 {
		return []PackageRow{}
	}

	index := make(map[packageKey]int)
	rows := make([]PackageRow, 0, len(raw.Rows))

	for _, r := range raw.Rows {
		epv := r[graph.AliasPackage]
		key := packageKey{
			name:    epv.String(graph.PropName),
			version: epv.String(graph.PropVersion),
		}

		i, ok := index[key]
		if !ok {
			i = len(rows)
			index[key] = i
			rows = append(rows, PackageRow{})
		}

		row := &rows[i]
		row.Repo = row.Repo.Merge(r[graph.AliasRepo])
		row.Edge = row.Edge.Merge(r[graph.AliasEdge])
		row.Package = row.Package.Merge(epv)
		if cve, hasCVE := r[graph.AliasCVE]; hasCVE && cve != nil {
			row.CVEs = append(row.CVEs, cve)
		}
	}

	return rows
}
