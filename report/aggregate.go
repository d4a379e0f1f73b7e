package report

import (
	"github.com/ortelius/pdvd-reposcan/graph"
	"github.com/ortelius/pdvd-reposcan/model"
)

// Aggregate turns reshaped rows into one report per repository.
//
// A row becomes a finding only when it carries at least one CVE and its
// coordinate was part of deps, which filters out stale edges left by another run.
// Findings of the same repository are concatenated. Every repository seen yields
// a report, possibly with no findings, in first-seen order.
func Aggregate(rows []PackageRow, deps model.DependencySet) []model.RepositoryReport {
	reports := []model.RepositoryReport{}
	index := make(map[string]int)

	for _, row := range rows {
		repoURL := row.Repo.String(graph.PropRepoURL)

		i, ok := index[repoURL]
		if !ok {
			i = len(reports)
			index[repoURL] = i
			reports = append(reports, model.RepositoryReport{
				RepoURL:        repoURL,
				VulnerableDeps: []model.PackageFinding{},
			})
		}

		if finding, ok := toFinding(row, deps); ok {
			reports[i].VulnerableDeps = append(reports[i].VulnerableDeps, finding)
		}
	}

	return reports
}

func toFinding(row PackageRow, deps model.DependencySet) (model.PackageFinding, bool) {
	if len(row.CVEs) == 0 {
		return model.PackageFinding{}, false
	}

	finding := model.PackageFinding{
		Ecosystem:    row.Package.String(graph.PropEcosystem),
		Name:         row.Package.String(graph.PropName),
		Version:      row.Package.String(graph.PropVersion),
		IsTransitive: row.Edge.String(graph.PropLabel) == model.EdgeTransitive,
	}
	if !deps.Contains(finding.Coordinate()) {
		return model.PackageFinding{}, false
	}

	finding.CVEs = make([]model.CVE, 0, len(row.CVEs))
	for _, cve := range row.CVEs {
		score, ok := cve.Float(graph.PropCVSS)
		if !ok {
			score = model.DefaultCVSSScore
		}
		finding.CVEs = append(finding.CVEs, model.CVE{
			ID:   cve.String(graph.PropCVEID),
			CVSS: score,
		})
	}
	finding.CVECount = len(finding.CVEs)
	return finding, true
}

// Build runs Reshape and Aggregate over a correlation result
func Build(raw *graph.RawResult, deps model.DependencySet) []model.RepositoryReport {
	return Aggregate(Reshape(raw), deps)
}
