package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	aqtable "github.com/aquasecurity/table"
	"github.com/fatih/color"
	"github.com/ortelius/pdvd-reposcan/model"
	"github.com/ortelius/pdvd-reposcan/util"
)

// severityColors matches the palette vulnerability scanners use in terminals
var severityColors = map[string]func(a ...any) string{
	"NONE":     color.New(color.FgCyan).SprintFunc(),
	"LOW":      color.New(color.FgBlue).SprintFunc(),
	"MEDIUM":   color.New(color.FgYellow).SprintFunc(),
	"HIGH":     color.New(color.FgHiRed).SprintFunc(),
	"CRITICAL": color.New(color.FgRed).SprintFunc(),
}

func writeJSON(w io.Writer, reports []model.RepositoryReport) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(reports)
}

// writeTable renders one table per repository. Styling is only applied when
// writing to a terminal that accepts colors.
func writeTable(w io.Writer, reports []model.RepositoryReport, terminal bool) error {
	styled := terminal && !color.NoColor

	for i, report := range reports {
		if i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintln(w, report.RepoURL)
		fmt.Fprintln(w, strings.Repeat("=", utf8.RuneCountInString(report.RepoURL)))
		fmt.Fprintln(w, summary(report))
		fmt.Fprintln(w)

		if len(report.VulnerableDeps) == 0 {
			continue
		}

		tw := aqtable.New(w)
		if styled {
			tw.SetHeaderStyle(aqtable.StyleBold)
			tw.SetLineStyle(aqtable.StyleDim)
		}
		tw.SetBorders(true)
		tw.SetAutoMerge(true)
		tw.SetRowLines(true)
		tw.SetHeaders("Ecosystem", "Package", "Version", "Dependency", "Vulnerability", "CVSS", "Severity")

		for _, f := range report.VulnerableDeps {
			kind := "direct"
			if f.IsTransitive {
				kind = "transitive"
			}
			for _, cve := range f.CVEs {
				severity := util.GetSeverityRating(cve.CVSS)
				if styled {
					if fn, ok := severityColors[severity]; ok {
						severity = fn(severity)
					}
				}
				tw.AddRow(f.Ecosystem, f.Name, f.Version, kind, cve.ID, fmt.Sprintf("%.1f", cve.CVSS), severity)
			}
		}
		tw.Render()
	}
	return nil
}

// summary returns a line like:
// Vulnerable packages: 2, CVEs: 3 (LOW: 0, MEDIUM: 1, HIGH: 1, CRITICAL: 1)
func summary(report model.RepositoryReport) string {
	counts := map[string]int{}
	total := 0
	for _, f := range report.VulnerableDeps {
		for _, cve := range f.CVEs {
			counts[util.GetSeverityRating(cve.CVSS)]++
			total++
		}
	}
	return fmt.Sprintf("Vulnerable packages: %d, CVEs: %d (LOW: %d, MEDIUM: %d, HIGH: %d, CRITICAL: %d)",
		len(report.VulnerableDeps), total, counts["LOW"], counts["MEDIUM"], counts["HIGH"], counts["CRITICAL"])
}
