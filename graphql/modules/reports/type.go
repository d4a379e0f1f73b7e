// Package reports defines the GraphQL types and queries for scan results and vulnerability reports.
package reports

import (
	"time"

	"github.com/graphql-go/graphql"
	"github.com/ortelius/pdvd-reposcan/model"
	"github.com/ortelius/pdvd-reposcan/util"
)

func timestamp(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}

// CVEType is one CVE attached to a vulnerable package
var CVEType = graphql.NewObject(graphql.ObjectConfig{
	Name: "CVE",
	Fields: graphql.Fields{
		"cve_id": &graphql.Field{
			Type: graphql.String,
			Resolve: func(p graphql.ResolveParams) (interface{}, error) {
				if cve, ok := p.Source.(model.CVE); ok {
					return cve.ID, nil
				}
				return nil, nil
			},
		},
		"cvss": &graphql.Field{
			Type: graphql.Float,
			Resolve: func(p graphql.ResolveParams) (interface{}, error) {
				if cve, ok := p.Source.(model.CVE); ok {
					return cve.CVSS, nil
				}
				return nil, nil
			},
		},
		"severity_rating": &graphql.Field{
			Type: graphql.String,
			Resolve: func(p graphql.ResolveParams) (interface{}, error) {
				if cve, ok := p.Source.(model.CVE); ok {
					return util.GetSeverityRating(cve.CVSS), nil
				}
				return nil, nil
			},
		},
	},
})

// PackageFindingType is a vulnerable package version of a repository
var PackageFindingType = graphql.NewObject(graphql.ObjectConfig{
	Name: "PackageFinding",
	Fields: graphql.Fields{
		"ecosystem":     &graphql.Field{Type: graphql.String},
		"name":          &graphql.Field{Type: graphql.String},
		"version":       &graphql.Field{Type: graphql.String},
		"is_transitive": &graphql.Field{Type: graphql.Boolean},
		"cve_count":     &graphql.Field{Type: graphql.Int},
		"cves":          &graphql.Field{Type: graphql.NewList(CVEType)},
	},
})

// RepositoryReportType is the vulnerability report of one repository
var RepositoryReportType = graphql.NewObject(graphql.ObjectConfig{
	Name: "RepositoryReport",
	Fields: graphql.Fields{
		"repo_url":        &graphql.Field{Type: graphql.String},
		"vulnerable_deps": &graphql.Field{Type: graphql.NewList(PackageFindingType)},
		"total_cves": &graphql.Field{
			Type: graphql.Int,
			Resolve: func(p graphql.ResolveParams) (interface{}, error) {
				report, ok := p.Source.(model.RepositoryReport)
				if !ok {
					return nil, nil
				}
				total := 0
				for _, f := range report.VulnerableDeps {
					total += f.CVECount
				}
				return total, nil
			},
		},
	},
})

// StoredReportType is a report kept in history
var StoredReportType = graphql.NewObject(graphql.ObjectConfig{
	Name: "StoredReport",
	Fields: graphql.Fields{
		"request_id": &graphql.Field{Type: graphql.String},
		"repo_url":   &graphql.Field{Type: graphql.String},
		"report":     &graphql.Field{Type: RepositoryReportType},
		"created_at": &graphql.Field{
			Type: graphql.String,
			Resolve: func(p graphql.ResolveParams) (interface{}, error) {
				if r, ok := p.Source.(model.StoredReport); ok {
					return timestamp(r.CreatedAt), nil
				}
				return nil, nil
			},
		},
	},
})

// ScanResultType is the stored outcome of a scan request
var ScanResultType = graphql.NewObject(graphql.ObjectConfig{
	Name: "ScanResult",
	Fields: graphql.Fields{
		"request_id": &graphql.Field{Type: graphql.String},
		"repo_url":   &graphql.Field{Type: graphql.String},
		"status": &graphql.Field{
			Type: graphql.String,
			Resolve: func(p graphql.ResolveParams) (interface{}, error) {
				if r, ok := p.Source.(model.ScanResult); ok {
					return string(r.Status), nil
				}
				return nil, nil
			},
		},
		"reports":  &graphql.Field{Type: graphql.NewList(RepositoryReportType)},
		"notified": &graphql.Field{Type: graphql.Int},
		"error":    &graphql.Field{Type: graphql.String},
		"started_at": &graphql.Field{
			Type: graphql.String,
			Resolve: func(p graphql.ResolveParams) (interface{}, error) {
				if r, ok := p.Source.(model.ScanResult); ok {
					return timestamp(r.StartedAt), nil
				}
				return nil, nil
			},
		},
		"ended_at": &graphql.Field{
			Type: graphql.String,
			Resolve: func(p graphql.ResolveParams) (interface{}, error) {
				if r, ok := p.Source.(model.ScanResult); ok {
					return timestamp(r.EndedAt), nil
				}
				return nil, nil
			},
		},
	},
})
