package reports

import (
	"net/url"

	"github.com/graphql-go/graphql"
)

// GetQueryFields returns the report queries to be mounted in the root schema.
func GetQueryFields(source Source) graphql.Fields {
	return graphql.Fields{
		"scanResult": &graphql.Field{
			Type: ScanResultType,
			Args: graphql.FieldConfigArgument{
				"request_id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
			},
			Resolve: func(p graphql.ResolveParams) (interface{}, error) {
				return ResolveScanResult(p.Context, source, p.Args["request_id"].(string))
			},
		},
		"latestReport": &graphql.Field{
			Type: StoredReportType,
			Args: graphql.FieldConfigArgument{
				"repo_url": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
			},
			Resolve: func(p graphql.ResolveParams) (interface{}, error) {
				return ResolveLatestReport(p.Context, source, decodeRepo(p.Args["repo_url"].(string)))
			},
		},
		"reportHistory": &graphql.Field{
			Type: graphql.NewList(StoredReportType),
			Args: graphql.FieldConfigArgument{
				"repo_url": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				"limit":    &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 10},
			},
			Resolve: func(p graphql.ResolveParams) (interface{}, error) {
				limit, _ := p.Args["limit"].(int)
				return source.ReportHistory(p.Context, decodeRepo(p.Args["repo_url"].(string)), limit)
			},
		},
	}
}

func decodeRepo(repoURL string) string {
	decoded, err := url.QueryUnescape(repoURL)
	if err != nil {
		return repoURL
	}
	return decoded
}
