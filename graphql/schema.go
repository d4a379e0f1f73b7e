// Package graphql assembles the GraphQL schema served at /api/v1/graphql.
package graphql

import (
	"github.com/graphql-go/graphql"
	"github.com/ortelius/pdvd-reposcan/graphql/modules/reports"
)

// CreateSchema builds the root query from the module query fields
func CreateSchema(source reports.Source) (graphql.Schema, error) {
	fields := graphql.Fields{}
	for name, field := range reports.GetQueryFields(source) {
		fields[name] = field
	}

	return graphql.NewSchema(graphql.SchemaConfig{
		Query: graphql.NewObject(graphql.ObjectConfig{
			Name:   "Query",
			Fields: fields,
		}),
	})
}
