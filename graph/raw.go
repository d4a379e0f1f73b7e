package graph

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Row aliases returned by the traversal
const (
	AliasRepo    = "rp"
	AliasEdge    = "ed"
	AliasPackage = "epv"
	AliasCVE     = "cve"
)

// Vertex and edge property keys
const (
	PropRepoURL   = "repo_url"
	PropEcosystem = "pecosystem"
	PropName      = "pname"
	PropVersion   = "version"
	PropLabel     = "label"
	PropCVEID     = "cve_id"
	PropCVSS      = "cvss_v2"
)

// PropertyMap is a graph element rendered by valueMap(true): every property is a
// one element list, except the element id and label which are scalars.
type PropertyMap map[string]interface{}

// First returns the first value of a property, unwrapping one element lists
func (p PropertyMap) First(key string) (interface{}, bool) {
	v, ok := p[key]
	if !ok || v == nil {
		return nil, false
	}
	if list, isList := v.([]interface{}); isList {
		if len(list) == 0 {
			return nil, false
		}
		return list[0], true
	}
	return v, true
}

// String returns the first value of a property as a string, or "" when absent
func (p PropertyMap) String(key string) string {
	v, ok := p.First(key)
	if !ok {
		return ""
	}
	switch s := v.(type) {
	case string:
		return s
	case json.Number:
		return s.String()
	default:
		return fmt.Sprint(s)
	}
}

// Float returns the first value of a property as a number
func (p PropertyMap) Float(key string) (float64, bool) {
	v, ok := p.First(key)
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	}
	return 0, false
}

// Merge copies other's properties into p; values of other win
func (p PropertyMap) Merge(other PropertyMap) PropertyMap {
	if p == nil {
		p = PropertyMap{}
	}
	for k, v := range other {
		p[k] = v
	}
	return p
}

// Row is one traversal result: the repository, edge, package version and CVE elements
type Row map[string]PropertyMap

// RawResult is the flat, denormalized output of a correlation run.
// There is one row per (repository, edge, package version, CVE) combination.
type RawResult struct {
	RepoURL string
	Rows    []Row
}

// Scalar wraps a value the way valueMap(true) renders vertex properties
func Scalar(v interface{}) []interface{} {
	return []interface{}{v}
}
