package graph

import (
	"context"
	"fmt"
	"strings"

	"github.com/arangodb/go-driver/v2/arangodb"
	"github.com/google/osv-scanner/pkg/models"
	"github.com/ortelius/pdvd-reposcan/model"
	"github.com/ortelius/pdvd-reposcan/util"
)

// Querier is the part of arangodb.Database used by the correlator
type Querier interface {
	Query(ctx context.Context, query string, opts *arangodb.QueryOptions) (arangodb.Cursor, error)
}

const upsertRepoQuery = `
	UPSERT { repo_url: @repo_url }
	INSERT { _key: @key, repo_url: @repo_url, objtype: "Repo", created_at: DATE_ISO8601(DATE_NOW()) }
	UPDATE { updated_at: DATE_ISO8601(DATE_NOW()) }
	IN repo
	RETURN NEW._id
`

const dropEdgesQuery = `
	FOR e IN dependency
		FILTER e._from == @repo_id AND e.label IN @labels
		REMOVE e IN dependency
`

// Packages without a purl hub are unknown to the store and are skipped
const linkDependenciesQuery = `
	FOR dep IN @deps
		LET hub = FIRST(
			FOR p IN purl
				FILTER p.purl == dep.base_purl
				LIMIT 1
				RETURN p
		)
		FILTER hub != null
		INSERT MERGE(dep.edge, { _from: @repo_id, _to: hub._id, created_at: DATE_ISO8601(DATE_NOW()) }) INTO dependency
		RETURN NEW._key
`

const traverseQuery = `
	LET repo = DOCUMENT(@repo_id)
	FOR e IN dependency
		FILTER e._from == @repo_id
		LET hub = DOCUMENT(e._to)
		FILTER hub != null
		FOR cveEdge IN cve2purl
			FILTER cveEdge._to == hub._id
			LET cve = DOCUMENT(cveEdge._from)
			FILTER cve != null
			LET matchedAffected = (
				FOR affected IN cve.affected != null ? cve.affected : []
					LET cveBasePurl = affected.package.purl != null ?
						affected.package.purl :
						CONCAT("pkg:", LOWER(affected.package.ecosystem), "/", affected.package.name)
					FILTER LOWER(cveBasePurl) == hub.purl
					RETURN affected
			)
			FILTER LENGTH(matchedAffected) > 0
			RETURN {
				repo_url: repo.repo_url,
				edge_id: e._id,
				label: e.label,
				ecosystem: e.ecosystem,
				name: e.name,
				version: e.version,
				full_purl: e.full_purl,
				cve_id: cve.id,
				aliases: cve.aliases,
				severity: cve.severity,
				database_specific: cve.database_specific,
				all_affected: matchedAffected
			}
`

// dependencyEdge is the document stored in the dependency edge collection
type dependencyEdge struct {
	Label        string `json:"label"`
	Ecosystem    string `json:"ecosystem"`
	Name         string `json:"name"`
	Version      string `json:"version"`
	FullPurl     string `json:"full_purl"`
	VersionMajor *int   `json:"version_major,omitempty"`
	VersionMinor *int   `json:"version_minor,omitempty"`
	VersionPatch *int   `json:"version_patch,omitempty"`
}

type dependencyBinding struct {
	BasePurl string         `json:"base_purl"`
	Edge     dependencyEdge `json:"edge"`
}

// cveCandidate is one traversal hit before the affected range check
type cveCandidate struct {
	RepoURL          string                 `json:"repo_url"`
	EdgeID           string                 `json:"edge_id"`
	Label            string                 `json:"label"`
	Ecosystem        string                 `json:"ecosystem"`
	Name             string                 `json:"name"`
	Version          string                 `json:"version"`
	FullPurl         string                 `json:"full_purl"`
	CveID            string                 `json:"cve_id"`
	Aliases          []string               `json:"aliases"`
	Severity         []models.Severity      `json:"severity"`
	DatabaseSpecific map[string]interface{} `json:"database_specific"`
	AllAffected      []models.Affected      `json:"all_affected"`
}

// ArangoCorrelator runs correlations against the ArangoDB vulnerability store.
// Repositories live in the repo collection and link to package hubs (purl) through
// the dependency edge collection; hubs link to OSV records through cve2purl.
type ArangoCorrelator struct {
	db Querier
}

// NewArangoCorrelator creates a correlator over an open database handle
func NewArangoCorrelator(db Querier) *ArangoCorrelator {
	return &ArangoCorrelator{db: db}
}

// CorrelateRepository implements Correlator
func (a *ArangoCorrelator) CorrelateRepository(ctx context.Context, repoURL string, deps model.DependencySet) (*RawResult, error) {
	repoID, err := a.upsertRepo(ctx, repoURL)
	if err != nil {
		return nil, correlationError(repoURL, err)
	}

	if err := a.exec(ctx, dropEdgesQuery, map[string]interface{}{
		"repo_id": repoID,
		"labels":  []string{model.EdgeDirect, model.EdgeTransitive},
	}); err != nil {
		return nil, correlationError(repoURL, fmt.Errorf("dropping dependency edges: %w", err))
	}

	// A package is known when its version-less purl hub exists, so unknown
	// versions of known packages are linked; the traversal filters CVEs by
	// the edge's version against the OSV affected ranges.
	if bindings := dependencyBindings(deps); len(bindings) > 0 {
		if err := a.exec(ctx, linkDependenciesQuery, map[string]interface{}{
			"repo_id": repoID,
			"deps":    bindings,
		}); err != nil {
			return nil, correlationError(repoURL, fmt.Errorf("linking dependencies: %w", err))
		}
	}

	rows, err := a.traverse(ctx, repoID)
	if err != nil {
		return nil, correlationError(repoURL, fmt.Errorf("traversing vulnerabilities: %w", err))
	}
	return &RawResult{RepoURL: repoURL, Rows: rows}, nil
}

func (a *ArangoCorrelator) upsertRepo(ctx context.Context, repoURL string) (string, error) {
	cursor, err := a.db.Query(ctx, upsertRepoQuery, &arangodb.QueryOptions{
		BindVars: map[string]interface{}{
			"repo_url": repoURL,
			"key":      util.DocumentKey(repoURL),
		},
	})
	if err != nil {
		return "", fmt.Errorf("upserting repository: %w", err)
	}
	defer cursor.Close()

	var repoID string
	if cursor.HasMore() {
		if _, err := cursor.ReadDocument(ctx, &repoID); err != nil {
			return "", fmt.Errorf("reading repository id: %w", err)
		}
	}
	if repoID == "" {
		return "", fmt.Errorf("upserting repository: no document returned")
	}
	return repoID, nil
}

func (a *ArangoCorrelator) exec(ctx context.Context, query string, bindVars map[string]interface{}) error {
	cursor, err := a.db.Query(ctx, query, &arangodb.QueryOptions{
		BindVars: bindVars,
	})
	if err != nil {
		return err
	}
	cursor.Close()
	return nil
}

func (a *ArangoCorrelator) traverse(ctx context.Context, repoID string) ([]Row, error) {
	cursor, err := a.db.Query(ctx, traverseQuery, &arangodb.QueryOptions{
		BindVars: map[string]interface{}{
			"repo_id": repoID,
		},
	})
	if err != nil {
		return nil, err
	}
	defer cursor.Close()

	var candidates []cveCandidate
	for cursor.HasMore() {
		var cand cveCandidate
		if _, err := cursor.ReadDocument(ctx, &cand); err != nil {
			return nil, err
		}
		candidates = append(candidates, cand)
	}
	return candidateRows(candidates), nil
}

// dependencyBindings renders the dependency set as bind variables for the link query.
// Coordinates that cannot be rendered as a package-url are skipped.
func dependencyBindings(deps model.DependencySet) []dependencyBinding {
	var bindings []dependencyBinding
	add := func(label string, coords []model.Coordinate) {
		for _, c := range coords {
			full := c.PURL()
			base, err := util.GetStandardBasePURL(full)
			if err != nil {
				continue
			}
			parsed := util.ParseSemanticVersion(c.Version)
			bindings = append(bindings, dependencyBinding{
				BasePurl: base,
				Edge: dependencyEdge{
					Label:        label,
					Ecosystem:    c.Ecosystem,
					Name:         c.Name(),
					Version:      c.Version,
					FullPurl:     full,
					VersionMajor: parsed.Major,
					VersionMinor: parsed.Minor,
					VersionPatch: parsed.Patch,
				},
			})
		}
	}
	add(model.EdgeDirect, deps.Direct.Sorted())
	add(model.EdgeTransitive, deps.Transitive.Sorted())
	return bindings
}

// candidateRows keeps the candidates whose version falls in an affected range and
// renders them in the same rp/ed/epv/cve shape the Gremlin backend returns.
func candidateRows(candidates []cveCandidate) []Row {
	rows := make([]Row, 0, len(candidates))
	seen := make(map[string]bool)

	for _, cand := range candidates {
		if !util.IsVersionAffectedAny(cand.Version, cand.AllAffected) {
			continue
		}

		id := preferredCVEID(cand.CveID, cand.Aliases)
		if seen[cand.EdgeID+"|"+id] {
			continue
		}
		seen[cand.EdgeID+"|"+id] = true

		cve := PropertyMap{PropCVEID: Scalar(id)}
		if score, ok := util.VulnerabilityScore(models.Vulnerability{
			ID:               cand.CveID,
			Severity:         cand.Severity,
			DatabaseSpecific: cand.DatabaseSpecific,
		}); ok {
			cve[PropCVSS] = Scalar(score)
		}

		rows = append(rows, Row{
			AliasRepo: PropertyMap{
				PropRepoURL:    Scalar(cand.RepoURL),
				"vertex_label": Scalar("Repo"),
			},
			AliasEdge: PropertyMap{
				"id":      cand.EdgeID,
				PropLabel: cand.Label,
			},
			AliasPackage: PropertyMap{
				PropEcosystem: Scalar(cand.Ecosystem),
				PropName:      Scalar(cand.Name),
				PropVersion:   Scalar(cand.Version),
				"purl":        Scalar(cand.FullPurl),
			},
			AliasCVE: cve,
		})
	}
	return rows
}

// preferredCVEID reports the CVE identifier of an OSV record, falling back to its own id
func preferredCVEID(id string, aliases []string) string {
	if strings.HasPrefix(id, "CVE-") {
		return id
	}
	for _, alias := range aliases {
		if strings.HasPrefix(alias, "CVE-") {
			return alias
		}
	}
	return id
}

var _ Correlator = (*ArangoCorrelator)(nil)
