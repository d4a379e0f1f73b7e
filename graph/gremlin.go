package graph

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/ortelius/pdvd-reposcan/model"
)

const maxGremlinResponseSize = 64 * 1024 * 1024

// HTTPDoer is the subset of *http.Client used by the HTTP backed clients
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// fragment is one statement of a Gremlin script. Every user supplied value is
// rendered through quote, never concatenated directly.
type fragment interface {
	render(b *strings.Builder)
}

type upsertRepo struct {
	repoURL string
}

func (f upsertRepo) render(b *strings.Builder) {
	u := quote(f.repoURL)
	fmt.Fprintf(b, "repo=g.V().has('%s',%s).tryNext().orElseGet{graph.addVertex('vertex_label','Repo','%s',%s)};",
		PropRepoURL, u, PropRepoURL, u)
}

type dropEdges struct {
	labels []string
}

func (f dropEdges) render(b *strings.Builder) {
	for _, label := range f.labels {
		fmt.Fprintf(b, "g.V(repo).outE(%s).drop().iterate();", quote(label))
	}
}

type linkCoordinate struct {
	label string
	coord model.Coordinate
}

func (f linkCoordinate) render(b *strings.Builder) {
	fmt.Fprintf(b, "ver=g.V().has('%s',%s).has('%s',%s).has('%s',%s);ver.hasNext() && g.V(repo).next().addEdge(%s,ver.next());",
		PropEcosystem, quote(f.coord.Ecosystem),
		PropName, quote(f.coord.Name()),
		PropVersion, quote(f.coord.Version),
		quote(f.label))
}

type traverse struct{}

func (traverse) render(b *strings.Builder) {
	fmt.Fprintf(b, "g.V(repo).as('%s').outE(%s,%s).as('%s').inV().as('%s').out('has_cve').as('%s').select('%s','%s','%s','%s').by(valueMap(true));",
		AliasRepo, quote(model.EdgeDirect), quote(model.EdgeTransitive), AliasEdge, AliasPackage, AliasCVE,
		AliasRepo, AliasEdge, AliasPackage, AliasCVE)
}

var groovyEscaper = strings.NewReplacer(
	`\`, `\\`,
	`'`, `\'`,
	"\n", `\n`,
	"\r", `\r`,
)

// quote renders s as a Groovy single quoted string literal
func quote(s string) string {
	return "'" + groovyEscaper.Replace(s) + "'"
}

// renderScript concatenates fragments into one Gremlin script
func renderScript(fragments ...fragment) string {
	var b strings.Builder
	for _, f := range fragments {
		f.render(&b)
	}
	return b.String()
}

// correlationScript builds the full upsert, refresh and traverse script for a repository
func correlationScript(repoURL string, deps model.DependencySet) string {
	fragments := []fragment{
		upsertRepo{repoURL: repoURL},
		dropEdges{labels: []string{model.EdgeDirect, model.EdgeTransitive}},
	}
	for _, c := range deps.Direct.Sorted() {
		fragments = append(fragments, linkCoordinate{label: model.EdgeDirect, coord: c})
	}
	for _, c := range deps.Transitive.Sorted() {
		fragments = append(fragments, linkCoordinate{label: model.EdgeTransitive, coord: c})
	}
	fragments = append(fragments, traverse{})
	return renderScript(fragments...)
}

type gremlinRequest struct {
	Gremlin string `json:"gremlin"`
}

type gremlinResponse struct {
	Status struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"status"`
	Result struct {
		Data []Row `json:"data"`
	} `json:"result"`
}

// GremlinCorrelator runs correlations against a Gremlin server's HTTP endpoint
type GremlinCorrelator struct {
	client   HTTPDoer
	endpoint string
}

// NewGremlinCorrelator creates a correlator posting scripts to endpoint
func NewGremlinCorrelator(client HTTPDoer, endpoint string) *GremlinCorrelator {
	if client == nil {
		client = http.DefaultClient
	}
	return &GremlinCorrelator{client: client, endpoint: endpoint}
}

// GremlinEndpoint builds the Gremlin HTTP URL from host and port
func GremlinEndpoint(host, port string) string {
	if strings.HasPrefix(host, "http://") || strings.HasPrefix(host, "https://") {
		return fmt.Sprintf("%s:%s", host, port)
	}
	return fmt.Sprintf("http://%s:%s", host, port)
}

// CorrelateRepository implements Correlator
func (g *GremlinCorrelator) CorrelateRepository(ctx context.Context, repoURL string, deps model.DependencySet) (*RawResult, error) {
	rows, err := g.execute(ctx, correlationScript(repoURL, deps))
	if err != nil {
		return nil, correlationError(repoURL, err)
	}
	return &RawResult{RepoURL: repoURL, Rows: rows}, nil
}

func (g *GremlinCorrelator) execute(ctx context.Context, script string) ([]Row, error) {
	body, err := json.Marshal(gremlinRequest{Gremlin: script})
	if err != nil {
		return nil, fmt.Errorf("encoding gremlin request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building gremlin request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gremlin request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxGremlinResponseSize))
	if err != nil {
		return nil, fmt.Errorf("reading gremlin response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("gremlin HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	var out gremlinResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decoding gremlin response: %w", err)
	}
	if out.Status.Code != 0 && (out.Status.Code < 200 || out.Status.Code > 299) {
		return nil, fmt.Errorf("gremlin status %d: %s", out.Status.Code, out.Status.Message)
	}

	return out.Result.Data, nil
}

var _ Correlator = (*GremlinCorrelator)(nil)
