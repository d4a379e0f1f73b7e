package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ortelius/pdvd-reposcan/config"
	"github.com/ortelius/pdvd-reposcan/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gremlinServer(t *testing.T) config.Config {
	t.Helper()
	fixture, err := os.ReadFile(filepath.Join("..", "graph", "testdata", "gremlin-response.json"))
	require.NoError(t, err)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Contains(t, body["gremlin"], "https://github.com/org/app")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(fixture)
	}))
	t.Cleanup(srv.Close)

	u, err := url.Parse(srv.URL)
	require.NoError(t, err)

	cfg := config.Default()
	cfg.GraphBackend = config.BackendGremlin
	cfg.Gremlin = config.GremlinConfig{Host: "http://" + u.Hostname(), Port: u.Port()}
	cfg.GraphTimeout = 5 * time.Second
	return cfg
}

func npmListing() string {
	return filepath.Join("..", "manifest", "testdata", "npm-list.json")
}

func TestRunScanJSON(t *testing.T) {
	cfg := gremlinServer(t)
	var out bytes.Buffer

	err := runScan(context.Background(), cfg, &scanOptions{
		RepoURL:   "https://github.com/org/app",
		Ecosystem: "npm",
		Format:    "json",
	}, []string{npmListing()}, &out)
	require.NoError(t, err)

	var reports []model.RepositoryReport
	require.NoError(t, json.Unmarshal(out.Bytes(), &reports))
	require.Len(t, reports, 1)
	require.Len(t, reports[0].VulnerableDeps, 2)

	lodash := reports[0].VulnerableDeps[0]
	assert.Equal(t, "lodash", lodash.Name)
	assert.Equal(t, 2, lodash.CVECount)
	assert.Equal(t, model.DefaultCVSSScore, lodash.CVEs[1].CVSS)
	assert.True(t, reports[0].VulnerableDeps[1].IsTransitive)
}

func TestRunScanTable(t *testing.T) {
	cfg := gremlinServer(t)
	var out bytes.Buffer

	err := runScan(context.Background(), cfg, &scanOptions{
		RepoURL:   "https://github.com/org/app",
		Ecosystem: "npm",
		Format:    "table",
	}, []string{npmListing()}, &out)
	require.NoError(t, err)

	text := out.String()
	assert.Contains(t, text, "https://github.com/org/app")
	assert.Contains(t, text, "Vulnerable packages: 2, CVEs: 3")
	assert.Contains(t, text, "CVE-2019-10744")
	assert.Contains(t, text, "transitive")
}

func TestRunScanMissingFile(t *testing.T) {
	cfg := gremlinServer(t)
	err := runScan(context.Background(), cfg, &scanOptions{RepoURL: "r", Ecosystem: "npm", Format: "json"},
		[]string{filepath.Join(t.TempDir(), "missing.json")}, &bytes.Buffer{})
	assert.Error(t, err)
}

func TestSummary(t *testing.T) {
	report := model.RepositoryReport{VulnerableDeps: []model.PackageFinding{
		{CVEs: []model.CVE{{CVSS: 9.8}, {CVSS: 5}}},
		{CVEs: []model.CVE{{CVSS: 7.5}}},
	}}
	assert.Equal(t, "Vulnerable packages: 2, CVEs: 3 (LOW: 0, MEDIUM: 1, HIGH: 1, CRITICAL: 1)", summary(report))
}

func TestRootCommandFlags(t *testing.T) {
	root := NewRootCommand()
	scan, _, err := root.Find([]string{"scan"})
	require.NoError(t, err)
	assert.NotNil(t, scan.Flags().Lookup("notify"))
	assert.NotNil(t, scan.Flags().Lookup("format"))

	root.SetArgs([]string{"scan", "--repo", "r", "--format", "xml", npmListing()})
	root.SetOut(&bytes.Buffer{})
	err = root.Execute()
	assert.ErrorContains(t, err, "unknown format")

	root = NewRootCommand()
	root.SetArgs([]string{"--backend", "neo4j", "scan", "--repo", "r", npmListing()})
	root.SetOut(&bytes.Buffer{})
	assert.Error(t, root.Execute())
}
