package graph

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/ortelius/pdvd-reposcan/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuoteEscapesGroovyLiterals(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"plain", `'plain'`},
		{"it's", `'it\'s'`},
		{`back\slash`, `'back\\slash'`},
		{`\'`, `'\\\''`},
		{"two\nlines", `'two\nlines'`},
		{"${evil}", `'${evil}'`},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, quote(tt.in))
		})
	}
}

func TestCorrelationScriptShape(t *testing.T) {
	deps := model.NewDependencySet()
	deps.Direct.Add(model.NewCoordinate("maven", "io.vertx:vertx-core", "3.4.1"))
	deps.Transitive.Add(model.NewCoordinate("npm", "is-url", "1.2.4"))

	script := correlationScript("https://github.com/org/app", deps)

	assert.True(t, strings.HasPrefix(script, "repo=g.V().has('repo_url','https://github.com/org/app')"))
	assert.Contains(t, script, "g.V(repo).outE('has_dependency').drop().iterate();")
	assert.Contains(t, script, "g.V(repo).outE('has_transitive_dependency').drop().iterate();")
	assert.Contains(t, script, "has('pecosystem','maven').has('pname','io.vertx:vertx-core').has('version','3.4.1')")
	assert.Contains(t, script, "addEdge('has_dependency',ver.next())")
	assert.Contains(t, script, "has('pname','is-url')")
	assert.Contains(t, script, "addEdge('has_transitive_dependency',ver.next())")
	assert.True(t, strings.HasSuffix(script, ".select('rp','ed','epv','cve').by(valueMap(true));"))
}

func TestCorrelationScriptEscapesHostileInput(t *testing.T) {
	hostile := "https://x/');g.V().drop();('"
	deps := model.NewDependencySet()
	deps.Direct.Add(model.Coordinate{Ecosystem: "npm", Artifact: "a');g.V().drop().iterate();//", Version: "1"})

	script := correlationScript(hostile, deps)

	assert.NotContains(t, script, "x/');")
	assert.NotContains(t, script, "'a');")
	assert.Contains(t, script, `'https://x/\');g.V().drop();(\''`)
	assert.Contains(t, script, `'a\');g.V().drop().iterate();//'`)
}

func TestCorrelationScriptEmptyDependencies(t *testing.T) {
	script := correlationScript("https://github.com/org/app", model.NewDependencySet())

	assert.Contains(t, script, "repo=g.V()")
	assert.Contains(t, script, "drop().iterate();")
	assert.NotContains(t, script, "addEdge('has_")
	assert.Contains(t, script, "select('rp','ed','epv','cve')")
}

func TestGremlinCorrelatorParsesRows(t *testing.T) {
	fixture, err := os.ReadFile("testdata/gremlin-response.json")
	require.NoError(t, err)

	var gotScript string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		body, _ := io.ReadAll(r.Body)
		var req gremlinRequest
		require.NoError(t, json.Unmarshal(body, &req))
		gotScript = req.Gremlin
		_, _ = w.Write(fixture)
	}))
	defer srv.Close()

	deps := model.NewDependencySet()
	deps.Direct.Add(model.NewCoordinate("npm", "lodash", "4.17.10"))

	g := NewGremlinCorrelator(srv.Client(), srv.URL)
	raw, err := g.CorrelateRepository(context.Background(), "https://github.com/org/app", deps)
	require.NoError(t, err)

	assert.Contains(t, gotScript, "has('pname','lodash')")
	assert.Equal(t, "https://github.com/org/app", raw.RepoURL)
	require.Len(t, raw.Rows, 3)

	first := raw.Rows[0]
	assert.Equal(t, "https://github.com/org/app", first[AliasRepo].String(PropRepoURL))
	assert.Equal(t, "has_dependency", first[AliasEdge].String(PropLabel))
	assert.Equal(t, "lodash", first[AliasPackage].String(PropName))
	score, ok := first[AliasCVE].Float(PropCVSS)
	assert.True(t, ok)
	assert.Equal(t, 6.8, score)

	_, ok = raw.Rows[1][AliasCVE].Float(PropCVSS)
	assert.False(t, ok)
}

func TestGremlinCorrelatorEmptyResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"status":{"code":200},"result":{"data":[]}}`))
	}))
	defer srv.Close()

	raw, err := NewGremlinCorrelator(srv.Client(), srv.URL).
		CorrelateRepository(context.Background(), "https://github.com/org/app", model.NewDependencySet())
	require.NoError(t, err)
	assert.Empty(t, raw.Rows)
}

func TestGremlinCorrelatorFailures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"http error", http.StatusInternalServerError, `{"message":"boom"}`},
		{"body status error", http.StatusOK, `{"status":{"code":597,"message":"script evaluation error"},"result":{"data":[]}}`},
		{"malformed body", http.StatusOK, `<html>`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := NewGremlinCorrelator(srv.Client(), srv.URL).
				CorrelateRepository(context.Background(), "https://github.com/org/app", model.NewDependencySet())
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrCorrelationFailed)

			var cerr *CorrelationError
			require.True(t, errors.As(err, &cerr))
			assert.Equal(t, "https://github.com/org/app", cerr.RepoURL)
		})
	}
}

func TestGremlinCorrelatorTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := NewGremlinCorrelator(srv.Client(), srv.URL).
		CorrelateRepository(ctx, "https://github.com/org/app", model.NewDependencySet())
	assert.ErrorIs(t, err, ErrCorrelationFailed)
}

func TestGremlinEndpoint(t *testing.T) {
	assert.Equal(t, "http://gremlin:8182", GremlinEndpoint("gremlin", "8182"))
	assert.Equal(t, "https://gremlin:8443", GremlinEndpoint("https://gremlin", "8443"))
}
