package services

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/ortelius/pdvd-reposcan/graph"
	"github.com/ortelius/pdvd-reposcan/model"
	"github.com/ortelius/pdvd-reposcan/notification"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const repoURL = "https://github.com/org/app"

type fakeCorrelator struct {
	rows []graph.Row
	err  error
	deps model.DependencySet
}

func (f *fakeCorrelator) CorrelateRepository(_ context.Context, url string, deps model.DependencySet) (*graph.RawResult, error) {
	f.deps = deps
	if f.err != nil {
		return nil, f.err
	}
	return &graph.RawResult{RepoURL: url, Rows: f.rows}, nil
}

type fakeStore struct {
	mu      sync.Mutex
	results []model.ScanResult
	reports []model.RepositoryReport
	scanned []string
}

func (f *fakeStore) SaveScanResult(_ context.Context, r model.ScanResult) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results = append(f.results, r)
	return nil
}

func (f *fakeStore) SaveReports(_ context.Context, _ string, reports []model.RepositoryReport, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reports = append(f.reports, reports...)
	return nil
}

func (f *fakeStore) MarkScanned(_ context.Context, url string, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scanned = append(f.scanned, url)
	return nil
}

type fakeDeliverer struct {
	mu     sync.Mutex
	repos  []string
	tokens []string
	err    error
}

func (f *fakeDeliverer) Deliver(_ context.Context, p model.NotificationPayload, token string) (notification.Outcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.repos = append(f.repos, p.RepoURL)
	f.tokens = append(f.tokens, token)
	if f.err != nil {
		return "", f.err
	}
	return notification.OutcomeAccepted, nil
}

func vulnRow(label, name, version, cveID string, cvss float64) graph.Row {
	return graph.Row{
		graph.AliasRepo: {graph.PropRepoURL: graph.Scalar(repoURL)},
		graph.AliasEdge: {graph.PropLabel: label},
		graph.AliasPackage: {
			graph.PropEcosystem: graph.Scalar("npm"),
			graph.PropName:      graph.Scalar(name),
			graph.PropVersion:   graph.Scalar(version),
		},
		graph.AliasCVE: {
			graph.PropCVEID: graph.Scalar(cveID),
			graph.PropCVSS:  graph.Scalar(cvss),
		},
	}
}

func npmRequest(t *testing.T) model.ScanRequest {
	content, err := os.ReadFile(filepath.Join("..", "..", "manifest", "testdata", "npm-list.json"))
	require.NoError(t, err)
	return model.ScanRequest{
		RequestID: "req-1",
		RepoURL:   repoURL,
		Ecosystem: "npm",
		Files:     []model.ManifestFile{{Name: "npm-list.json", Content: content}},
	}
}

func fixedNow() time.Time {
	return time.Date(2024, time.March, 1, 10, 0, 0, 0, time.UTC)
}

func TestScanSuccess(t *testing.T) {
	corr := &fakeCorrelator{rows: []graph.Row{
		vulnRow(model.EdgeDirect, "lodash", "4.17.10", "CVE-2019-10744", 9.1),
		vulnRow(model.EdgeTransitive, "is-url", "1.2.4", "CVE-2018-0001", 5.0),
	}}
	store := &fakeStore{}
	svc := NewScanService(Options{Correlator: corr, Store: store, Now: fixedNow, GraphTimeout: time.Second})

	result, err := svc.Scan(context.Background(), npmRequest(t))
	require.NoError(t, err)

	assert.Equal(t, model.ScanSucceeded, result.Status)
	require.Len(t, result.Reports, 1)
	assert.Len(t, result.Reports[0].VulnerableDeps, 2)
	assert.True(t, corr.deps.Direct.Has(model.Coordinate{Ecosystem: "npm", Artifact: "lodash", Version: "4.17.10"}))

	require.Len(t, store.results, 1)
	assert.Equal(t, "req-1", store.results[0].RequestID)
	assert.Len(t, store.reports, 1)
	assert.Equal(t, []string{repoURL}, store.scanned)
}

func TestScanWithoutFindingsStillReports(t *testing.T) {
	svc := NewScanService(Options{Correlator: &fakeCorrelator{}, Now: fixedNow})

	result, err := svc.Scan(context.Background(), npmRequest(t))
	require.NoError(t, err)
	require.Len(t, result.Reports, 1)
	assert.Equal(t, repoURL, result.Reports[0].RepoURL)
	assert.Empty(t, result.Reports[0].VulnerableDeps)
}

func TestScanRejectsInvalidRequests(t *testing.T) {
	svc := NewScanService(Options{Correlator: &fakeCorrelator{}})

	tests := []struct {
		name string
		req  model.ScanRequest
	}{
		{"missing repo", model.ScanRequest{Ecosystem: "npm"}},
		{"nothing to scan", model.ScanRequest{RepoURL: repoURL}},
		{"unknown ecosystem", model.ScanRequest{RepoURL: repoURL, Ecosystem: "cargo", Files: []model.ManifestFile{{Name: "x", Content: []byte("{}")}}}},
		{"no direct dependencies", model.ScanRequest{RepoURL: repoURL, Ecosystem: "npm", Files: []model.ManifestFile{{Name: "npm-list.json", Content: []byte(`{"dependencies":{}}`)}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := svc.Scan(context.Background(), tt.req)
			assert.ErrorIs(t, err, ErrInvalidRequest)
			assert.Equal(t, model.ScanFailed, result.Status)
		})
	}
}

func TestScanCorrelationFailureIsStored(t *testing.T) {
	store := &fakeStore{}
	corr := &fakeCorrelator{err: graph.ErrCorrelationFailed}
	svc := NewScanService(Options{Correlator: corr, Store: store})

	_, err := svc.Scan(context.Background(), npmRequest(t))
	assert.ErrorIs(t, err, graph.ErrCorrelationFailed)
	require.Len(t, store.results, 1)
	assert.Equal(t, model.ScanFailed, store.results[0].Status)
	assert.NotEmpty(t, store.results[0].Error)
	assert.Empty(t, store.scanned)
}

func TestScanNotifiesVulnerableRepositories(t *testing.T) {
	corr := &fakeCorrelator{rows: []graph.Row{
		vulnRow(model.EdgeDirect, "lodash", "4.17.10", "CVE-2019-10744", 9.1),
	}}
	d := &fakeDeliverer{}
	svc := NewScanService(Options{
		Correlator: corr,
		Deliverer:  d,
		Tokens:     notification.StaticToken("secret"),
		Now:        fixedNow,
	})

	req := npmRequest(t)
	req.Notify = true
	result, err := svc.Scan(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Notified)
	assert.Equal(t, []string{repoURL}, d.repos)
	assert.Equal(t, []string{"secret"}, d.tokens)
}

func TestScanSkipsNotificationWithoutFindings(t *testing.T) {
	d := &fakeDeliverer{}
	svc := NewScanService(Options{Correlator: &fakeCorrelator{}, Deliverer: d, Tokens: notification.StaticToken("secret")})

	req := npmRequest(t)
	req.Notify = true
	result, err := svc.Scan(context.Background(), req)
	require.NoError(t, err)
	assert.Zero(t, result.Notified)
	assert.Empty(t, d.repos)
}

func TestScanNotificationFailure(t *testing.T) {
	corr := &fakeCorrelator{rows: []graph.Row{
		vulnRow(model.EdgeDirect, "lodash", "4.17.10", "CVE-2019-10744", 9.1),
	}}
	store := &fakeStore{}
	svc := NewScanService(Options{
		Correlator: corr,
		Deliverer:  &fakeDeliverer{err: notification.ErrDeliveryAuthFailed},
		Tokens:     notification.StaticToken("stale"),
		Store:      store,
	})

	req := npmRequest(t)
	req.Notify = true
	result, err := svc.Scan(context.Background(), req)
	assert.ErrorIs(t, err, notification.ErrDeliveryAuthFailed)
	assert.Equal(t, model.ScanFailed, result.Status)
	assert.Len(t, store.reports, 1, "reports are kept even when delivery fails")

	_, err = NewScanService(Options{Correlator: corr}).Scan(context.Background(), req)
	assert.Error(t, err)
	assert.False(t, errors.Is(err, ErrInvalidRequest))
}

func TestScanEmptySuppliedSetClearsEdges(t *testing.T) {
	corr := &fakeCorrelator{}
	svc := NewScanService(Options{Correlator: corr})

	result, err := svc.Scan(context.Background(), model.ScanRequest{
		RequestID:    "r-empty",
		RepoURL:      repoURL,
		Dependencies: &model.DependencySet{},
	})
	require.NoError(t, err)
	assert.Equal(t, model.ScanSucceeded, result.Status)
	assert.Empty(t, corr.deps.Direct)
	require.Len(t, result.Reports, 1)
	assert.Empty(t, result.Reports[0].VulnerableDeps)
}

func TestDependenciesFromSuppliedSet(t *testing.T) {
	lodash := model.Coordinate{Ecosystem: "npm", Artifact: "lodash", Version: "4.17.10"}
	set := model.DependencySet{
		Direct:     model.NewCoordinateSet(lodash),
		Transitive: model.NewCoordinateSet(lodash),
	}
	deps, err := Dependencies(model.ScanRequest{RepoURL: repoURL, Dependencies: &set})
	require.NoError(t, err)
	assert.True(t, deps.Direct.Has(lodash))
	assert.Empty(t, deps.Transitive)
}
