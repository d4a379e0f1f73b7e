// Package services provides the scan pipeline shared by the REST API, the Kafka worker and the CLI.
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ortelius/pdvd-reposcan/graph"
	"github.com/ortelius/pdvd-reposcan/manifest"
	"github.com/ortelius/pdvd-reposcan/model"
	"github.com/ortelius/pdvd-reposcan/notification"
	"github.com/ortelius/pdvd-reposcan/report"
	"go.uber.org/zap"
)

// ErrInvalidRequest wraps every request rejected before correlation starts
var ErrInvalidRequest = errors.New("invalid scan request")

// ResultStore persists scan outcomes. database.Store satisfies it.
type ResultStore interface {
	SaveScanResult(ctx context.Context, result model.ScanResult) error
	SaveReports(ctx context.Context, requestID string, reports []model.RepositoryReport, createdAt time.Time) error
	MarkScanned(ctx context.Context, repoURL string, at time.Time) error
}

// Scanner runs one scan request to completion
type Scanner interface {
	Scan(ctx context.Context, req model.ScanRequest) (model.ScanResult, error)
}

// Options configures a ScanService. Correlator is required; the rest is optional.
type Options struct {
	Correlator    graph.Correlator
	Deliverer     notification.Deliverer
	Tokens        notification.TokenSource
	Store         ResultStore
	Logger        *zap.Logger
	GraphTimeout  time.Duration
	NotifyTimeout time.Duration
	Now           func() time.Time
}

// ScanService parses manifests, correlates them against the graph, builds
// the per-repository reports, stores them and optionally notifies.
type ScanService struct {
	correlator    graph.Correlator
	deliverer     notification.Deliverer
	tokens        notification.TokenSource
	store         ResultStore
	logger        *zap.Logger
	graphTimeout  time.Duration
	notifyTimeout time.Duration
	now           func() time.Time
}

var _ Scanner = (*ScanService)(nil)

// NewScanService builds a service from opts
func NewScanService(opts Options) *ScanService {
	s := &ScanService{
		correlator:    opts.Correlator,
		deliverer:     opts.Deliverer,
		tokens:        opts.Tokens,
		store:         opts.Store,
		logger:        opts.Logger,
		graphTimeout:  opts.GraphTimeout,
		notifyTimeout: opts.NotifyTimeout,
		now:           opts.Now,
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// Dependencies resolves the dependency set of a request, from the supplied set or by parsing its files.
func Dependencies(req model.ScanRequest) (model.DependencySet, error) {
	if req.RepoURL == "" {
		return model.DependencySet{}, fmt.Errorf("%w: repo_url cannot be empty", ErrInvalidRequest)
	}

	var deps model.DependencySet
	switch {
	case req.Dependencies != nil:
		deps = model.NewDependencySet()
		deps.Merge(*req.Dependencies)
	case len(req.Files) > 0:
		files := make([]manifest.File, 0, len(req.Files))
		for _, f := range req.Files {
			files = append(files, manifest.File{Name: f.Name, Content: f.Content})
		}
		parsed, err := manifest.ParseFiles(req.Ecosystem, files...)
		if err != nil {
			return model.DependencySet{}, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
		}
		deps = parsed
	default:
		return model.DependencySet{}, fmt.Errorf("%w: no manifest files or dependencies", ErrInvalidRequest)
	}

	// a supplied set may be empty on purpose: correlating it clears the repository's edges
	if req.Dependencies != nil {
		return deps, nil
	}
	if err := manifest.RequireDirect(deps); err != nil {
		return model.DependencySet{}, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	return deps, nil
}

// Scan runs the pipeline for req. The returned result is also stored when a
// store is configured, on failure as well as on success.
func (s *ScanService) Scan(ctx context.Context, req model.ScanRequest) (model.ScanResult, error) {
	result := model.ScanResult{
		RequestID: req.RequestID,
		RepoURL:   req.RepoURL,
		Status:    model.ScanPending,
		StartedAt: s.now().UTC(),
	}
	log := s.logger.With(zap.String("request_id", req.RequestID), zap.String("repo_url", req.RepoURL))

	reports, err := s.correlate(ctx, log, req)
	if err != nil {
		return s.fail(ctx, log, result, err)
	}
	result.Reports = reports

	if s.store != nil {
		if err := s.store.SaveReports(ctx, req.RequestID, reports, result.StartedAt); err != nil {
			return s.fail(ctx, log, result, fmt.Errorf("storing reports: %w", err))
		}
	}

	if req.Notify {
		notified, err := s.notify(ctx, reports)
		result.Notified = notified
		if err != nil {
			return s.fail(ctx, log, result, err)
		}
	}

	result.Status = model.ScanSucceeded
	result.EndedAt = s.now().UTC()
	if s.store != nil {
		if err := s.store.SaveScanResult(ctx, result); err != nil {
			return result, fmt.Errorf("storing scan result: %w", err)
		}
		if err := s.store.MarkScanned(ctx, req.RepoURL, result.EndedAt); err != nil {
			log.Warn("Failed to update registry", zap.Error(err))
		}
	}

	log.Info("Scan finished",
		zap.Int("reports", len(reports)),
		zap.Int("notified", result.Notified),
		zap.Duration("elapsed", result.EndedAt.Sub(result.StartedAt)))
	return result, nil
}

func (s *ScanService) correlate(ctx context.Context, log *zap.Logger, req model.ScanRequest) ([]model.RepositoryReport, error) {
	if s.correlator == nil {
		return nil, errors.New("no graph correlator configured")
	}

	deps, err := Dependencies(req)
	if err != nil {
		return nil, err
	}
	log.Debug("Resolved dependencies",
		zap.Int("direct", len(deps.Direct)),
		zap.Int("transitive", len(deps.Transitive)))

	gctx := ctx
	if s.graphTimeout > 0 {
		var cancel context.CancelFunc
		gctx, cancel = context.WithTimeout(ctx, s.graphTimeout)
		defer cancel()
	}

	raw, err := s.correlator.CorrelateRepository(gctx, req.RepoURL, deps)
	if err != nil {
		return nil, err
	}

	rows := report.Reshape(raw)
	if len(rows) == 0 {
		log.Info("No vulnerable packages", zap.Error(report.ErrReshapeEmpty))
	}
	return withRequestedRepo(report.Aggregate(rows, deps), req.RepoURL), nil
}

// withRequestedRepo makes sure the scanned repository has a report even when nothing matched
func withRequestedRepo(reports []model.RepositoryReport, repoURL string) []model.RepositoryReport {
	for _, r := range reports {
		if r.RepoURL == repoURL {
			return reports
		}
	}
	return append(reports, model.RepositoryReport{RepoURL: repoURL, VulnerableDeps: []model.PackageFinding{}})
}

// notify delivers the reports that carry findings
func (s *ScanService) notify(ctx context.Context, reports []model.RepositoryReport) (int, error) {
	if s.deliverer == nil || s.tokens == nil {
		return 0, errors.New("notifications requested but no notification client configured")
	}

	var vulnerable []model.RepositoryReport
	for _, r := range reports {
		if len(r.VulnerableDeps) > 0 {
			vulnerable = append(vulnerable, r)
		}
	}
	if len(vulnerable) == 0 {
		return 0, nil
	}

	token, err := s.tokens.Token(ctx)
	if err != nil {
		return 0, err
	}

	nctx := ctx
	if s.notifyTimeout > 0 {
		var cancel context.CancelFunc
		nctx, cancel = context.WithTimeout(ctx, s.notifyTimeout)
		defer cancel()
	}
	return notification.DeliverAll(nctx, s.deliverer, notification.FormatAll(vulnerable, s.now()), token)
}

func (s *ScanService) fail(ctx context.Context, log *zap.Logger, result model.ScanResult, cause error) (model.ScanResult, error) {
	result.Status = model.ScanFailed
	result.Error = cause.Error()
	result.EndedAt = s.now().UTC()

	log.Error("Scan failed", zap.Error(cause))
	if s.store != nil && result.RequestID != "" {
		if err := s.store.SaveScanResult(ctx, result); err != nil {
			log.Warn("Failed to store failed scan result", zap.Error(err))
		}
	}
	return result, cause
}
