package reports

import (
	"context"

	"github.com/ortelius/pdvd-reposcan/model"
)

// Source reads stored scan results and reports. database.Store satisfies it.
type Source interface {
	FindScanResult(ctx context.Context, requestID string) (*model.ScanResult, error)
	LatestReport(ctx context.Context, repoURL string) (*model.StoredReport, error)
	ReportHistory(ctx context.Context, repoURL string, limit int) ([]model.StoredReport, error)
}

// ResolveScanResult returns the stored result as a value so field resolvers can type-switch on it
func ResolveScanResult(ctx context.Context, source Source, requestID string) (interface{}, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	result, err := source.FindScanResult(ctx, requestID)
	if err != nil || result == nil {
		return nil, err
	}
	return *result, nil
}

// ResolveLatestReport returns the newest stored report of a repository, or null
func ResolveLatestReport(ctx context.Context, source Source, repoURL string) (interface{}, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	report, err := source.LatestReport(ctx, repoURL)
	if err != nil || report == nil {
		return nil, err
	}
	return *report, nil
}
