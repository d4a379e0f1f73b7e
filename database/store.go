package database

import (
	"context"
	"fmt"
	"time"

	"github.com/arangodb/go-driver/v2/arangodb"
	"github.com/ortelius/pdvd-reposcan/model"
	"github.com/ortelius/pdvd-reposcan/util"
)

// Store persists scan results, report history and the repository registry
type Store struct {
	db arangodb.Database
}

// NewStore wraps an initialized connection
func NewStore(conn DBConnection) *Store {
	return &Store{db: conn.Database}
}

// SaveScanResult inserts or replaces the result stored under its request id
func (s *Store) SaveScanResult(ctx context.Context, result model.ScanResult) error {
	result.Key = util.DocumentKey(result.RequestID)
	result.ObjType = "ScanResult"

	query := `
		UPSERT { request_id: @doc.request_id }
		INSERT @doc
		REPLACE @doc
		IN scan_result
	`
	return s.exec(ctx, query, map[string]interface{}{"doc": result})
}

// FindScanResult returns the result stored for requestID, or nil when there is none
func (s *Store) FindScanResult(ctx context.Context, requestID string) (*model.ScanResult, error) {
	query := `
		FOR r IN scan_result
			FILTER r.request_id == @request_id
			LIMIT 1
			RETURN r
	`
	var result model.ScanResult
	found, err := s.first(ctx, query, map[string]interface{}{"request_id": requestID}, &result)
	if err != nil || !found {
		return nil, err
	}
	return &result, nil
}

// SaveReports stores one history document per repository report of a scan
func (s *Store) SaveReports(ctx context.Context, requestID string, reports []model.RepositoryReport, createdAt time.Time) error {
	if len(reports) == 0 {
		return nil
	}

	docs := make([]model.StoredReport, 0, len(reports))
	for _, r := range reports {
		docs = append(docs, model.StoredReport{
			Key:       util.DocumentKey(requestID + "|" + r.RepoURL),
			ObjType:   "Report",
			RequestID: requestID,
			RepoURL:   r.RepoURL,
			Report:    r,
			CreatedAt: createdAt.UTC(),
		})
	}

	query := `
		FOR doc IN @docs
			UPSERT { _key: doc._key }
			INSERT doc
			REPLACE doc
			IN report
	`
	return s.exec(ctx, query, map[string]interface{}{"docs": docs})
}

// LatestReport returns the most recent stored report of a repository, or nil
func (s *Store) LatestReport(ctx context.Context, repoURL string) (*model.StoredReport, error) {
	history, err := s.ReportHistory(ctx, repoURL, 1)
	if err != nil || len(history) == 0 {
		return nil, err
	}
	return &history[0], nil
}

// ReportHistory returns up to limit stored reports of a repository, newest first
func (s *Store) ReportHistory(ctx context.Context, repoURL string, limit int) ([]model.StoredReport, error) {
	if limit <= 0 {
		limit = 10
	}

	query := `
		FOR r IN report
			FILTER r.repo_url == @repo_url
			SORT r.created_at DESC
			LIMIT @limit
			RETURN r
	`
	cursor, err := s.db.Query(ctx, query, &arangodb.QueryOptions{
		BindVars: map[string]interface{}{
			"repo_url": repoURL,
			"limit":    limit,
		},
	})
	if err != nil {
		return nil, err
	}
	defer cursor.Close()

	var history []model.StoredReport
	for cursor.HasMore() {
		var r model.StoredReport
		if _, err := cursor.ReadDocument(ctx, &r); err != nil {
			return nil, err
		}
		history = append(history, r)
	}
	return history, nil
}

// UpsertRegisteredRepo registers a repository or refreshes its sha and recipients
func (s *Store) UpsertRegisteredRepo(ctx context.Context, repo model.RegisteredRepo) error {
	repo.Key = util.DocumentKey(repo.RepoURL)
	repo.ObjType = "RegisteredRepo"

	query := `
		UPSERT { git_url: @doc.git_url }
		INSERT @doc
		UPDATE { git_sha: @doc.git_sha, email_ids: @doc.email_ids }
		IN registered_repo
	`
	return s.exec(ctx, query, map[string]interface{}{"doc": repo})
}

// FindRegisteredRepo returns the registry entry of a repository, or nil
func (s *Store) FindRegisteredRepo(ctx context.Context, repoURL string) (*model.RegisteredRepo, error) {
	query := `
		FOR r IN registered_repo
			FILTER r.git_url == @git_url
			LIMIT 1
			RETURN r
	`
	var repo model.RegisteredRepo
	found, err := s.first(ctx, query, map[string]interface{}{"git_url": repoURL}, &repo)
	if err != nil || !found {
		return nil, err
	}
	return &repo, nil
}

// MarkScanned records the time of the last finished scan of a registered repository
func (s *Store) MarkScanned(ctx context.Context, repoURL string, at time.Time) error {
	query := `
		FOR r IN registered_repo
			FILTER r.git_url == @git_url
			UPDATE r WITH { last_scanned_at: @at } IN registered_repo
	`
	return s.exec(ctx, query, map[string]interface{}{
		"git_url": repoURL,
		"at":      at.UTC(),
	})
}

func (s *Store) exec(ctx context.Context, query string, bindVars map[string]interface{}) error {
	cursor, err := s.db.Query(ctx, query, &arangodb.QueryOptions{
		BindVars: bindVars,
	})
	if err != nil {
		return err
	}
	cursor.Close()
	return nil
}

func (s *Store) first(ctx context.Context, query string, bindVars map[string]interface{}, out interface{}) (bool, error) {
	cursor, err := s.db.Query(ctx, query, &arangodb.QueryOptions{
		BindVars: bindVars,
	})
	if err != nil {
		return false, err
	}
	defer cursor.Close()

	if !cursor.HasMore() {
		return false, nil
	}
	if _, err := cursor.ReadDocument(ctx, out); err != nil {
		return false, fmt.Errorf("reading document: %w", err)
	}
	return true, nil
}
