package model

import "time"

// ScanStatus is the lifecycle state of a scan request
type ScanStatus string

const (
	// ScanPending means the request was accepted but not yet processed
	ScanPending ScanStatus = "pending"
	// ScanSucceeded means the pipeline finished and reports are available
	ScanSucceeded ScanStatus = "success"
	// ScanFailed means the pipeline stopped with an error
	ScanFailed ScanStatus = "failed"
)

// ManifestFile is one uploaded dependency listing
type ManifestFile struct {
	Name    string `json:"name"`
	Content []byte `json:"content"`
}

// ScanRequest asks for one repository to be correlated against the graph.
// Either Files (raw manifests for Ecosystem) or Dependencies must be set.
type ScanRequest struct {
	RequestID    string         `json:"request_id"`
	RepoURL      string         `json:"repo_url"`
	GitSha       string         `json:"git_sha,omitempty"`
	EmailIDs     string         `json:"email_ids,omitempty"`
	Ecosystem    string         `json:"ecosystem,omitempty"`
	Files        []ManifestFile `json:"files,omitempty"`
	Dependencies *DependencySet `json:"dependencies,omitempty"`
	Notify       bool           `json:"notify"`
}

// ScanResult is the stored outcome of a scan, keyed by request id
type ScanResult struct {
	Key       string             `json:"_key,omitempty"`
	ObjType   string             `json:"objtype,omitempty"`
	RequestID string             `json:"request_id"`
	RepoURL   string             `json:"repo_url"`
	Status    ScanStatus         `json:"status"`
	Reports   []RepositoryReport `json:"reports"`
	Notified  int                `json:"notified"`
	Error     string             `json:"error,omitempty"`
	StartedAt time.Time          `json:"started_at"`
	EndedAt   time.Time          `json:"ended_at,omitempty"`
}

// RegisteredRepo is a repository subscribed to vulnerability notifications
type RegisteredRepo struct {
	Key           string    `json:"_key,omitempty"`
	ObjType       string    `json:"objtype,omitempty"`
	RepoURL       string    `json:"git_url"`
	GitSha        string    `json:"git_sha"`
	EmailIDs      string    `json:"email_ids"`
	LastScannedAt time.Time `json:"last_scanned_at"`
}
