package model

import "time"

// DefaultCVSSScore is used when the graph store holds no score for a CVE
const DefaultCVSSScore = 10.0

// Edge labels linking a repository to the package versions it depends on
const (
	EdgeDirect     = "has_dependency"
	EdgeTransitive = "has_transitive_dependency"
)

// CVE is one vulnerability record attached to a package version
type CVE struct {
	ID   string  `json:"CVE"`
	CVSS float64 `json:"CVSS"`
}

// PackageFinding groups a vulnerable package version with the CVEs affecting it
type PackageFinding struct {
	Ecosystem    string `json:"ecosystem"`
	Name         string `json:"name"`
	Version      string `json:"version"`
	IsTransitive bool   `json:"is_transitive"`
	CVECount     int    `json:"cve_count"`
	CVEs         []CVE  `json:"cves"`
}

// Coordinate returns the coordinate of the finding's package version
func (f PackageFinding) Coordinate() Coordinate {
	return NewCoordinate(f.Ecosystem, f.Name, f.Version)
}

// RepositoryReport is the per-repository vulnerability report
type RepositoryReport struct {
	RepoURL        string           `json:"repo_url"`
	VulnerableDeps []PackageFinding `json:"vulnerable_deps"`
}

// StoredReport is a rendered report kept for history, one document per scan
type StoredReport struct {
	Key       string           `json:"_key,omitempty"`
	ObjType   string           `json:"objtype,omitempty"`
	RequestID string           `json:"request_id"`
	RepoURL   string           `json:"repo_url"`
	Report    RepositoryReport `json:"report"`
	CreatedAt time.Time        `json:"created_at"`
}
