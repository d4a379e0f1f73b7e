// Package graph links a repository to the package versions it depends on in a
// backing graph store and reads back the vulnerabilities reachable from it.
package graph

import (
	"context"
	"errors"
	"fmt"

	"github.com/ortelius/pdvd-reposcan/model"
)

// ErrCorrelationFailed is matched by every CorrelationError
var ErrCorrelationFailed = errors.New("correlation failed")

// CorrelationError reports a failed correlation run for one repository.
// Edges already dropped or created by the run are not rolled back.
type CorrelationError struct {
	RepoURL string
	Err     error
}

func (e *CorrelationError) Error() string {
	return fmt.Sprintf("correlating %s: %v", e.RepoURL, e.Err)
}

func (e *CorrelationError) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrCorrelationFailed) hold for any CorrelationError
func (e *CorrelationError) Is(target error) bool {
	return target == ErrCorrelationFailed
}

// Correlator refreshes a repository's dependency edges and traverses to its CVEs.
//
// A run performs, in order: get-or-create the repository node, drop all of its
// has_dependency and has_transitive_dependency edges, link every known direct and
// transitive coordinate (unknown coordinates are skipped), then traverse
// repository -> edge -> package version -> CVE.
type Correlator interface {
	CorrelateRepository(ctx context.Context, repoURL string, deps model.DependencySet) (*RawResult, error)
}

func correlationError(repoURL string, err error) error {
	return &CorrelationError{RepoURL: repoURL, Err: err}
}
