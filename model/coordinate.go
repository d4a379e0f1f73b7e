// Package model defines the data structures used by the pdvd-reposcan service,
// including package coordinates, dependency sets, vulnerability reports and notifications.
package model

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ortelius/pdvd-reposcan/util"
)

// ErrMalformedCoordinate is returned when a coordinate string has neither three nor four segments
var ErrMalformedCoordinate = errors.New("malformed coordinate")

// Arity is the number of colon delimited segments of a coordinate string
type Arity int

const (
	// ArityInvalid marks a string that is not a coordinate
	ArityInvalid Arity = 0
	// ArityThreePart is ecosystem:artifact:version
	ArityThreePart Arity = 3
	// ArityFourPart is ecosystem:group:artifact:version
	ArityFourPart Arity = 4
)

// Coordinate identifies one release of a package (an EPV: ecosystem, package, version).
type Coordinate struct {
	Ecosystem string `json:"ecosystem"`
	Group     string `json:"group,omitempty"`
	Artifact  string `json:"artifact"`
	Version   string `json:"version"`
}

// DetectArity classifies a coordinate string by its segment count.
// Artifacts that contain a colon are ambiguous and will be classified by count alone.
func DetectArity(s string) Arity {
	switch strings.Count(s, ":") + 1 {
	case 3:
		return ArityThreePart
	case 4:
		return ArityFourPart
	default:
		return ArityInvalid
	}
}

// ParseCoordinate parses "ecosystem:artifact:version" or "ecosystem:group:artifact:version"
func ParseCoordinate(s string) (Coordinate, error) {
	parts := strings.Split(s, ":")

	var c Coordinate
	switch DetectArity(s) {
	case ArityFourPart:
		c = Coordinate{Ecosystem: parts[0], Group: parts[1], Artifact: parts[2], Version: parts[3]}
		if c.Group == "" {
			return Coordinate{}, fmt.Errorf("%w: empty group in %q", ErrMalformedCoordinate, s)
		}
	case ArityThreePart:
		c = Coordinate{Ecosystem: parts[0], Artifact: parts[1], Version: parts[2]}
	default:
		return Coordinate{}, fmt.Errorf("%w: %q has %d segments", ErrMalformedCoordinate, s, len(parts))
	}

	if c.Ecosystem == "" || c.Artifact == "" || c.Version == "" {
		return Coordinate{}, fmt.Errorf("%w: empty segment in %q", ErrMalformedCoordinate, s)
	}
	return c, nil
}

// NewCoordinate builds a coordinate from an ecosystem, a display name and a version.
// A name of the form group:artifact is split into its two parts.
func NewCoordinate(ecosystem, name, version string) Coordinate {
	if group, artifact, ok := strings.Cut(name, ":"); ok {
		return Coordinate{Ecosystem: ecosystem, Group: group, Artifact: artifact, Version: version}
	}
	return Coordinate{Ecosystem: ecosystem, Artifact: name, Version: version}
}

// Arity reports the arity of the serialized form
func (c Coordinate) Arity() Arity {
	if c.Group != "" {
		return ArityFourPart
	}
	return ArityThreePart
}

// Name returns group:artifact when a group is present, otherwise the artifact
func (c Coordinate) Name() string {
	if c.Group != "" {
		return c.Group + ":" + c.Artifact
	}
	return c.Artifact
}

// String renders the colon joined wire format
func (c Coordinate) String() string {
	return c.Ecosystem + ":" + c.Name() + ":" + c.Version
}

// PURL renders the coordinate as a package-url, e.g. pkg:maven/org.slf4j/slf4j-api@1.7.30
func (c Coordinate) PURL() string {
	return util.CoordinatePURL(c.Ecosystem, c.Group, c.Artifact, c.Version)
}
