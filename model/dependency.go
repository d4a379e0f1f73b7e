package model

import (
	"encoding/json"
	"sort"
)

// CoordinateSet is an unordered, deduplicated collection of coordinates
type CoordinateSet map[Coordinate]struct{}

// NewCoordinateSet creates a set holding the given coordinates
func NewCoordinateSet(coords ...Coordinate) CoordinateSet {
	s := make(CoordinateSet, len(coords))
	for _, c := range coords {
		s.Add(c)
	}
	return s
}

// Add inserts a coordinate
func (s CoordinateSet) Add(c Coordinate) {
	s[c] = struct{}{}
}

// Has reports membership by full coordinate equality
func (s CoordinateSet) Has(c Coordinate) bool {
	_, ok := s[c]
	return ok
}

// Strings returns the serialized coordinates in sorted order
func (s CoordinateSet) Strings() []string {
	out := make([]string, 0, len(s))
	for c := range s {
		out = append(out, c.String())
	}
	sort.Strings(out)
	return out
}

// Sorted returns the coordinates ordered by their serialized form
func (s CoordinateSet) Sorted() []Coordinate {
	out := make([]Coordinate, 0, len(s))
	for c := range s {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}

// MarshalJSON writes the set as a sorted list of coordinate strings
func (s CoordinateSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Strings())
}

// UnmarshalJSON reads a list of coordinate strings
func (s *CoordinateSet) UnmarshalJSON(data []byte) error {
	var raw []string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	set := make(CoordinateSet, len(raw))
	for _, r := range raw {
		c, err := ParseCoordinate(r)
		if err != nil {
			return err
		}
		set.Add(c)
	}
	*s = set
	return nil
}

// DependencySet holds the direct and transitive dependencies of one scan
type DependencySet struct {
	Direct     CoordinateSet `json:"direct"`
	Transitive CoordinateSet `json:"transitive"`
}

// NewDependencySet returns an empty, ready to use dependency set
func NewDependencySet() DependencySet {
	return DependencySet{Direct: CoordinateSet{}, Transitive: CoordinateSet{}}
}

// Normalize removes from Transitive every coordinate that is also declared directly.
// Direct declarations take precedence.
func (d *DependencySet) Normalize() {
	if d.Direct == nil {
		d.Direct = CoordinateSet{}
	}
	if d.Transitive == nil {
		d.Transitive = CoordinateSet{}
	}
	for c := range d.Direct {
		delete(d.Transitive, c)
	}
}

// Merge adds all coordinates of other and normalizes the result
func (d *DependencySet) Merge(other DependencySet) {
	d.Normalize()
	for c := range other.Direct {
		d.Direct.Add(c)
	}
	for c := range other.Transitive {
		d.Transitive.Add(c)
	}
	d.Normalize()
}

// Contains reports whether the serialized coordinate appears in either set
func (d DependencySet) Contains(c Coordinate) bool {
	return d.Direct.Has(c) || d.Transitive.Has(c)
}

// Len is the total number of coordinates
func (d DependencySet) Len() int {
	return len(d.Direct) + len(d.Transitive)
}
