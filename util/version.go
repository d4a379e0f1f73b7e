package util

import (
	"strconv"
	"strings"

	"github.com/Masterminds/semver/v3"
	npm "github.com/aquasecurity/go-npm-version/pkg"
	pep440 "github.com/aquasecurity/go-pep440-version"
	"github.com/google/osv-scanner/pkg/models"
)

// ParsedVersion holds parsed semantic version components
type ParsedVersion struct {
	Major *int
	Minor *int
	Patch *int
}

// ParseSemanticVersion parses a version string into numeric components.
// Components that cannot be parsed are left nil.
func ParseSemanticVersion(version string) *ParsedVersion {
	if version == "" {
		return &ParsedVersion{}
	}

	if v, err := semver.NewVersion(version); err == nil {
		major := int(v.Major())
		minor := int(v.Minor())
		patch := int(v.Patch())
		return &ParsedVersion{Major: &major, Minor: &minor, Patch: &patch}
	}

	// Maven style versions such as "1.2.Final" or "2"
	result := &ParsedVersion{}
	parts := strings.Split(version, ".")
	targets := []**int{&result.Major, &result.Minor, &result.Patch}
	for i := 0; i < len(parts) && i < len(targets); i++ {
		field := strings.FieldsFunc(parts[i], func(r rune) bool { return r == '-' || r == '+' })
		if len(field) == 0 {
			break
		}
		n, err := strconv.Atoi(strings.TrimSpace(field[0]))
		if err != nil {
			break
		}
		*targets[i] = &n
	}
	return result
}

// IsVersionAffectedAny checks if a version is affected by any of the provided affected entries
func IsVersionAffectedAny(version string, allAffected []models.Affected) bool {
	for _, affected := range allAffected {
		if IsVersionAffected(version, affected) {
			return true
		}
	}
	return false
}

// IsVersionAffected checks if a version is affected by an OSV affected entry,
// using the explicit versions list first and the ecosystem's version ordering for ranges.
func IsVersionAffected(version string, affected models.Affected) bool {
	for _, v := range affected.Versions {
		if version == v {
			return true
		}
	}

	for _, vrange := range affected.Ranges {
		if vrange.Type != models.RangeEcosystem && vrange.Type != models.RangeSemVer {
			continue
		}
		if isVersionInRange(version, vrange, string(affected.Package.Ecosystem)) {
			return true
		}
	}

	return false
}

func isVersionInRange(version string, vrange models.Range, ecosystem string) bool {
	switch strings.ToLower(ecosystem) {
	case "npm":
		return inRange(version, vrange, npm.NewVersion)
	case "pypi":
		return inRange(version, vrange, pep440.Parse)
	default:
		return inRange(version, vrange, semver.NewVersion)
	}
}

// orderedVersion is satisfied by the version types of semver, go-npm-version and go-pep440-version
type orderedVersion[T any] interface {
	LessThan(T) bool
	GreaterThan(T) bool
}

// inRange requires a lower bound (introduced) and an upper bound (fixed or last_affected);
// incomplete ranges never match. OSV's introduced "0" means from the beginning.
func inRange[T orderedVersion[T]](version string, vrange models.Range, parse func(string) (T, error)) bool {
	v, err := parse(version)
	if err != nil {
		return inRangeLexical(version, vrange)
	}

	var introduced, fixed, lastAffected T
	var hasIntroduced, hasFixed, hasLastAffected bool

	for _, event := range vrange.Events {
		if event.Introduced != "" {
			bound := event.Introduced
			if bound == "0" {
				bound = "0.0.0"
			}
			if parsed, err := parse(bound); err == nil {
				introduced, hasIntroduced = parsed, true
			}
		}
		if event.Fixed != "" {
			if parsed, err := parse(event.Fixed); err == nil {
				fixed, hasFixed = parsed, true
			}
		}
		if event.LastAffected != "" {
			if parsed, err := parse(event.LastAffected); err == nil {
				lastAffected, hasLastAffected = parsed, true
			}
		}
	}

	if !hasIntroduced || (!hasFixed && !hasLastAffected) {
		return false
	}
	if v.LessThan(introduced) {
		return false
	}
	if hasFixed && !v.LessThan(fixed) {
		return false
	}
	if hasLastAffected && v.GreaterThan(lastAffected) {
		return false
	}
	return true
}

// inRangeLexical is the fallback for versions no parser understands
func inRangeLexical(version string, vrange models.Range) bool {
	var hasIntroduced, hasUpper bool
	for _, event := range vrange.Events {
		hasIntroduced = hasIntroduced || event.Introduced != ""
		hasUpper = hasUpper || event.Fixed != "" || event.LastAffected != ""
	}
	if !hasIntroduced || !hasUpper {
		return false
	}

	for _, event := range vrange.Events {
		if event.Introduced != "" && event.Introduced != "0" && version < event.Introduced {
			return false
		}
		if event.Fixed != "" && version >= event.Fixed {
			return false
		}
		if event.LastAffected != "" && version > event.LastAffected {
			return false
		}
	}
	return true
}
