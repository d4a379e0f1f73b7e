package manifest

import (
	"bufio"
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/ortelius/pdvd-reposcan/model"
)

const (
	// MavenDirectFile holds the output of `mvn dependency:list -DexcludeTransitive=true`
	MavenDirectFile = "direct-dependencies.txt"
	// MavenTransitiveFile holds the full `mvn dependency:list` or `dependency:tree` output
	MavenTransitiveFile = "transitive-dependencies.txt"
)

var (
	mavenToken = regexp.MustCompile(`^[A-Za-z0-9_.\-]+(:[A-Za-z0-9_.\-+]+){2,5}$`)
	mavenScope = map[string]bool{
		"compile":  true,
		"provided": true,
		"runtime":  true,
		"test":     true,
		"system":   true,
		"import":   true,
	}
)

// MavenParser reads plain-text maven dependency listings.
// Classification comes from the file name, not from tree nesting.
type MavenParser struct{}

// Parse implements Parser
func (MavenParser) Parse(files ...File) (model.DependencySet, error) {
	deps := model.NewDependencySet()
	for _, f := range files {
		var into model.CoordinateSet
		switch baseName(f.Name) {
		case MavenDirectFile:
			into = deps.Direct
		case MavenTransitiveFile:
			into = deps.Transitive
		default:
			return model.DependencySet{}, fmt.Errorf("maven manifest %q: %w", f.Name, ErrUnsupportedInputFormat)
		}
		for _, c := range ParseMavenListing(f.Content) {
			into.Add(c)
		}
	}
	deps.Normalize()
	return deps, nil
}

// ParseMavenListing extracts coordinates from dependency:list or dependency:tree output.
// Log prefixes, tree drawing characters and non coordinate lines are ignored. The
// project's own root line of a tree is skipped.
func ParseMavenListing(content []byte) []model.Coordinate {
	isTree := bytes.Contains(content, []byte("+- ")) || bytes.Contains(content, []byte(`\- `))

	var coords []model.Coordinate
	scanner := bufio.NewScanner(bytes.NewReader(content))
	for scanner.Scan() {
		line := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(scanner.Text()), "[INFO]"))
		// plugin execution banner, e.g. "--- maven-dependency-plugin:2.8:list (default-cli) @ app ---"
		if strings.HasPrefix(line, "---") {
			continue
		}
		stripped := strings.TrimLeft(line, `+-\| `)
		nested := len(stripped) != len(line)

		fields := strings.Fields(stripped)
		if len(fields) == 0 || !mavenToken.MatchString(fields[0]) {
			continue
		}
		c, scoped, ok := parseMavenToken(fields[0])
		if !ok {
			continue
		}
		if isTree && !nested && !scoped {
			continue
		}
		coords = append(coords, c)
	}
	return coords
}

// parseMavenToken splits group:artifact:type[:classifier]:version[:scope]
// and the bare group:artifact:version form
func parseMavenToken(token string) (model.Coordinate, bool, bool) {
	parts := strings.Split(token, ":")
	scoped := mavenScope[parts[len(parts)-1]]
	if scoped {
		parts = parts[:len(parts)-1]
	}

	var group, artifact, version string
	switch len(parts) {
	case 3: // group:artifact:version
		group, artifact, version = parts[0], parts[1], parts[2]
	case 4: // group:artifact:type:version
		group, artifact, version = parts[0], parts[1], parts[3]
	case 5: // group:artifact:type:classifier:version
		group, artifact, version = parts[0], parts[1], parts[4]
	default:
		return model.Coordinate{}, false, false
	}
	if group == "" || artifact == "" || version == "" {
		return model.Coordinate{}, false, false
	}
	return model.Coordinate{Ecosystem: "maven", Group: group, Artifact: artifact, Version: version}, scoped, true
}
