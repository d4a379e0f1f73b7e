package util

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/package-url/packageurl-go"
)

// EcosystemToPurlType converts an ecosystem name to its PURL type
func EcosystemToPurlType(ecosystem string) string {
	mapping := map[string]string{
		"npm":       "npm",
		"PyPI":      "pypi",
		"Maven":     "maven",
		"Go":        "golang",
		"NuGet":     "nuget",
		"RubyGems":  "gem",
		"crates.io": "cargo",
		"Packagist": "composer",
		"Alpine":    "apk",
		"Debian":    "deb",
	}

	if purlType, exists := mapping[ecosystem]; exists {
		return purlType
	}

	for key, value := range mapping {
		if strings.EqualFold(key, ecosystem) {
			return value
		}
	}

	return strings.ToLower(ecosystem)
}

// CoordinatePURL renders an ecosystem/group/artifact/version tuple as a PURL.
// For npm, a scoped artifact such as "@babel/core" is split into namespace and name.
func CoordinatePURL(ecosystem, group, artifact, version string) string {
	purlType := EcosystemToPurlType(ecosystem)
	namespace := group
	name := artifact

	if namespace == "" {
		if idx := strings.LastIndex(artifact, "/"); idx > 0 {
			namespace = artifact[:idx]
			name = artifact[idx+1:]
		}
	}

	p := packageurl.NewPackageURL(purlType, namespace, name, version, nil, "")
	return p.ToString()
}

// GetStandardBasePURL extracts a standardized base PURL (no version/qualifiers)
// used as the key of the package hub documents.
// Example: "pkg:maven/io.netty/netty-codec@4.1.0" -> "pkg:maven/io.netty/netty-codec"
func GetStandardBasePURL(purlStr string) (string, error) {
	parsed, err := ParsePURL(purlStr)
	if err != nil {
		return "", err
	}

	base := packageurl.PackageURL{
		Type:      EcosystemToPurlType(parsed.Type),
		Namespace: parsed.Namespace,
		Name:      parsed.Name,
	}

	return strings.ToLower(base.ToString()), nil
}

// ParsePURL parses a PURL string and returns the parsed PackageURL
func ParsePURL(purlStr string) (*packageurl.PackageURL, error) {
	parsed, err := packageurl.FromString(purlStr)
	if err != nil {
		return nil, err
	}
	return &parsed, nil
}

// DocumentKey derives a stable ArangoDB document key from an arbitrary string.
// Keys cannot contain slashes, so URLs are hashed.
func DocumentKey(value string) string {
	hash := sha256.Sum256([]byte(strings.TrimSpace(value)))
	return hex.EncodeToString(hash[:])
}
