package util

import (
	"testing"

	"github.com/google/osv-scanner/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCoordinatePURL(t *testing.T) {
	tests := []struct {
		name                            string
		ecosystem, group, artifact, ver string
		want                            string
	}{
		{"maven", "maven", "org.apache.geronimo.modules", "geronimo-tomcat6", "2.2.1", "pkg:maven/org.apache.geronimo.modules/geronimo-tomcat6@2.2.1"},
		{"npm", "npm", "", "lodash", "4.17.10", "pkg:npm/lodash@4.17.10"},
		{"pypi", "pypi", "", "requests", "2.31.0", "pkg:pypi/requests@2.31.0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CoordinatePURL(tt.ecosystem, tt.group, tt.artifact, tt.ver))
		})
	}
}

func TestGetStandardBasePURL(t *testing.T) {
	base, err := GetStandardBasePURL("pkg:maven/io.netty/netty-codec@4.1.0?type=jar")
	require.NoError(t, err)
	assert.Equal(t, "pkg:maven/io.netty/netty-codec", base)

	_, err = GetStandardBasePURL("not a purl")
	assert.Error(t, err)
}

func TestDocumentKeyStable(t *testing.T) {
	a := DocumentKey("https://github.com/org/repo")
	assert.Equal(t, a, DocumentKey(" https://github.com/org/repo "))
	assert.NotEqual(t, a, DocumentKey("https://github.com/org/other"))
	assert.NotContains(t, a, "/")
}

func TestParseSemanticVersion(t *testing.T) {
	v := ParseSemanticVersion("2.7.4")
	require.NotNil(t, v.Major)
	assert.Equal(t, 2, *v.Major)
	assert.Equal(t, 7, *v.Minor)
	assert.Equal(t, 4, *v.Patch)

	v = ParseSemanticVersion("1.3.Final")
	require.NotNil(t, v.Major)
	assert.Equal(t, 1, *v.Major)
	assert.Equal(t, 3, *v.Minor)
	assert.Nil(t, v.Patch)

	assert.Nil(t, ParseSemanticVersion("").Major)
}

func rangeOf(introduced, fixed string) models.Range {
	return models.Range{
		Type: models.RangeEcosystem,
		Events: []models.Event{
			{Introduced: introduced},
			{Fixed: fixed},
		},
	}
}

func TestIsVersionAffected(t *testing.T) {
	tests := []struct {
		name      string
		version   string
		ecosystem models.Ecosystem
		affected  models.Affected
		want      bool
	}{
		{
			name:     "explicit version list",
			version:  "1.1.0",
			affected: models.Affected{Versions: []string{"1.1.0"}},
			want:     true,
		},
		{
			name:      "maven in range",
			version:   "2.7.4",
			ecosystem: "Maven",
			affected:  models.Affected{Ranges: []models.Range{rangeOf("0", "2.7.9")}},
			want:      true,
		},
		{
			name:      "maven at fixed",
			version:   "2.7.9",
			ecosystem: "Maven",
			affected:  models.Affected{Ranges: []models.Range{rangeOf("0", "2.7.9")}},
			want:      false,
		},
		{
			name:      "npm below introduced",
			version:   "4.17.10",
			ecosystem: "npm",
			affected:  models.Affected{Ranges: []models.Range{rangeOf("4.17.11", "4.17.21")}},
			want:      false,
		},
		{
			name:      "pypi in range",
			version:   "2.19.0",
			ecosystem: "PyPI",
			affected:  models.Affected{Ranges: []models.Range{rangeOf("2.0.0", "2.20.0")}},
			want:      true,
		},
		{
			name:      "missing upper bound never matches",
			version:   "1.0.0",
			ecosystem: "npm",
			affected: models.Affected{Ranges: []models.Range{{
				Type:   models.RangeSemVer,
				Events: []models.Event{{Introduced: "0"}},
			}}},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.affected.Package.Ecosystem = tt.ecosystem
			assert.Equal(t, tt.want, IsVersionAffected(tt.version, tt.affected))
		})
	}
}

func TestHighestCVSSScore(t *testing.T) {
	score, ok := HighestCVSSScore([]models.Severity{
		{Type: "CVSS_V3", Score: "CVSS:3.1/AV:N/AC:L/PR:N/UI:N/S:U/C:H/I:H/A:H"},
		{Type: "CVSS_V3", Score: "CVSS:3.1/AV:N/AC:L/PR:N/UI:N/S:U/C:L/I:N/A:N"},
		{Type: "CVSS_V2", Score: "AV:N/AC:L/Au:N/C:C/I:C/A:C"},
	})
	assert.True(t, ok)
	assert.InDelta(t, 9.8, score, 0.001)

	_, ok = HighestCVSSScore(nil)
	assert.False(t, ok)
}

func TestVulnerabilityScore(t *testing.T) {
	score, ok := VulnerabilityScore(models.Vulnerability{
		ID:               "CVE-2020-0001",
		DatabaseSpecific: map[string]interface{}{"cvss_base_score": 7.5},
	})
	assert.True(t, ok)
	assert.Equal(t, 7.5, score)

	_, ok = VulnerabilityScore(models.Vulnerability{ID: "CVE-2020-0002"})
	assert.False(t, ok)
}

func TestGetSeverityRating(t *testing.T) {
	assert.Equal(t, "NONE", GetSeverityRating(0))
	assert.Equal(t, "LOW", GetSeverityRating(3.9))
	assert.Equal(t, "MEDIUM", GetSeverityRating(4))
	assert.Equal(t, "HIGH", GetSeverityRating(7.5))
	assert.Equal(t, "CRITICAL", GetSeverityRating(10))
}
