package util

import (
	"strings"

	"github.com/google/osv-scanner/pkg/models"
	gocvss31 "github.com/pandatix/go-cvss/31"
	gocvss40 "github.com/pandatix/go-cvss/40"
)

// CalculateCVSSScore calculates the CVSS base score from a vector string
func CalculateCVSSScore(vectorStr string) float64 {
	if vectorStr == "" || !strings.HasPrefix(vectorStr, "CVSS:") {
		return 0
	}
	if strings.HasPrefix(vectorStr, "CVSS:3.1") || strings.HasPrefix(vectorStr, "CVSS:3.0") {
		if cvss31, err := gocvss31.ParseVector(vectorStr); err == nil {
			return cvss31.BaseScore()
		}
	}
	if strings.HasPrefix(vectorStr, "CVSS:4.0") {
		if cvss40, err := gocvss40.ParseVector(vectorStr); err == nil {
			return cvss40.Score()
		}
	}
	return 0
}

// HighestCVSSScore returns the highest base score computable from OSV severity entries.
// ok is false when no entry carries a usable CVSS v3/v4 vector.
func HighestCVSSScore(severity []models.Severity) (score float64, ok bool) {
	for _, sev := range severity {
		if sevType := string(sev.Type); sevType != "CVSS_V3" && sevType != "CVSS_V4" {
			continue
		}
		if s := CalculateCVSSScore(sev.Score); s > 0 {
			ok = true
			if s > score {
				score = s
			}
		}
	}
	return score, ok
}

// VulnerabilityScore reads the CVSS base score of an OSV record: the precomputed
// database_specific.cvss_base_score when present, otherwise the highest score computed
// from its severity vectors.
func VulnerabilityScore(vuln models.Vulnerability) (float64, bool) {
	if dbSpecific, ok := vuln.DatabaseSpecific["cvss_base_score"]; ok {
		switch score := dbSpecific.(type) {
		case float64:
			if score > 0 {
				return score, true
			}
		case int:
			if score > 0 {
				return float64(score), true
			}
		}
	}
	return HighestCVSSScore(vuln.Severity)
}

// GetSeverityRating returns the severity rating for a given CVSS score
func GetSeverityRating(score float64) string {
	switch {
	case score == 0:
		return "NONE"
	case score < 4.0:
		return "LOW"
	case score < 7.0:
		return "MEDIUM"
	case score < 9.0:
		return "HIGH"
	default:
		return "CRITICAL"
	}
}
