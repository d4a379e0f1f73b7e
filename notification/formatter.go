// Package notification renders repository reports into notification payloads
// and delivers them to the notification service.
package notification

import (
	"time"

	"github.com/google/uuid"
	"github.com/ortelius/pdvd-reposcan/model"
)

// ScannedAtLayout is the timestamp format expected by the notification service
const ScannedAtLayout = "Mon, 02 January 2006 15:04:05 GMT"

// Format builds the payload for one report. Every call assigns a fresh id.
func Format(report model.RepositoryReport, now time.Time) model.NotificationPayload {
	payload := model.NotificationPayload{
		ID:                uuid.New().String(),
		RepoURL:           report.RepoURL,
		ScannedAt:         now.UTC().Format(ScannedAtLayout),
		TotalDependencies: len(report.VulnerableDeps),
		DirectUpdates:     []model.PackageFinding{},
		TransitiveUpdates: []model.PackageFinding{},
	}

	for _, dep := range report.VulnerableDeps {
		payload.CVECount += dep.CVECount
		if dep.IsTransitive {
			payload.TransitiveUpdates = append(payload.TransitiveUpdates, dep)
		} else {
			payload.DirectUpdates = append(payload.DirectUpdates, dep)
		}
	}

	return payload
}

// FormatAll formats every report with the same timestamp
func FormatAll(reports []model.RepositoryReport, now time.Time) []model.NotificationPayload {
	payloads := make([]model.NotificationPayload, 0, len(reports))
	for _, r := range reports {
		payloads = append(payloads, Format(r, now))
	}
	return payloads
}
