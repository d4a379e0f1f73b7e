package model

// Fixed tags expected by the notification service
const (
	NotificationType      = "notifications"
	NotificationEventType = "analytics.notify.cve"
)

// NotificationPayload wraps one repository report with the aggregates the
// notification service renders.
type NotificationPayload struct {
	ID                string           `json:"-"`
	RepoURL           string           `json:"repo_url"`
	ScannedAt         string           `json:"scanned_at"`
	TotalDependencies int              `json:"total_dependencies"`
	CVECount          int              `json:"cve_count"`
	DirectUpdates     []PackageFinding `json:"direct_updates"`
	TransitiveUpdates []PackageFinding `json:"transitive_updates"`
}

// NotificationEnvelope is the JSON-API document posted to the notification service
type NotificationEnvelope struct {
	Data NotificationData `json:"data"`
}

// NotificationData is the JSON-API resource object
type NotificationData struct {
	ID         string                 `json:"id"`
	Type       string                 `json:"type"`
	Attributes NotificationAttributes `json:"attributes"`
}

// NotificationAttributes carries the payload under "custom"
type NotificationAttributes struct {
	ID     string              `json:"id"`
	Type   string              `json:"type"`
	Custom NotificationPayload `json:"custom"`
}

// Envelope renders the payload in the JSON-API shape
func (p NotificationPayload) Envelope() NotificationEnvelope {
	return NotificationEnvelope{
		Data: NotificationData{
			ID:   p.ID,
			Type: NotificationType,
			Attributes: NotificationAttributes{
				ID:     p.RepoURL,
				Type:   NotificationEventType,
				Custom: p,
			},
		},
	}
}
