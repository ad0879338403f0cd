package types

const (
	NotifyTypeInfo           = "info"
	NotifyTypeUploadStart    = "upload_start"
	NotifyTypeUploadProgress = "upload_progress"
	NotifyTypeUploadEnd      = "upload_end"
	NotifyTypeSessionState   = "session_state"
	NotifyTypeSessionExpired = "session_expired"
)

// Notification represents a notification message structure
type Notification struct {
	Type    string         `json:"type,omitempty"`    // Notification type, e.g. "upload_start", "upload_end", etc.
	Title   string         `json:"title,omitempty"`   // Notification title
	Message string         `json:"message,omitempty"` // Notification message/content
	Data    map[string]any `json:"data,omitempty"`    // Additional data fields
}

// NotifyHub broadcasts notifications to connected local clients.
type NotifyHub interface {
	Broadcast(notification *Notification)
}
