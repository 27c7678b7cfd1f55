package domain

import "time"

// Notification is an in-app message addressed to a provider.
type Notification struct {
	ID        string
	Content   string
	UserID    int64
	Read      bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// MailTask describes an email to be rendered from a named template and delivered
// by the mail worker.
type MailTask struct {
	To       string            `json:"to"`
	Subject  string            `json:"subject"`
	Template string            `json:"template"`
	Context  map[string]string `json:"context"`
}
