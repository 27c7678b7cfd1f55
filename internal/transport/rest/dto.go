package rest

import (
	"time"

	"gobarber/backend/internal/domain"
)

type avatarResponse struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Path string `json:"path"`
	URL  string `json:"url"`
}

func toAvatar(f *domain.File) *avatarResponse {
	if f == nil {
		return nil
	}
	return &avatarResponse{ID: f.ID, Name: f.Name, Path: f.Path, URL: f.URL}
}

type providerResponse struct {
	ID       int64           `json:"id"`
	Name     string          `json:"name"`
	AvatarID *int64          `json:"avatar_id"`
	Avatar   *avatarResponse `json:"avatar"`
}

func toProvider(u domain.User) providerResponse {
	return providerResponse{ID: u.ID, Name: u.Name, AvatarID: u.AvatarID, Avatar: toAvatar(u.Avatar)}
}

type listedAppointment struct {
	ID         string            `json:"id"`
	Date       time.Time         `json:"date"`
	Past       bool              `json:"past"`
	Cancelable bool              `json:"cancelable"`
	Provider   *providerResponse `json:"provider"`
}

func toListed(a domain.Appointment, now time.Time, cutoff time.Duration) listedAppointment {
	out := listedAppointment{
		ID:         a.ID.String(),
		Date:       a.Date,
		Past:       a.Date.Before(now),
		Cancelable: now.Before(a.Date.Add(-cutoff)),
	}
	if a.Provider != nil {
		p := toProvider(*a.Provider)
		p.AvatarID = nil
		out.Provider = &p
	}
	return out
}

type partyResponse struct {
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
}

type appointmentResponse struct {
	ID         string         `json:"id"`
	UserID     int64          `json:"user_id"`
	ProviderID int64          `json:"provider_id"`
	Date       time.Time      `json:"date"`
	CanceledAt *time.Time     `json:"canceled_at"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
	Provider   *partyResponse `json:"provider,omitempty"`
	User       *partyResponse `json:"user,omitempty"`
}

func toAppointment(a domain.Appointment) appointmentResponse {
	out := appointmentResponse{
		ID:         a.ID.String(),
		UserID:     a.UserID,
		ProviderID: a.ProviderID,
		Date:       a.Date,
		CanceledAt: a.CanceledAt,
		CreatedAt:  a.CreatedAt,
		UpdatedAt:  a.UpdatedAt,
	}
	if a.Provider != nil {
		out.Provider = &partyResponse{Name: a.Provider.Name, Email: a.Provider.Email}
	}
	if a.User != nil {
		out.User = &partyResponse{Name: a.User.Name}
	}
	return out
}

type notificationResponse struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	User      int64     `json:"user"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"createdAt"`
}

func toNotification(n domain.Notification) notificationResponse {
	return notificationResponse{ID: n.ID, Content: n.Content, User: n.UserID, Read: n.Read, CreatedAt: n.CreatedAt}
}
