package models

import (
	"encoding/json"
	"time"
)

type Channel string

const (
	ChannelMail     Channel = "MAIL"
	ChannelSMS      Channel = "SMS"
	ChannelWhatsApp Channel = "WHATSAPP"
)

// Profile is a sender or recipient of a notification. Every attribute except
// Email is optional; absent values are empty strings.
type Profile struct {
	ID         string `json:"id,omitempty"`
	FirstName  string `json:"firstName,omitempty"`
	LastName   string `json:"lastName,omitempty"`
	Civility   string `json:"civility,omitempty"`
	Email      string `json:"email"`
	Phone      string `json:"phone,omitempty"`
	PhoneIndex string `json:"phoneIndex,omitempty"`
}

// Notification is a single outbound request targeting one or more contacts.
type Notification struct {
	Application string                 `json:"application"`
	Template    string                 `json:"template,omitempty"`
	Subject     string                 `json:"subject"`
	EventID     string                 `json:"eventId"`
	Message     string                 `json:"message,omitempty"`
	Channels    []Channel              `json:"channels,omitempty"`
	From        Profile                `json:"from"`
	Contacts    []Profile              `json:"contacts"`
	Cc          []Profile              `json:"cc,omitempty"`
	Bcc         []Profile              `json:"bcc,omitempty"`
	Params      map[string]interface{} `json:"params,omitempty"`
}

// UnmarshalJSON accepts the legacy "cci" key as an alias for "bcc".
func (n *Notification) UnmarshalJSON(data []byte) error {
	type plain Notification
	aux := struct {
		*plain
		Cci []Profile `json:"cci,omitempty"`
	}{plain: (*plain)(n)}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if len(n.Bcc) == 0 && len(aux.Cci) > 0 {
		n.Bcc = aux.Cci
	}
	return nil
}

// HasChannel reports whether c was requested. An empty channel set means mail only.
func (n *Notification) HasChannel(c Channel) bool {
	if len(n.Channels) == 0 {
		return c == ChannelMail
	}
	for _, ch := range n.Channels {
		if ch == c {
			return true
		}
	}
	return false
}

// ForRecipient returns a shallow copy whose contacts hold only p. The receiver
// is left untouched so sibling sends can share it.
func (n *Notification) ForRecipient(p Profile) *Notification {
	view := *n
	view.Contacts = []Profile{p}
	return &view
}

type NotificationTemplate struct {
	ID          string    `json:"id"`
	Application string    `json:"application"`
	Name        string    `json:"name"`
	Content     string    `json:"content"`
	UpdatedAt   time.Time `json:"updatedAt,omitempty"`
}

type NotificationStatus struct {
	EventID   string    `json:"eventId"`
	UserID    string    `json:"userId"`
	Channel   Channel   `json:"channel"`
	MessageID string    `json:"messageId,omitempty"`
	SentAt    time.Time `json:"sentAt"`
}
