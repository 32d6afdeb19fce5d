package entities

import "time"

// Subscription links a user to a bill they follow.
type Subscription struct {
	ID        string    `json:"id" db:"id"`
	UserID    string    `json:"user_id" db:"user_id"`
	BillHref  string    `json:"bill_href" db:"bill_href"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// NotificationPreference represents user notification settings
type NotificationPreference struct {
	UserID       string    `json:"user_id" db:"user_id"`
	DisplayName  string    `json:"display_name" db:"display_name"`
	Email        *string   `json:"email,omitempty" db:"email"`
	Phone        *string   `json:"phone,omitempty" db:"phone"`
	EmailEnabled bool      `json:"email_enabled" db:"email_enabled"`
	SMSEnabled   bool      `json:"sms_enabled" db:"sms_enabled"`
	InAppEnabled bool      `json:"in_app_enabled" db:"in_app_enabled"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

// DefaultNotificationPreference enables every channel.
func DefaultNotificationPreference(userID string) *NotificationPreference {
	now := time.Now().UTC()
	return &NotificationPreference{
		UserID:       userID,
		EmailEnabled: true,
		SMSEnabled:   true,
		InAppEnabled: true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// Enabled reports whether the user accepts messages on channel.
func (p *NotificationPreference) Enabled(channel NotificationChannel) bool {
	switch channel {
	case ChannelEmail:
		return p.EmailEnabled
	case ChannelSMS:
		return p.SMSEnabled
	case ChannelInApp:
		return p.InAppEnabled
	}
	return false
}

// Recipient returns the address used for channel, or "" if none is on file.
func (p *NotificationPreference) Recipient(channel NotificationChannel) string {
	switch channel {
	case ChannelEmail:
		if p.Email != nil {
			return *p.Email
		}
	case ChannelSMS:
		if p.Phone != nil {
			return *p.Phone
		}
	case ChannelInApp:
		return p.UserID
	}
	return ""
}

// Name returns the display name, falling back to the user id.
func (p *NotificationPreference) Name() string {
	if p.DisplayName != "" {
		return p.DisplayName
	}
	return p.UserID
}

// NotificationChannel represents the delivery channel
type NotificationChannel string

const (
	ChannelEmail NotificationChannel = "email"
	ChannelSMS   NotificationChannel = "sms"
	ChannelInApp NotificationChannel = "in_app"
)

// NotificationChannels lists every supported channel.
func NotificationChannels() []NotificationChannel {
	return []NotificationChannel{ChannelEmail, ChannelSMS, ChannelInApp}
}

// NotificationStatus represents the delivery status
type NotificationStatus string

const (
	NotificationStatusSent   NotificationStatus = "sent"
	NotificationStatusFailed NotificationStatus = "failed"
)

// NotificationDelivery records one delivery outcome.
type NotificationDelivery struct {
	ID           string              `json:"id" db:"id"`
	UserID       string              `json:"user_id" db:"user_id"`
	BillHref     string              `json:"bill_href" db:"bill_href"`
	Channel      NotificationChannel `json:"channel" db:"channel"`
	Recipient    string              `json:"recipient" db:"recipient"`
	Status       NotificationStatus  `json:"status" db:"status"`
	Attempts     int                 `json:"attempts" db:"attempts"`
	ErrorMessage *string             `json:"error_message,omitempty" db:"error_message"`
	CreatedAt    time.Time           `json:"created_at" db:"created_at"`
}

// Subscriber is a subscription joined with the user's preferences.
type Subscriber struct {
	Subscription
	Preference NotificationPreference
}
