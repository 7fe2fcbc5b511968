package models

import "time"

// Theme values
const (
	ThemeLight = "light"
	ThemeDark  = "dark"
	ThemeAuto  = "auto"
)

// NotificationSettings controls which channels notify the user
type NotificationSettings struct {
	Email bool `json:"email" bson:"email"`
	Push  bool `json:"push" bson:"push"`
	SMS   bool `json:"sms" bson:"sms"`
}

// Preference holds per-user settings. There is at most one per user and it
// is keyed by the owning userId.
type Preference struct {
	UserID               string               `json:"userId" bson:"userId" validate:"required"`
	Preferences          Map                  `json:"preferences" bson:"preferences"`
	Theme                string               `json:"theme" bson:"theme" validate:"required,oneof=light dark auto"`
	Language             string               `json:"language" bson:"language" validate:"required,max=35"`
	Timezone             string               `json:"timezone" bson:"timezone" validate:"required,max=64"`
	NotificationSettings NotificationSettings `json:"notificationSettings" bson:"notificationSettings"`
	Timestamps           `bson:",inline"`
}

// DefaultPreference returns the settings a user starts with
func DefaultPreference(userID string) *Preference {
	return &Preference{
		UserID:      userID,
		Preferences: Map{},
		Theme:       ThemeAuto,
		Language:    "en",
		Timezone:    "UTC",
		NotificationSettings: NotificationSettings{
			Email: true,
		},
	}
}

func (p *Preference) Key() string            { return p.UserID }
func (p *Preference) Owner() string          { return p.UserID }
func (p *Preference) TagSet() []string       { return nil }
func (p *Preference) Expired(time.Time) bool { return false }

func (p *Preference) Attr(field string) (string, bool) {
	switch field {
	case "userId":
		return p.UserID, true
	case "theme":
		return p.Theme, true
	case "language":
		return p.Language, true
	case "timezone":
		return p.Timezone, true
	}
	return "", false
}

// Lookup resolves a single preference by key: the free-form preferences map
// first, then the named settings.
func (p *Preference) Lookup(key string) (any, bool) {
	if v, ok := p.Preferences[key]; ok && !v.IsNull() {
		return v, true
	}
	switch key {
	case "theme":
		return p.Theme, true
	case "language":
		return p.Language, true
	case "timezone":
		return p.Timezone, true
	case "notificationSettings":
		return p.NotificationSettings, true
	}
	return nil, false
}

// UpdatePreferenceRequest is the request body for PUT /preferences
type UpdatePreferenceRequest struct {
	Preferences          Map                   `json:"preferences,omitempty"`
	Theme                *string               `json:"theme,omitempty" validate:"omitempty,oneof=light dark auto"`
	Language             *string               `json:"language,omitempty" validate:"omitempty,min=1,max=35"`
	Timezone             *string               `json:"timezone,omitempty" validate:"omitempty,min=1,max=64"`
	NotificationSettings *NotificationSettings `json:"notificationSettings,omitempty"`
}
