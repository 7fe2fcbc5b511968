package models

import "time"

// Record is implemented by every persisted entity. The storage layer relies
// only on this contract, so both backends can filter, sort and stamp records
// without knowing their concrete type.
type Record interface {
	// Key returns the record's unique identifier.
	Key() string
	// Owner returns the owning userId, or "" for records without an owner.
	Owner() string
	// Created returns the creation timestamp used for ordering.
	Created() time.Time
	// Attr returns the string form of a named field for equality filters.
	Attr(field string) (string, bool)
	// TagSet returns the record's tags.
	TagSet() []string
	// Expired reports whether the record is past its expiry at now.
	Expired(now time.Time) bool
	// Touch sets createdAt (when unset) and updatedAt.
	Touch(now time.Time)
}

// Timestamps is embedded by every record
type Timestamps struct {
	CreatedAt time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt" bson:"updatedAt"`
}

func (t *Timestamps) Created() time.Time { return t.CreatedAt }

func (t *Timestamps) Touch(now time.Time) {
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	if now.Before(t.CreatedAt) {
		now = t.CreatedAt
	}
	t.UpdatedAt = now
}
