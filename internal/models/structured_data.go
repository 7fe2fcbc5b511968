package models

import "time"

// StructuredData is an arbitrary payload filed under a free-form collection
// tag. The collection is a label for filtering, not a storage partition.
type StructuredData struct {
	DataID     string   `json:"dataId" bson:"dataId" validate:"required"`
	UserID     string   `json:"userId" bson:"userId" validate:"required"`
	Collection string   `json:"collection" bson:"collection" validate:"required,max=128"`
	Data       Value    `json:"data" bson:"data"`
	Schema     Value    `json:"schema" bson:"schema,omitempty"`
	Tags       []string `json:"tags" bson:"tags"`
	Metadata   Map      `json:"metadata" bson:"metadata"`
	Timestamps `bson:",inline"`
}

func (d *StructuredData) Key() string            { return d.DataID }
func (d *StructuredData) Owner() string          { return d.UserID }
func (d *StructuredData) TagSet() []string       { return d.Tags }
func (d *StructuredData) Expired(time.Time) bool { return false }

func (d *StructuredData) Attr(field string) (string, bool) {
	switch field {
	case "dataId":
		return d.DataID, true
	case "userId":
		return d.UserID, true
	case "collection":
		return d.Collection, true
	}
	return "", false
}

// CreateDataRequest is the request body for POST /data
type CreateDataRequest struct {
	Collection string   `json:"collection" validate:"required,max=128"`
	Data       Value    `json:"data"`
	Schema     Value    `json:"schema,omitempty"`
	Tags       []string `json:"tags,omitempty" validate:"omitempty,dive,max=100"`
	Metadata   Map      `json:"metadata,omitempty"`
}

// UpdateDataRequest is the request body for PUT /data/:dataId
type UpdateDataRequest struct {
	Data     OptionalValue `json:"data"`
	Schema   *Value        `json:"schema,omitempty"`
	Tags     *[]string     `json:"tags,omitempty" validate:"omitempty,dive,max=100"`
	Metadata Map           `json:"metadata,omitempty"`
}
