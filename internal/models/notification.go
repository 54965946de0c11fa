package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// NotificationType categorises in-app notifications.
type NotificationType string

const (
	NotificationStatusChange NotificationType = "STATUS_CHANGE"
	NotificationGeneral      NotificationType = "GENERAL"
)

// Notification is a fire-and-forget in-app message written after a
// transition commits.
type Notification struct {
	ID        string               `db:"id" json:"id"`
	UserID    string               `db:"user_id" json:"user_id"`
	Type      NotificationType     `db:"type" json:"type"`
	Title     string               `db:"title" json:"title"`
	Message   string               `db:"message" json:"message"`
	Metadata  NotificationMetadata `db:"metadata" json:"metadata"`
	Read      bool                 `db:"is_read" json:"is_read"`
	CreatedAt time.Time            `db:"created_at" json:"created_at"`
}

// NotificationMetadata stores contextual key/value pairs persisted as JSONB.
type NotificationMetadata map[string]string

// Value marshals metadata to JSON for persistence.
func (m NotificationMetadata) Value() (driver.Value, error) {
	if m == nil {
		m = NotificationMetadata{}
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("marshal notification metadata: %w", err)
	}
	return data, nil
}

// Scan unmarshals JSON payloads into the metadata map.
func (m *NotificationMetadata) Scan(value interface{}) error {
	if value == nil {
		*m = NotificationMetadata{}
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported type %T for NotificationMetadata", value)
	}
	if len(data) == 0 {
		*m = NotificationMetadata{}
		return nil
	}
	if err := json.Unmarshal(data, m); err != nil {
		return fmt.Errorf("unmarshal notification metadata: %w", err)
	}
	return nil
}
