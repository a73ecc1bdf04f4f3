package amqp

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// EntryCreatedMessage announces a stored entry. It carries only the ids;
// consumers load the entry from the database.
type EntryCreatedMessage struct {
	MessageID string    `json:"message_id"`
	EntryID   int64     `json:"entry_id"`
	UserID    string    `json:"user_id"`
	Timestamp time.Time `json:"timestamp"`
}

// NewEntryCreatedMessage creates a message with a fresh random id.
func NewEntryCreatedMessage(entryID int64, userID string) *EntryCreatedMessage {
	return &EntryCreatedMessage{
		MessageID: uuid.NewString(),
		EntryID:   entryID,
		UserID:    userID,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *EntryCreatedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// EntryCreatedMessageFromJSON decodes and sanity-checks a message body.
func EntryCreatedMessageFromJSON(data []byte) (*EntryCreatedMessage, error) {
	var msg EntryCreatedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.EntryID <= 0 {
		return nil, errors.New("entry created message without entry id")
	}
	if msg.MessageID != "" {
		if _, err := uuid.Parse(msg.MessageID); err != nil {
			return nil, err
		}
	}
	return &msg, nil
}
