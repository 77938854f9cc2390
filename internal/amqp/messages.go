package amqp

import (
	"encoding/json"
	"errors"
	"time"
)

// IncidentSyncMessage asks the worker to push one stored incident to the
// spreadsheet. The worker loads the report itself, so only the ID travels.
type IncidentSyncMessage struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
}

func NewIncidentSyncMessage(id string) *IncidentSyncMessage {
	return &IncidentSyncMessage{
		ID:        id,
		Timestamp: time.Now().UTC(),
	}
}

func (m *IncidentSyncMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// IncidentSyncMessageFromJSON decodes a message body. A body without an ID
// is rejected.
func IncidentSyncMessageFromJSON(data []byte) (*IncidentSyncMessage, error) {
	var msg IncidentSyncMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.ID == "" {
		return nil, errors.New("sync message has no incident id")
	}
	return &msg, nil
}
