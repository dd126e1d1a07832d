package amqp

import (
	"encoding/json"
	"time"
)

// Routing keys on the titus exchange. Refresh requests go to the configured
// queue name; dataset.loaded is published for any listener to bind.
const RoutingDatasetLoaded = "dataset.loaded"

// DatasetLoadedMessage announces that the shared dataset changed.
type DatasetLoadedMessage struct {
	Source      string    `json:"source"`
	Fingerprint string    `json:"fingerprint"`
	Rows        int       `json:"rows"`
	Columns     []string  `json:"columns"`
	Timestamp   time.Time `json:"timestamp"`
}

// RefreshRequestMessage asks the dashboard to reload its default source.
type RefreshRequestMessage struct {
	Reason      string    `json:"reason,omitempty"`
	RequestedBy string    `json:"requested_by,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

func NewDatasetLoadedMessage(source, fingerprint string, rows int, columns []string) *DatasetLoadedMessage {
	return &DatasetLoadedMessage{
		Source:      source,
		Fingerprint: fingerprint,
		Rows:        rows,
		Columns:     columns,
		Timestamp:   time.Now(),
	}
}

func NewRefreshRequestMessage(reason, requestedBy string) *RefreshRequestMessage {
	return &RefreshRequestMessage{Reason: reason, RequestedBy: requestedBy, Timestamp: time.Now()}
}

func (m *DatasetLoadedMessage) ToJSON() ([]byte, error) { return json.Marshal(m) }

func (m *RefreshRequestMessage) ToJSON() ([]byte, error) { return json.Marshal(m) }

func DatasetLoadedMessageFromJSON(data []byte) (*DatasetLoadedMessage, error) {
	var msg DatasetLoadedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

func RefreshRequestMessageFromJSON(data []byte) (*RefreshRequestMessage, error) {
	var msg RefreshRequestMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
