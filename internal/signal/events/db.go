package events

// DB event types.
const (
	DBInsert = "insert"
	DBUpdate = "update"
	DBDelete = "delete"
)

// DBEvent describes a row-level database operation.
type DBEvent struct {
	EventType string            `json:"event_type"`
	Table     string            `json:"table"`
	ID        string            `json:"id,omitempty"`
	Data      map[string]string `json:"data,omitempty"`
}

// NewDBEvent creates a DBEvent.
func NewDBEvent(eventType, table string) DBEvent {
	return DBEvent{EventType: eventType, Table: table, Data: map[string]string{}}
}

// WithID returns a copy with the row ID set.
func (e DBEvent) WithID(id string) DBEvent {
	e.ID = id
	return e
}

// WithData returns a copy with the row data set.
func (e DBEvent) WithData(data map[string]string) DBEvent {
	e.Data = data
	return e
}
