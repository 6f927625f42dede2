package amqp

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"coffeetea/internal/core"
)

type EventType string

const (
	EventRecordCreated EventType = "record.created"
	EventRecordDeleted EventType = "record.deleted"
)

// RecordEvent announces a change to the record collection. Deleted events
// only carry the record id.
type RecordEvent struct {
	Type       EventType         `json:"type"`
	RecordID   string            `json:"record_id"`
	Beverage   core.BeverageType `json:"beverage,omitempty"`
	Quantity   int               `json:"quantity,omitempty"`
	ConsumedAt time.Time         `json:"consumed_at"`
	OccurredAt time.Time         `json:"occurred_at"`
}

func NewRecordCreated(r core.Record) *RecordEvent {
	return &RecordEvent{
		Type:       EventRecordCreated,
		RecordID:   r.ID,
		Beverage:   r.Type,
		Quantity:   r.Quantity,
		ConsumedAt: r.Timestamp,
		OccurredAt: time.Now(),
	}
}

func NewRecordDeleted(id string) *RecordEvent {
	return &RecordEvent{
		Type:       EventRecordDeleted,
		RecordID:   id,
		OccurredAt: time.Now(),
	}
}

// Record rebuilds the created record carried by the event.
func (e *RecordEvent) Record() core.Record {
	return core.Record{ID: e.RecordID, Timestamp: e.ConsumedAt, Type: e.Beverage, Quantity: e.Quantity}
}

func (e *RecordEvent) Validate() error {
	if e.RecordID == "" {
		return errors.New("record event without record id")
	}
	switch e.Type {
	case EventRecordCreated:
		return e.Record().Validate()
	case EventRecordDeleted:
		return nil
	default:
		return fmt.Errorf("unknown event type %q", e.Type)
	}
}

func (e *RecordEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// RecordEventFromJSON decodes and validates an event body.
func RecordEventFromJSON(data []byte) (*RecordEvent, error) {
	var ev RecordEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, err
	}
	if err := ev.Validate(); err != nil {
		return nil, err
	}
	return &ev, nil
}
