// Package events defines event types and structures for query lifecycle notifications.
package events

import (
	"time"

	"github.com/google/uuid"
)

type EventType string

// Kafka topic for query lifecycle events.
const Topic = "askdb.query.events"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	QueryReceivedEvent              EventType = "query.received"
	QueryGeneratedEvent             EventType = "query.generated"
	QueryBlockedEvent               EventType = "query.blocked"
	QueryConfirmationRequestedEvent EventType = "query.confirmation.requested"
	QueryConfirmationDecidedEvent   EventType = "query.confirmation.decided"
	QueryExecutedEvent              EventType = "query.executed"
	QueryCompletedEvent             EventType = "query.completed"
	QueryFailedEvent                EventType = "query.failed"
)

type BaseEvent struct {
	ID        string         `json:"id"`
	Type      EventType      `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	QueryID   string         `json:"query_id"`
	SessionID string         `json:"session_id,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

type QueryReceived struct {
	BaseEvent

	PrincipalID string `json:"principal_id"`
	Question    string `json:"question"`
	Provider    string `json:"provider"`
}

func (q QueryReceived) GetType() EventType {
	return QueryReceivedEvent
}

type QueryGenerated struct {
	BaseEvent

	SQL     string `json:"sql"`
	Attempt int    `json:"attempt"`
}

func (q QueryGenerated) GetType() EventType {
	return QueryGeneratedEvent
}

type QueryBlocked struct {
	BaseEvent

	Layer       string   `json:"layer"`
	Diagnostics []string `json:"diagnostics,omitempty"`
	Attempt     int      `json:"attempt"`
	Terminal    bool     `json:"terminal"`
}

func (q QueryBlocked) GetType() EventType {
	return QueryBlockedEvent
}

type QueryConfirmationRequested struct {
	BaseEvent

	SQL         string `json:"sql"`
	Explanation string `json:"explanation,omitempty"`
}

func (q QueryConfirmationRequested) GetType() EventType {
	return QueryConfirmationRequestedEvent
}

type QueryConfirmationDecided struct {
	BaseEvent

	Approved        bool   `json:"approved"`
	Modified        bool   `json:"modified"`
	DecidedBy       string `json:"decided_by"`
	PauseDurationMs int64  `json:"pause_duration_ms"`
}

func (q QueryConfirmationDecided) GetType() EventType {
	return QueryConfirmationDecidedEvent
}

type QueryExecuted struct {
	BaseEvent

	TotalRows int   `json:"total_rows"`
	Truncated bool  `json:"truncated"`
	ElapsedMs int64 `json:"elapsed_ms"`
}

func (q QueryExecuted) GetType() EventType {
	return QueryExecutedEvent
}

type QueryCompleted struct {
	BaseEvent

	Format     string `json:"format"`
	DurationMs int64  `json:"duration_ms"`
	Attempts   int    `json:"attempts"`
}

func (q QueryCompleted) GetType() EventType {
	return QueryCompletedEvent
}

type QueryFailed struct {
	BaseEvent

	Error      string `json:"error"`
	Stage      string `json:"stage"`
	DurationMs int64  `json:"duration_ms"`
}

func (q QueryFailed) GetType() EventType {
	return QueryFailedEvent
}

func NewBaseEvent(eventType EventType, queryID string) BaseEvent {
	return BaseEvent{
		ID:        uuid.New().String(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		QueryID:   queryID,
		Metadata:  make(map[string]any),
	}
}
