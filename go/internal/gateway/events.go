package gateway

import (
	"encoding/json"
	"time"

	"github.com/mcdev12/gameday/go/internal/gamectx"
)

// EventType discriminates the frames pushed to connected clients.
type EventType string

const (
	// EventContext carries a full record snapshot after a merge.
	EventContext EventType = "ctx"

	// EventNotice carries a notice to display.
	EventNotice EventType = "notice"

	// EventNoticeClear tells clients to take the current notice down.
	EventNoticeClear EventType = "notice_clear"
)

// Event is the wire frame sent over each WebSocket connection.
type Event struct {
	Type      EventType       `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// NoticeData is the payload of an EventNotice frame.
type NoticeData struct {
	Text string `json:"text"`
}

// NewContextEvent wraps a record snapshot as a push frame.
func NewContextEvent(rec gamectx.Record) (Event, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return Event{}, err
	}
	return Event{Type: EventContext, Data: data, Timestamp: time.Now()}, nil
}

// NewNoticeEvent wraps notice text as a push frame.
func NewNoticeEvent(text string) (Event, error) {
	data, err := json.Marshal(NoticeData{Text: text})
	if err != nil {
		return Event{}, err
	}
	return Event{Type: EventNotice, Data: data, Timestamp: time.Now()}, nil
}

// NewNoticeClearEvent builds the take-down frame.
func NewNoticeClearEvent() Event {
	return Event{Type: EventNoticeClear, Timestamp: time.Now()}
}
