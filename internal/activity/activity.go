// Package activity emits fire-and-forget analytics events. The consumer
// (admin statistics) lives outside this service, the pipeline only ever
// publishes.
package activity

import "time"

// Event is one analytics record. Metadata carries tool-specific extras
// (file counts, byte sizes) without loosening the required field set.
type Event struct {
	Type      string            `json:"type"`
	Action    string            `json:"action"`
	UserID    string            `json:"user_id,omitempty"`
	IP        string            `json:"ip,omitempty"`
	UserAgent string            `json:"user_agent,omitempty"`
	Status    string            `json:"status"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	At        time.Time         `json:"at"`
}

type Logger interface {
	Log(e Event)
}

// Nop drops every event, used when no broker is configured.
type Nop struct{}

func (Nop) Log(Event) {}
