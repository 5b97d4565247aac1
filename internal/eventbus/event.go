package eventbus

import "time"

// Event represents an agent event published to the bus: a connectivity
// change, a replay trigger firing, or a lifecycle transition.
type Event struct {
	Type      string            `json:"type"`
	Timestamp time.Time         `json:"timestamp"`
	Payload   map[string]string `json:"payload"`
}

// Listener is a function that handles an event.
type Listener func(Event)
