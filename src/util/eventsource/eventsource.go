package eventsource

import (
	"encoding/json"
	"fmt"
	"net/http"

	log "github.com/sirupsen/logrus"
)

// An EventSource writes server-sent events to a client.
type EventSource struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

// Begin writes the event stream headers. An error is returned if the
// response writer is unable to flush partial responses.
func Begin(w http.ResponseWriter, r *http.Request) (*EventSource, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("could not start event source: streaming unsupported")
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Accel-Buffering", "no")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	return &EventSource{w: w, flusher: flusher}, nil
}

// Event writes a single event with an optional body.
func (es *EventSource) Event(event, body string) {
	fmt.Fprintf(es.w, "event: %s\n", event)
	if body == "" {
		body = "{}"
	}
	fmt.Fprintf(es.w, "data: %s\n\n", body)
	es.flusher.Flush()
}

// EventJSON writes an event with a JSON encoded body.
func (es *EventSource) EventJSON(event string, body interface{}) {
	b, err := json.Marshal(body)
	if err != nil {
		log.Errorf("Could not marshal event %q: %v", event, err)
		return
	}
	es.Event(event, string(b))
}
