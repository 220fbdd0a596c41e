package present

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
)

// SSEWriter writes server-sent events. Send is safe for concurrent use.
type SSEWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
	mu      sync.Mutex
}

func NewSSEWriter(w http.ResponseWriter) (*SSEWriter, error) {
	f, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("response writer does not support flushing")
	}
	return &SSEWriter{w: w, flusher: f}, nil
}

// Send writes one event with data as its JSON payload.
func (sw *SSEWriter) Send(event string, data any) error {
	b, err := json.Marshal(data)
	if err != nil {
		return err
	}

	sw.mu.Lock()
	defer sw.mu.Unlock()

	if _, err := fmt.Fprintf(sw.w, "event: %s\ndata: %s\n\n", event, b); err != nil {
		return err
	}
	sw.flusher.Flush()
	return nil
}
