package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"
)

var errStreamingUnsupported = errors.New("response writer does not support streaming")

// sseStream serializes all writes to one SSE response. Quote/status emission
// and the heartbeat timer run on different goroutines; the mutex keeps their
// frames from interleaving.
type sseStream struct {
	mu      sync.Mutex
	w       http.ResponseWriter
	flusher http.Flusher

	stopHeartbeat chan struct{}
	stopOnce      sync.Once
	heartbeatWG   sync.WaitGroup
}

func newSSEStream(w http.ResponseWriter) (*sseStream, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, errStreamingUnsupported
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()
	return &sseStream{
		w:             w,
		flusher:       flusher,
		stopHeartbeat: make(chan struct{}),
	}, nil
}

// event emits one named event with a JSON payload.
func (s *sseStream) event(name string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", name, data); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

// comment emits an SSE comment line; intermediaries pass it through but
// clients never dispatch it.
func (s *sseStream) comment(text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := fmt.Fprintf(s.w, ":%s\n\n", text); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

// startHeartbeat emits :heartbeat comments until close or ctx-done so
// proxies do not reap an idle stream.
func (s *sseStream) startHeartbeat(interval time.Duration, done <-chan struct{}) {
	s.heartbeatWG.Add(1)
	go func() {
		defer s.heartbeatWG.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-s.stopHeartbeat:
				return
			case <-done:
				return
			case <-ticker.C:
				if err := s.comment("heartbeat"); err != nil {
					return
				}
			}
		}
	}()
}

// close stops the heartbeat and waits for it to exit; the ResponseWriter
// must not be touched after the handler returns.
func (s *sseStream) close() {
	s.stopOnce.Do(func() { close(s.stopHeartbeat) })
	s.heartbeatWG.Wait()
}
