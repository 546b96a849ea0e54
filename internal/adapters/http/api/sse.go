package api

import (
	"context"
	"sync"

	"github.com/farpkdpasirmas-lang/MedSafetyPro/internal/domain/dashboard"
)

// viewStream fans the views of one dashboard out to its SSE clients.
// Clients only ever need the newest view, so each holds a one-slot buffer
// that a newer view overwrites.
type viewStream struct {
	mu      sync.Mutex
	last    *dashboard.View
	clients map[chan dashboard.View]struct{}
	closed  bool
	done    chan struct{}
	onClose func()
}

func newViewStream() *viewStream {
	return &viewStream{
		clients: make(map[chan dashboard.View]struct{}),
		done:    make(chan struct{}),
	}
}

// Publish implements dashboard.Publisher.
func (s *viewStream) Publish(_ context.Context, v dashboard.View) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.last = &v
	for ch := range s.clients {
		select {
		case <-ch:
		default:
		}
		ch <- v
	}
}

// attach registers a client. The newest view, if any, is queued at once.
func (s *viewStream) attach() (<-chan dashboard.View, func()) {
	ch := make(chan dashboard.View, 1)
	s.mu.Lock()
	if s.last != nil {
		ch <- *s.last
	}
	s.clients[ch] = struct{}{}
	s.mu.Unlock()

	return ch, func() {
		s.mu.Lock()
		delete(s.clients, ch)
		s.mu.Unlock()
	}
}

// Close ends every attached client and drops the stream from its hub. The
// service calls it when the dashboard is reaped.
func (s *viewStream) Close() {
	if s.close() && s.onClose != nil {
		s.onClose()
	}
}

// close ends every attached client and reports whether this call did so.
func (s *viewStream) close() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.closed = true
	close(s.done)
	return true
}

func (s *viewStream) clientCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

// streamHub tracks the view stream of every open dashboard.
type streamHub struct {
	mu      sync.Mutex
	streams map[string]*viewStream
}

func newStreamHub() *streamHub {
	return &streamHub{streams: make(map[string]*viewStream)}
}

func (h *streamHub) add(id string, s *viewStream) {
	h.mu.Lock()
	h.streams[id] = s
	h.mu.Unlock()
	s.onClose = func() { h.drop(id, s) }
}

// drop forgets id if it still maps to s.
func (h *streamHub) drop(id string, s *viewStream) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.streams[id] == s {
		delete(h.streams, id)
	}
}

func (h *streamHub) size() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.streams)
}

func (h *streamHub) get(id string) (*viewStream, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	s, ok := h.streams[id]
	return s, ok
}

// closeAll ends every stream, as on server shutdown.
func (h *streamHub) closeAll() {
	h.mu.Lock()
	streams := h.streams
	h.streams = make(map[string]*viewStream)
	h.mu.Unlock()
	for _, s := range streams {
		s.close()
	}
}

func (h *streamHub) remove(id string) {
	h.mu.Lock()
	s, ok := h.streams[id]
	delete(h.streams, id)
	h.mu.Unlock()
	if ok {
		s.close()
	}
}
