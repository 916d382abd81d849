// Package notify pushes training events to WebSocket subscribers of a course,
// so open curriculum and progress views can refetch after another session
// writes.
package notify

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/nguyenbaduy011/IE221-fe-sub000/internal/training"
)

const (
	defaultBuffer = 16
	writeTimeout  = 5 * time.Second
)

// Hub fans events out to per-course subscribers. It implements
// training.EventLogger.
type Hub struct {
	buffer int

	mu   sync.RWMutex
	subs map[string]map[*subscriber]struct{}
}

type subscriber struct {
	events    chan training.Event
	closeSlow func()
}

var _ training.EventLogger = (*Hub)(nil)

// NewHub creates a hub whose subscribers may lag by up to buffer events
// before being disconnected. A non-positive buffer uses the default.
func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	return &Hub{
		buffer: buffer,
		subs:   make(map[string]map[*subscriber]struct{}),
	}
}

// LogEvent delivers event to every subscriber of its course without
// blocking. Subscribers whose buffer is full are dropped.
func (h *Hub) LogEvent(event training.Event) error {
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for s := range h.subs[event.CourseID] {
		select {
		case s.events <- event:
		default:
			go s.closeSlow()
		}
	}
	return nil
}

// Subscribe registers a listener for courseID. The returned cancel func must
// be called to release it.
func (h *Hub) Subscribe(courseID string) (<-chan training.Event, func()) {
	s := &subscriber{events: make(chan training.Event, h.buffer), closeSlow: func() {}}
	h.add(courseID, s)
	return s.events, func() { h.remove(courseID, s) }
}

// Subscribers reports how many listeners a course has.
func (h *Hub) Subscribers(courseID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[courseID])
}

// ServeHTTP upgrades the request to a WebSocket and streams the events of the
// course named by the {courseID} path value until the client goes away.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	courseID := r.PathValue("courseID")
	if courseID == "" {
		http.Error(w, "course id is required", http.StatusBadRequest)
		return
	}

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		slog.Warn("websocket accept failed", "course_id", courseID, "error", err)
		return
	}

	err = h.stream(r.Context(), courseID, conn)
	if errors.Is(err, context.Canceled) ||
		websocket.CloseStatus(err) == websocket.StatusNormalClosure ||
		websocket.CloseStatus(err) == websocket.StatusGoingAway {
		return
	}
	if err != nil {
		slog.Debug("event stream closed", "course_id", courseID, "error", err)
	}
}

func (h *Hub) stream(ctx context.Context, courseID string, conn *websocket.Conn) error {
	var closeOnce sync.Once
	s := &subscriber{
		events: make(chan training.Event, h.buffer),
		closeSlow: func() {
			closeOnce.Do(func() {
				conn.Close(websocket.StatusPolicyViolation, "connection too slow to keep up with events")
			})
		},
	}
	h.add(courseID, s)
	defer h.remove(courseID, s)

	slog.Info("event subscriber connected", "course_id", courseID)

	// Clients only listen; CloseRead handles control frames and cancels ctx
	// once the peer closes.
	ctx = conn.CloseRead(ctx)
	for {
		select {
		case event := <-s.events:
			if err := writeEvent(ctx, conn, event); err != nil {
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func writeEvent(ctx context.Context, conn *websocket.Conn, event training.Event) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return wsjson.Write(ctx, conn, event)
}

func (h *Hub) add(courseID string, s *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subs[courseID] == nil {
		h.subs[courseID] = make(map[*subscriber]struct{})
	}
	h.subs[courseID][s] = struct{}{}
}

func (h *Hub) remove(courseID string, s *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.subs[courseID], s)
	if len(h.subs[courseID]) == 0 {
		delete(h.subs, courseID)
	}
}
