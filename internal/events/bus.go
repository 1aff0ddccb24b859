// Package events fans out change notifications to the clients watching a
// project, served as Server-Sent Events.
package events

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

// Event types published after successful operations.
const (
	SprintCreated           = "sprint.created"
	SprintUpdated           = "sprint.updated"
	SprintStarted           = "sprint.started"
	SprintFinished          = "sprint.finished"
	SprintCancelled         = "sprint.cancelled"
	SprintDeleted           = "sprint.deleted"
	SprintStoriesAssigned   = "sprint.stories_assigned"
	SprintStoriesUnassigned = "sprint.stories_unassigned"
	StoryMoved              = "story.moved"
	TaskMoved               = "task.moved"
)

const (
	subscriberBuffer = 16
	defaultHeartbeat = 25 * time.Second
)

// Event is one notification for a project.
type Event struct {
	Type      string `json:"type"`
	Entity    string `json:"entity,omitempty"`
	ProjectID int64  `json:"project_id"`
	Payload   any    `json:"payload,omitempty"`
}

// Bus is a per-project publish/subscribe hub. Publishing never blocks:
// a subscriber whose buffer is full misses the event.
type Bus struct {
	mu        sync.RWMutex
	subs      map[int64]map[chan []byte]struct{}
	heartbeat time.Duration
}

// NewBus returns an empty bus. A non-positive heartbeat selects the default.
func NewBus(heartbeat time.Duration) *Bus {
	if heartbeat <= 0 {
		heartbeat = defaultHeartbeat
	}
	return &Bus{subs: make(map[int64]map[chan []byte]struct{}), heartbeat: heartbeat}
}

// Subscribe registers a listener for a project. The returned cancel func
// unregisters it and closes the channel.
func (b *Bus) Subscribe(projectID int64) (<-chan []byte, func()) {
	ch := make(chan []byte, subscriberBuffer)
	b.mu.Lock()
	if b.subs[projectID] == nil {
		b.subs[projectID] = make(map[chan []byte]struct{})
	}
	b.subs[projectID][ch] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			if subs, ok := b.subs[projectID]; ok {
				delete(subs, ch)
				if len(subs) == 0 {
					delete(b.subs, projectID)
				}
			}
			b.mu.Unlock()
			close(ch)
		})
	}
}

// Subscribers reports how many listeners a project has.
func (b *Bus) Subscribers(projectID int64) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[projectID])
}

// Publish delivers ev to the project's subscribers.
func (b *Bus) Publish(ev Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subs[ev.ProjectID] {
		select {
		case ch <- data:
		default:
		}
	}
}

// ServeSSE streams the project's events to one client until the request
// context ends.
func (b *Bus) ServeSSE(w http.ResponseWriter, r *http.Request, projectID int64) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "stream unsupported", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch, cancel := b.Subscribe(projectID)
	defer cancel()

	_, _ = w.Write([]byte(": connected\n\n"))
	flusher.Flush()

	ticker := time.NewTicker(b.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			_, _ = w.Write([]byte(": ping\n\n"))
			flusher.Flush()
		case msg, ok := <-ch:
			if !ok {
				return
			}
			_, _ = w.Write([]byte("data: "))
			_, _ = w.Write(msg)
			_, _ = w.Write([]byte("\n\n"))
			flusher.Flush()
		}
	}
}
