// Package progress implements the best-effort progress channel: a one-way
// fan-out of discrete progress events to whatever clients are subscribed at
// that moment. There is no buffering of record, no replay for late
// subscribers, and no backpressure; true job state always lives with the
// status tracker, which clients can query at any time.
package progress

import (
	"log/slog"
	"sync"
	"time"
)

// Event statuses.
const (
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
	StatusError      = "error"
)

// Well-known step identifiers.
const (
	StepConnection    = "connection"
	StepHeartbeat     = "heartbeat"
	StepConfiguration = "configuration"
	StepCompilation   = "compilation"
	StepGitHubActions = "github_actions"
)

// Event is one discrete progress notification. Events are ephemeral: not
// persisted, not replayed.
type Event struct {
	JobID     string    `json:"job_id,omitempty"`
	Step      string    `json:"step"`
	Progress  int       `json:"progress"`
	Message   string    `json:"message,omitempty"`
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// Relay receives every published event, used to bridge events onto an
// external transport. Implementations must not block.
type Relay interface {
	Relay(Event)
}

// Notifier fans events out to subscribers. Publishing with zero
// subscribers is a silent no-op by contract.
type Notifier struct {
	mu          sync.RWMutex
	subscribers map[uint64]*subscription
	nextID      uint64
	relay       Relay
}

type subscription struct {
	ch    chan Event
	jobID string // empty subscribes to all jobs
}

// NewNotifier creates an empty notifier.
func NewNotifier() *Notifier {
	return &Notifier{subscribers: make(map[uint64]*subscription)}
}

// SetRelay attaches an external relay for published events.
func (n *Notifier) SetRelay(r Relay) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.relay = r
}

// Subscribe registers a subscriber. An empty jobID receives every event;
// otherwise only events for that job (and unscoped events) are delivered.
// The returned function unsubscribes and closes the channel.
func (n *Notifier) Subscribe(jobID string) (<-chan Event, func()) {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.nextID++
	id := n.nextID
	sub := &subscription{ch: make(chan Event, 16), jobID: jobID}
	n.subscribers[id] = sub

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			n.mu.Lock()
			defer n.mu.Unlock()
			if s, ok := n.subscribers[id]; ok {
				delete(n.subscribers, id)
				close(s.ch)
			}
		})
	}
	return sub.ch, unsubscribe
}

// SubscriberCount returns the number of live subscriptions.
func (n *Notifier) SubscriberCount() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.subscribers)
}

// Publish delivers an event to matching subscribers. Sends are
// non-blocking: a full subscriber channel drops the event for that
// subscriber rather than stalling the publisher.
func (n *Notifier) Publish(evt Event) {
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now()
	}

	n.mu.RLock()
	relay := n.relay
	for _, sub := range n.subscribers {
		if sub.jobID != "" && evt.JobID != "" && sub.jobID != evt.JobID {
			continue
		}
		select {
		case sub.ch <- evt:
		default:
			slog.Debug("progress channel full, dropping event", "job_id", evt.JobID, "step", evt.Step)
		}
	}
	n.mu.RUnlock()

	if relay != nil {
		relay.Relay(evt)
	}
}

// Step is a convenience publisher for the orchestration flow.
func (n *Notifier) Step(jobID, step string, pct int, message, status string) {
	n.Publish(Event{
		JobID:    jobID,
		Step:     step,
		Progress: pct,
		Message:  message,
		Status:   status,
	})
}
