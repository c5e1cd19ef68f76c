package progress

import (
	"encoding/json"
	"log/slog"
	"sync/atomic"

	"github.com/nats-io/nats.go"
)

// NATSRelay republishes progress events to a NATS subject so external UIs
// can observe builds without holding an SSE connection to this process.
// Delivery stays best-effort: publish failures disable the relay after one
// logged warning rather than affecting the compile flow.
type NATSRelay struct {
	conn     *nats.Conn
	prefix   string
	disabled atomic.Bool
}

// DefaultSubjectPrefix is the subject namespace for relayed events; the
// job id is appended per event.
const DefaultSubjectPrefix = "agentify.progress"

// NewNATSRelay connects to the given NATS URL. Subject prefix falls back
// to DefaultSubjectPrefix when empty.
func NewNATSRelay(url, subjectPrefix string) (*NATSRelay, error) {
	conn, err := nats.Connect(url, nats.Name("agentify-progress"))
	if err != nil {
		return nil, err
	}
	if subjectPrefix == "" {
		subjectPrefix = DefaultSubjectPrefix
	}
	slog.Info("progress relay connected", "url", url, "subject_prefix", subjectPrefix)
	return &NATSRelay{conn: conn, prefix: subjectPrefix}, nil
}

// Relay implements the Relay interface. Never blocks the publisher.
func (r *NATSRelay) Relay(evt Event) {
	if r.disabled.Load() {
		return
	}

	payload, err := json.Marshal(evt)
	if err != nil {
		return
	}

	subject := r.prefix
	if evt.JobID != "" {
		subject = r.prefix + "." + evt.JobID
	}

	if err := r.conn.Publish(subject, payload); err != nil {
		if r.disabled.CompareAndSwap(false, true) {
			slog.Warn("progress relay publish failed, disabling relay", "error", err)
		}
	}
}

// Close drains the connection.
func (r *NATSRelay) Close() {
	if r.conn != nil {
		r.conn.Close()
	}
}
