package progress

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// HeartbeatInterval keeps intermediaries from closing an idle stream.
const HeartbeatInterval = 15 * time.Second

// SSEHandler streams progress events as server-sent events. The optional
// jobId query parameter scopes the stream to one job. An initial
// connection event is sent immediately, heartbeats keep the stream warm,
// and the stream closes on client disconnect or a terminal event for the
// subscribed job.
func SSEHandler(n *Notifier) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jobID := r.URL.Query().Get("jobId")

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("X-Accel-Buffering", "no")

		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "streaming unsupported", http.StatusInternalServerError)
			return
		}

		events, unsubscribe := n.Subscribe(jobID)
		defer unsubscribe()

		slog.Info("progress stream opened", "job_id", jobID)

		sendEvent(w, flusher, Event{
			JobID:   jobID,
			Step:    StepConnection,
			Status:  StatusInProgress,
			Message: "connected to progress stream",
		})

		heartbeat := time.NewTicker(HeartbeatInterval)
		defer heartbeat.Stop()

		for {
			select {
			case <-r.Context().Done():
				slog.Debug("progress stream closed by client", "job_id", jobID)
				return

			case <-heartbeat.C:
				sendEvent(w, flusher, Event{
					JobID:  jobID,
					Step:   StepHeartbeat,
					Status: StatusInProgress,
				})

			case evt, open := <-events:
				if !open {
					return
				}
				sendEvent(w, flusher, evt)
				if jobID != "" && evt.JobID == jobID && (evt.Status == StatusCompleted || evt.Status == StatusError) {
					slog.Info("progress stream closed on terminal event", "job_id", jobID, "status", evt.Status)
					return
				}
			}
		}
	}
}

func sendEvent(w http.ResponseWriter, flusher http.Flusher, evt Event) {
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now()
	}
	payload, err := json.Marshal(evt)
	if err != nil {
		slog.Error("marshal progress event", "error", err)
		return
	}
	fmt.Fprintf(w, "data: %s\n\n", payload)
	flusher.Flush()
}
