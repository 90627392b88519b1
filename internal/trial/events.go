package trial

import (
	"context"

	"github.com/specwright/specwright/internal/framework"
)

// EventType labels one message in a streamed trial.
type EventType string

const (
	EventPrepared EventType = "prepared"
	EventRunning  EventType = "running"
	EventChunk    EventType = "chunk"
	EventDone     EventType = "done"
	EventError    EventType = "error"
)

// Event is one streamed trial update. Result is set on done and, when
// partial output exists, on error.
type Event struct {
	Type    EventType `json:"type"`
	Message string    `json:"message,omitempty"`
	Result  *Result   `json:"result,omitempty"`
}

// Stream runs the script like Run but emits progress events as execution
// proceeds: prepared with the credential banner, running, one chunk per
// output line, then done or error. The channel closes when the trial is over
// and all temporary files are cleaned up.
func (r Runner) Stream(ctx context.Context, fw framework.Profile, script string, creds Credentials) <-chan Event {
	events := make(chan Event, 16)
	go func() {
		defer close(events)

		emit := func(e Event) {
			select {
			case events <- e:
			case <-ctx.Done():
			}
		}

		emit(Event{Type: EventPrepared, Message: Banner(creds)})
		emit(Event{Type: EventRunning})

		res, err := r.run(ctx, fw, script, creds, func(line string) {
			emit(Event{Type: EventChunk, Message: line})
		})
		if err != nil {
			emit(Event{Type: EventError, Message: err.Error(), Result: &res})
			return
		}
		emit(Event{Type: EventDone, Result: &res})
	}()
	return events
}
