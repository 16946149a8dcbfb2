package provisioning

import (
	"fmt"
	"maps"
	"sort"
	"sync"
	"time"

	"github.com/go-logr/logr"
)

// Observer receives structured events during a run.
type Observer interface {
	// Printf logs a free-form message.
	Printf(format string, v ...any)

	// Event emits a structured event.
	Event(event Event)

	// WithFields returns a new Observer with additional context fields.
	WithFields(fields map[string]string) Observer
}

// Event represents a structured provisioning event.
type Event struct {
	Type      EventType
	Step      string
	Message   string
	Resource  string
	Err       error
	Timestamp time.Time
	Fields    map[string]string
}

// EventType represents the type of provisioning event.
type EventType string

const (
	EventStepStarted   EventType = "step.started"
	EventStepCompleted EventType = "step.completed"
	EventStepSkipped   EventType = "step.skipped"
	EventStepFailed    EventType = "step.failed"

	EventResourceCreating EventType = "resource.creating"
	EventResourceCreated  EventType = "resource.created"
	EventResourceExists   EventType = "resource.exists"
	EventResourceFailed   EventType = "resource.failed"
	EventResourceDeleting EventType = "resource.deleting"
	EventResourceDeleted  EventType = "resource.deleted"

	EventRetryScheduled EventType = "retry.scheduled"
	EventWarning        EventType = "warning"
)

// LogObserver writes events to a logr.Logger as key/value lines.
type LogObserver struct {
	log    logr.Logger
	fields map[string]string
}

// NewLogObserver creates an observer backed by log.
func NewLogObserver(log logr.Logger) *LogObserver {
	return &LogObserver{log: log, fields: map[string]string{}}
}

// Printf implements Observer.
func (o *LogObserver) Printf(format string, v ...any) {
	o.log.Info(fmt.Sprintf(format, v...))
}

// Event implements Observer.
func (o *LogObserver) Event(event Event) {
	kv := []any{"event", string(event.Type)}
	if event.Step != "" {
		kv = append(kv, "step", event.Step)
	}
	if event.Resource != "" {
		kv = append(kv, "resource", event.Resource)
	}
	fields := maps.Clone(o.fields)
	maps.Copy(fields, event.Fields)
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		kv = append(kv, k, fields[k])
	}

	switch event.Type {
	case EventStepFailed, EventResourceFailed:
		o.log.Error(event.Err, event.Message, kv...)
	case EventResourceCreating, EventResourceExists, EventRetryScheduled:
		o.log.V(1).Info(event.Message, kv...)
	default:
		o.log.Info(event.Message, kv...)
	}
}

// WithFields implements Observer.
func (o *LogObserver) WithFields(fields map[string]string) Observer {
	merged := maps.Clone(o.fields)
	maps.Copy(merged, fields)
	return &LogObserver{log: o.log, fields: merged}
}

// RecordingObserver keeps every event in memory.
type RecordingObserver struct {
	mu     sync.Mutex
	events []Event
	fields map[string]string
}

// NewRecordingObserver creates an empty RecordingObserver.
func NewRecordingObserver() *RecordingObserver {
	return &RecordingObserver{fields: map[string]string{}}
}

// Printf implements Observer.
func (o *RecordingObserver) Printf(format string, v ...any) {
	o.Event(Event{Type: EventWarning, Message: fmt.Sprintf(format, v...)})
}

// Event implements Observer.
func (o *RecordingObserver) Event(event Event) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.fields) > 0 {
		merged := maps.Clone(o.fields)
		maps.Copy(merged, event.Fields)
		event.Fields = merged
	}
	o.events = append(o.events, event)
}

// WithFields implements Observer. The returned observer shares the event log.
func (o *RecordingObserver) WithFields(fields map[string]string) Observer {
	o.mu.Lock()
	defer o.mu.Unlock()
	merged := maps.Clone(o.fields)
	maps.Copy(merged, fields)
	return &fieldsObserver{parent: o, fields: merged}
}

// Events returns a copy of the recorded events.
func (o *RecordingObserver) Events() []Event {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]Event(nil), o.events...)
}

// Types returns the recorded event types in order.
func (o *RecordingObserver) Types() []EventType {
	events := o.Events()
	out := make([]EventType, len(events))
	for i, e := range events {
		out[i] = e.Type
	}
	return out
}

type fieldsObserver struct {
	parent *RecordingObserver
	fields map[string]string
}

func (f *fieldsObserver) Printf(format string, v ...any) {
	f.Event(Event{Type: EventWarning, Message: fmt.Sprintf(format, v...)})
}

func (f *fieldsObserver) Event(event Event) {
	merged := maps.Clone(f.fields)
	maps.Copy(merged, event.Fields)
	event.Fields = merged
	f.parent.Event(event)
}

func (f *fieldsObserver) WithFields(fields map[string]string) Observer {
	merged := maps.Clone(f.fields)
	maps.Copy(merged, fields)
	return &fieldsObserver{parent: f.parent, fields: merged}
}

// Helper functions for common events

// LogStepStart logs a step start event.
func LogStepStart(observer Observer, step string) {
	observer.Event(Event{Type: EventStepStarted, Step: step, Message: "starting"})
}

// LogStepComplete logs a step completion event.
func LogStepComplete(observer Observer, step string, duration time.Duration) {
	observer.Event(Event{
		Type:    EventStepCompleted,
		Step:    step,
		Message: fmt.Sprintf("completed in %v", duration.Round(time.Millisecond)),
	})
}

// LogStepSkipped logs a skipped step and its warning.
func LogStepSkipped(observer Observer, step, warning string) {
	observer.Event(Event{Type: EventStepSkipped, Step: step, Message: "skipped: " + warning})
}

// LogStepFailed logs a step failure event.
func LogStepFailed(observer Observer, step string, err error) {
	observer.Event(Event{Type: EventStepFailed, Step: step, Message: "failed", Err: err})
}

// LogResourceCreating logs a resource creation start event.
func LogResourceCreating(observer Observer, step, kind, name string) {
	observer.Event(Event{
		Type:     EventResourceCreating,
		Step:     step,
		Resource: name,
		Message:  "creating " + kind,
		Fields:   map[string]string{"kind": kind},
	})
}

// LogResourceCreated logs a successful resource creation event.
func LogResourceCreated(observer Observer, step, kind, name, id string) {
	observer.Event(Event{
		Type:     EventResourceCreated,
		Step:     step,
		Resource: name,
		Message:  kind + " created",
		Fields:   map[string]string{"kind": kind, "id": id},
	})
}

// LogResourceExists logs when a resource already exists.
func LogResourceExists(observer Observer, step, kind, name, id string) {
	observer.Event(Event{
		Type:     EventResourceExists,
		Step:     step,
		Resource: name,
		Message:  kind + " already exists",
		Fields:   map[string]string{"kind": kind, "id": id},
	})
}

// LogResourceFailed logs a resource that could not be ensured.
func LogResourceFailed(observer Observer, step, kind, name string, err error) {
	observer.Event(Event{
		Type:     EventResourceFailed,
		Step:     step,
		Resource: name,
		Message:  kind + " failed",
		Err:      err,
		Fields:   map[string]string{"kind": kind},
	})
}

// LogResourceDeleting logs a resource deletion start event.
func LogResourceDeleting(observer Observer, step, kind, name string) {
	observer.Event(Event{
		Type:     EventResourceDeleting,
		Step:     step,
		Resource: name,
		Message:  "deleting " + kind,
		Fields:   map[string]string{"kind": kind},
	})
}

// LogResourceDeleted logs a successful resource deletion event.
func LogResourceDeleted(observer Observer, step, kind, name string) {
	observer.Event(Event{
		Type:     EventResourceDeleted,
		Step:     step,
		Resource: name,
		Message:  kind + " deleted",
		Fields:   map[string]string{"kind": kind},
	})
}

// LogRetry logs a scheduled retry.
func LogRetry(observer Observer, step, policy string, attempt int, delay time.Duration, err error) {
	observer.Event(Event{
		Type:    EventRetryScheduled,
		Step:    step,
		Message: fmt.Sprintf("attempt %d failed, retrying in %v", attempt, delay),
		Err:     err,
		Fields:  map[string]string{"policy": policy},
	})
}

// LogWarning logs a warning.
func LogWarning(observer Observer, step, message string) {
	observer.Event(Event{Type: EventWarning, Step: step, Message: message})
}
