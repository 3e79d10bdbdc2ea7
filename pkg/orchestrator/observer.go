package orchestrator

import "github.com/dukex/ximager/pkg/models"

// EventKind tells observers what changed.
type EventKind string

const (
	EventLog      EventKind = "log"
	EventState    EventKind = "state"
	EventProgress EventKind = "progress"
)

// Event is delivered to observers in the order the changes happened.
type Event struct {
	Kind   EventKind              `json:"kind"`
	Record models.ExecutionRecord `json:"record"`
	Log    *models.LogEntry       `json:"log,omitempty"`
}

// Observer receives events synchronously. It may read the orchestrator
// (Snapshot, Logs) but must not start a run.
type Observer func(Event)

// Subscribe registers fn and returns a function that removes it.
func (o *Orchestrator) Subscribe(fn Observer) func() {
	o.mu.Lock()
	defer o.mu.Unlock()

	id := o.nextObserver
	o.nextObserver++
	o.observers[id] = fn

	return func() {
		o.mu.Lock()
		defer o.mu.Unlock()

		delete(o.observers, id)
	}
}

// update applies fn to the record under the state lock and then notifies observers.
// notifyMu spans both so events reach observers in mutation order.
func (o *Orchestrator) update(kind EventKind, entry *models.LogEntry, fn func(r *models.ExecutionRecord)) {
	o.notifyMu.Lock()
	defer o.notifyMu.Unlock()

	o.mu.Lock()

	if fn != nil {
		fn(&o.record)
	}

	if entry != nil {
		o.logs = append(o.logs, *entry)
		if over := len(o.logs) - o.cfg.MaxLogEntries; over > 0 {
			o.logs = append(o.logs[:0:0], o.logs[over:]...)
		}
	}

	event := Event{Kind: kind, Record: o.record.Copy(), Log: entry}

	observers := make([]Observer, 0, len(o.observers))
	for _, observer := range o.observers {
		observers = append(observers, observer)
	}

	o.mu.Unlock()

	for _, observer := range observers {
		observer(event)
	}
}
