// Package notify implements the notification sink contract: a single
// sink called on start/progress/complete/error, with channel selection,
// templating, and transport left to the implementation.
package notify

import "github.com/jholhewres/chronos/pkg/chronos"

// Sink is called synchronously by the Scheduler; it must tolerate its own
// errors internally, since a notification failure must never fail an
// execution. Notify has no error return - an implementation that can
// fail logs it and moves on.
type Sink interface {
	Notify(task *chronos.ScheduledTask, execution *chronos.TaskExecution, event chronos.NotificationEvent)
}

// MultiSink fans a single call out to every configured Sink, honoring
// each task's own Notify.Channels selection when a sink advertises a
// channel name.
type MultiSink struct {
	sinks []namedSink
}

type namedSink struct {
	name string
	sink Sink
}

func NewMultiSink() *MultiSink {
	return &MultiSink{}
}

// Add registers sink under name. name is matched against a task's
// Notify.Channels; a task with no Channels configured is sent to every
// registered sink.
func (m *MultiSink) Add(name string, sink Sink) {
	m.sinks = append(m.sinks, namedSink{name: name, sink: sink})
}

func (m *MultiSink) Notify(task *chronos.ScheduledTask, execution *chronos.TaskExecution, event chronos.NotificationEvent) {
	for _, ns := range m.sinks {
		if len(task.Notify.Channels) > 0 && !containsString(task.Notify.Channels, ns.name) {
			continue
		}
		ns.sink.Notify(task, execution, event)
	}
}

func containsString(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}
