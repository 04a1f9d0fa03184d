package notify

import (
	"testing"

	"github.com/jholhewres/chronos/pkg/chronos"
)

type recordingSink struct {
	calls int
}

func (r *recordingSink) Notify(*chronos.ScheduledTask, *chronos.TaskExecution, chronos.NotificationEvent) {
	r.calls++
}

func TestMultiSinkFansOutToAllWhenNoChannelsConfigured(t *testing.T) {
	m := NewMultiSink()
	a, b := &recordingSink{}, &recordingSink{}
	m.Add("webhook", a)
	m.Add("discord", b)

	task := &chronos.ScheduledTask{ID: "t1"}
	exec := &chronos.TaskExecution{ID: "e1"}
	m.Notify(task, exec, chronos.EventComplete)

	if a.calls != 1 || b.calls != 1 {
		t.Fatalf("expected both sinks called once, got a=%d b=%d", a.calls, b.calls)
	}
}

func TestMultiSinkRespectsChannelSelection(t *testing.T) {
	m := NewMultiSink()
	a, b := &recordingSink{}, &recordingSink{}
	m.Add("webhook", a)
	m.Add("discord", b)

	task := &chronos.ScheduledTask{ID: "t1", Notify: chronos.NotificationConfig{Channels: []string{"webhook"}}}
	exec := &chronos.TaskExecution{ID: "e1"}
	m.Notify(task, exec, chronos.EventStart)

	if a.calls != 1 {
		t.Fatalf("expected webhook sink called once, got %d", a.calls)
	}
	if b.calls != 0 {
		t.Fatalf("expected discord sink not called, got %d", b.calls)
	}
}

func TestWebhookSinkNoopWithoutURL(t *testing.T) {
	w := NewWebhookSink(nil)
	task := &chronos.ScheduledTask{ID: "t1"}
	exec := &chronos.TaskExecution{ID: "e1"}
	// Should not panic or attempt any network call.
	w.Notify(task, exec, chronos.EventStart)
}
