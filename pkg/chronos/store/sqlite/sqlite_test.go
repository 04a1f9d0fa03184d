package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/jholhewres/chronos/pkg/chronos"
)

func openTestBackend(t *testing.T) *Backend {
	t.Helper()
	b, err := Open(Config{Path: ":memory:"}, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { b.Close() })
	return b
}

func newTask(id, typ string, status chronos.TaskStatus) *chronos.ScheduledTask {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	return &chronos.ScheduledTask{
		ID:        id,
		Name:      "task-" + id,
		Type:      typ,
		Trigger:   chronos.TaskTrigger{Type: chronos.TriggerCron, Expression: "0 9 * * *"},
		Config:    chronos.DefaultTaskConfig(),
		Status:    status,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestCreateAndGetTask(t *testing.T) {
	b := openTestBackend(t)
	ctx := context.Background()

	task := newTask("t1", "http", chronos.StatusActive)
	task.Tags = []string{"infra", "nightly"}
	if err := b.CreateTask(ctx, task); err != nil {
		t.Fatalf("CreateTask: %v", err)
	}

	got, err := b.GetTask(ctx, "t1")
	if err != nil {
		t.Fatalf("GetTask: %v", err)
	}
	if got == nil {
		t.Fatal("expected a task, got nil")
	}
	if got.Name != task.Name || got.Trigger.Expression != "0 9 * * *" {
		t.Fatalf("round trip mismatch: %+v", got)
	}
	if len(got.Tags) != 2 || got.Tags[0] != "infra" {
		t.Fatalf("tags round trip mismatch: %v", got.Tags)
	}
}

func TestGetTaskMissingReturnsNilNil(t *testing.T) {
	b := openTestBackend(t)
	got, err := b.GetTask(context.Background(), "nope")
	if err != nil || got != nil {
		t.Fatalf("want (nil, nil), got (%v, %v)", got, err)
	}
}

func TestUpdateTaskNotFound(t *testing.T) {
	b := openTestBackend(t)
	task := newTask("ghost", "http", chronos.StatusActive)
	err := b.UpdateTask(context.Background(), task)
	if chronos.CodeOf(err) != chronos.ErrTaskNotFound {
		t.Fatalf("want ErrTaskNotFound, got %v", err)
	}
}

func TestDeleteTaskCascadesExecutions(t *testing.T) {
	b := openTestBackend(t)
	ctx := context.Background()

	task := newTask("t1", "http", chronos.StatusActive)
	if err := b.CreateTask(ctx, task); err != nil {
		t.Fatalf("CreateTask: %v", err)
	}
	exec := &chronos.TaskExecution{
		ID: "e1", TaskID: "t1", TaskName: task.Name, TaskType: task.Type,
		Status: chronos.ExecutionRunning, StartedAt: time.Now(),
	}
	if err := b.CreateExecution(ctx, exec); err != nil {
		t.Fatalf("CreateExecution: %v", err)
	}

	existed, err := b.DeleteTask(ctx, "t1")
	if err != nil || !existed {
		t.Fatalf("DeleteTask: existed=%v err=%v", existed, err)
	}

	if got, _ := b.GetExecution(ctx, "e1"); got != nil {
		t.Fatal("expected execution to be cascade-deleted")
	}

	existed, err = b.DeleteTask(ctx, "t1")
	if err != nil || existed {
		t.Fatalf("second delete: want (false, nil), got (%v, %v)", existed, err)
	}
}

func TestGetTasksByStatus(t *testing.T) {
	b := openTestBackend(t)
	ctx := context.Background()

	b.CreateTask(ctx, newTask("a", "http", chronos.StatusActive))
	b.CreateTask(ctx, newTask("b", "http", chronos.StatusPaused))
	b.CreateTask(ctx, newTask("c", "http", chronos.StatusActive))

	active, err := b.GetTasksByStatus(ctx, chronos.StatusActive)
	if err != nil {
		t.Fatalf("GetTasksByStatus: %v", err)
	}
	if len(active) != 2 {
		t.Fatalf("want 2 active tasks, got %d", len(active))
	}
}

func TestGetActiveEventTasksFiltersByType(t *testing.T) {
	b := openTestBackend(t)
	ctx := context.Background()

	cronTask := newTask("c1", "http", chronos.StatusActive)
	eventTask := newTask("e1", "http", chronos.StatusActive)
	eventTask.Trigger = chronos.TaskTrigger{Type: chronos.TriggerEvent, EventType: "deploy.completed"}
	otherEventTask := newTask("e2", "http", chronos.StatusActive)
	otherEventTask.Trigger = chronos.TaskTrigger{Type: chronos.TriggerEvent, EventType: "build.failed"}

	for _, tk := range []*chronos.ScheduledTask{cronTask, eventTask, otherEventTask} {
		if err := b.CreateTask(ctx, tk); err != nil {
			t.Fatalf("CreateTask(%s): %v", tk.ID, err)
		}
	}

	got, err := b.GetActiveEventTasks(ctx, "deploy.completed")
	if err != nil {
		t.Fatalf("GetActiveEventTasks: %v", err)
	}
	if len(got) != 1 || got[0].ID != "e1" {
		t.Fatalf("want just e1, got %+v", got)
	}

	all, err := b.GetActiveEventTasks(ctx, "")
	if err != nil {
		t.Fatalf("GetActiveEventTasks(all): %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("want 2 event tasks, got %d", len(all))
	}
}

func TestGetFilteredTasksByTagsAndSearch(t *testing.T) {
	b := openTestBackend(t)
	ctx := context.Background()

	a := newTask("a", "http", chronos.StatusActive)
	a.Name = "nightly backup"
	a.Tags = []string{"db", "nightly"}
	b2 := newTask("b", "http", chronos.StatusActive)
	b2.Name = "weekly report"
	b2.Tags = []string{"report"}

	b.CreateTask(ctx, a)
	b.CreateTask(ctx, b2)

	byTag, err := b.GetFilteredTasks(ctx, chronos.TaskFilter{Tags: []string{"db"}})
	if err != nil {
		t.Fatalf("GetFilteredTasks(tags): %v", err)
	}
	if len(byTag) != 1 || byTag[0].ID != "a" {
		t.Fatalf("want just task a, got %+v", byTag)
	}

	bySearch, err := b.GetFilteredTasks(ctx, chronos.TaskFilter{Search: "weekly"})
	if err != nil {
		t.Fatalf("GetFilteredTasks(search): %v", err)
	}
	if len(bySearch) != 1 || bySearch[0].ID != "b" {
		t.Fatalf("want just task b, got %+v", bySearch)
	}
}

func TestExecutionLifecycleAndPagination(t *testing.T) {
	b := openTestBackend(t)
	ctx := context.Background()

	task := newTask("t1", "http", chronos.StatusActive)
	if err := b.CreateTask(ctx, task); err != nil {
		t.Fatalf("CreateTask: %v", err)
	}

	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		exec := &chronos.TaskExecution{
			ID: idFor(i), TaskID: "t1", TaskName: task.Name, TaskType: task.Type,
			Status: chronos.ExecutionCompleted, StartedAt: base.Add(time.Duration(i) * time.Minute),
		}
		if err := b.CreateExecution(ctx, exec); err != nil {
			t.Fatalf("CreateExecution(%d): %v", i, err)
		}
	}

	page1, err := b.GetTaskExecutions(ctx, "t1", 2, nil)
	if err != nil || len(page1) != 2 {
		t.Fatalf("page1: %v %v", page1, err)
	}
	if page1[0].ID != idFor(4) || page1[1].ID != idFor(3) {
		t.Fatalf("want newest first, got %v, %v", page1[0].ID, page1[1].ID)
	}

	cursor := page1[len(page1)-1].StartedAt
	page2, err := b.GetTaskExecutions(ctx, "t1", 2, &cursor)
	if err != nil || len(page2) != 2 {
		t.Fatalf("page2: %v %v", page2, err)
	}
	if page2[0].ID != idFor(2) {
		t.Fatalf("want exec 2 first on page2, got %v", page2[0].ID)
	}
}

func idFor(i int) string {
	return string(rune('0' + i))
}

func TestCleanupOldExecutions(t *testing.T) {
	b := openTestBackend(t)
	ctx := context.Background()

	task := newTask("t1", "http", chronos.StatusActive)
	b.CreateTask(ctx, task)

	old := &chronos.TaskExecution{
		ID: "old", TaskID: "t1", TaskName: task.Name, TaskType: task.Type,
		Status: chronos.ExecutionCompleted, StartedAt: time.Now().AddDate(0, 0, -60),
	}
	recent := &chronos.TaskExecution{
		ID: "recent", TaskID: "t1", TaskName: task.Name, TaskType: task.Type,
		Status: chronos.ExecutionCompleted, StartedAt: time.Now(),
	}
	b.CreateExecution(ctx, old)
	b.CreateExecution(ctx, recent)

	n, err := b.CleanupOldExecutions(ctx, 30)
	if err != nil {
		t.Fatalf("CleanupOldExecutions: %v", err)
	}
	if n != 1 {
		t.Fatalf("want 1 removed, got %d", n)
	}
	if got, _ := b.GetExecution(ctx, "recent"); got == nil {
		t.Fatal("recent execution should have survived cleanup")
	}
}

func TestGetStatistics(t *testing.T) {
	b := openTestBackend(t)
	ctx := context.Background()

	b.CreateTask(ctx, newTask("a", "http", chronos.StatusActive))
	b.CreateTask(ctx, newTask("b", "http", chronos.StatusPaused))

	task := newTask("a", "http", chronos.StatusActive)
	for i, status := range []chronos.ExecutionStatus{chronos.ExecutionCompleted, chronos.ExecutionFailed, chronos.ExecutionCompleted} {
		d := time.Duration(100*(i+1)) * time.Millisecond
		b.CreateExecution(ctx, &chronos.TaskExecution{
			ID: idFor(i), TaskID: "a", TaskName: task.Name, TaskType: task.Type,
			Status: status, StartedAt: time.Now(), Duration: &d,
		})
	}

	stats, err := b.GetStatistics(ctx)
	if err != nil {
		t.Fatalf("GetStatistics: %v", err)
	}
	if stats.TotalTasks != 2 || stats.ActiveTasks != 1 || stats.PausedTasks != 1 {
		t.Fatalf("task counts wrong: %+v", stats)
	}
	if stats.TotalExecutions != 3 || stats.CompletedCount != 2 || stats.FailedCount != 1 {
		t.Fatalf("execution counts wrong: %+v", stats)
	}
	if stats.MeanDurationMs <= 0 {
		t.Fatalf("want a positive mean duration, got %v", stats.MeanDurationMs)
	}
}
