// Package executor is the taskType -> Executor dispatch table. The
// Scheduler owns a Registry and never invokes an executor directly by
// type switch, keeping dispatch open to new task types without touching
// scheduler code.
package executor

import (
	"context"
	"sync"

	"github.com/jholhewres/chronos/pkg/chronos"
)

// Result is what an Executor reports back to the pipeline.
type Result struct {
	Success bool
	Output  map[string]any
	Error   string
}

// Executor runs a single ScheduledTask firing. Implementations must not
// mutate task and must not touch the Store for this task's own records;
// the Scheduler owns persistence.
type Executor interface {
	Execute(ctx context.Context, task *chronos.ScheduledTask, execution *chronos.TaskExecution) (Result, error)
}

// ExecutorFunc adapts a plain function to the Executor interface.
type ExecutorFunc func(ctx context.Context, task *chronos.ScheduledTask, execution *chronos.TaskExecution) (Result, error)

func (f ExecutorFunc) Execute(ctx context.Context, task *chronos.ScheduledTask, execution *chronos.TaskExecution) (Result, error) {
	return f(ctx, task, execution)
}

// Registry is a thread-safe taskType -> Executor table.
type Registry struct {
	mu        sync.RWMutex
	executors map[string]Executor
}

func NewRegistry() *Registry {
	return &Registry{executors: make(map[string]Executor)}
}

// Register installs an executor for taskType, replacing any prior one.
func (r *Registry) Register(taskType string, e Executor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.executors[taskType] = e
}

// Get returns the executor registered for taskType, if any.
func (r *Registry) Get(taskType string) (Executor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.executors[taskType]
	return e, ok
}

// Unregister removes the executor for taskType, if one exists.
func (r *Registry) Unregister(taskType string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.executors, taskType)
}

// Types returns the set of task types currently registered.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.executors))
	for t := range r.executors {
		out = append(out, t)
	}
	return out
}

// PluginHandler is a named, externally-supplied task handler, distinct
// from a full Executor: it is looked up by a key carried in the task's
// payload rather than by task type, for plugins that all register under
// one generic "plugin" task type.
type PluginHandler func(ctx context.Context, task *chronos.ScheduledTask, execution *chronos.TaskExecution) (Result, error)

// PluginRegistry is a second, name-keyed dispatch table consulted by the
// "plugin" Executor, for handlers that all register under one generic
// task type but still need per-plugin routing.
type PluginRegistry struct {
	mu       sync.RWMutex
	handlers map[string]PluginHandler
}

func NewPluginRegistry() *PluginRegistry {
	return &PluginRegistry{handlers: make(map[string]PluginHandler)}
}

func (p *PluginRegistry) Register(name string, h PluginHandler) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.handlers[name] = h
}

func (p *PluginRegistry) Get(name string) (PluginHandler, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	h, ok := p.handlers[name]
	return h, ok
}

// PluginTaskType is the taskType a PluginRegistry-backed Executor is
// conventionally registered under.
const PluginTaskType = "plugin"

// NewPluginExecutor adapts a PluginRegistry into an Executor: it reads the
// "handler" key out of task.Payload and dispatches to the matching
// PluginHandler, failing with ErrPluginHandlerNotFound when absent.
func NewPluginExecutor(registry *PluginRegistry) Executor {
	return ExecutorFunc(func(ctx context.Context, task *chronos.ScheduledTask, execution *chronos.TaskExecution) (Result, error) {
		name, _ := task.Payload["handler"].(string)
		handler, ok := registry.Get(name)
		if !ok {
			return Result{}, chronos.NewError(chronos.ErrPluginHandlerNotFound, "handler "+name, nil)
		}
		return handler(ctx, task, execution)
	})
}
