package workflow

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/nomis52/flowscope/metrics"
)

// BuilderOption configures a Builder.
type BuilderOption func(*Builder)

// WithLogger sets the logger used by the builder.
func WithLogger(logger *slog.Logger) BuilderOption {
	return func(b *Builder) {
		b.logger = logger
	}
}

// WithMetrics sets the metrics the builder reports admissions and rejections to.
// Admissions are reported while the task list is locked, so the registry
// behind m must not block; PushRegistry queues its samples.
func WithMetrics(m *metrics.BuilderMetrics) BuilderOption {
	return func(b *Builder) {
		b.metrics = m
	}
}

// Builder collects the task steps of a single workflow.
//
// The builder owns one root scope, created with the builder. Tasks may only
// be added under that exact scope. All methods are safe for concurrent use.
type Builder struct {
	id      string
	name    string
	root    *Scope
	logger  *slog.Logger
	metrics *metrics.BuilderMetrics

	mu    sync.RWMutex
	tasks []TaskStep
}

// NewBuilder creates a builder for the named workflow with a fresh root scope.
func NewBuilder(name string, opts ...BuilderOption) *Builder {
	b := &Builder{
		id:     uuid.NewString(),
		name:   name,
		root:   NewScope(RootScopeName, nil),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	b.logger = b.logger.With(
		"component", "workflow_builder",
		"workflow", name,
		"builder_id", b.id,
	)
	return b
}

// ID returns the unique identifier of this builder instance.
func (b *Builder) ID() string {
	return b.id
}

// Name returns the workflow name.
func (b *Builder) Name() string {
	return b.name
}

// RootScope returns the builder's root scope. Every call returns the same scope.
func (b *Builder) RootScope() *Scope {
	return b.root
}

// AddTask registers a task under scope and returns the created step.
//
// scope must be the builder's own root scope as returned by RootScope.
// Any other scope, including another builder's root or a separately created
// scope named "root", is rejected with an error matching ErrInvalidScope
// and the builder is left unchanged.
func (b *Builder) AddTask(name string, scope *Scope) (TaskStep, error) {
	if scope != b.root {
		scopeName := ""
		if scope != nil {
			scopeName = scope.name
		}
		b.logger.Warn("task rejected", "task", name, "scope", scopeName)
		if b.metrics != nil {
			b.metrics.TaskRejected(b.name)
		}
		return TaskStep{}, &InvalidScopeError{
			Workflow: b.name,
			Task:     name,
			Scope:    scopeName,
		}
	}

	step := NewTaskStep(name, scope)

	b.mu.Lock()
	b.tasks = append(b.tasks, step)
	count := len(b.tasks)
	// Metrics are updated in append order so the gauge never moves backwards.
	if b.metrics != nil {
		b.metrics.TaskAdded(b.name, count)
	}
	b.mu.Unlock()

	b.logger.Debug("task added", "task", name, "count", count)
	return step, nil
}

// Tasks returns a copy of the registered steps in insertion order.
func (b *Builder) Tasks() []TaskStep {
	b.mu.RLock()
	defer b.mu.RUnlock()

	tasks := make([]TaskStep, len(b.tasks))
	copy(tasks, b.tasks)
	return tasks
}

// Len returns the number of registered steps.
func (b *Builder) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.tasks)
}

// Build renders a summary of the workflow as it stands now:
//
//	Workflow: <name>
//	Tasks:
//	TaskStep(name=<task>, scope=<scope>)
//	...
//
// Task lines are joined by newlines with no trailing newline. A workflow
// with no tasks renders as "Workflow: <name>\nTasks:\n". Build may be called
// any number of times and does not change the builder.
func (b *Builder) Build() string {
	b.mu.RLock()
	lines := make([]string, len(b.tasks))
	for i, t := range b.tasks {
		lines[i] = t.String()
	}
	b.mu.RUnlock()

	b.logger.Debug("workflow built", "tasks", len(lines))
	return fmt.Sprintf("Workflow: %s\nTasks:\n%s", b.name, strings.Join(lines, "\n"))
}

// String returns the display form "WorkflowBuilder(<name>)".
func (b *Builder) String() string {
	return fmt.Sprintf("WorkflowBuilder(%s)", b.name)
}
