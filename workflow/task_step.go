package workflow

import "fmt"

// TaskStep records that a task was registered under a scope.
// TaskStep values are immutable and safe to share between goroutines.
type TaskStep struct {
	name  string
	scope *Scope
}

// NewTaskStep creates a task step. It performs no validation; admission
// rules are enforced by Builder.AddTask.
func NewTaskStep(name string, scope *Scope) TaskStep {
	return TaskStep{
		name:  name,
		scope: scope,
	}
}

// Name returns the task name.
func (t TaskStep) Name() string {
	return t.name
}

// Scope returns the scope the task was registered under.
func (t TaskStep) Scope() *Scope {
	return t.scope
}

// String returns the display form "TaskStep(name=<name>, scope=<scope name>)".
func (t TaskStep) String() string {
	scopeName := ""
	if t.scope != nil {
		scopeName = t.scope.name
	}
	return fmt.Sprintf("TaskStep(name=%s, scope=%s)", t.name, scopeName)
}
