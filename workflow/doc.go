// Package workflow provides an in-process builder for describing a workflow
// as a set of named task steps registered against scopes.
//
// # Overview
//
// A Builder owns a root scope, created with the builder, and an ordered list
// of task steps. Callers obtain the root scope with RootScope and register
// tasks against it with AddTask. Build renders the current state as text.
//
// # Scopes
//
// Scopes form a tree through their parent links. A Scope is immutable and is
// compared by identity: a scope created with NewScope("root", nil) is not the
// builder's root scope even though the names match.
//
//	b := workflow.NewBuilder("nightly")
//	root := b.RootScope()
//	db := workflow.NewScope("db", root)
//
//	b.AddTask("extract", root) // ok
//	b.AddTask("load", db)      // ErrInvalidScope
//
// Child scopes can be created and passed around, but the builder only admits
// tasks under its own root scope.
//
// # Report Format
//
//	Workflow: nightly
//	Tasks:
//	TaskStep(name=extract, scope=root)
//	TaskStep(name=transform, scope=root)
//
// # Thread Safety
//
// All Builder methods are safe for concurrent use. Appends are serialized so
// the task order is always some interleaving of the concurrent AddTask calls,
// and Build never observes a partially added step. Scope and TaskStep values
// are immutable and need no locking.
package workflow
