package workflow

import (
	"fmt"
	"strings"
)

// RootScopeName is the name given to the scope every Builder creates.
const RootScopeName = "root"

// Scope is a named node in the scope hierarchy.
// Scopes are immutable after creation and are always handled by pointer;
// two scopes are the same scope only if they are the same allocation.
// A scope with the same name as another is a different scope.
type Scope struct {
	name   string
	parent *Scope
}

// NewScope creates a scope. parent may be nil for a root scope.
// Because a parent must already exist, the parent chain can never form a cycle.
func NewScope(name string, parent *Scope) *Scope {
	return &Scope{
		name:   name,
		parent: parent,
	}
}

// Name returns the scope name.
func (s *Scope) Name() string {
	return s.name
}

// Parent returns the parent scope, or nil for a root scope.
func (s *Scope) Parent() *Scope {
	return s.parent
}

// IsRoot returns true if the scope has no parent.
func (s *Scope) IsRoot() bool {
	return s.parent == nil
}

// Path returns the scope names from the top of the hierarchy down to this
// scope, joined by "/".
//
// Example: a scope "db" whose parent is "root" has the path "root/db".
func (s *Scope) Path() string {
	var names []string
	for cur := s; cur != nil; cur = cur.parent {
		names = append(names, cur.name)
	}
	for i, j := 0, len(names)-1; i < j; i, j = i+1, j-1 {
		names[i], names[j] = names[j], names[i]
	}
	return strings.Join(names, "/")
}

// String returns the display form "TaskScope(<name>)".
func (s *Scope) String() string {
	return fmt.Sprintf("TaskScope(%s)", s.name)
}
