// Package workflows builds workflows from their declarative configuration.
package workflows

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/nomis52/flowscope/config"
	"github.com/nomis52/flowscope/metrics"
	"github.com/nomis52/flowscope/workflow"
)

// Params contains the dependencies used to construct a workflow builder.
type Params struct {
	// Logger is the base logger for the builder. Defaults to slog.Default().
	Logger *slog.Logger

	// Metrics receives task admissions and rejections. May be nil.
	Metrics *metrics.BuilderMetrics
}

// FromConfig creates a builder for cfg, declares its child scopes and adds
// its tasks in order.
//
// An invalid cfg returns a nil builder and the validation error. Otherwise
// the builder is always returned. Tasks whose scope is rejected by the
// builder are skipped, and the error joins one error per rejected task,
// each matching workflow.ErrInvalidScope.
func FromConfig(cfg config.WorkflowConfig, p Params) (*workflow.Builder, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid workflow config: %w", err)
	}

	var opts []workflow.BuilderOption
	if p.Logger != nil {
		opts = append(opts, workflow.WithLogger(p.Logger))
	}
	if p.Metrics != nil {
		opts = append(opts, workflow.WithMetrics(p.Metrics))
	}

	b := workflow.NewBuilder(cfg.Name, opts...)
	root := b.RootScope()

	scopes := map[string]*workflow.Scope{config.RootScope: root}
	for _, s := range cfg.Scopes {
		scopes[s.Name] = workflow.NewScope(s.Name, root)
	}

	var errs []error
	for _, t := range cfg.Tasks {
		if _, err := b.AddTask(t.Name, scopes[t.Scope]); err != nil {
			errs = append(errs, err)
		}
	}

	return b, errors.Join(errs...)
}
