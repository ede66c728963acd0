// Package lifecycle starts and stops the pipeline's long-lived pieces
// (stores, rule reloader, metrics listener, source workers) in
// dependency order.
package lifecycle

import "context"

// Component is anything the manager can start and stop. Start must be
// safe to call once per process; Stop must honour the context deadline.
type Component interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Name() string
}

// Func adapts plain start/stop functions into a Component.
type Func struct {
	ComponentName string
	StartFunc     func(ctx context.Context) error
	StopFunc      func(ctx context.Context) error
}

func (f *Func) Name() string { return f.ComponentName }

func (f *Func) Start(ctx context.Context) error {
	if f.StartFunc == nil {
		return nil
	}
	return f.StartFunc(ctx)
}

func (f *Func) Stop(ctx context.Context) error {
	if f.StopFunc == nil {
		return nil
	}
	return f.StopFunc(ctx)
}
