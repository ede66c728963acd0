package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/finradar/finradar/internal/logging"
)

// Manager starts components in dependency order and stops them in
// reverse, each stop bounded by the shutdown timeout.
type Manager struct {
	components   []Component
	dependencies map[Component][]Component
	running      map[Component]bool
	started      []Component

	shutdownTimeout time.Duration
	mu              sync.Mutex
	logger          *logging.Logger
}

// NewManager builds a manager with a 30 second per-component shutdown
// grace period.
func NewManager() *Manager {
	return &Manager{
		dependencies:    make(map[Component][]Component),
		running:         make(map[Component]bool),
		shutdownTimeout: 30 * time.Second,
		logger:          logging.GetLogger("lifecycle"),
	}
}

// SetShutdownTimeout overrides the per-component stop grace period.
func (m *Manager) SetShutdownTimeout(timeout time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.shutdownTimeout = timeout
}

// Register adds a component. Dependencies must already be registered;
// a component starts after all of them and stops before any of them.
func (m *Manager) Register(component Component, dependsOn ...Component) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if component == nil {
		return errors.New("cannot register nil component")
	}
	if component.Name() == "" {
		return errors.New("component must have a non-empty name")
	}
	for _, c := range m.components {
		if c == component {
			return fmt.Errorf("component %s already registered", component.Name())
		}
	}
	for _, dep := range dependsOn {
		if !m.isRegistered(dep) {
			return fmt.Errorf("dependency %s of %s not registered", dep.Name(), component.Name())
		}
	}

	m.components = append(m.components, component)
	m.dependencies[component] = dependsOn
	return nil
}

func (m *Manager) isRegistered(c Component) bool {
	for _, existing := range m.components {
		if existing == c {
			return true
		}
	}
	return false
}

// Start brings every component up in dependency order. A failure rolls
// back the components already started, in reverse order.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.started = nil
	for _, component := range m.sorted() {
		m.logger.Info("starting %s", component.Name())
		if err := component.Start(ctx); err != nil {
			m.logger.Error("start %s: %v", component.Name(), err)
			m.rollback()
			return fmt.Errorf("start %s: %w", component.Name(), err)
		}
		m.running[component] = true
		m.started = append(m.started, component)
	}
	return nil
}

// sorted returns components in dependency order. Registration order
// already guarantees dependencies come first; the DFS keeps that stable
// when registration interleaves.
func (m *Manager) sorted() []Component {
	visited := make(map[Component]bool)
	var out []Component
	var visit func(Component)
	visit = func(c Component) {
		if visited[c] {
			return
		}
		visited[c] = true
		for _, dep := range m.dependencies[c] {
			visit(dep)
		}
		out = append(out, c)
	}
	for _, c := range m.components {
		visit(c)
	}
	return out
}

func (m *Manager) rollback() {
	for i := len(m.started) - 1; i >= 0; i-- {
		component := m.started[i]
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := component.Stop(ctx); err != nil {
			m.logger.Warn("rollback stop %s: %v", component.Name(), err)
		}
		cancel()
		m.running[component] = false
	}
	m.started = nil
}

// Stop brings the started components down in reverse order. Errors are
// logged, not returned; one component failing to stop must not leave the
// rest running.
func (m *Manager) Stop(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := len(m.started) - 1; i >= 0; i-- {
		component := m.started[i]
		if !m.running[component] {
			continue
		}
		m.logger.Info("stopping %s", component.Name())

		componentCtx, cancel := context.WithTimeout(ctx, m.shutdownTimeout)
		err := component.Stop(componentCtx)
		cancel()

		switch {
		case errors.Is(err, context.DeadlineExceeded):
			m.logger.Warn("%s exceeded the shutdown grace period", component.Name())
		case err != nil:
			m.logger.Error("stop %s: %v", component.Name(), err)
		}
		m.running[component] = false
	}
	m.started = nil
	return nil
}

// IsRunning reports whether the component started and has not stopped.
func (m *Manager) IsRunning(component Component) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running[component]
}
