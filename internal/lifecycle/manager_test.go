package lifecycle

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type tracked struct {
	name     string
	log      *[]string
	startErr error
}

func (p *tracked) Name() string { return p.name }

func (p *tracked) Start(context.Context) error {
	*p.log = append(*p.log, "start:"+p.name)
	return p.startErr
}

func (p *tracked) Stop(context.Context) error {
	*p.log = append(*p.log, "stop:"+p.name)
	return nil
}

func TestManagerStartsInDependencyOrderStopsInReverse(t *testing.T) {
	var log []string
	store := &tracked{name: "store", log: &log}
	engine := &tracked{name: "engine", log: &log}
	worker := &tracked{name: "worker", log: &log}

	m := NewManager()
	require.NoError(t, m.Register(store))
	require.NoError(t, m.Register(engine, store))
	require.NoError(t, m.Register(worker, engine, store))

	ctx := context.Background()
	require.NoError(t, m.Start(ctx))
	assert.True(t, m.IsRunning(worker))
	require.NoError(t, m.Stop(ctx))
	assert.False(t, m.IsRunning(worker))

	assert.Equal(t, []string{
		"start:store", "start:engine", "start:worker",
		"stop:worker", "stop:engine", "stop:store",
	}, log)
}

func TestManagerRollsBackOnStartFailure(t *testing.T) {
	var log []string
	store := &tracked{name: "store", log: &log}
	broken := &tracked{name: "broken", log: &log, startErr: errors.New("boom")}

	m := NewManager()
	require.NoError(t, m.Register(store))
	require.NoError(t, m.Register(broken, store))

	err := m.Start(context.Background())
	require.Error(t, err)
	assert.False(t, m.IsRunning(store))
	assert.Equal(t, []string{"start:store", "start:broken", "stop:store"}, log)
}

func TestManagerRejectsUnknownDependency(t *testing.T) {
	var log []string
	m := NewManager()
	err := m.Register(&tracked{name: "a", log: &log}, &tracked{name: "ghost", log: &log})
	assert.Error(t, err)
}
