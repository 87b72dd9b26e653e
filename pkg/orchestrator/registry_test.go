package orchestrator

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeService struct {
	name       string
	failStart  bool
	started    bool
	stopped    bool
	healthErr  error
}

func (s *fakeService) Name() string { return s.name }
func (s *fakeService) Start(ctx context.Context) error {
	if s.failStart {
		return errors.New("boom")
	}
	s.started = true
	return nil
}
func (s *fakeService) Stop(ctx context.Context) error {
	s.stopped = true
	return nil
}
func (s *fakeService) HealthCheck(ctx context.Context) error { return s.healthErr }

func TestStartAllSucceedsInOrder(t *testing.T) {
	r := NewRegistry(nil)
	a := &fakeService{name: "a"}
	b := &fakeService{name: "b"}
	r.Register(a)
	r.Register(b)

	require.NoError(t, r.StartAll(context.Background()))
	require.True(t, a.started)
	require.True(t, b.started)
	require.Len(t, r.Started(), 2)
}

func TestStartAllRewindsOnFailure(t *testing.T) {
	r := NewRegistry(nil)
	a := &fakeService{name: "a"}
	b := &fakeService{name: "b", failStart: true}
	r.Register(a)
	r.Register(b)

	err := r.StartAll(context.Background())
	require.Error(t, err)
	require.True(t, a.started)
	require.True(t, a.stopped, "already-started service should be rewound")
	require.Len(t, r.Started(), 0)
}

func TestStopAllReverseOrder(t *testing.T) {
	r := NewRegistry(nil)
	var stopOrder []string
	a := &stopOrderService{name: "a", log: &stopOrder}
	b := &stopOrderService{name: "b", log: &stopOrder}
	r.Register(a)
	r.Register(b)

	require.NoError(t, r.StartAll(context.Background()))
	r.StopAll(context.Background())

	require.Equal(t, []string{"b", "a"}, stopOrder)
}

type stopOrderService struct {
	name string
	log  *[]string
}

func (s *stopOrderService) Name() string                        { return s.name }
func (s *stopOrderService) Start(ctx context.Context) error      { return nil }
func (s *stopOrderService) Stop(ctx context.Context) error {
	*s.log = append(*s.log, s.name)
	return nil
}
func (s *stopOrderService) HealthCheck(ctx context.Context) error { return nil }
