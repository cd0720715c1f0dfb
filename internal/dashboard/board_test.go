package dashboard

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/iliyamo/venue-occupancy-map/internal/model"
)

type result struct {
	areas []model.AreaStatus
	err   error
}

// gatedSource answers the n-th ListStatus call with whatever is sent on
// gates[n].
type gatedSource struct {
	mu    sync.Mutex
	calls int
	gates []chan result
}

func newGatedSource(n int) *gatedSource {
	s := &gatedSource{}
	for i := 0; i < n; i++ {
		s.gates = append(s.gates, make(chan result, 1))
	}
	return s
}

func (s *gatedSource) ListStatus(ctx context.Context) ([]model.AreaStatus, error) {
	s.mu.Lock()
	gate := s.gates[s.calls]
	s.calls++
	s.mu.Unlock()
	select {
	case r := <-gate:
		return r.areas, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *gatedSource) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type staticSource struct {
	mu    sync.Mutex
	areas []model.AreaStatus
	err   error
	calls int
}

func (s *staticSource) ListStatus(context.Context) ([]model.AreaStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return s.areas, s.err
}

func area(id uint64, name string, visitors int) model.AreaStatus {
	return model.AreaStatus{Area: model.Area{ID: id, Name: name, Width: 10, Height: 10}, Visitors: visitors}
}

func TestRefresh_ReplacesSnapshot(t *testing.T) {
	src := &staticSource{areas: []model.AreaStatus{area(1, "A1", 5), area(2, "A2", 9)}}
	b := NewBoard(src, zap.NewNop(), time.Second)

	require.NoError(t, b.Refresh(context.Background()))
	assert.Len(t, b.Snapshot(), 2)
	st := b.Status()
	assert.Equal(t, uint64(1), st.Sequence)
	assert.NotNil(t, st.RefreshedAt)
	assert.Empty(t, st.LastError)
	assert.False(t, st.Refreshing)

	src.areas = []model.AreaStatus{area(3, "B1", 0)}
	require.NoError(t, b.Refresh(context.Background()))
	require.Len(t, b.Snapshot(), 1)
	assert.Equal(t, "B1", b.Snapshot()[0].Name)
}

func TestRefresh_FailureKeepsPreviousSnapshot(t *testing.T) {
	src := &staticSource{areas: []model.AreaStatus{area(1, "A1", 5)}}
	b := NewBoard(src, zap.NewNop(), 0)
	require.NoError(t, b.Refresh(context.Background()))

	src.err = errors.New("db down")
	err := b.Refresh(context.Background())
	require.Error(t, err)
	assert.Len(t, b.Snapshot(), 1)
	assert.Equal(t, FetchFailedMessage, b.Status().LastError)
	assert.Equal(t, uint64(1), b.Status().Sequence)

	src.err = nil
	require.NoError(t, b.Refresh(context.Background()))
	assert.Empty(t, b.Status().LastError)
}

func TestRefresh_LateOlderResponseIsDiscarded(t *testing.T) {
	src := newGatedSource(2)
	b := NewBoard(src, zap.NewNop(), 0)
	ctx := context.Background()

	done1 := make(chan error, 1)
	go func() { done1 <- b.Refresh(ctx) }()
	require.Eventually(t, func() bool { return src.Calls() == 1 }, time.Second, time.Millisecond)

	done2 := make(chan error, 1)
	go func() { done2 <- b.Refresh(ctx) }()
	require.Eventually(t, func() bool { return src.Calls() == 2 }, time.Second, time.Millisecond)
	assert.True(t, b.Status().Refreshing)

	src.gates[1] <- result{areas: []model.AreaStatus{area(2, "newer", 1)}}
	require.NoError(t, <-done2)
	src.gates[0] <- result{areas: []model.AreaStatus{area(1, "older", 1)}}
	require.NoError(t, <-done1)

	snap := b.Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, "newer", snap[0].Name)
	assert.Equal(t, uint64(2), b.Status().Sequence)
	assert.False(t, b.Status().Refreshing)
}

func TestRefresh_StaleFailureDoesNotRaiseNotification(t *testing.T) {
	src := newGatedSource(2)
	b := NewBoard(src, zap.NewNop(), 0)
	ctx := context.Background()

	done1 := make(chan error, 1)
	go func() { done1 <- b.Refresh(ctx) }()
	require.Eventually(t, func() bool { return src.Calls() == 1 }, time.Second, time.Millisecond)
	src.gates[1] <- result{areas: []model.AreaStatus{area(1, "A1", 3)}}
	require.NoError(t, b.Refresh(ctx))

	src.gates[0] <- result{err: errors.New("timeout")}
	require.Error(t, <-done1)
	assert.Empty(t, b.Status().LastError)
	assert.Len(t, b.Snapshot(), 1)
}

func TestSelect(t *testing.T) {
	src := &staticSource{areas: []model.AreaStatus{area(1, "A1", 5)}}
	b := NewBoard(src, nil, 0)
	require.NoError(t, b.Refresh(context.Background()))

	var got []model.AreaStatus
	b.OnSelect(func(a model.AreaStatus) { got = append(got, a) })

	a, err := b.Select(1)
	require.NoError(t, err)
	assert.Equal(t, "A1", a.Name)
	require.Len(t, got, 1)
	assert.Equal(t, 5, got[0].Visitors)

	_, err = b.Select(42)
	assert.ErrorIs(t, err, ErrAreaNotFound)
	assert.Len(t, got, 1)
}

func TestStart_RefreshesImmediatelyAndPeriodically(t *testing.T) {
	src := &staticSource{areas: []model.AreaStatus{area(1, "A1", 5)}}
	b := NewBoard(src, zap.NewNop(), 0)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	b.Start(ctx, 10*time.Millisecond)
	require.Eventually(t, func() bool { return b.Status().Count == 1 }, time.Second, time.Millisecond)
	require.Eventually(t, func() bool {
		src.mu.Lock()
		defer src.mu.Unlock()
		return src.calls >= 3
	}, time.Second, 5*time.Millisecond)
}
