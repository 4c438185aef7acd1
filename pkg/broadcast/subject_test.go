package broadcast_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/wsi/pkg/broadcast"
	pkgerrors "github.com/agentstation/wsi/pkg/errors"
)

func receive[T any](t *testing.T, r *broadcast.Receiver[T]) T {
	t.Helper()
	select {
	case v, ok := <-r.C():
		require.True(t, ok, "channel closed")
		return v
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for value")
	}
	var zero T
	return zero
}

func waitClosed[T any](t *testing.T, r *broadcast.Receiver[T]) {
	t.Helper()
	deadline := time.After(time.Second)
	for {
		select {
		case _, ok := <-r.C():
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("receiver not closed")
		}
	}
}

func TestReplayLatest(t *testing.T) {
	s := broadcast.NewSubject[int]()
	_, ok := s.Latest()
	assert.False(t, ok)

	require.NoError(t, s.Publish(1))
	require.NoError(t, s.Publish(2))

	r := s.Subscribe()
	defer r.Cancel()
	assert.Equal(t, 2, receive(t, r))

	latest, ok := s.Latest()
	assert.True(t, ok)
	assert.Equal(t, 2, latest)
}

func TestOrderPreservedForSlowReceivers(t *testing.T) {
	s := broadcast.NewSubject[int]()
	r := s.Subscribe()
	defer r.Cancel()

	for i := range 100 {
		require.NoError(t, s.Publish(i))
	}
	for i := range 100 {
		assert.Equal(t, i, receive(t, r))
	}
}

func TestMulticast(t *testing.T) {
	s := broadcast.NewSubject[string]()
	a, b := s.Subscribe(), s.Subscribe()
	defer a.Cancel()
	defer b.Cancel()
	assert.Equal(t, 2, s.Len())

	require.NoError(t, s.Publish("x"))
	assert.Equal(t, "x", receive(t, a))
	assert.Equal(t, "x", receive(t, b))
}

func TestCancel(t *testing.T) {
	s := broadcast.NewSubject[int]()
	r := s.Subscribe()
	r.Cancel()
	r.Cancel()
	assert.Equal(t, 0, s.Len())
	waitClosed(t, r)
	require.NoError(t, s.Publish(1))
}

func TestFail(t *testing.T) {
	s := broadcast.NewSubject[int]()
	r := s.Subscribe()
	require.NoError(t, s.Publish(7))

	boom := errors.New("unsubscribe unavailable")
	s.Fail(boom)

	assert.Equal(t, 7, receive(t, r))
	waitClosed(t, r)
	assert.ErrorIs(t, r.Err(), boom)
	assert.ErrorIs(t, s.Err(), boom)
	assert.ErrorIs(t, s.Publish(8), pkgerrors.ErrClosed)

	late := s.Subscribe()
	waitClosed(t, late)
	assert.ErrorIs(t, late.Err(), boom)
}

func TestClose(t *testing.T) {
	s := broadcast.NewSubject[int]()
	require.NoError(t, s.Publish(3))
	s.Close()
	s.Close()

	r := s.Subscribe()
	assert.Equal(t, 3, receive(t, r))
	waitClosed(t, r)
	assert.NoError(t, r.Err())
}
