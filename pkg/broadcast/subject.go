// Package broadcast provides a multicast subject that replays its latest
// value to new receivers.
//
// Publishing never blocks: every receiver owns an unbounded queue drained
// by its own goroutine, so a slow consumer delays only itself.
package broadcast

import (
	"sync"

	"github.com/agentstation/wsi/pkg/errors"
)

// Subject is a hot, replay-latest multicast channel.
type Subject[T any] struct {
	mu        sync.Mutex
	receivers map[int]*Receiver[T]
	nextID    int
	latest    T
	hasLatest bool
	closed    bool
	err       error
}

// NewSubject creates an open subject with no value.
func NewSubject[T any]() *Subject[T] {
	return &Subject[T]{receivers: make(map[int]*Receiver[T])}
}

// Publish records v as the latest value and delivers it to every receiver.
// It returns ErrClosed once the subject is closed or failed.
func (s *Subject[T]) Publish(v T) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errors.ErrClosed
	}
	s.latest, s.hasLatest = v, true
	for _, r := range s.receivers {
		r.push(v)
	}
	return nil
}

// Latest returns the most recently published value.
func (s *Subject[T]) Latest() (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.latest, s.hasLatest
}

// Subscribe attaches a receiver. The latest value, if any, is delivered
// first. Subscribing to a failed subject yields a receiver that is already
// finished with the failure; a closed subject still replays its last value.
func (s *Subject[T]) Subscribe() *Receiver[T] {
	s.mu.Lock()
	defer s.mu.Unlock()

	r := newReceiver(s, s.nextID)
	s.nextID++
	if s.hasLatest && s.err == nil {
		r.push(s.latest)
	}
	if s.closed {
		r.finish(s.err)
		return r
	}
	s.receivers[r.id] = r
	return r
}

// Fail terminates the subject and all receivers with err.
func (s *Subject[T]) Fail(err error) {
	s.terminate(err)
}

// Close terminates the subject and all receivers without error.
func (s *Subject[T]) Close() {
	s.terminate(nil)
}

func (s *Subject[T]) terminate(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed, s.err = true, err
	for id, r := range s.receivers {
		r.finish(err)
		delete(s.receivers, id)
	}
}

// Err returns the failure passed to Fail, if any.
func (s *Subject[T]) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Len returns the number of attached receivers.
func (s *Subject[T]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.receivers)
}

func (s *Subject[T]) remove(id int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.receivers, id)
}

// Receiver is one consumer of a Subject.
type Receiver[T any] struct {
	subject *Subject[T]
	id      int
	out     chan T
	wake    chan struct{}
	done    chan struct{}
	once    sync.Once

	mu       sync.Mutex
	queue    []T
	finished bool
	err      error
}

func newReceiver[T any](s *Subject[T], id int) *Receiver[T] {
	r := &Receiver[T]{
		subject: s,
		id:      id,
		out:     make(chan T),
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	go r.pump()
	return r
}

// C returns the delivery channel. It is closed after the subject closes or
// fails and the queue drained, or after Cancel.
func (r *Receiver[T]) C() <-chan T {
	return r.out
}

// Err returns the subject failure once C is closed.
func (r *Receiver[T]) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// Cancel detaches the receiver. Queued values are dropped.
func (r *Receiver[T]) Cancel() {
	r.once.Do(func() {
		close(r.done)
		r.subject.remove(r.id)
	})
}

func (r *Receiver[T]) push(v T) {
	r.mu.Lock()
	r.queue = append(r.queue, v)
	r.mu.Unlock()
	r.signal()
}

func (r *Receiver[T]) finish(err error) {
	r.mu.Lock()
	r.finished, r.err = true, err
	r.mu.Unlock()
	r.signal()
}

func (r *Receiver[T]) signal() {
	select {
	case r.wake <- struct{}{}:
	default:
	}
}

func (r *Receiver[T]) pump() {
	defer close(r.out)
	var zero T
	for {
		r.mu.Lock()
		if len(r.queue) == 0 {
			finished := r.finished
			r.mu.Unlock()
			if finished {
				return
			}
			select {
			case <-r.wake:
				continue
			case <-r.done:
				return
			}
		}
		v := r.queue[0]
		r.queue[0] = zero
		r.queue = r.queue[1:]
		r.mu.Unlock()

		select {
		case r.out <- v:
		case <-r.done:
			return
		}
	}
}
