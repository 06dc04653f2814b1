package operations

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/okinaau/iloader/internal/operation"
)

// Run records the events of one started operation.
type Run struct {
	ID   string
	Name string

	mu      sync.Mutex
	events  []operation.Event
	done    bool
	err     error
	changed chan struct{}
}

func (r *Run) append(ev operation.Event) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	close(r.changed)
	r.changed = make(chan struct{})
	r.mu.Unlock()
}

func (r *Run) finish(err error) {
	r.mu.Lock()
	r.done = true
	r.err = err
	close(r.changed)
	r.changed = make(chan struct{})
	r.mu.Unlock()
}

// Since returns the events after the first n, a channel closed on the next
// change and whether the operation has returned.
func (r *Run) Since(n int) ([]operation.Event, <-chan struct{}, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var evs []operation.Event
	if n < len(r.events) {
		evs = append(evs, r.events[n:]...)
	}
	return evs, r.changed, r.done
}

// Err is the error the operation returned.
func (r *Run) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// Store keeps the runs started through the daemon.
type Store struct {
	mu   sync.Mutex
	runs map[string]*Run
}

func NewStore() *Store {
	return &Store{runs: make(map[string]*Run)}
}

// Start runs fn in the background with a detached context and records
// every event it emits.
func (s *Store) Start(name string, fn func(ctx context.Context, events chan<- operation.Event) error) *Run {
	r := &Run{
		ID:      uuid.New().String(),
		Name:    name,
		changed: make(chan struct{}),
	}
	s.mu.Lock()
	s.runs[r.ID] = r
	s.mu.Unlock()

	events := make(chan operation.Event)
	var err error
	go func() {
		err = fn(context.Background(), events)
		close(events)
	}()
	go func() {
		for ev := range events {
			r.append(ev)
		}
		r.finish(err)
	}()
	return r
}

func (s *Store) Get(id string) (*Run, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.runs[id]
	return r, ok
}
