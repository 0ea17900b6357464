package anythread

import (
	"sync"
)

// stubChannel is a hand-rolled EventChannel for tests that need to observe
// posts and registrations without running a Loop. Successful posts are
// recorded and announced on the posted channel.
type stubChannel struct {
	mu          sync.Mutex
	events      []Event
	postErr     error
	owner       func() bool
	connects    int
	disconnects int
	nextID      HandlerID
	handlers    map[HandlerID]Handler
	posted      chan struct{}
}

func newStubChannel() *stubChannel {
	return &stubChannel{
		nextID:   1,
		handlers: make(map[HandlerID]Handler),
		posted:   make(chan struct{}, 64),
	}
}

func (s *stubChannel) Post(ev Event) error {
	s.mu.Lock()
	if s.postErr != nil {
		err := s.postErr
		s.mu.Unlock()
		return err
	}
	s.events = append(s.events, ev)
	s.mu.Unlock()
	s.posted <- struct{}{}
	return nil
}

func (s *stubChannel) Connect(target any, kind EventKind, handler Handler) HandlerID {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connects++
	id := s.nextID
	s.nextID++
	s.handlers[id] = handler
	return id
}

func (s *stubChannel) Disconnect(id HandlerID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.handlers[id]; !ok {
		return false
	}
	delete(s.handlers, id)
	s.disconnects++
	return true
}

func (s *stubChannel) IsOwnerThread() bool {
	if s.owner != nil {
		return s.owner()
	}
	return false
}

// take removes and returns all recorded events.
func (s *stubChannel) take() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	events := s.events
	s.events = nil
	return events
}

// connectCount returns how many times Connect has been called.
func (s *stubChannel) connectCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connects
}
