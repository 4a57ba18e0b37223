package presence

import (
	"sync"

	"github.com/google/uuid"

	"github.com/S-Corkum/crdt-engine/pkg/timestamp"
)

// onlineSet tracks watch-stream membership as an Observed-Remove Set: each
// DOCUMENT_WATCHED adds a fresh tag for the actor rather than flipping a
// plain boolean, so two watch events for the same actor arriving out of
// order (or from two different transport connections) both converge to
// "online" instead of racing to overwrite one another. DOCUMENT_UNWATCHED
// removes every tag observed for that actor so far.
type onlineSet struct {
	mu   sync.RWMutex
	tags map[timestamp.ActorID]map[uuid.UUID]struct{}
}

func newOnlineSet() *onlineSet {
	return &onlineSet{tags: make(map[timestamp.ActorID]map[uuid.UUID]struct{})}
}

// add records a new watch observation for actor.
func (s *onlineSet) add(actor timestamp.ActorID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.tags[actor] == nil {
		s.tags[actor] = make(map[uuid.UUID]struct{})
	}
	s.tags[actor][uuid.New()] = struct{}{}
}

// remove clears every observation for actor, the "observed-remove" half of
// the OR-Set: it only ever removes tags this replica has actually seen.
func (s *onlineSet) remove(actor timestamp.ActorID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tags, actor)
}

func (s *onlineSet) contains(actor timestamp.ActorID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tags[actor]) > 0
}

func (s *onlineSet) elements() []timestamp.ActorID {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]timestamp.ActorID, 0, len(s.tags))
	for actor, tags := range s.tags {
		if len(tags) > 0 {
			out = append(out, actor)
		}
	}
	return out
}

// clone returns an independent onlineSet with the same tags.
func (s *onlineSet) clone() *onlineSet {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := newOnlineSet()
	for actor, tags := range s.tags {
		cp := make(map[uuid.UUID]struct{}, len(tags))
		for tag := range tags {
			cp[tag] = struct{}{}
		}
		out.tags[actor] = cp
	}
	return out
}
