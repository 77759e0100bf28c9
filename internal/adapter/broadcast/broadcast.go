// Package broadcast implements port/broadcast.Broadcaster as a per-process,
// in-memory wake-up signal, the same shape as a pub/sub bus with no
// payload: subscribers only need to know "something changed", then
// re-query state themselves. Grounded on the same non-blocking-publish,
// buffered-channel-per-subscriber design used for the coordination
// backend's own in-process event bus.
package broadcast

import (
	"context"
	"sync"

	"github.com/agentfleet/coordinator/internal/port/broadcast"
)

type key struct {
	projectID string
	topic     broadcast.Topic
}

// Broadcaster fans out wake-ups to every current subscriber of a
// (project, topic) pair. Publish never blocks: a subscriber whose buffer
// is full has already been woken by an earlier publish and simply misses
// this one, which is fine since every waiter re-checks state on wake.
type Broadcaster struct {
	mu   sync.RWMutex
	subs map[key]map[*subscription]struct{}
}

func New() *Broadcaster {
	return &Broadcaster{subs: make(map[key]map[*subscription]struct{})}
}

type subscription struct {
	b     *Broadcaster
	k     key
	ch    chan struct{}
	once  sync.Once
}

func (s *subscription) Wait(ctx context.Context) error {
	select {
	case <-s.ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *subscription) Close() {
	s.once.Do(func() {
		s.b.mu.Lock()
		defer s.b.mu.Unlock()
		if set, ok := s.b.subs[s.k]; ok {
			delete(set, s)
			if len(set) == 0 {
				delete(s.b.subs, s.k)
			}
		}
	})
}

func (b *Broadcaster) Subscribe(projectID string, topic broadcast.Topic) broadcast.Subscription {
	k := key{projectID: projectID, topic: topic}
	sub := &subscription{b: b, k: k, ch: make(chan struct{}, 1)}

	b.mu.Lock()
	defer b.mu.Unlock()
	set, ok := b.subs[k]
	if !ok {
		set = make(map[*subscription]struct{})
		b.subs[k] = set
	}
	set[sub] = struct{}{}
	return sub
}

func (b *Broadcaster) Publish(projectID string, topic broadcast.Topic) {
	k := key{projectID: projectID, topic: topic}

	b.mu.RLock()
	defer b.mu.RUnlock()
	for sub := range b.subs[k] {
		select {
		case sub.ch <- struct{}{}:
		default:
		}
	}
}
