// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package throttle

import (
	"slices"
	"sync"
	"time"

	"github.com/bureau-foundation/puppet/lib/clock"
)

// Queue is a leading-edge debounce of T values. Create with New.
type Queue[T any] struct {
	window time.Duration
	clock  clock.Clock

	mu          sync.Mutex
	subscribers []*Subscription[T]
	delivered   bool
	lastDeliver time.Time
	dropped     uint64
}

// Subscription is one registered consumer.
type Subscription[T any] struct {
	queue    *Queue[T]
	consumer func(T)
}

// New returns an idle queue. A nil clock uses the real clock.
func New[T any](window time.Duration, c clock.Clock) *Queue[T] {
	if window <= 0 {
		panic("throttle: window must be positive")
	}
	if c == nil {
		c = clock.Real()
	}
	return &Queue[T]{window: window, clock: c}
}

// Window returns the quiet period.
func (q *Queue[T]) Window() time.Duration { return q.window }

// Push offers item. It reports whether the item was delivered; false
// means it fell inside the current window and was dropped.
func (q *Queue[T]) Push(item T) bool {
	q.mu.Lock()
	now := q.clock.Now()
	if q.delivered && now.Sub(q.lastDeliver) < q.window {
		q.dropped++
		q.mu.Unlock()
		return false
	}
	q.delivered = true
	q.lastDeliver = now
	subscribers := slices.Clone(q.subscribers)
	q.mu.Unlock()

	for _, subscription := range subscribers {
		subscription.consumer(item)
	}
	return true
}

// Subscribe registers consumer for delivered items.
func (q *Queue[T]) Subscribe(consumer func(T)) *Subscription[T] {
	if consumer == nil {
		panic("throttle: nil consumer")
	}
	subscription := &Subscription[T]{queue: q, consumer: consumer}
	q.mu.Lock()
	q.subscribers = append(q.subscribers, subscription)
	q.mu.Unlock()
	return subscription
}

// Dropped returns how many pushes have been dropped since New.
func (q *Queue[T]) Dropped() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}

// Cancel stops deliveries to the subscription. Returns false if it was
// already cancelled.
func (s *Subscription[T]) Cancel() bool {
	if s == nil {
		return false
	}
	q := s.queue
	q.mu.Lock()
	defer q.mu.Unlock()
	index := slices.Index(q.subscribers, s)
	if index < 0 {
		return false
	}
	q.subscribers = slices.Delete(slices.Clone(q.subscribers), index, index+1)
	return true
}
