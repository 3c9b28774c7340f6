/*
 * Copyright 2025 SREDiag Authors
 * Copyright 2023 CloudWeGo Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package poller

import (
	"fmt"

	queuepkg "github.com/Workiva/go-datastructures/queue"
)

// eventQueue is a bounded MPMC queue of events. Capacity is rounded up to a
// power of two.
type eventQueue struct {
	rb *queuepkg.RingBuffer
}

func newEventQueue(size int) *eventQueue {
	return &eventQueue{rb: queuepkg.NewRingBuffer(uint64(size))}
}

// offer enqueues ev without blocking. It returns false when the queue is
// full or disposed.
func (q *eventQueue) offer(ev Event) bool {
	ok, err := q.rb.Offer(ev)
	return err == nil && ok
}

// pop blocks until an event is available or the queue is disposed.
func (q *eventQueue) pop() (Event, error) {
	item, err := q.rb.Get()
	if err != nil {
		return Event{}, err
	}
	ev, ok := item.(Event)
	if !ok {
		return Event{}, fmt.Errorf("invalid queue element type %T", item)
	}
	return ev, nil
}

func (q *eventQueue) Len() int { return int(q.rb.Len()) }

func (q *eventQueue) Cap() int { return int(q.rb.Cap()) }

// dispose wakes blocked readers; queued events are discarded.
func (q *eventQueue) dispose() { q.rb.Dispose() }
