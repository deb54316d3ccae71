package loop

import (
	log "github.com/sirupsen/logrus"
)

// DefaultPublishQueue is the default capacity of the publish queue.
const DefaultPublishQueue = 64

// publishQueue hands events from the loop goroutine to a publisher running
// on its own goroutine.
type publishQueue struct {
	events chan Event
	done   chan struct{}
}

func newPublishQueue(p Publisher, size int) *publishQueue {
	q := &publishQueue{
		events: make(chan Event, size),
		done:   make(chan struct{}),
	}
	go func() {
		defer close(q.done)
		for ev := range q.events {
			if err := p.Publish(ev); err != nil {
				log.WithFields(log.Fields{"input": ev.Input, "error": err}).Warn("publish failed")
			}
		}
	}()
	return q
}

// offer enqueues ev without blocking. It reports false if the queue is full.
func (q *publishQueue) offer(ev Event) bool {
	select {
	case q.events <- ev:
		return true
	default:
		return false
	}
}

// close waits until every queued event has been handed to the publisher.
func (q *publishQueue) close() {
	close(q.events)
	<-q.done
}
