package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
)

var ErrQueueStopped = errors.New("queue stopped")

type task struct {
	ctx    context.Context
	fn     func() error
	result chan error
}

// Queue runs tasks one at a time on a single worker goroutine. Everything
// that touches the call registry or the device record goes through it.
type Queue struct {
	tasks chan task
	quit  chan struct{}
	done  chan struct{}
	once  sync.Once
}

func NewQueue(size int) *Queue {
	return &Queue{
		tasks: make(chan task, size),
		quit:  make(chan struct{}),
		done:  make(chan struct{}),
	}
}

func (q *Queue) Run() {
	defer close(q.done)
	for {
		select {
		case <-q.quit:
			log.Debug().Int("pending", len(q.tasks)).Msg("Queue stopped")
			return
		case t := <-q.tasks:
			q.run(t)
		}
	}
}

func (q *Queue) run(t task) {
	var err error
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("Queued task panicked")
			err = fmt.Errorf("task panicked: %v", r)
		}
		if t.result != nil {
			t.result <- err
		}
	}()

	// A caller that gave up while the task was waiting must not see it run.
	if t.ctx != nil {
		if err = t.ctx.Err(); err != nil {
			return
		}
	}
	err = t.fn()
}

// Do enqueues fn and waits for its result. ctx bounds the time spent waiting
// for fn to start; once started, fn runs to completion.
// Must not be called from inside a queued task.
func (q *Queue) Do(ctx context.Context, fn func() error) error {
	t := task{ctx: ctx, fn: fn, result: make(chan error, 1)}
	select {
	case q.tasks <- t:
	case <-ctx.Done():
		return ctx.Err()
	case <-q.quit:
		return ErrQueueStopped
	}
	select {
	case err := <-t.result:
		return err
	case <-q.done:
		return ErrQueueStopped
	}
}

// Go enqueues fn without waiting for it.
func (q *Queue) Go(fn func()) {
	t := task{fn: func() error { fn(); return nil }}
	select {
	case q.tasks <- t:
	case <-q.quit:
	}
}

// Stop ends the worker after the running task. Run must have been started.
func (q *Queue) Stop() {
	q.once.Do(func() { close(q.quit) })
	<-q.done
}
