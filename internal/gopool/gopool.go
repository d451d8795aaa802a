/*
 * Copyright 2025 goftrace Authors
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

// Package gopool is a small aging worker pool used by the dump engine to
// fan the per-TID ".dat" file writes of a uftrace data directory out
// across goroutines: distinct TIDs have no ordering dependency on one
// another (spec §5), so there is nothing to gain from writing them one at
// a time, and nothing to lose by running them concurrently.
package gopool

import (
	"log"
	"runtime/debug"
	"sync/atomic"
	"time"
)

// Option configures a Pool's worker lifecycle.
type Option struct {
	// MaxIdleWorkers bounds how many workers a Pool keeps alive between
	// bursts of work instead of letting them exit immediately.
	MaxIdleWorkers int

	// WorkerMaxAge bounds a worker's lifetime: once it has been alive
	// longer than this, it exits after the next job (or wake-up) it runs.
	WorkerMaxAge time.Duration

	// QueueDepth bounds the pending-task channel. A submission that would
	// block past this depth instead spawns a bare goroutine, trading pool
	// reuse for forward progress.
	QueueDepth int
}

// DefaultOption returns tuned defaults for dump-engine fan-out: a data
// directory rarely has more than a few hundred threads, so the pool need
// not be sized for the general-purpose case.
func DefaultOption() *Option {
	return &Option{
		MaxIdleWorkers: 64,
		WorkerMaxAge:   10 * time.Second,
		QueueDepth:     256,
	}
}

var defaultPool = NewPool("dump-fanout", nil)

// Go submits f to the package-level default pool.
func Go(f func()) {
	defaultPool.Go(f)
}

// Pool is a goroutine pool: workers pick jobs off a shared queue and exit
// once older than WorkerMaxAge, so a burst of TID writes doesn't leave a
// matching burst of parked goroutines behind it. A job that panics is
// logged and does not take down the worker.
type Pool struct {
	name string

	live    int32
	maxIdle int32
	maxAge  int64 // milliseconds

	queue       chan func()
	tickerAtMS  int64
	spawnWorker func()
}

// NewPool creates a named Pool. A nil Option falls back to DefaultOption.
func NewPool(name string, o *Option) *Pool {
	if o == nil {
		o = DefaultOption()
	}
	p := &Pool{
		name:    name,
		queue:   make(chan func(), o.QueueDepth),
		maxAge:  o.WorkerMaxAge.Milliseconds(),
		maxIdle: int32(o.MaxIdleWorkers),
	}
	// captured once so p.spawnWorker() doesn't allocate a new closure per call.
	p.spawnWorker = p.runWorker
	return p
}

// Go submits f for execution. If the queue is full, f runs on a fresh
// goroutine instead of blocking the caller.
func (p *Pool) Go(f func()) {
	select {
	case p.queue <- f:
	default:
		go p.runJob(f)
		return
	}
	if len(p.queue) == 0 {
		return // a worker was already waiting for this job
	}
	go p.spawnWorker()
}

func (p *Pool) runJob(f func()) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("gopool: panic in %q: %v\n%s", p.name, r, debug.Stack())
		}
	}()
	f()
}

// Live reports how many workers are currently running (not queued jobs).
func (p *Pool) Live() int {
	return int(atomic.LoadInt32(&p.live))
}

func (p *Pool) runWorker() {
	id := atomic.AddInt32(&p.live, 1)
	defer atomic.AddInt32(&p.live, -1)

	if id > p.maxIdle {
		// over budget: drain whatever is queued right now and exit rather
		// than linger as a long-lived idle worker.
		for {
			select {
			case f := <-p.queue:
				p.runJob(f)
			default:
				return
			}
		}
	}

	bornAt := time.Now().UnixMilli()
	for f := range p.queue {
		p.runJob(f)

		if atomic.LoadInt64(&p.tickerAtMS) == 0 {
			now := time.Now().UnixMilli()
			if atomic.CompareAndSwapInt64(&p.tickerAtMS, 0, now) {
				go p.ageWorkers()
			}
		}
		if time.Now().UnixMilli()-bornAt > p.maxAge {
			return
		}
	}
}

// wakeJob is pushed by ageWorkers purely to unblock a worker's `range
// p.queue` long enough for it to re-check its own age.
func wakeJob() {}

// ageWorkers pushes one wakeJob onto the queue per tick, so a parked
// worker wakes up and, if it is past its max age, exits, rather than
// relying on a job arriving naturally.
func (p *Pool) ageWorkers() {
	defer atomic.StoreInt64(&p.tickerAtMS, 0)

	interval := time.Duration(p.maxAge) * time.Millisecond / 100
	if interval < time.Millisecond {
		interval = time.Millisecond
	}

	t := time.NewTicker(interval)
	defer t.Stop()

	for now := range t.C {
		if p.Live() == 0 {
			return
		}
		atomic.StoreInt64(&p.tickerAtMS, now.UnixMilli())
		p.queue <- wakeJob
	}
}
