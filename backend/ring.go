// Copyright 2024 goftrace Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

//go:build linux && amd64

package backend

import "sync/atomic"

// ring is the single, process-wide event ring. It is allocated by the
// frontend and handed to the backend once via Init; the backend never owns
// the memory behind events, only the index into it. Ring and per-thread
// shadow stacks are intentionally leaked: the hook may fire at any later
// point, including during ordinary process teardown.
var (
	events      []Event
	ringLength  uint64
	overwriting uint32 // atomic bool, set at Init, read-only thereafter
	enabled     uint32 // atomic bool, relaxed, observed by the hook on every call
	initialized uint32 // atomic bool, guards idempotent Init
)

// Init installs buf as the shared event ring. A second call is a silent
// no-op (AlreadyInitialized, per spec semantics), matching the spec's
// requirement that the ring pointer is set exactly once per process
// lifetime. len(buf) must exceed MaxStackHeight or Init panics, since the
// ring must always be able to reserve a trailing margin for in-flight
// returns.
func Init(buf []Event, ov bool) {
	if len(buf) <= MaxStackHeight {
		panic("backend: ring length must exceed MaxStackHeight")
	}
	if !atomic.CompareAndSwapUint32(&initialized, 0, 1) {
		return // AlreadyInitialized: silently ignored
	}
	events = buf
	ringLength = uint64(len(buf))
	if ov {
		atomic.StoreUint32(&overwriting, 1)
	}
	atomic.StoreUint32(&enabled, 1)
	hookFastEnabled = 1
}

// Enable and Disable toggle the hook's early-exit check. Disable is the
// sole cancellation primitive; it's observed cooperatively by the entry
// hook on its next invocation. In-flight trampolines still run to
// completion and emit their Exit, which is why record reserves a
// MaxStackHeight tail in halting mode.
func Enable() {
	atomic.StoreUint32(&enabled, 1)
	hookFastEnabled = 1
}

func Disable() {
	atomic.StoreUint32(&enabled, 0)
	hookFastEnabled = 0
}

// Enabled reports the current tracing state with relaxed semantics: there
// is no happens-before requirement between Enable/Disable and subsequent
// record calls.
func Enabled() bool { return atomic.LoadUint32(&enabled) != 0 }

// record appends an event to the ring. It fetch-adds the global index
// first; in halting mode, once the returned index reaches ringLength -
// MaxStackHeight, tracing is atomically disabled and the record is
// abandoned. This leaves at least MaxStackHeight trailing slots so every
// currently active instrumented frame can still land its Exit.
//
// In overwriting mode there is no such check: the ring always wraps, and a
// late reader of an overwritten slot may observe torn state, mitigated by
// disabling before reading (see frontend.Handle.takePointer).
func record(e Event) {
	idx := atomic.AddUint64(&index, 1) - 1
	if atomic.LoadUint32(&overwriting) == 0 && idx >= ringLength-MaxStackHeight {
		atomic.StoreUint32(&enabled, 0)
		hookFastEnabled = 0
		return
	}
	events[idx%ringLength] = e
}

// index is the global monotonically increasing write cursor. The slot for
// the i-th event is index mod ringLength.
var index uint64

// CurrentIndex returns the current value of the global ring index.
func CurrentIndex() uint64 { return atomic.LoadUint64(&index) }

// TakeEvents reclaims the backing slice of the ring, handing ownership to
// the caller (the frontend's dump path). It must only be called after
// Disable has taken effect and no further record calls are in flight.
func TakeEvents() []Event {
	buf := events
	events = nil
	return buf
}

// IsOverwriting reports the ring's wrap policy, fixed at Init.
func IsOverwriting() bool { return atomic.LoadUint32(&overwriting) != 0 }

// GetEventsIndex mirrors rftrace_backend_get_events_index (spec §6) and
// doubles as the upper marker for the self-trace address range in
// selftrace.go: by convention it is the last function defined in this
// package's public surface.
func GetEventsIndex() uint64 { return CurrentIndex() }
