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

// Package cabi is the C-ABI surface a foreign host process links against
// when it drives goftrace from outside Go: a buildmode=c-archive build of
// this package produces an archive exporting exactly the symbols below
// (plus the bare "mcount" symbol emitted directly by backend's assembly,
// which needs no cgo wrapper since it is never called from Go). cgo's
// c-archive mode only promotes //export-annotated functions to C linkage,
// so every other identifier anywhere in this module's transitive closure
// stays invisible to an external linker -- satisfying the symbol-scoping
// requirement without a separate post-link step.
package cabi

/*
#include <stdint.h>
#include <stdbool.h>
#include <stddef.h>

// cabi_event mirrors backend.Event field-for-field: time, from, to, tid,
// kind, in that order, so a *cabi_event can be reinterpreted as a
// *backend.Event (and vice versa) by a raw pointer cast.
typedef struct {
	uint64_t time;
	uintptr_t from;
	uintptr_t to;
	uint64_t tid;
	uint8_t kind;
} cabi_event;
*/
import "C"

import (
	"unsafe"

	"github.com/rftrace/goftrace/backend"
	"github.com/rftrace/goftrace/frontend"
)

// asBackendEvents reinterprets a C-owned array of cabi_event as a Go
// []backend.Event without copying. This assumes the Go and C compilers
// agree on the struct's layout, which holds as long as cabi_event and
// backend.Event keep the same field order and width -- documented instead
// of enforced, since there is no portable way to static-assert layout
// equality across the cgo boundary.
func asBackendEvents(buf *C.cabi_event, length C.size_t) []backend.Event {
	if buf == nil || length == 0 {
		return nil
	}
	return unsafe.Slice((*backend.Event)(unsafe.Pointer(buf)), int(length))
}

//export rftrace_backend_init
func rftrace_backend_init(buf *C.cabi_event, length C.size_t, overwriting C.bool) {
	backend.Init(asBackendEvents(buf, length), bool(overwriting))
}

//export rftrace_backend_enable
func rftrace_backend_enable() {
	backend.Enable()
}

//export rftrace_backend_disable
func rftrace_backend_disable() {
	backend.Disable()
}

//export rftrace_backend_get_events
func rftrace_backend_get_events() *C.cabi_event {
	events := backend.TakeEvents()
	if len(events) == 0 {
		return nil
	}
	return (*C.cabi_event)(unsafe.Pointer(&events[0]))
}

//export rftrace_backend_get_events_index
func rftrace_backend_get_events_index() C.size_t {
	return C.size_t(backend.GetEventsIndex())
}

// rftrace_backend_get_events and the two dump exports below each reclaim
// the ring through their own backend.TakeEvents call, which clears the
// backend's reference to it; whichever of them runs second only ever
// observes an emptied ring. The C host is expected to call exactly one of
// rftrace_backend_get_events, rftrace_dump_trace, or
// rftrace_dump_full_uftrace per run.

// ringStart computes the slot frontend's dump path should begin walking
// from (spec §4.7 step 2: current_index mod length), the same computation
// frontend.Handle.DumpTrace/DumpFullUftrace perform internally. cabi has
// to redo it here because rftrace_dump_trace/rftrace_dump_full_uftrace
// only have backend.TakeEvents' raw slice to hand frontend, not a Handle.
func ringStart(idx uint64, length int) int {
	if length == 0 {
		return 0
	}
	return int(idx % uint64(length))
}

//export rftrace_dump_trace
func rftrace_dump_trace(path *C.char) C.int {
	idx := backend.CurrentIndex()
	events := backend.TakeEvents()
	if err := frontend.DumpEventsToFile(events, ringStart(idx, len(events)), C.GoString(path)); err != nil {
		return -1
	}
	return 0
}

//export rftrace_dump_full_uftrace
func rftrace_dump_full_uftrace(dir *C.char, pid C.int, exeName *C.char) C.int {
	idx := backend.CurrentIndex()
	events := backend.TakeEvents()
	start := ringStart(idx, len(events))
	err := frontend.DumpEventsToUftraceDir(events, start, int(pid), C.GoString(exeName), C.GoString(dir))
	if err != nil {
		return -1
	}
	return 0
}
