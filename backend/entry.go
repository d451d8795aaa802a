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

import "unsafe"

// MinValidParentSlot is the heuristic from spec §4.3 step 3: some runtimes
// synthesize task-entry frames with rbp == 0, in which case parentSlot
// would be the address 8 and dereferencing it would fault. It is a var,
// not a const, so an embedder targeting a runtime with a different
// task-entry convention can override it at init time (spec §9, open
// question 1).
var MinValidParentSlot uintptr = 0x100

// mcountEntryPoint is never called. It exists purely so selftrace.go can
// take its address as the lower bound of the backend's own code range —
// entryLogic is reached from mcount (hook_amd64.s) before anything else in
// this package runs.
func mcountEntryPoint() {}

// entryLogic is invoked by the mcount asm stub (hook_amd64.s) with the
// address of the caller's return slot and the callee's entry address. It
// must not allocate, block, or take a lock: every path here runs on the
// hook's call stack with whatever registers the stub has already saved.
//
// entryLogic never writes *parentSlot itself. It returns rewrite=true and
// the return trampoline's address when the call should be hooked; the
// caller (mcountHelper) then stores that address into *parentSlot.
func entryLogic(parentSlot *uintptr, childIP uintptr) (rewrite bool, trampoline uintptr) {
	if !Enabled() {
		return false, 0 // race with Disable: bail with no side effects
	}

	tid := lookupOrAssignTID()

	var parentIP uintptr
	unreadable := uintptr(unsafe.Pointer(parentSlot)) <= MinValidParentSlot
	if !unreadable {
		parentIP = *parentSlot
	}

	record(Event{Time: rdtsc(), Kind: KindEntry, To: childIP, From: parentIP, TID: tid})

	if unreadable {
		// Placeholder parent recorded; do not hook the return — there is
		// nothing valid in *parentSlot to divert.
		return false, 0
	}

	if withinBackend(parentIP) {
		// Self-trace cutoff: the dump path itself called into instrumented
		// code. Emit the synthesized, already-balanced Exit and do not
		// hook, or this would recurse into the hook forever.
		record(Event{Time: rdtsc() + 20, Kind: KindExit, From: childIP, TID: tid})
		return false, 0
	}

	stack := stackFor(tid)
	if stack == nil || !stack.push(parentSlot, parentIP, childIP) {
		// Shadow stack full (or TID table full): leave the return
		// unmodified. The function returns normally; no Exit is emitted
		// for this frame.
		return false, 0
	}

	return true, trampolineAddr()
}
