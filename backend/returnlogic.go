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

import "reflect"

// trampolineAddr returns the address entryLogic should write into a
// rewritten return slot.
func trampolineAddr() uintptr {
	return reflect.ValueOf(rftraceReturnTrampoline).Pointer()
}

// rftraceReturnTrampoline is implemented in trampoline_amd64.s.
func rftraceReturnTrampoline()

// returnLogic is called from the return trampoline once it has saved
// every register System-V lets a callee return a value in. It pops the
// calling thread's shadow stack, emits the matching Exit event, and
// reports the real return address for the trampoline to jump to.
//
// An empty shadow stack here means the diverted return chain has been
// corrupted -- a fatal invariant violation per spec §4.5/§7, not a
// recoverable error.
func returnLogic() uintptr {
	tid := lookupOrAssignTID()
	stack := stackFor(tid)
	if stack == nil {
		panic("backend: return trampoline fired for a thread with no shadow stack")
	}
	frame, ok := stack.pop()
	if !ok {
		panic("backend: shadow stack empty in return logic")
	}
	record(Event{Time: rdtsc(), Kind: KindExit, From: frame.childIP, TID: tid})
	return frame.originalRet
}
