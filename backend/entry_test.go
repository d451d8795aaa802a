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

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEntryLogicDisabledIsNoop(t *testing.T) {
	defer resetRing()
	Init(make([]Event, MaxStackHeight+10), true)
	Disable()

	var parent uintptr = 0xdeadbeef
	rewrite, trampoline := entryLogic(&parent, 0x1234)
	require.False(t, rewrite)
	require.Zero(t, trampoline)
	require.Zero(t, CurrentIndex(), "a disabled hook must record nothing")
}

func TestEntryLogicUnreadableParentSlot(t *testing.T) {
	defer resetRing()
	Init(make([]Event, MaxStackHeight+10), true)

	// Simulate the rbp==0 synthesized-frame case: the slot address itself,
	// not its contents, is below MinValidParentSlot.
	parentSlot := (*uintptr)(nil)
	childIP := uintptr(0x1234)

	before := CurrentIndex()
	rewrite, trampoline := entryLogic(parentSlot, childIP)
	require.False(t, rewrite)
	require.Zero(t, trampoline)
	require.Equal(t, before+1, CurrentIndex(), "a placeholder Entry is still recorded")

	recorded := events[before]
	require.Equal(t, KindEntry, recorded.Kind)
	require.Zero(t, recorded.From, "parent IP is a placeholder when unreadable")
	require.Equal(t, childIP, recorded.To)
}

func TestEntryLogicSelfTraceCutoff(t *testing.T) {
	defer resetRing()
	Init(make([]Event, MaxStackHeight+10), true)

	parent := selfTraceLow // an address inside the backend's own range
	childIP := uintptr(0x5678)

	before := CurrentIndex()
	rewrite, trampoline := entryLogic(&parent, childIP)
	require.False(t, rewrite, "a call from within the backend must never be hooked")
	require.Zero(t, trampoline)
	require.Equal(t, before+2, CurrentIndex(), "both the Entry and a synthesized Exit are recorded")

	entry := events[before]
	exit := events[before+1]
	require.Equal(t, KindEntry, entry.Kind)
	require.Equal(t, KindExit, exit.Kind)
	require.Equal(t, childIP, exit.From)
}

func TestEntryLogicHooksOrdinaryCall(t *testing.T) {
	defer resetRing()
	Init(make([]Event, MaxStackHeight+10), true)

	parent := selfTraceHigh + 0x1000 // safely outside the backend's own range
	childIP := uintptr(0x9999)

	rewrite, trampoline := entryLogic(&parent, childIP)
	require.True(t, rewrite)
	require.Equal(t, trampolineAddr(), trampoline)

	tid := lookupOrAssignTID()
	stack := stackFor(tid)
	frame, ok := stack.pop()
	require.True(t, ok)
	require.Equal(t, childIP, frame.childIP)
	require.Equal(t, parent, frame.originalRet)
}
