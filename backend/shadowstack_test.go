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

func TestStackForOutOfRange(t *testing.T) {
	require.Nil(t, stackFor(0))
	require.Nil(t, stackFor(maxThreads+1))
	require.NotNil(t, stackFor(1))
}

func TestShadowStackPushPopBalanced(t *testing.T) {
	var s shadowStack
	var slotA, slotB uintptr

	ok := s.push(&slotA, 0xdead, 0xbeef)
	require.True(t, ok)
	ok = s.push(&slotB, 0xfeed, 0xface)
	require.True(t, ok)

	frame, ok := s.pop()
	require.True(t, ok)
	require.Equal(t, &slotB, frame.slotAddr)
	require.Equal(t, uintptr(0xfeed), frame.originalRet)
	require.Equal(t, uintptr(0xface), frame.childIP)

	frame, ok = s.pop()
	require.True(t, ok)
	require.Equal(t, &slotA, frame.slotAddr)

	_, ok = s.pop()
	require.False(t, ok, "popping an empty stack must report ok=false")
}

func TestShadowStackBoundaryAtMaxStackHeight(t *testing.T) {
	var s shadowStack
	var slot uintptr

	for i := 0; i < MaxStackHeight; i++ {
		require.True(t, s.push(&slot, uintptr(i), uintptr(i)), "push %d should fit", i)
	}
	require.False(t, s.push(&slot, 0, 0), "push beyond MaxStackHeight must fail")

	for i := MaxStackHeight - 1; i >= 0; i-- {
		frame, ok := s.pop()
		require.True(t, ok)
		require.Equal(t, uintptr(i), frame.originalRet)
	}
	_, ok := s.pop()
	require.False(t, ok)
}
