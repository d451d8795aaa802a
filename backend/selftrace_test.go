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

func TestSelfTraceRangeIsOrdered(t *testing.T) {
	require.LessOrEqual(t, selfTraceLow, selfTraceHigh)
}

func TestWithinBackendContainment(t *testing.T) {
	require.True(t, withinBackend(selfTraceLow))
	require.True(t, withinBackend(selfTraceHigh))
	if selfTraceLow > 0 {
		require.False(t, withinBackend(selfTraceLow-1))
	}
	require.False(t, withinBackend(selfTraceHigh+1))
}
