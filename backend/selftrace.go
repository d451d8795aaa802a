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

// selfTraceLow and selfTraceHigh bound the backend's own code range for the
// self-trace cutoff of spec §4.3 step 5. They are computed once from the
// addresses of mcountEntryPoint (a placeholder Go stub standing in for the
// real mcount entry point, since the actual hook lives in hand-written
// assembly that reflect.ValueOf cannot take the address of) and
// GetEventsIndex (the last exported backend symbol). Neither bound is the
// literal address of the asm mcount symbol, and the whole scheme is
// fragile under link-time section reordering exactly as spec §9 warns —
// an embedder targeting a linker that reorders sections should replace
// this with explicit symbol-range markers instead.
var (
	selfTraceLow  uintptr
	selfTraceHigh uintptr
)

func init() {
	low := reflect.ValueOf(mcountEntryPoint).Pointer()
	high := reflect.ValueOf(GetEventsIndex).Pointer()
	if low > high {
		low, high = high, low
	}
	selfTraceLow, selfTraceHigh = low, high
}

// withinBackend reports whether ip falls inside the backend's own code
// range, i.e. whether a traced call was made from the tracer's own dump
// path calling into instrumented code (which would otherwise recurse
// through the hook forever).
func withinBackend(ip uintptr) bool {
	return ip >= selfTraceLow && ip <= selfTraceHigh
}
