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

//go:build !linux

package frontend

import "fmt"

// readProcMaps synthesizes the two-line memory map the spec calls for on
// platforms without /proc: the whole address space mapped once to the
// binary's executable range and once to its stack. It requires
// hand-editing before uftrace can resolve symbols against it.
func readProcMaps(exeName string) ([]byte, error) {
	text := fmt.Sprintf(
		"00000000-ffffffffffffffff r-xp 00000000 00:00 0 %s\n"+
			"00000000-ffffffffffffffff rw-p 00000000 00:00 0 [stack]\n",
		exeName)
	return []byte(text), nil
}
