/*
 * Copyright 2024 goftrace Authors
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

// Package hack holds the one unsafe conversion the dump engine needs:
// turning a formatted metadata line (info/task.txt) into bytes for
// bufiox.Writer without a copy.
package hack

import "unsafe"

// StringToByteSlice reinterprets s as a []byte without copying. The
// returned slice must never be mutated or appended to past its length --
// doing so would corrupt the string's own backing array, which Go assumes
// is immutable.
func StringToByteSlice(s string) []byte {
	if len(s) == 0 {
		return nil
	}
	return unsafe.Slice(unsafe.StringData(s), len(s))
}
