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

package frontend

import "os"

// readProcMaps returns a verbatim copy of /proc/self/maps, the memory map
// uftrace needs to resolve addresses back to symbols. exeName is unused on
// this platform; it only matters for the synthetic fallback.
func readProcMaps(exeName string) ([]byte, error) {
	return os.ReadFile("/proc/self/maps")
}
