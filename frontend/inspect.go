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

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/rftrace/goftrace/internal/bufiox"
)

// TraceRecord is the decoded form of one on-disk uftrace record: a single
// Entry or Exit observed on one thread.
type TraceRecord struct {
	Time    uint64
	Entry   bool
	Address uint64
}

// ReadTIDFile reads and decodes one "<tid>.dat" file from a uftrace data
// directory. It is the public counterpart of buildTIDRecords/decodeRecord,
// exported for cmd/goftrace-dump and for round-trip tests. Reading goes
// through bufiox.DefaultReader, the read-side counterpart of the
// DefaultWriter the dump engine writes with, so the round-trip (spec §8
// "file format round-trip") exercises matching buffered-IO machinery on
// both ends.
func ReadTIDFile(path string) ([]TraceRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("goftrace: read %s: %w", path, err)
	}
	defer f.Close()

	r := bufiox.NewDefaultReader(f)
	var out []TraceRecord
	var rec [recordLen]byte
	for {
		n, err := r.ReadBinary(rec[:])
		if n == 0 && errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("goftrace: read %s: truncated record: %w", path, err)
		}
		t, addr, ts := decodeRecord(rec[:])
		out = append(out, TraceRecord{Time: ts, Entry: t == recordEntry, Address: addr})
	}
	_ = r.Release(nil)
	return out, nil
}

// ListTIDs returns the TIDs present in a uftrace data directory, found by
// globbing for "*.dat" files rather than re-parsing task.txt, so it works
// even against a directory assembled by hand.
func ListTIDs(dir string) ([]uint64, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*.dat"))
	if err != nil {
		return nil, fmt.Errorf("goftrace: list %s: %w", dir, err)
	}
	tids := make([]uint64, 0, len(matches))
	for _, m := range matches {
		name := strings.TrimSuffix(filepath.Base(m), ".dat")
		tid, err := strconv.ParseUint(name, 10, 64)
		if err != nil {
			continue // not one of ours
		}
		tids = append(tids, tid)
	}
	sort.Slice(tids, func(i, j int) bool { return tids[i] < tids[j] })
	return tids, nil
}
