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
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/bytedance/gopkg/lang/mcache"

	"github.com/rftrace/goftrace/backend"
	"github.com/rftrace/goftrace/internal/bufiox"
	"github.com/rftrace/goftrace/internal/gopool"
)

// recordScratchSize is the initial capacity handed to mcache.Malloc for a
// TID's record buffer. Most traced threads hold well under this many
// records; the buffer still grows past it via plain append, just without
// the pooled backing array for the overflow.
const recordScratchSize = 64 * recordLen

// opaqueRecordLen is the size of one event in the single-file "opaque"
// dump DumpTrace produces. It is not the wire-compatible uftrace record
// (see recordLen); it exists purely so a caller or test can read back
// exactly what was recorded, tid and kind included, without needing a
// whole data-directory round trip.
const opaqueRecordLen = 8 + 8 + 8 + 8 + 1 // time, from, to, tid, kind

// ringStartSlot computes the ring slot spec §4.7 step 2 calls "start":
// current_index mod length, the slot holding the oldest event still
// present (or, pre-wrap, the first never-written slot). Every dump path
// walks the ring starting here instead of at raw slot 0, because in the
// default overwriting mode (frontend.DefaultOption) the ring has almost
// always wrapped by the time a trace is dumped, and slot order across a
// wrap interleaves the newest and oldest events out of chronological
// order.
func ringStartSlot(length int, currentIndex uint64) int {
	if length == 0 {
		return 0
	}
	return int(currentIndex % uint64(length))
}

// visitRingOrder calls visit once for each event in events, walking from
// start to the end of the slice and then wrapping back to index 0, so
// events are visited oldest-to-newest regardless of whether the ring has
// wrapped (spec §4.7 step 2: "[start..end] then [0..start]").
func visitRingOrder(events []backend.Event, start int, visit func(*backend.Event)) {
	n := len(events)
	if n == 0 {
		return
	}
	for i := 0; i < n; i++ {
		idx := start + i
		if idx >= n {
			idx -= n
		}
		visit(&events[idx])
	}
}

// DumpTrace reclaims the ring's backing buffer and serializes every
// recorded event as one opaque, single-thread-merged file: a flat,
// undemultiplexed dump of the ring walked oldest-to-newest, as spec'd for
// debugging use rather than for uftrace itself to consume.
func (h *Handle) DumpTrace(path string) error {
	events := h.takePointer()
	start := ringStartSlot(len(events), backend.CurrentIndex())
	return DumpEventsToFile(events, start, path)
}

// DumpEventsToFile is the slice-based core of DumpTrace. It is exported
// separately from Handle so the cabi package's rftrace_dump_trace, which
// only has backend.TakeEvents' raw slice to work with (not a Handle), can
// reach the same serialization path. ringStart is the slot ringStartSlot
// computed from the ring's index at the moment events was reclaimed; pass
// 0 for a slice that is known never to have wrapped.
func DumpEventsToFile(events []backend.Event, ringStart int, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("goftrace: dump %s: %w", path, err)
	}
	defer f.Close()

	w := bufiox.NewDefaultWriter(f)
	var rec [opaqueRecordLen]byte
	var writeErr error
	visitRingOrder(events, ringStart, func(e *backend.Event) {
		if writeErr != nil || e.IsEmpty() {
			return
		}
		binary.LittleEndian.PutUint64(rec[0:8], e.Time)
		binary.LittleEndian.PutUint64(rec[8:16], uint64(e.From))
		binary.LittleEndian.PutUint64(rec[16:24], uint64(e.To))
		binary.LittleEndian.PutUint64(rec[24:32], e.TID)
		rec[32] = byte(e.Kind)
		if _, err := w.WriteBinary(rec[:]); err != nil {
			writeErr = err
		}
	})
	if writeErr != nil {
		return fmt.Errorf("goftrace: dump %s: %w", path, writeErr)
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("goftrace: dump %s: %w", path, err)
	}
	return nil
}

// collectTIDs returns every nonzero TID observed in events, sorted
// ascending. TID 0 ("unknown") is never assigned its own .dat file, per
// the spec's "Empty slots are skipped" and TID-0 reservation rules.
func collectTIDs(events []backend.Event) []uint64 {
	seen := make(map[uint64]struct{})
	for i := range events {
		e := &events[i]
		if e.IsEmpty() || e.TID == 0 {
			continue
		}
		seen[e.TID] = struct{}{}
	}
	tids := make([]uint64, 0, len(seen))
	for tid := range seen {
		tids = append(tids, tid)
	}
	sort.Slice(tids, func(i, j int) bool { return tids[i] < tids[j] })
	return tids
}

// buildTIDRecords walks the full ring once, oldest event first (see
// visitRingOrder), filtering it down to the records belonging to tid, and
// returns them packed per §6. The spec describes this as a full re-walk
// of the ring per TID (step 4 of the dump engine); since each walk only
// ever reads shared state and writes to its own buffer, the per-TID
// passes below are safe to run concurrently with one another.
func buildTIDRecords(events []backend.Event, ringStart int, tid uint64) []byte {
	buf := mcache.Malloc(0, recordScratchSize)
	var rec [recordLen]byte
	visitRingOrder(events, ringStart, func(e *backend.Event) {
		if e.IsEmpty() || e.TID != tid {
			return
		}
		switch e.Kind {
		case backend.KindEntry:
			encodeRecord(rec[:], recordEntry, uint64(e.To), e.Time)
		case backend.KindExit:
			encodeRecord(rec[:], recordExit, uint64(e.From), e.Time)
		default:
			return
		}
		buf = append(buf, rec[:]...)
	})
	return buf
}

// DumpFullUftrace reclaims the ring's backing buffer and writes a complete
// uftrace data directory at dir: one "<tid>.dat" file per observed thread,
// plus the info/task.txt/sid-00.map metadata bundle (§6).
func (h *Handle) DumpFullUftrace(dir string) error {
	events := h.takePointer()
	start := ringStartSlot(len(events), backend.CurrentIndex())
	return DumpEventsToUftraceDir(events, start, h.pid, h.exeName, dir)
}

// DumpEventsToUftraceDir is the slice-based core of DumpFullUftrace,
// exported for the same reason as DumpEventsToFile: cabi's
// rftrace_dump_full_uftrace has only a raw events slice, pid, and exe name
// to work with, not a Handle. ringStart is the slot ringStartSlot computed
// from the ring's index at the moment events was reclaimed; pass 0 for a
// slice known never to have wrapped.
func DumpEventsToUftraceDir(events []backend.Event, ringStart int, pid int, exeName string, dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("goftrace: dump %s: %w", dir, err)
	}

	tids := collectTIDs(events)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)
	recordErr := func(err error) {
		if err == nil {
			return
		}
		mu.Lock()
		if firstErr == nil {
			firstErr = err
		}
		mu.Unlock()
	}

	for _, tid := range tids {
		tid := tid
		wg.Add(1)
		gopool.Go(func() {
			defer wg.Done()
			if err := writeTIDFile(dir, tid, events, ringStart); err != nil {
				recordErr(err)
			}
		})
	}
	wg.Wait()
	if firstErr != nil {
		return firstErr
	}

	if err := writeMetadataBundle(dir, pid, exeName, tids); err != nil {
		return err
	}
	return nil
}

func writeTIDFile(dir string, tid uint64, events []backend.Event, ringStart int) error {
	buf := buildTIDRecords(events, ringStart, tid)
	defer mcache.Free(buf)

	path := filepath.Join(dir, fmt.Sprintf("%d.dat", tid))
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("goftrace: dump %s: %w", path, err)
	}
	defer f.Close()

	w := bufiox.NewDefaultWriter(f)
	if _, err := w.WriteBinary(buf); err != nil {
		return fmt.Errorf("goftrace: dump %s: %w", path, err)
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("goftrace: dump %s: %w", path, err)
	}
	return nil
}
