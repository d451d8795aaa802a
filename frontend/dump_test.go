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
	"os"
	"path/filepath"
	"testing"

	"github.com/bytedance/gopkg/lang/mcache"
	"github.com/stretchr/testify/require"

	"github.com/rftrace/goftrace/backend"
)

func sampleEvents() []backend.Event {
	return []backend.Event{
		{Kind: backend.KindEntry, Time: 1, To: 0x1000, TID: 1},
		{Kind: backend.KindEntry, Time: 2, To: 0x2000, TID: 2},
		{Kind: backend.KindExit, Time: 3, From: 0x1000, TID: 1},
		{Kind: backend.KindEmpty}, // must be skipped
		{Kind: backend.KindExit, Time: 4, From: 0x2000, TID: 2},
		{Kind: backend.KindEntry, Time: 5, To: 0x3000, TID: 0}, // unknown tid, no .dat file
	}
}

func TestCollectTIDsSortedAndExcludesZero(t *testing.T) {
	tids := collectTIDs(sampleEvents())
	require.Equal(t, []uint64{1, 2}, tids)
}

func TestBuildTIDRecordsFiltersByTID(t *testing.T) {
	events := sampleEvents()
	buf := buildTIDRecords(events, 0, 1)
	defer func() { recoverFreeOK(t, buf) }()

	require.Equal(t, 2*recordLen, len(buf))
	typ0, addr0, ts0 := decodeRecord(buf[0:recordLen])
	require.Equal(t, recordEntry, typ0)
	require.Equal(t, uint64(0x1000), addr0)
	require.Equal(t, uint64(1), ts0)

	typ1, addr1, ts1 := decodeRecord(buf[recordLen : 2*recordLen])
	require.Equal(t, recordExit, typ1)
	require.Equal(t, uint64(0x1000), addr1)
	require.Equal(t, uint64(3), ts1)
}

// recoverFreeOK frees an mcache-backed buffer returned by buildTIDRecords,
// failing loudly (instead of panicking the whole test run) if a future
// change breaks an invariant mcache.Free checks.
func recoverFreeOK(t *testing.T, buf []byte) {
	t.Helper()
	defer func() {
		if r := recover(); r != nil {
			t.Fatalf("mcache.Free panicked: %v", r)
		}
	}()
	mcache.Free(buf)
}

func TestDumpEventsToFileRoundTrip(t *testing.T) {
	events := sampleEvents()
	path := filepath.Join(t.TempDir(), "trace.bin")
	require.NoError(t, DumpEventsToFile(events, 0, path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	// 5 non-empty events at opaqueRecordLen bytes each.
	require.Equal(t, 5*opaqueRecordLen, len(data))
}

func TestDumpEventsToUftraceDirAndReadBack(t *testing.T) {
	events := sampleEvents()
	dir := filepath.Join(t.TempDir(), "trace-dir")
	require.NoError(t, DumpEventsToUftraceDir(events, 0, 42, "myprog", dir))

	tids, err := ListTIDs(dir)
	require.NoError(t, err)
	require.Equal(t, []uint64{1, 2}, tids)

	records, err := ReadTIDFile(filepath.Join(dir, "1.dat"))
	require.NoError(t, err)
	require.Len(t, records, 2)
	require.True(t, records[0].Entry)
	require.False(t, records[1].Entry)

	for _, name := range []string{"info", "task.txt", "sid-00.map"} {
		_, err := os.Stat(filepath.Join(dir, name))
		require.NoError(t, err, "%s must exist", name)
	}

	info, err := os.ReadFile(filepath.Join(dir, "info"))
	require.NoError(t, err)
	require.Equal(t, []byte(infoMagic), info[:8])

	task, err := os.ReadFile(filepath.Join(dir, "task.txt"))
	require.NoError(t, err)
	require.Contains(t, string(task), "pid=42")
	require.Contains(t, string(task), "exename=\"myprog\"")
}

// wrappedRingEvents builds a length-4 overwriting ring that has wrapped
// once: six events were recorded (indices 0..5) but only the last four
// (2..5) survive, stored at slot = index % 4. Slot order therefore holds
// them as [idx4, idx5, idx2, idx3] -- an Exit, an Exit, then an Entry, an
// Entry -- which is exactly the exit-before-entry corruption a raw
// slot-order walk produces. The true chronological order, recovered by
// starting at ringStartSlot(4, 6) == 2, is idx2, idx3, idx4, idx5: a
// nested f -> g call whose g exits before f does (spec §4.7 step 2, §8
// scenario S3).
func wrappedRingEvents() []backend.Event {
	events := make([]backend.Event, 4)
	events[4%4] = backend.Event{Kind: backend.KindExit, Time: 12, From: 0x200, TID: 1}   // idx 4
	events[5%4] = backend.Event{Kind: backend.KindExit, Time: 13, From: 0x100, TID: 1}   // idx 5
	events[2%4] = backend.Event{Kind: backend.KindEntry, Time: 10, To: 0x100, TID: 1}    // idx 2
	events[3%4] = backend.Event{Kind: backend.KindEntry, Time: 11, To: 0x200, TID: 1}    // idx 3
	return events
}

func TestRingStartSlotRecoversWrapBoundary(t *testing.T) {
	require.Equal(t, 2, ringStartSlot(4, 6))
	// Pre-wrap (index <= length): start just skips the never-written tail,
	// leaving the already-chronological prefix untouched.
	require.Equal(t, 3, ringStartSlot(4, 3))
}

func TestBuildTIDRecordsWalksWrappedRingInChronologicalOrder(t *testing.T) {
	events := wrappedRingEvents()
	start := ringStartSlot(len(events), 6)
	buf := buildTIDRecords(events, start, 1)
	defer func() { recoverFreeOK(t, buf) }()

	require.Equal(t, 4*recordLen, len(buf))
	var gotOrder []recordType
	var gotTimes []uint64
	for i := 0; i < 4; i++ {
		typ, _, ts := decodeRecord(buf[i*recordLen : (i+1)*recordLen])
		gotOrder = append(gotOrder, typ)
		gotTimes = append(gotTimes, ts)
	}
	require.Equal(t, []recordType{recordEntry, recordEntry, recordExit, recordExit}, gotOrder)
	require.Equal(t, []uint64{10, 11, 12, 13}, gotTimes, "must be strictly increasing, not slot order")
}

func TestDumpEventsToUftraceDirHandlesWrappedRing(t *testing.T) {
	events := wrappedRingEvents()
	start := ringStartSlot(len(events), 6)
	dir := filepath.Join(t.TempDir(), "wrapped-dir")
	require.NoError(t, DumpEventsToUftraceDir(events, start, 42, "myprog", dir))

	records, err := ReadTIDFile(filepath.Join(dir, "1.dat"))
	require.NoError(t, err)
	require.Len(t, records, 4)
	require.Equal(t, []bool{true, true, false, false}, []bool{
		records[0].Entry, records[1].Entry, records[2].Entry, records[3].Entry,
	})
	require.Equal(t, []uint64{10, 11, 12, 13}, []uint64{
		records[0].Time, records[1].Time, records[2].Time, records[3].Time,
	})
}
