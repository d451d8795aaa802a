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
	"strings"

	"github.com/rftrace/goftrace/internal/bufiox"
	"github.com/rftrace/goftrace/internal/hack"
)

// Fixed conventions the spec calls out explicitly as conventions, not
// discoveries: every data directory this package writes claims the same
// synthetic PID and session id.
const (
	fixedPID = 42
	fixedSID = "00"
)

const (
	infoMagic      = "Ftrace!\x00"
	infoVersion    = 4
	infoHeaderSize = 40
	infoEndian     = 1 // little-endian
	infoELFClass   = 2 // ELFCLASS64

	featTaskSession = 1 << 1
	featSymRelAddr  = 1 << 5
	infoCmdline     = 1 << 3
	infoTaskinfo    = 1 << 7
)

// writeMetadataBundle writes the info, task.txt, and sid-00.map files that
// accompany the per-TID .dat files in a uftrace data directory.
func writeMetadataBundle(dir string, pid int, exeName string, tids []uint64) error {
	if err := writeInfoFile(dir, tids); err != nil {
		return err
	}
	if err := writeTaskFile(dir, exeName, tids); err != nil {
		return err
	}
	if err := writeSidMap(dir, exeName); err != nil {
		return err
	}
	return nil
}

func writeInfoFile(dir string, tids []uint64) error {
	path := filepath.Join(dir, "info")
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("goftrace: dump %s: %w", path, err)
	}
	defer f.Close()

	w := bufiox.NewDefaultWriter(f)

	header := make([]byte, 0, infoHeaderSize)
	header = append(header, infoMagic...)
	var tmp [8]byte
	binary.LittleEndian.PutUint32(tmp[:4], infoVersion)
	header = append(header, tmp[:4]...)
	binary.LittleEndian.PutUint16(tmp[:2], infoHeaderSize)
	header = append(header, tmp[:2]...)
	header = append(header, infoEndian, infoELFClass)
	binary.LittleEndian.PutUint64(tmp[:8], featTaskSession|featSymRelAddr)
	header = append(header, tmp[:8]...)
	binary.LittleEndian.PutUint64(tmp[:8], infoCmdline|infoTaskinfo)
	header = append(header, tmp[:8]...)
	binary.LittleEndian.PutUint16(tmp[:2], 0) // mstack
	header = append(header, tmp[:2]...)
	header = append(header, 0, 0, 0, 0, 0, 0) // three reserved u16 zeros

	if _, err := w.WriteBinary(header); err != nil {
		return fmt.Errorf("goftrace: dump %s: %w", path, err)
	}

	tidStrs := make([]string, len(tids))
	for i, tid := range tids {
		tidStrs[i] = fmt.Sprintf("%d", tid)
	}
	text := fmt.Sprintf("cmdline:fakeuftrace\ntaskinfo:lines=2\ntaskinfo:nr_tid=%d\ntaskinfo:tids=%s\n",
		len(tids), strings.Join(tidStrs, ","))
	if _, err := w.WriteBinary(hack.StringToByteSlice(text)); err != nil {
		return fmt.Errorf("goftrace: dump %s: %w", path, err)
	}
	return w.Flush()
}

func writeTaskFile(dir string, exeName string, tids []uint64) error {
	path := filepath.Join(dir, "task.txt")
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("goftrace: dump %s: %w", path, err)
	}
	defer f.Close()

	w := bufiox.NewDefaultWriter(f)
	sess := fmt.Sprintf("SESS timestamp=0.0 pid=%d sid=%s exename=%q\n", fixedPID, fixedSID, exeName)
	if _, err := w.WriteBinary(hack.StringToByteSlice(sess)); err != nil {
		return fmt.Errorf("goftrace: dump %s: %w", path, err)
	}
	for _, tid := range tids {
		line := fmt.Sprintf("TASK timestamp=0.0 tid=%d pid=%d\n", tid, fixedPID)
		if _, err := w.WriteBinary(hack.StringToByteSlice(line)); err != nil {
			return fmt.Errorf("goftrace: dump %s: %w", path, err)
		}
	}
	return w.Flush()
}

func writeSidMap(dir string, exeName string) error {
	path := filepath.Join(dir, fmt.Sprintf("sid-%s.map", fixedSID))
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("goftrace: dump %s: %w", path, err)
	}
	defer f.Close()

	maps, err := readProcMaps(exeName)
	if err != nil {
		return fmt.Errorf("goftrace: dump %s: %w", path, err)
	}

	w := bufiox.NewDefaultWriter(f)
	if _, err := w.WriteBinary(maps); err != nil {
		return fmt.Errorf("goftrace: dump %s: %w", path, err)
	}
	return w.Flush()
}
