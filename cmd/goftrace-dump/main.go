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

// Command goftrace-dump prints a human-readable summary of a uftrace data
// directory previously written by frontend.DumpFullUftrace: the TIDs it
// contains, how many records each one holds, and the timestamp range they
// span.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/rftrace/goftrace/frontend"
)

func main() {
	dir := flag.String("dir", "", "path to a uftrace data directory")
	flag.Parse()

	if *dir == "" {
		fmt.Fprintln(os.Stderr, "usage: goftrace-dump -dir <data-directory>")
		os.Exit(2)
	}

	if err := run(*dir); err != nil {
		log.Fatalf("goftrace-dump: %v", err)
	}
}

func run(dir string) error {
	tids, err := frontend.ListTIDs(dir)
	if err != nil {
		return err
	}
	if len(tids) == 0 {
		fmt.Printf("%s: no .dat files found\n", dir)
		return nil
	}

	fmt.Printf("%s: %d thread(s)\n", dir, len(tids))
	for _, tid := range tids {
		path := fmt.Sprintf("%s/%d.dat", dir, tid)
		records, err := frontend.ReadTIDFile(path)
		if err != nil {
			return err
		}
		if len(records) == 0 {
			fmt.Printf("  tid=%d: 0 records\n", tid)
			continue
		}
		first, last := records[0].Time, records[0].Time
		entries, exits := 0, 0
		for _, r := range records {
			if r.Time < first {
				first = r.Time
			}
			if r.Time > last {
				last = r.Time
			}
			if r.Entry {
				entries++
			} else {
				exits++
			}
		}
		fmt.Printf("  tid=%d: %d records (%d entry, %d exit), time=[%d, %d]\n",
			tid, len(records), entries, exits, first, last)
	}
	return nil
}
