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

// Package bufiox provides the buffered io.Writer/io.Reader wrappers the
// dump engine uses to emit a uftrace data directory and, in tests and
// cmd/goftrace-dump, to read one back. It is trimmed to exactly the
// surface the dump path exercises: many small WriteBinary/ReadBinary
// calls (one per 16-byte trace record) batched through a buffer instead
// of turning into one syscall apiece.
package bufiox

import (
	"bufio"
	"io"
)

const defaultBufSize = 8 * 1024

// Writer is a buffered io.Writer wrapper; WriteBinary appends bs to the
// buffer and Flush drains it to the underlying writer.
type Writer interface {
	// WriteBinary appends bs to the write buffer. It returns the number of
	// bytes accepted and, if draining a full buffer to the underlying
	// io.Writer failed, that error; buffered bytes may not reach the
	// underlying io.Writer until Flush is called.
	WriteBinary(bs []byte) (n int, err error)

	// Flush writes any buffered data to the underlying io.Writer.
	Flush() error
}

var _ Writer = (*DefaultWriter)(nil)

// DefaultWriter is a Writer backed by a bufio.Writer.
type DefaultWriter struct {
	bw *bufio.Writer
}

// NewDefaultWriter returns a new DefaultWriter that writes to wd.
func NewDefaultWriter(wd io.Writer) *DefaultWriter {
	return &DefaultWriter{bw: bufio.NewWriterSize(wd, defaultBufSize)}
}

func (w *DefaultWriter) WriteBinary(bs []byte) (n int, err error) {
	return w.bw.Write(bs)
}

func (w *DefaultWriter) Flush() error {
	return w.bw.Flush()
}
