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

package bufiox

import (
	"bufio"
	"io"
)

// Reader is a buffered io.Reader wrapper used to decode a previously
// written uftrace data directory back into records.
type Reader interface {
	// ReadBinary reads exactly len(bs) bytes into bs. It returns the
	// number of bytes actually read and the error that stopped it short:
	// io.EOF if nothing at all was available, io.ErrUnexpectedEOF if a
	// truncated record is all that remains.
	ReadBinary(bs []byte) (n int, err error)

	// Release returns any buffers this Reader holds. e is the error, if
	// any, that ended the read loop; DefaultReader ignores it since it
	// holds nothing that depends on how reading ended.
	Release(e error) error
}

var _ Reader = (*DefaultReader)(nil)

// DefaultReader is a Reader backed by a bufio.Reader.
type DefaultReader struct {
	br *bufio.Reader
}

// NewDefaultReader returns a new DefaultReader that reads from rd.
func NewDefaultReader(rd io.Reader) *DefaultReader {
	return &DefaultReader{br: bufio.NewReaderSize(rd, defaultBufSize)}
}

func (r *DefaultReader) ReadBinary(bs []byte) (n int, err error) {
	return io.ReadFull(r.br, bs)
}

func (r *DefaultReader) Release(e error) error { return nil }
