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

// Package frontend is the control surface a traced process links against:
// it owns the event ring's backing storage, toggles tracing on and off, and
// converts a finished run into an on-disk uftrace data directory.
package frontend

import (
	"errors"
	"fmt"
	"log"
	"os"
	"sync/atomic"

	"github.com/rftrace/goftrace/backend"
)

// ErrInvalidConfig is returned by Init when an Option cannot be honored.
var ErrInvalidConfig = errors.New("goftrace: invalid config")

// Option configures Init. A zero RingSize or nil Logger is filled in from
// DefaultOption; Overwriting is used as given, so a zero Option selects
// halting mode.
type Option struct {
	// RingSize is the number of Event slots to allocate. Must be greater
	// than backend.MaxStackHeight so the halting-mode margin (see
	// backend.Init) always has room.
	RingSize int

	// Overwriting selects ring-buffer mode (true: oldest events are
	// overwritten once the ring fills) over halting mode (false: tracing
	// disables itself once only MaxStackHeight slots remain).
	Overwriting bool

	// Logger is kept on the Handle's copy of the Option. Never touched on
	// the hook path. Defaults to log.Default() if nil. The dump engine
	// does not write anything to it.
	Logger *log.Logger
}

// DefaultOption returns the Option Init uses when passed nil, and the
// RingSize and Logger it falls back to when those are left zero.
func DefaultOption() *Option {
	return &Option{
		RingSize:    100_000,
		Overwriting: true,
		Logger:      log.Default(),
	}
}

// initialized guards Init so a second call is a harmless no-op: the spec
// calls this "AlreadyInitialized" and treats it as non-fatal, not an error.
var initialized uint32

func compareAndSwapInitialized() bool {
	return atomic.CompareAndSwapUint32(&initialized, 0, 1)
}

// Handle is the frontend's view of one traced process's event ring: the
// backing buffer it leaked to the backend, plus enough process metadata to
// synthesize a uftrace data directory later.
type Handle struct {
	events  []backend.Event
	pid     int
	exeName string
	opt     Option
}

// Init allocates the event ring, hands its pointer and length to the
// backend, and returns a Handle the caller keeps until it is ready to dump.
// A second call to Init is a no-op: it returns (nil, nil), matching the
// spec's "AlreadyInitialized" behavior.
func Init(opt *Option) (*Handle, error) {
	if opt == nil {
		opt = DefaultOption()
	}
	def := DefaultOption()
	if opt.RingSize == 0 {
		opt.RingSize = def.RingSize
	}
	if opt.Logger == nil {
		opt.Logger = def.Logger
	}
	if opt.RingSize <= backend.MaxStackHeight {
		return nil, fmt.Errorf("%w: ring size %d must exceed backend.MaxStackHeight (%d)",
			ErrInvalidConfig, opt.RingSize, backend.MaxStackHeight)
	}
	if !compareAndSwapInitialized() {
		return nil, nil
	}

	buf := make([]backend.Event, opt.RingSize)
	backend.Init(buf, opt.Overwriting)

	exe, err := os.Executable()
	if err != nil {
		exe = "fakeuftrace"
	}

	return &Handle{
		events:  buf,
		pid:     os.Getpid(),
		exeName: exe,
		opt:     *opt,
	}, nil
}

// Enable turns tracing on. Safe to call from any goroutine; it does not
// block on any hook-path state.
func (h *Handle) Enable() { backend.Enable() }

// Disable turns tracing off. Already-active instrumented frames still
// return through the trampoline and record their Exit event; see
// backend.Disable for the halting-mode margin this relies on.
func (h *Handle) Disable() { backend.Disable() }

// Enabled reports whether tracing is currently on.
func (h *Handle) Enabled() bool { return backend.Enabled() }

// takePointer reclaims ownership of the ring's backing buffer the way the
// spec's take_pointer()->base operation does: it is only safe to call once
// tracing has been disabled and no instrumented frame can still be
// in-flight.
func (h *Handle) takePointer() []backend.Event {
	return backend.TakeEvents()
}
