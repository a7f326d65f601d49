// Package dirty holds the process-wide "rebuild needed" flag shared by the
// poller, which sets it, and the HTTP handlers, which read and clear it.
package dirty

import "sync/atomic"

// Flag is a boolean that is safe for concurrent use. The zero value is
// clean.
//
// Every Set advances a generation counter, so a reader can clear the flag
// only for the changes it has already acted on.
type Flag struct {
	v   atomic.Bool
	gen atomic.Uint64
}

// New returns a clean flag.
func New() *Flag {
	return &Flag{}
}

// Set marks the flag dirty and reports whether this call changed it.
func (f *Flag) Set() bool {
	f.gen.Add(1)
	return f.v.CompareAndSwap(false, true)
}

// Generation returns the number of Set calls so far.
func (f *Flag) Generation() uint64 {
	return f.gen.Load()
}

// ClearIf marks the flag clean unless Set was called after gen was read. It
// reports whether the flag was cleared.
func (f *Flag) ClearIf(gen uint64) bool {
	if f.gen.Load() != gen {
		return false
	}

	f.v.Store(false)

	// A Set racing with the store above has already advanced gen.
	if f.gen.Load() != gen {
		f.v.Store(true)
		return false
	}

	return true
}

// IsSet reports whether the flag is dirty.
func (f *Flag) IsSet() bool {
	return f.v.Load()
}

// String renders the flag the way it goes over the websocket: the literal
// "true" or "false".
func (f *Flag) String() string {
	if f.IsSet() {
		return "true"
	}
	return "false"
}
