// Package transport names the external-collaborator contracts a
// Device depends on and provides two concrete implementations needed
// to exercise a Device without real hardware attached: an in-memory
// fake for tests, and a file-backed register transport for Linux
// targets.
package transport

// ReadFunc reads the current value of register reg on the device
// identified by arg.
type ReadFunc func(arg int, reg int) (uint32, error)

// WriteFunc writes val to register reg on the device identified by arg.
type WriteFunc func(arg int, reg int, val uint32) error

// LockFunc and UnlockFunc provide mutual exclusion around a top-level
// field operation. Either both or neither must be supplied.
type LockFunc func(mutex any) error
type UnlockFunc func(mutex any) error

// LoadFunc reconfigures the physical device to map id. id is the
// 0-based index into the virtual device's candidate map list.
type LoadFunc func(arg int, id int) error
