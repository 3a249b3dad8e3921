// Package regdevice implements the device context, raw register I/O,
// the multi-register field codec, the field API, and the consistency
// checker.
package regdevice

import (
	"github.com/oisee/regio/pkg/field"
	"github.com/oisee/regio/pkg/regerr"
	"github.com/oisee/regio/pkg/transport"
)

// Device is the mutable container holding the software image of a
// register-and-field hardware device plus the transport and locking
// callbacks used to reach it.
type Device struct {
	RegWidth int // bits per register, 1..32
	RegNum   int // register count

	Data []uint32 // software image of hardware, len == RegNum

	ReadFn  transport.ReadFunc
	WriteFn transport.WriteFunc
	Arg     int

	Flags field.Flags // device-level flags, OR-ed into every field op

	LockFn   transport.LockFunc
	UnlockFn transport.UnlockFunc
	Mutex    any

	Map field.Map // active map; may be nil for a virtual device not yet loaded

	lockCount int
}

// New builds a Device with the given register geometry. ReadFn/WriteFn
// and the lock callbacks are left nil (caller assigns before use); a
// nil ReadFn/WriteFn is only safe with NOCOMM set device-wide.
func New(regWidth, regNum int) (*Device, error) {
	if regWidth < 1 || regWidth > 32 {
		return nil, regerr.Report(regerr.Argument, 1, "reg_width %d out of range [1,32]", regWidth)
	}
	if regNum < 0 {
		return nil, regerr.Report(regerr.Argument, 1, "reg_num %d must be >= 0", regNum)
	}
	return &Device{
		RegWidth: regWidth,
		RegNum:   regNum,
		Data:     make([]uint32, regNum),
	}, nil
}

// validateLockPair rejects a device where exactly one of LockFn/UnlockFn
// is set.
func (d *Device) validateLockPair() error {
	if (d.LockFn == nil) != (d.UnlockFn == nil) {
		return regerr.Report(regerr.Map, 1, "lock_fn and unlock_fn must both be present or both absent")
	}
	return nil
}

// lock acquires the device's single re-entrance slot and, if present,
// calls LockFn. Nested locking is a programming error: lock_count is
// never allowed above 1.
func (d *Device) lock() error {
	if d.lockCount != 0 {
		return regerr.Report(regerr.Runtime, 1, "lock re-entrance: lock_count already %d", d.lockCount)
	}
	d.lockCount = 1
	if d.LockFn == nil || d.Mutex == nil {
		return nil
	}
	if err := d.LockFn(d.Mutex); err != nil {
		d.lockCount = 0
		return regerr.Report(regerr.Runtime, 1, "lock_fn failed: %v", err)
	}
	return nil
}

// unlock releases the lock taken by lock, calling UnlockFn if present.
func (d *Device) unlock() error {
	if d.lockCount != 1 {
		return regerr.Report(regerr.Runtime, 1, "unlock without matching lock: lock_count=%d", d.lockCount)
	}
	d.lockCount = 0
	if d.UnlockFn == nil || d.Mutex == nil {
		return nil
	}
	if err := d.UnlockFn(d.Mutex); err != nil {
		return regerr.Report(regerr.Runtime, 1, "unlock_fn failed: %v", err)
	}
	return nil
}
