package regdevice

import (
	"github.com/oisee/regio/pkg/bitops"
	"github.com/oisee/regio/pkg/field"
	"github.com/oisee/regio/pkg/regerr"
)

// Read returns data[reg], re-fetching it from the transport first
// unless NOCOMM is set. It does not take the device lock: atomicity
// is the field API's job.
func (d *Device) Read(reg int) (uint32, error) {
	if reg < 0 || reg >= d.RegNum {
		return 0, regerr.Report(regerr.Argument, 1, "read: reg %d out of range [0,%d)", reg, d.RegNum)
	}
	if d.Flags.Has(field.NOCOMM) {
		return d.Data[reg], nil
	}
	if d.ReadFn == nil {
		return 0, regerr.Report(regerr.Argument, 1, "read: reg %d: no read_fn configured", reg)
	}
	val, err := d.ReadFn(d.Arg, reg)
	if err != nil {
		return 0, regerr.Report(regerr.Runtime, 1, "read: reg %d: transport failed: %v", reg, err)
	}
	if !bitops.Fits(uint64(val), d.RegWidth) {
		return 0, regerr.Report(regerr.Runtime, 1, "read: reg %d: value %#x overflows %d-bit register", reg, val, d.RegWidth)
	}
	d.Data[reg] = val
	return d.Data[reg], nil
}

// Write stores val into register reg, relaying it to the transport
// unless NOCOMM is set.
func (d *Device) Write(reg int, val uint32) error {
	if reg < 0 || reg >= d.RegNum {
		return regerr.Report(regerr.Argument, 1, "write: reg %d out of range [0,%d)", reg, d.RegNum)
	}
	if !bitops.Fits(uint64(val), d.RegWidth) {
		return regerr.Report(regerr.Runtime, 1, "write: reg %d: value %#x overflows %d-bit register", reg, val, d.RegWidth)
	}
	if !d.Flags.Has(field.NOCOMM) {
		if d.WriteFn == nil {
			return regerr.Report(regerr.Argument, 1, "write: reg %d: no write_fn configured", reg)
		}
		if err := d.WriteFn(d.Arg, reg, val); err != nil {
			return regerr.Report(regerr.Runtime, 1, "write: reg %d: transport failed: %v", reg, err)
		}
	}
	d.Data[reg] = val
	return nil
}

// Bulk replaces the whole software buffer. A nil src zeroes it.
// Never touches the transport; takes the device lock for the duration.
func (d *Device) Bulk(src []uint32) error {
	if err := d.lock(); err != nil {
		return err
	}
	defer d.unlock()

	if src == nil {
		for i := range d.Data {
			d.Data[i] = 0
		}
		return nil
	}
	if len(src) != d.RegNum {
		return regerr.Report(regerr.Argument, 1, "bulk: src has %d words, want %d", len(src), d.RegNum)
	}
	copy(d.Data, src)
	return nil
}
