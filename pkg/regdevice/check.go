package regdevice

import (
	"github.com/oisee/regio/pkg/bitops"
	"github.com/oisee/regio/pkg/field"
	"github.com/oisee/regio/pkg/regerr"
)

// Check certifies that the device's active map is well-formed, by
// driving the map through its own codec rather than building a
// separate geometric model. It never touches real hardware: NOCOMM is
// forced for the duration and the prior flags are restored on return.
// The buffer is zeroed at entry, between phases, and before a
// successful return; a failing phase returns with the buffer as that
// phase left it.
func (d *Device) Check() error {
	if err := d.validateLockPair(); err != nil {
		return err
	}
	if d.Map == nil {
		return regerr.Report(regerr.Map, 1, "check: no active map")
	}

	if err := d.lock(); err != nil {
		return err
	}
	defer d.unlock()

	savedFlags := d.Flags
	d.Flags |= field.NOCOMM
	defer func() { d.Flags = savedFlags }()

	zero := func() {
		for i := range d.Data {
			d.Data[i] = 0
		}
	}
	zero()

	if err := d.checkWidthsAndNames(d.Map.NonUnderscore()); err != nil {
		return err
	}

	// Phases 2 and 3 drive the full map, padding included: a register
	// covered by a named field plus a padding field must still read back
	// as fully saturated, and an overlap against padding is an overlap
	// like any other. Only phase 1's name-uniqueness and width checks are
	// restricted to non-underscore entries.
	zero()
	if err := d.checkOverlaps(d.Map); err != nil {
		return err
	}

	zero()
	if err := d.checkCoverage(d.Map); err != nil {
		return err
	}

	zero()
	return nil
}

// checkWidthsAndNames is phase 1: width bounds, span bounds, duplicate
// names.
func (d *Device) checkWidthsAndNames(fields field.Map) error {
	seen := make(map[string]bool, len(fields))
	for _, f := range fields {
		if f.Width <= 0 {
			return regerr.Report(regerr.Map, 2, "field %q: width must be >= 1", f.Name)
		}
		if f.Width > 64 {
			return regerr.Report(regerr.Map, 2, "field %q: width %d exceeds 64", f.Name, f.Width)
		}
		if f.Reg < 0 || f.Reg >= d.RegNum {
			return regerr.Report(regerr.Map, 2, "field %q: reg %d out of range [0,%d)", f.Name, f.Reg, d.RegNum)
		}

		n := f.Span(d.RegWidth)
		if f.Flags.Has(field.DESCEND) {
			if f.Reg+1 < n {
				return regerr.Report(regerr.Map, 2, "field %q: descending span underflows register 0 (reg=%d, span=%d)", f.Name, f.Reg, n)
			}
		} else {
			if f.Reg+n > d.RegNum {
				return regerr.Report(regerr.Map, 2, "field %q: ascending span overruns device (reg=%d, span=%d, reg_num=%d)", f.Name, f.Reg, n, d.RegNum)
			}
		}

		if seen[f.Name] {
			return regerr.Report(regerr.Map, 2, "duplicate field name %q", f.Name)
		}
		seen[f.Name] = true
	}
	return nil
}

// checkOverlaps is phase 2: drive each field (including padding) to
// all-ones and zero in turn, proving no bits are shared with any other
// field.
func (d *Device) checkOverlaps(fields field.Map) error {
	for i := range fields {
		F := &fields[i]
		allOnes, _ := bitops.Mask(0, F.Width, 64) // named widths validated by phase 1; padding assumed well-formed

		if err := d.setField(F, allOnes); err != nil {
			return regerr.Report(regerr.Map, 2, "field %q: set during overlap check: %v", F.Name, err)
		}
		for j := range fields {
			if j == i {
				continue
			}
			if err := d.setField(&fields[j], 0); err != nil {
				return regerr.Report(regerr.Map, 2, "field %q: zero during overlap check: %v", fields[j].Name, err)
			}
		}

		got, err := d.getField(F)
		if err != nil {
			return err
		}
		if got != allOnes {
			return regerr.Report(regerr.Map, 2, "field %q overlaps another field: expected %#x, got %#x", F.Name, allOnes, got)
		}

		if err := d.setField(F, 0); err != nil {
			return regerr.Report(regerr.Map, 2, "field %q: clear during overlap check: %v", F.Name, err)
		}
		for j := range fields {
			got, err := d.getField(&fields[j])
			if err != nil {
				return err
			}
			if got != 0 {
				return regerr.Report(regerr.Map, 2, "field %q overlaps field %q: expected 0, got %#x", F.Name, fields[j].Name, got)
			}
		}
	}
	return nil
}

// checkCoverage is phase 3: with every field (including padding) driven
// to all-ones, every register must end up either untouched (0) or fully
// saturated: a register that is neither proves some bits of it belong
// to no field.
func (d *Device) checkCoverage(fields field.Map) error {
	for i := range fields {
		allOnes, _ := bitops.Mask(0, fields[i].Width, 64) // named widths validated by phase 1; padding assumed well-formed
		if err := d.setField(&fields[i], allOnes); err != nil {
			return regerr.Report(regerr.Map, 2, "field %q: set during coverage check: %v", fields[i].Name, err)
		}
	}

	full, _ := bitops.Mask(0, d.RegWidth, 32)
	for reg, val := range d.Data {
		if val != 0 && uint64(val) != full {
			return regerr.Report(regerr.Map, 2, "register %d partially covered: value %#x", reg, val)
		}
	}
	return nil
}
