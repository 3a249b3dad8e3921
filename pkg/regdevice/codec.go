package regdevice

import (
	"github.com/oisee/regio/pkg/bitops"
	"github.com/oisee/regio/pkg/field"
	"github.com/oisee/regio/pkg/regerr"
)

// effectiveFlags computes device.Flags | field.Flags for one operation.
func (d *Device) effectiveFlags(f *field.Descriptor) field.Flags {
	return d.Flags | f.Flags
}

// chunkGeometry describes one register-sized slice of a field.
type chunkGeometry struct {
	reg        int // register index holding this chunk
	regStart   int // bit offset of the chunk within that register
	length     int // chunk width in bits
	valueShift int // bit offset of the chunk within the 64-bit field value
}

// chunks returns the ordered (ascending chunk-index) geometry of every
// chunk field f occupies at the device's register width.
func chunks(f *field.Descriptor, regWidth int) []chunkGeometry {
	n := f.Span(regWidth)
	out := make([]chunkGeometry, n)

	len0 := minInt(f.Offs+f.Width, regWidth) - f.Offs
	for i := 0; i < n; i++ {
		var reg int
		if f.Flags.Has(field.DESCEND) {
			reg = f.Reg - i
		} else {
			reg = f.Reg + i
		}

		var regStart, length, valueShift int
		if i == 0 {
			regStart = f.Offs
			length = len0
			valueShift = 0
		} else {
			regStart = 0
			length = minInt(regWidth, f.Width-len0-(i-1)*regWidth)
			valueShift = len0 + (i-1)*regWidth
		}

		out[i] = chunkGeometry{reg: reg, regStart: regStart, length: length, valueShift: valueShift}
	}
	return out
}

// writeOrder returns chunk indices in the order they should be written:
// ascending by default, reversed under MSR_FIRST.
func writeOrder(n int, flags field.Flags) []int {
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	if flags.Has(field.MSRFirst) {
		for i, j := 0, len(order)-1; i < j; i, j = i+1, j-1 {
			order[i], order[j] = order[j], order[i]
		}
	}
	return order
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// getField reads f's current value out of the buffer, reloading each
// touched register first if the effective flags are volatile (and not
// NOCOMM). It does not take the device lock or look up the name.
func (d *Device) getField(f *field.Descriptor) (uint64, error) {
	eff := d.effectiveFlags(f)
	cs := chunks(f, d.RegWidth)

	var value uint64
	for _, c := range cs {
		if c.reg < 0 || c.reg >= d.RegNum {
			return 0, regerr.Report(regerr.Map, 2, "field %q: chunk register %d out of range [0,%d)", f.Name, c.reg, d.RegNum)
		}

		var regVal uint32
		if eff.Has(field.VOLATILE) && !eff.Has(field.NOCOMM) {
			v, err := d.Read(c.reg)
			if err != nil {
				return 0, err
			}
			regVal = v
		} else {
			regVal = d.Data[c.reg]
		}

		mask, ok := bitops.Mask(c.regStart, c.length, d.RegWidth)
		if !ok {
			return 0, regerr.Report(regerr.Map, 2, "field %q: invalid chunk geometry", f.Name)
		}
		chunkBits := (uint64(regVal) & mask) >> uint(c.regStart)
		value |= chunkBits << uint(c.valueShift)
	}
	return value, nil
}

// setField writes value into f, honoring write order (MSR_FIRST) and
// stopping at the first transport failure. Chunks already written
// before the failure remain in the buffer and on the wire: no rollback.
func (d *Device) setField(f *field.Descriptor, value uint64) error {
	if !bitops.Fits(value, f.Width) {
		return regerr.Report(regerr.Runtime, 2, "field %q: value %#x does not fit %d bits", f.Name, value, f.Width)
	}

	eff := d.effectiveFlags(f)
	cs := chunks(f, d.RegWidth)

	for _, idx := range writeOrder(len(cs), eff) {
		c := cs[idx]
		if c.reg < 0 || c.reg >= d.RegNum {
			return regerr.Report(regerr.Map, 2, "field %q: chunk register %d out of range [0,%d)", f.Name, c.reg, d.RegNum)
		}

		mask, ok := bitops.Mask(c.regStart, c.length, d.RegWidth)
		if !ok {
			return regerr.Report(regerr.Map, 2, "field %q: invalid chunk geometry", f.Name)
		}
		// Take the value's bits for this chunk and place them at regStart.
		valBits := (value >> uint(c.valueShift)) & (mask >> uint(c.regStart))
		regBits := valBits << uint(c.regStart)
		newReg := (uint64(d.Data[c.reg]) &^ mask) | regBits

		if err := d.Write(c.reg, uint32(newReg)); err != nil {
			return err
		}
	}
	return nil
}
