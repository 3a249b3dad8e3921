package regdevice

import (
	"github.com/oisee/regio/pkg/field"
	"github.com/oisee/regio/pkg/regerr"
)

// lookupPublic finds a non-underscore field by name in the active map.
// Underscore (padding/reserved) fields are never exposed by Get/Set.
func (d *Device) lookupPublic(name string) (*field.Descriptor, error) {
	if d.Map == nil {
		return nil, regerr.Report(regerr.Argument, 2, "no active map")
	}
	for i := range d.Map {
		if d.Map[i].Underscore() {
			continue
		}
		if d.Map[i].Name == name {
			return &d.Map[i], nil
		}
	}
	return nil, regerr.Report(regerr.Argument, 2, "field %q not found", name)
}

// Get locks the device, looks up name, and returns its current value.
// Returns 0 on any failure.
func (d *Device) Get(name string) (uint64, error) {
	if err := d.lock(); err != nil {
		return 0, err
	}
	defer d.unlock()

	f, err := d.lookupPublic(name)
	if err != nil {
		return 0, err
	}
	return d.getField(f)
}

// Set locks the device, looks up name, and writes value to it.
func (d *Device) Set(name string, value uint64) error {
	if err := d.lock(); err != nil {
		return err
	}
	defer d.unlock()

	f, err := d.lookupPublic(name)
	if err != nil {
		return err
	}
	return d.setField(f, value)
}

// FieldWidthUnknown is returned by FieldWidth when name is not found.
const FieldWidthUnknown = 0xFF

// FieldWidth returns name's width without locking the device, or
// FieldWidthUnknown if name is not present in the active map.
func (d *Device) FieldWidth(name string) int {
	f, err := d.lookupPublic(name)
	if err != nil {
		return FieldWidthUnknown
	}
	return f.Width
}
