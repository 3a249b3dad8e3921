// Package vdevice implements the virtual-device multiplexer: a larger
// logical name space laid over a single reconfigurable physical
// device, remembering values across map switches and lazily loading
// whichever candidate map can hold a requested field.
package vdevice

import (
	"runtime"
	"strings"
	"sync"

	"github.com/oisee/regio/pkg/bitops"
	"github.com/oisee/regio/pkg/field"
	"github.com/oisee/regio/pkg/regdevice"
	"github.com/oisee/regio/pkg/regerr"
	"github.com/oisee/regio/pkg/transport"
)

// mapSlot records where one virtual field name can be found among the
// candidate maps, in declaration order.
type mapSlot struct {
	mapID int
	width int
}

// Virtual is a composite device: a name space (Fields/Data) layered
// over a family of physical register maps (Maps), switched via LoadFn.
type Virtual struct {
	Fields []string // virtual name space, in declaration order
	Data   []uint64 // current value of each virtual field, parallel to Fields

	Maps []field.Map // candidate physical maps, in declaration order

	LoadFn transport.LoadFunc
	Arg    int

	Base *regdevice.Device // embedded physical device context

	active   int // index into Maps, or -1 if none installed
	fieldIdx map[string]int
	mapIdx   map[string][]mapSlot
}

// New builds a Virtual device over base. base's RegWidth/RegNum supply
// the geometry every candidate map is checked against; base.Map is
// left nil until the first Adjust lazily installs Maps[0].
func New(fields []string, maps []field.Map, base *regdevice.Device, loadFn transport.LoadFunc, arg int) (*Virtual, error) {
	if len(fields) == 0 {
		return nil, regerr.Report(regerr.Virtual, 1, "virtual device: fields list is empty")
	}
	if len(maps) == 0 {
		return nil, regerr.Report(regerr.Virtual, 1, "virtual device: maps list is empty")
	}

	v := &Virtual{
		Fields: fields,
		Data:   make([]uint64, len(fields)),
		Maps:   maps,
		Base:   base,
		LoadFn: loadFn,
		Arg:    arg,
		active: -1,
	}

	v.fieldIdx = make(map[string]int, len(fields))
	for i, name := range fields {
		if _, dup := v.fieldIdx[name]; dup {
			return nil, regerr.Report(regerr.Virtual, 1, "virtual device: duplicate field name %q", name)
		}
		v.fieldIdx[name] = i
	}
	return v, nil
}

// Verify certifies every candidate map with Check (run concurrently,
// one scratch device per map so no candidate's validation can
// interfere with another's), then confirms every non-underscore
// virtual name appears in at least one map. On success it clears the
// active map, forcing lazy re-activation on the next Adjust.
func (v *Virtual) Verify() error {
	if err := v.checkAllMaps(); err != nil {
		return err
	}
	if err := v.checkNameCoverage(); err != nil {
		return err
	}

	v.active = -1
	v.Base.Map = nil
	v.buildMapIndex()
	return nil
}

type verifyTask struct {
	id int
	m  field.Map
}

// checkAllMaps runs Check on every candidate map in parallel. Each
// worker builds its own scratch device sharing the base geometry, so
// candidates never race over a shared buffer: a channel of tasks feeds
// a fixed pool of goroutines, and a mutex guards the first error seen.
func (v *Virtual) checkAllMaps() error {
	tasks := make(chan verifyTask, len(v.Maps))
	for i, m := range v.Maps {
		tasks <- verifyTask{id: i, m: m}
	}
	close(tasks)

	workers := runtime.NumCPU()
	if workers > len(v.Maps) {
		workers = len(v.Maps)
	}
	if workers < 1 {
		workers = 1
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for t := range tasks {
				scratch, err := regdevice.New(v.Base.RegWidth, v.Base.RegNum)
				if err == nil {
					scratch.Map = t.m
					err = scratch.Check()
				}
				if err != nil {
					mu.Lock()
					if firstErr == nil {
						firstErr = regerr.Report(regerr.Virtual, 1, "candidate map %d: %v", t.id, err)
					}
					mu.Unlock()
				}
			}
		}()
	}
	wg.Wait()
	return firstErr
}

func (v *Virtual) checkNameCoverage() error {
	for _, name := range v.Fields {
		if strings.HasPrefix(name, "_") {
			continue
		}
		found := false
		for _, m := range v.Maps {
			if f, ok := field.Lookup(m, name); ok && !f.Underscore() {
				found = true
				break
			}
		}
		if !found {
			return regerr.Report(regerr.Virtual, 1, "virtual field %q is not present in any candidate map", name)
		}
	}
	return nil
}

// buildMapIndex records, for every non-underscore field name appearing
// in any candidate map, the ordered list of (map id, width) it can be
// found at. Adjust's map-selection scan walks this instead of Maps
// directly, but the order is identical to declaration order.
func (v *Virtual) buildMapIndex() {
	idx := make(map[string][]mapSlot)
	for id, m := range v.Maps {
		for _, f := range m {
			if f.Underscore() {
				continue
			}
			idx[f.Name] = append(idx[f.Name], mapSlot{mapID: id, width: f.Width})
		}
	}
	v.mapIdx = idx
}

// Obtain returns the current virtual value of name. It never consults
// hardware: VOLATILE has no effect here.
func (v *Virtual) Obtain(name string) (uint64, error) {
	i, ok := v.fieldIdx[name]
	if !ok {
		return 0, regerr.Report(regerr.Virtual, 1, "virtual field %q not found", name)
	}
	return v.Data[i], nil
}

// Adjust writes value to the named virtual field, switching to
// whichever candidate map currently holds it (and can hold value's
// width) and reloading the physical device if a switch is needed.
func (v *Virtual) Adjust(name string, value uint64) error {
	i, ok := v.fieldIdx[name]
	if !ok {
		return regerr.Report(regerr.Virtual, 1, "virtual field %q not found", name)
	}
	v.Data[i] = value

	if strings.HasPrefix(name, "_") {
		return nil
	}

	if v.active == -1 {
		if err := v.activate(0); err != nil {
			return err
		}
	}

	if f, ok := field.Lookup(v.Base.Map, name); ok && !f.Underscore() && bitops.Fits(value, f.Width) {
		return v.Base.Set(name, value)
	}

	id, ok := v.findFittingMap(name, value)
	if !ok {
		return regerr.Report(regerr.Virtual, 1, "field %q: value %#x fits no candidate map", name, value)
	}

	if err := v.activate(id); err != nil {
		return err
	}
	if err := v.resetPass(name); err != nil {
		return err
	}
	return v.Base.Set(name, value)
}

func (v *Virtual) findFittingMap(name string, value uint64) (int, bool) {
	for _, slot := range v.mapIdx[name] {
		if bitops.Fits(value, slot.width) {
			return slot.mapID, true
		}
	}
	return 0, false
}

func (v *Virtual) activate(id int) error {
	if v.LoadFn != nil {
		if err := v.LoadFn(v.Arg, id); err != nil {
			return regerr.Report(regerr.Virtual, 2, "load_fn(%d) failed: %v", id, err)
		}
	}
	v.Base.Map = v.Maps[id]
	v.active = id
	return nil
}

// resetPass re-materializes prior virtual values into the just-loaded
// map. The triggering field is skipped here; its value is applied by
// the caller once the reset pass returns. NORESET and underscore
// fields are left at zero; values that no longer fit the new field's
// width are skipped and remain only in the virtual buffer.
func (v *Virtual) resetPass(trigger string) error {
	if err := v.Base.Bulk(nil); err != nil {
		return err
	}
	for _, f := range v.Base.Map {
		if f.Name == trigger || f.Underscore() {
			continue
		}
		if (v.Base.Flags | f.Flags).Has(field.NORESET) {
			continue
		}
		i, ok := v.fieldIdx[f.Name]
		if !ok {
			continue
		}
		val := v.Data[i]
		if !bitops.Fits(val, f.Width) {
			continue
		}
		if err := v.Base.Set(f.Name, val); err != nil {
			return err
		}
	}
	return nil
}
