package vdevice

import (
	"errors"
	"testing"

	"github.com/oisee/regio/pkg/field"
	"github.com/oisee/regio/pkg/regdevice"
)

func newScenario6(t *testing.T) (*Virtual, *[]int) {
	t.Helper()
	map1 := field.Map{
		{Name: "A", Reg: 0, Offs: 0, Width: 8},
		{Name: "B", Reg: 0, Offs: 8, Width: 8},
		{Name: "C", Reg: 1, Offs: 0, Width: 16},
	}
	map2 := field.Map{
		{Name: "P", Reg: 0, Offs: 0, Width: 8},
		{Name: "Q", Reg: 0, Offs: 8, Width: 8, Flags: field.NORESET},
		{Name: "A", Reg: 1, Offs: 0, Width: 16},
	}

	base, err := regdevice.New(16, 2)
	if err != nil {
		t.Fatalf("regdevice.New: %v", err)
	}
	base.Flags = field.NOCOMM

	var loads []int
	loadFn := func(_ int, id int) error {
		loads = append(loads, id)
		return nil
	}

	v, err := New([]string{"A", "B", "C", "P", "Q"}, []field.Map{map1, map2}, base, loadFn, 0)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := v.Verify(); err != nil {
		t.Fatalf("Verify: %v", err)
	}
	return v, &loads
}

func TestScenario6VirtualDeviceSequence(t *testing.T) {
	v, loads := newScenario6(t)

	steps := []struct {
		name  string
		value uint64
	}{
		{"A", 0xFF},
		{"P", 0xFF},
		{"Q", 0x67},
		{"B", 0xFF},
	}
	for _, s := range steps {
		if err := v.Adjust(s.name, s.value); err != nil {
			t.Fatalf("Adjust(%s, %#x): %v", s.name, s.value, err)
		}
	}

	if v.active != 0 {
		t.Errorf("active map = %d, want 0 (map1)", v.active)
	}

	wantVirtual := map[string]uint64{"A": 0xFF, "B": 0xFF, "C": 0, "P": 0xFF, "Q": 0x67}
	for name, want := range wantVirtual {
		got, err := v.Obtain(name)
		if err != nil || got != want {
			t.Errorf("Obtain(%s) = %#x, err=%v, want %#x", name, got, err, want)
		}
	}

	if v.Base.Data[0] != 0xFFFF || v.Base.Data[1] != 0x0000 {
		t.Errorf("physical buffer = [%#x, %#x], want [0xffff, 0x0]", v.Base.Data[0], v.Base.Data[1])
	}

	if err := v.Adjust("A", 0xFFFF); err != nil {
		t.Fatalf("Adjust(A, 0xFFFF): %v", err)
	}
	if v.active != 1 {
		t.Errorf("active map = %d, want 1 (map2)", v.active)
	}
	if v.Base.Data[0] != 0xFF || v.Base.Data[1] != 0xFFFF {
		t.Errorf("physical buffer = [%#x, %#x], want [0xff, 0xffff] (B,C dropped)", v.Base.Data[0], v.Base.Data[1])
	}

	wantLoads := []int{0, 1, 0, 1}
	if len(*loads) != len(wantLoads) {
		t.Fatalf("load_fn calls = %v, want %v", *loads, wantLoads)
	}
	for i, id := range wantLoads {
		if (*loads)[i] != id {
			t.Errorf("load_fn call %d = %d, want %d", i, (*loads)[i], id)
		}
	}
}

func TestVerifyRejectsMapWithOverlap(t *testing.T) {
	bad := field.Map{
		{Name: "A", Reg: 0, Offs: 0, Width: 16},
		{Name: "B", Reg: 0, Offs: 8, Width: 16},
	}
	base, _ := regdevice.New(32, 1)
	v, err := New([]string{"A", "B"}, []field.Map{bad}, base, nil, 0)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := v.Verify(); err == nil {
		t.Error("Verify should reject a map with overlapping fields")
	}
}

func TestVerifyRejectsUnmappedVirtualName(t *testing.T) {
	m := field.Map{{Name: "A", Reg: 0, Offs: 0, Width: 8}}
	base, _ := regdevice.New(8, 1)
	v, err := New([]string{"A", "GHOST"}, []field.Map{m}, base, nil, 0)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := v.Verify(); err == nil {
		t.Error("Verify should reject a virtual name absent from every map")
	}
}

func TestNewRejectsEmptyListsAndDuplicateNames(t *testing.T) {
	m := field.Map{{Name: "A", Reg: 0, Offs: 0, Width: 8}}
	base, _ := regdevice.New(32, 1)

	if _, err := New(nil, []field.Map{m}, base, nil, 0); err == nil {
		t.Error("New with empty fields should fail")
	}
	if _, err := New([]string{"A"}, nil, base, nil, 0); err == nil {
		t.Error("New with empty maps should fail")
	}
	if _, err := New([]string{"A", "A"}, []field.Map{m}, base, nil, 0); err == nil {
		t.Error("New with duplicate virtual names should fail")
	}
}

func TestAdjustRejectsUnknownName(t *testing.T) {
	m := field.Map{{Name: "A", Reg: 0, Offs: 0, Width: 8}}
	base, _ := regdevice.New(8, 1)
	base.Flags = field.NOCOMM
	v, _ := New([]string{"A"}, []field.Map{m}, base, func(int, int) error { return nil }, 0)
	if err := v.Verify(); err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if err := v.Adjust("GHOST", 1); err == nil {
		t.Error("Adjust of an unknown virtual name should fail")
	}
}

func TestAdjustUnderscoreNameIsPurelyVirtual(t *testing.T) {
	m := field.Map{{Name: "A", Reg: 0, Offs: 0, Width: 8}}
	base, _ := regdevice.New(8, 1)
	base.Flags = field.NOCOMM
	var loaded bool
	v, _ := New([]string{"A", "_SCRATCH"}, []field.Map{m}, base, func(int, int) error { loaded = true; return nil }, 0)
	if err := v.Verify(); err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if err := v.Adjust("_SCRATCH", 42); err != nil {
		t.Fatalf("Adjust(_SCRATCH): %v", err)
	}
	if loaded {
		t.Error("adjusting a purely virtual (underscore) name must not trigger a map load")
	}
	got, err := v.Obtain("_SCRATCH")
	if err != nil || got != 42 {
		t.Errorf("Obtain(_SCRATCH) = %d, err=%v, want 42", got, err)
	}
}

func TestAdjustFailsWhenNoMapFits(t *testing.T) {
	m := field.Map{{Name: "A", Reg: 0, Offs: 0, Width: 8}}
	base, _ := regdevice.New(8, 1)
	base.Flags = field.NOCOMM
	v, _ := New([]string{"A"}, []field.Map{m}, base, func(int, int) error { return nil }, 0)
	if err := v.Verify(); err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if err := v.Adjust("A", 0x1FF); err == nil {
		t.Error("Adjust should fail when no candidate map's field width fits the value")
	}
}

func TestActivatePropagatesLoadFnFailure(t *testing.T) {
	m := field.Map{{Name: "A", Reg: 0, Offs: 0, Width: 8}}
	base, _ := regdevice.New(8, 1)
	base.Flags = field.NOCOMM
	wantErr := errors.New("device reset failed")
	v, _ := New([]string{"A"}, []field.Map{m}, base, func(int, int) error { return wantErr }, 0)
	if err := v.Verify(); err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if err := v.Adjust("A", 1); err == nil {
		t.Error("Adjust should fail when load_fn fails on first activation")
	}
}
