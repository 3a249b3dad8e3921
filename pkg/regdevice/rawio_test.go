package regdevice

import (
	"errors"
	"testing"

	"github.com/oisee/regio/pkg/field"
	"github.com/oisee/regio/pkg/transport"
)

func TestNewRejectsBadGeometry(t *testing.T) {
	if _, err := New(0, 4); err == nil {
		t.Error("New(0, 4) should fail: reg_width below 1")
	}
	if _, err := New(33, 4); err == nil {
		t.Error("New(33, 4) should fail: reg_width above 32")
	}
	if _, err := New(8, -1); err == nil {
		t.Error("New(8, -1) should fail: negative reg_num")
	}
}

func TestReadRejectsOutOfRange(t *testing.T) {
	d, _ := New(32, 2)
	if _, err := d.Read(2); err == nil {
		t.Error("Read(2) on a 2-register device should fail")
	}
	if _, err := d.Read(-1); err == nil {
		t.Error("Read(-1) should fail")
	}
}

func TestReadPullsThroughTransportAndCachesBuffer(t *testing.T) {
	d, _ := New(32, 1)
	mt := transport.NewMemTransport(1)
	mt.Seed([]uint32{0x42})
	d.ReadFn = mt.Read

	v, err := d.Read(0)
	if err != nil || v != 0x42 {
		t.Fatalf("Read(0) = %#x, err=%v, want 0x42", v, err)
	}
	if d.Data[0] != 0x42 {
		t.Errorf("data[0] = %#x, want cached 0x42", d.Data[0])
	}
}

func TestReadNocommSkipsTransport(t *testing.T) {
	d, _ := New(32, 1)
	d.Flags = field.NOCOMM
	d.Data[0] = 0x99
	d.ReadFn = func(int, int) (uint32, error) {
		t.Fatal("NOCOMM device must not call ReadFn")
		return 0, nil
	}
	v, err := d.Read(0)
	if err != nil || v != 0x99 {
		t.Errorf("Read(0) = %#x, err=%v, want buffered 0x99", v, err)
	}
}

func TestReadPropagatesTransportFailure(t *testing.T) {
	d, _ := New(32, 1)
	wantErr := errors.New("boom")
	d.ReadFn = func(int, int) (uint32, error) { return 0, wantErr }
	if _, err := d.Read(0); err == nil {
		t.Error("Read should fail when ReadFn fails")
	}
}

func TestWriteRejectsOversizedValue(t *testing.T) {
	d, _ := New(8, 1)
	d.Flags = field.NOCOMM
	if err := d.Write(0, 0x100); err == nil {
		t.Error("Write(0, 0x100) on an 8-bit register should fail")
	}
}

func TestWriteNocommSkipsTransport(t *testing.T) {
	d, _ := New(32, 1)
	d.Flags = field.NOCOMM
	d.WriteFn = func(int, int, uint32) error {
		t.Fatal("NOCOMM device must not call WriteFn")
		return nil
	}
	if err := d.Write(0, 0x1234); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if d.Data[0] != 0x1234 {
		t.Errorf("data[0] = %#x, want 0x1234", d.Data[0])
	}
}

func TestBulkReplacesBufferWithoutTransport(t *testing.T) {
	d, _ := New(32, 3)
	d.WriteFn = func(int, int, uint32) error {
		t.Fatal("Bulk must not touch transport")
		return nil
	}
	if err := d.Bulk([]uint32{1, 2, 3}); err != nil {
		t.Fatalf("Bulk: %v", err)
	}
	want := []uint32{1, 2, 3}
	for i, v := range want {
		if d.Data[i] != v {
			t.Errorf("data[%d] = %#x, want %#x", i, d.Data[i], v)
		}
	}
}

func TestBulkNilZeroes(t *testing.T) {
	d, _ := New(32, 2)
	d.Data[0], d.Data[1] = 7, 8
	if err := d.Bulk(nil); err != nil {
		t.Fatalf("Bulk(nil): %v", err)
	}
	if d.Data[0] != 0 || d.Data[1] != 0 {
		t.Errorf("data = %v, want zeroed", d.Data)
	}
}

func TestBulkRejectsWrongLength(t *testing.T) {
	d, _ := New(32, 2)
	if err := d.Bulk([]uint32{1}); err == nil {
		t.Error("Bulk with mismatched length should fail")
	}
}
