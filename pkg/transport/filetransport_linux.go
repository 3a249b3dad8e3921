//go:build linux

package transport

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
)

// FileTransport backs a transport on a plain file, addressing register
// reg at byte offset reg*4: a stand-in for a /dev/mem-style register
// window on an embedded Linux target. Deliberately minimal: no mmap,
// no byte-order negotiation (little-endian fixed), just ReadAt/WriteAt
// so it can be pointed at a regular file in tests.
type FileTransport struct {
	f *os.File
}

// OpenFileTransport opens path for reading and writing. The file is
// created if missing; callers are responsible for sizing it to fit
// the device's reg_num*4 bytes.
func OpenFileTransport(path string) (*FileTransport, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("filetransport: open %s: %w", path, err)
	}
	return &FileTransport{f: f}, nil
}

// Close releases the backing file.
func (t *FileTransport) Close() error {
	return t.f.Close()
}

// Read implements ReadFunc.
func (t *FileTransport) Read(_ int, reg int) (uint32, error) {
	var buf [4]byte
	n, err := t.f.ReadAt(buf[:], int64(reg)*4)
	if err != nil && err != io.EOF {
		return 0, fmt.Errorf("filetransport: read reg %d: %w", reg, err)
	}
	if n < 4 {
		// Short read past the end of the backing file: an untouched
		// register reads back as zero, matching a freshly zeroed buffer.
		return 0, nil
	}
	return binary.LittleEndian.Uint32(buf[:]), nil
}

// Write implements WriteFunc.
func (t *FileTransport) Write(_ int, reg int, val uint32) error {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], val)
	if _, err := t.f.WriteAt(buf[:], int64(reg)*4); err != nil {
		return fmt.Errorf("filetransport: write reg %d: %w", reg, err)
	}
	return nil
}
