// Package mapcfg loads register maps and device geometry from TOML
// files: a declarative, read-only table describing field layout and
// device parameters, authored outside the binary.
package mapcfg

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"

	"github.com/oisee/regio/pkg/field"
)

var flagNames = map[string]field.Flags{
	"READONLY":  field.READONLY,
	"WRITEONLY": field.WRITEONLY,
	"VOLATILE":  field.VOLATILE,
	"NOCOMM":    field.NOCOMM,
	"ALIAS":     field.ALIAS,
	"DESCEND":   field.DESCEND,
	"MSR_FIRST": field.MSRFirst,
	"NORESET":   field.NORESET,
}

type fieldSpec struct {
	Name  string   `toml:"name"`
	Reg   int      `toml:"reg"`
	Offs  int      `toml:"offs"`
	Width int      `toml:"width"`
	Flags []string `toml:"flags"`
}

type mapSpec struct {
	Fields []fieldSpec `toml:"fields"`
}

type deviceSpec struct {
	RegWidth int `toml:"reg_width"`
	RegNum   int `toml:"reg_num"`
}

// fileSpec is the on-disk shape of a map file: one device geometry,
// an optional virtual name space, and one or more candidate maps. A
// plain (non-virtual) device file supplies exactly one [[maps]] table.
type fileSpec struct {
	Device        deviceSpec `toml:"device"`
	VirtualFields []string   `toml:"virtual_fields"`
	Maps          []mapSpec  `toml:"maps"`
}

func parseFlags(names []string) (field.Flags, error) {
	var out field.Flags
	for _, n := range names {
		bit, ok := flagNames[n]
		if !ok {
			return 0, fmt.Errorf("mapcfg: unknown flag %q", n)
		}
		out |= bit
	}
	return out, nil
}

func toFieldMap(spec mapSpec) (field.Map, error) {
	m := make(field.Map, len(spec.Fields))
	for i, fs := range spec.Fields {
		flags, err := parseFlags(fs.Flags)
		if err != nil {
			return nil, fmt.Errorf("mapcfg: field %q: %w", fs.Name, err)
		}
		m[i] = field.Descriptor{Name: fs.Name, Reg: fs.Reg, Offs: fs.Offs, Width: fs.Width, Flags: flags}
	}
	return m, nil
}

func decode(path string) (*fileSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("mapcfg: read %s: %w", path, err)
	}
	var spec fileSpec
	if _, err := toml.Decode(string(data), &spec); err != nil {
		return nil, fmt.Errorf("mapcfg: parse %s: %w", path, err)
	}
	if spec.Device.RegWidth == 0 {
		return nil, fmt.Errorf("mapcfg: %s: missing [device] reg_width", path)
	}
	if len(spec.Maps) == 0 {
		return nil, fmt.Errorf("mapcfg: %s: no [[maps]] tables", path)
	}
	return &spec, nil
}

// Device is the decoded result of a single-map device file: register
// geometry plus the one active map.
type Device struct {
	RegWidth int
	RegNum   int
	Map      field.Map
}

// LoadDevice reads a file describing one physical device: a [device]
// table and a single [[maps]] entry.
func LoadDevice(path string) (*Device, error) {
	spec, err := decode(path)
	if err != nil {
		return nil, err
	}
	if len(spec.Maps) != 1 {
		return nil, fmt.Errorf("mapcfg: %s: want exactly one [[maps]] table for a physical device, got %d", path, len(spec.Maps))
	}
	m, err := toFieldMap(spec.Maps[0])
	if err != nil {
		return nil, err
	}
	return &Device{RegWidth: spec.Device.RegWidth, RegNum: spec.Device.RegNum, Map: m}, nil
}

// VirtualSpec is the decoded result of a virtual-device file: register
// geometry, the virtual name space, and every candidate physical map.
type VirtualSpec struct {
	RegWidth int
	RegNum   int
	Fields   []string
	Maps     []field.Map
}

// LoadVirtual reads a file describing a virtual device: a [device]
// table, a virtual_fields name list, and one or more [[maps]] entries.
func LoadVirtual(path string) (*VirtualSpec, error) {
	spec, err := decode(path)
	if err != nil {
		return nil, err
	}
	if len(spec.VirtualFields) == 0 {
		return nil, fmt.Errorf("mapcfg: %s: missing virtual_fields", path)
	}

	maps := make([]field.Map, len(spec.Maps))
	for i, ms := range spec.Maps {
		m, err := toFieldMap(ms)
		if err != nil {
			return nil, fmt.Errorf("mapcfg: %s: map %d: %w", path, i, err)
		}
		maps[i] = m
	}

	return &VirtualSpec{
		RegWidth: spec.Device.RegWidth,
		RegNum:   spec.Device.RegNum,
		Fields:   spec.VirtualFields,
		Maps:     maps,
	}, nil
}
