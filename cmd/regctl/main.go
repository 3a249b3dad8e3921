//go:build linux

// Command regctl is a command-line front end over the register-map
// core: load a TOML map, certify it, and read or write fields against
// either a plain file-backed register window or an in-memory device
// for dry runs.
package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/oisee/regio/pkg/mapcfg"
	"github.com/oisee/regio/pkg/regdevice"
	"github.com/oisee/regio/pkg/regerr"
	"github.com/oisee/regio/pkg/transport"
	"github.com/oisee/regio/pkg/vdevice"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "regctl",
		Short: "Register-and-field device control",
	}

	var mapPath string
	var filePath string

	openDevice := func() (*regdevice.Device, *transport.FileTransport, error) {
		dev, err := mapcfg.LoadDevice(mapPath)
		if err != nil {
			return nil, nil, err
		}
		d, err := regdevice.New(dev.RegWidth, dev.RegNum)
		if err != nil {
			return nil, nil, err
		}
		d.Map = dev.Map

		if filePath == "" {
			mt := transport.NewMemTransport(dev.RegNum)
			d.ReadFn, d.WriteFn = mt.Read, mt.Write
			return d, nil, nil
		}
		ft, err := transport.OpenFileTransport(filePath)
		if err != nil {
			return nil, nil, err
		}
		d.ReadFn, d.WriteFn = ft.Read, ft.Write
		return d, ft, nil
	}

	checkCmd := &cobra.Command{
		Use:   "check",
		Short: "Certify the active map: no overlaps, no partially covered registers, no duplicate names",
		RunE: func(cmd *cobra.Command, args []string) error {
			dev, err := mapcfg.LoadDevice(mapPath)
			if err != nil {
				return err
			}
			d, err := regdevice.New(dev.RegWidth, dev.RegNum)
			if err != nil {
				return err
			}
			d.Map = dev.Map
			if err := d.Check(); err != nil {
				return err
			}
			fmt.Printf("map %s: OK (%d fields, %d registers)\n", mapPath, len(dev.Map.NonUnderscore()), dev.RegNum)
			return nil
		},
	}

	getCmd := &cobra.Command{
		Use:   "get [field]",
		Short: "Read a field's current value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, ft, err := openDevice()
			if err != nil {
				return err
			}
			if ft != nil {
				defer ft.Close()
			}
			v, err := d.Get(args[0])
			if err != nil {
				return err
			}
			fmt.Printf("%s = %#x (%d)\n", args[0], v, v)
			return nil
		},
	}

	setCmd := &cobra.Command{
		Use:   "set [field] [value]",
		Short: "Write a value to a field",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			val, err := parseUint(args[1])
			if err != nil {
				return err
			}
			d, ft, err := openDevice()
			if err != nil {
				return err
			}
			if ft != nil {
				defer ft.Close()
			}
			if err := d.Set(args[0], val); err != nil {
				return err
			}
			fmt.Printf("%s <- %#x\n", args[0], val)
			return nil
		},
	}

	dumpCmd := &cobra.Command{
		Use:   "dump",
		Short: "Print every non-underscore field and its current value",
		RunE: func(cmd *cobra.Command, args []string) error {
			d, ft, err := openDevice()
			if err != nil {
				return err
			}
			if ft != nil {
				defer ft.Close()
			}
			for _, f := range d.Map.NonUnderscore() {
				v, err := d.Get(f.Name)
				if err != nil {
					fmt.Printf("%-20s <error: %v>\n", f.Name, err)
					continue
				}
				fmt.Printf("%-20s = %#x\n", f.Name, v)
			}
			return nil
		},
	}

	var errN int
	errsCmd := &cobra.Command{
		Use:   "errs",
		Short: "Show the most recently reported errors",
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, e := range regerr.Recent(errN) {
				fmt.Println(e.Error())
			}
			return nil
		},
	}
	errsCmd.Flags().IntVar(&errN, "n", 20, "number of recent errors to show")

	vswitchCmd := &cobra.Command{
		Use:   "vswitch [field] [value]",
		Short: "Adjust a virtual-device field, switching physical maps as needed",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			val, err := parseUint(args[1])
			if err != nil {
				return err
			}

			vs, err := mapcfg.LoadVirtual(mapPath)
			if err != nil {
				return err
			}
			base, err := regdevice.New(vs.RegWidth, vs.RegNum)
			if err != nil {
				return err
			}

			var loadFn transport.LoadFunc
			var mts []*transport.MemTransport
			if filePath == "" {
				for range vs.Maps {
					mts = append(mts, transport.NewMemTransport(vs.RegNum))
				}
				loadFn = func(_ int, id int) error {
					base.ReadFn, base.WriteFn = mts[id].Read, mts[id].Write
					return nil
				}
			} else {
				ft, err := transport.OpenFileTransport(filePath)
				if err != nil {
					return err
				}
				defer ft.Close()
				base.ReadFn, base.WriteFn = ft.Read, ft.Write
				loadFn = func(int, int) error { return nil }
			}

			v, err := vdevice.New(vs.Fields, vs.Maps, base, loadFn, 0)
			if err != nil {
				return err
			}
			if err := v.Verify(); err != nil {
				return fmt.Errorf("verify: %w", err)
			}
			if err := v.Adjust(args[0], val); err != nil {
				return err
			}
			fmt.Printf("%s <- %#x\n", args[0], val)
			return nil
		},
	}

	for _, c := range []*cobra.Command{checkCmd, getCmd, setCmd, dumpCmd, vswitchCmd} {
		c.Flags().StringVar(&mapPath, "map", "", "path to a TOML map file")
		c.Flags().StringVar(&filePath, "file", "", "path to a register-backed file (default: in-memory)")
		_ = c.MarkFlagRequired("map")
	}

	rootCmd.AddCommand(checkCmd, getCmd, setCmd, dumpCmd, errsCmd, vswitchCmd)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func parseUint(s string) (uint64, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		return strconv.ParseUint(s[2:], 16, 64)
	}
	return strconv.ParseUint(s, 10, 64)
}
