package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	modbus "github.com/thinkgos/mbus"
	"github.com/thinkgos/mbus/internal/config"
)

func newReadCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "read <coils|discretes|inputs|holdings> <slave> <address> <quantity>",
		Short: "Read a block of coils, discrete inputs or registers",
		Example: `  mbcli read holdings 1 0 10 --address 192.168.1.10:502
  mbcli read coils 3 0x10 16 --mode rtu --address /dev/ttyUSB0`,
		Args: cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}
			slaveID, address, err := parseTarget(args[1], args[2])
			if err != nil {
				return err
			}
			quantity, err := parseUint(args[3], 16, "quantity")
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			m, err := openMaster(ctx, cfg)
			if err != nil {
				return err
			}
			defer m.Close()
			return runRead(ctx, modbus.NewClient(m), os.Stdout, args[0], slaveID, address, uint16(quantity))
		},
	}
}

// runRead reads one block and prints one "address value" line per point.
func runRead(ctx context.Context, c modbus.Client, w io.Writer, table string,
	slaveID byte, address, quantity uint16) error {
	funcCode, err := config.TableFuncCode(table)
	if err != nil {
		return err
	}
	switch funcCode {
	case modbus.FuncCodeReadCoils, modbus.FuncCodeReadDiscreteInputs:
		var bits []byte
		if funcCode == modbus.FuncCodeReadCoils {
			bits, err = c.ReadCoils(ctx, slaveID, address, quantity)
		} else {
			bits, err = c.ReadDiscreteInputs(ctx, slaveID, address, quantity)
		}
		if err != nil {
			return err
		}
		for i := 0; i < int(quantity); i++ {
			fmt.Fprintf(w, "%d %d\n", int(address)+i, (bits[i/8]>>(i%8))&1)
		}
	default:
		var regs []uint16
		if funcCode == modbus.FuncCodeReadHoldingRegisters {
			regs, err = c.ReadHoldingRegisters(ctx, slaveID, address, quantity)
		} else {
			regs, err = c.ReadInputRegisters(ctx, slaveID, address, quantity)
		}
		if err != nil {
			return err
		}
		for i, v := range regs {
			fmt.Fprintf(w, "%d %d (0x%04x)\n", int(address)+i, v, v)
		}
	}
	return nil
}
