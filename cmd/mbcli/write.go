package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	modbus "github.com/thinkgos/mbus"
)

func newWriteCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "write <coils|holdings> <slave> <address> <value>...",
		Short: "Write coils or holding registers, slave 0 broadcasts",
		Example: `  mbcli write holdings 1 100 0x1234 42
  mbcli write coils 0 8 on off on`,
		Args: cobra.MinimumNArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}
			slaveID, address, err := parseTarget(args[1], args[2])
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			m, err := openMaster(ctx, cfg)
			if err != nil {
				return err
			}
			defer m.Close()
			return runWrite(ctx, modbus.NewClient(m), args[0], slaveID, address, args[3:])
		},
	}
}

// runWrite uses the single write function codes for one value.
func runWrite(ctx context.Context, c modbus.Client, table string, slaveID byte, address uint16, values []string) error {
	switch table {
	case "coils":
		packed, err := parseCoils(values)
		if err != nil {
			return err
		}
		if len(values) == 1 {
			return c.WriteSingleCoil(ctx, slaveID, address, packed[0] == 1)
		}
		return c.WriteMultipleCoils(ctx, slaveID, address, uint16(len(values)), packed)
	case "holdings":
		regs, err := parseRegisters(values)
		if err != nil {
			return err
		}
		if len(regs) == 1 {
			return c.WriteSingleRegister(ctx, slaveID, address, regs[0])
		}
		return c.WriteMultipleRegisters(ctx, slaveID, address, uint16(len(regs)), regs)
	}
	return fmt.Errorf("table '%s' must be coils or holdings", table)
}
