package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	modbus "github.com/thinkgos/mbus"
	"github.com/thinkgos/mbus/internal/config"
)

func newServeCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve a slave with in-memory tables",
		Long: `Serve a modbus slave. The tables and unit id come from the slave section of
the config file, all values start at zero. In tcp mode --address is the listen
address and every unit id is answered. Press Ctrl+C to stop.`,
		Example: `  mbcli serve --address :1502
  mbcli serve --mode rtu --address /dev/ttyUSB1 -c slave.yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cfg)
		},
	}
}

func runServe(ctx context.Context, cfg *config.Config) error {
	log := newLogger(cfg)
	slave := modbus.NewSlave(cfg.Slave.UnitID, cfg.NodeRegister())
	opts := append(cfg.Options(), modbus.WithLogProvider(modbus.NewZerologProvider(log)))

	log.Info().Str("mode", string(cfg.Link.Mode)).Str("address", cfg.Link.Address).
		Uint8("unit", cfg.Slave.UnitID).Msg("serving")
	var err error
	switch cfg.Link.Mode {
	case config.ModeTCP:
		err = modbus.NewTCPSlave(slave, opts...).ListenAndServe(ctx, cfg.Link.Address)
	default:
		var port *modbus.SerialPort
		if port, err = openSerial(cfg); err != nil {
			return err
		}
		defer port.Close()
		if cfg.Link.Mode == config.ModeRTU {
			err = modbus.NewRTUSlave(port, slave, opts...).Listen(ctx)
		} else {
			err = modbus.NewASCIISlave(port, slave, opts...).Listen(ctx)
		}
	}
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	log.Info().Err(err).Msg("stopped")
	return err
}
