package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	modbus "github.com/thinkgos/mbus"
	"github.com/thinkgos/mbus/internal/config"
)

type globalFlags struct {
	config  string
	mode    string
	address string
	debug   bool
}

// loadConfig the config file, or the defaults, with the flag overrides.
func loadConfig(flags *globalFlags) (*config.Config, error) {
	cfg := config.Default()
	if flags.config != "" {
		var err error
		if cfg, err = config.Load(flags.config); err != nil {
			return nil, err
		}
	}
	if flags.mode != "" {
		cfg.Link.Mode = config.Mode(flags.mode)
	}
	if flags.address != "" {
		cfg.Link.Address = flags.address
	}
	if flags.debug {
		cfg.Debug = true
	}
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) zerolog.Logger {
	level := zerolog.InfoLevel
	if cfg.Debug {
		level = zerolog.DebugLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		Level(level).With().Timestamp().Logger()
}

// openSerial opens the serial line of the link.
func openSerial(cfg *config.Config) (*modbus.SerialPort, error) {
	port := modbus.NewSerialPort(cfg.SerialConfig())
	if err := port.Connect(); err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.Link.Address, err)
	}
	return port, nil
}

// openMaster connects a master as the link describes.
func openMaster(ctx context.Context, cfg *config.Config) (*modbus.Master, error) {
	opts := append(cfg.Options(), modbus.WithLogProvider(modbus.NewZerologProvider(newLogger(cfg))))
	switch cfg.Link.Mode {
	case config.ModeTCP:
		return modbus.DialTCPMaster(ctx, cfg.Link.Address, opts...)
	case config.ModeRTU, config.ModeASCII:
		port, err := openSerial(cfg)
		if err != nil {
			return nil, err
		}
		if cfg.Link.Mode == config.ModeRTU {
			return modbus.NewRTUMaster(port, opts...), nil
		}
		return modbus.NewASCIIMaster(port, opts...), nil
	}
	return nil, fmt.Errorf("unknown mode '%s'", cfg.Link.Mode)
}

func parseUint(s string, bitSize int, what string) (uint64, error) {
	v, err := strconv.ParseUint(s, 0, bitSize)
	if err != nil {
		return 0, fmt.Errorf("%s '%s': %w", what, s, err)
	}
	return v, nil
}

// parseTarget slave id and address arguments.
func parseTarget(slave, address string) (byte, uint16, error) {
	id, err := parseUint(slave, 8, "slave id")
	if err != nil {
		return 0, 0, err
	}
	addr, err := parseUint(address, 16, "address")
	if err != nil {
		return 0, 0, err
	}
	return byte(id), uint16(addr), nil
}

// parseRegisters register values, decimal or 0x hex.
func parseRegisters(args []string) ([]uint16, error) {
	values := make([]uint16, 0, len(args))
	for _, arg := range args {
		v, err := parseUint(arg, 16, "register value")
		if err != nil {
			return nil, err
		}
		values = append(values, uint16(v))
	}
	return values, nil
}

// parseCoils coil values as 1/0, on/off or true/false, packed lsb first.
func parseCoils(args []string) ([]byte, error) {
	packed := make([]byte, (len(args)+7)/8)
	for i, arg := range args {
		var on bool
		switch arg {
		case "1", "on", "true":
			on = true
		case "0", "off", "false":
		default:
			return nil, fmt.Errorf("coil value '%s' must be 1/0, on/off or true/false", arg)
		}
		if on {
			packed[i/8] |= 1 << (i % 8)
		}
	}
	return packed, nil
}
