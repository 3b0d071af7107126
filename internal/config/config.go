// Package config loads mbcli configuration files. The format follows the
// file extension: .yaml/.yml or .toml.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/goburrow/serial"
	"gopkg.in/yaml.v3"

	modbus "github.com/thinkgos/mbus"
)

// Mode the framing on the wire.
type Mode string

const (
	ModeRTU   Mode = "rtu"
	ModeASCII Mode = "ascii"
	ModeTCP   Mode = "tcp"
)

// LinkConfig where and how to reach the peer. Address is a serial device
// for rtu/ascii and host:port for tcp.
type LinkConfig struct {
	Mode     Mode          `yaml:"mode" toml:"mode"`
	Address  string        `yaml:"address" toml:"address"`
	BaudRate int           `yaml:"baud_rate,omitempty" toml:"baud_rate"`
	DataBits int           `yaml:"data_bits,omitempty" toml:"data_bits"`
	StopBits int           `yaml:"stop_bits,omitempty" toml:"stop_bits"`
	Parity   string        `yaml:"parity,omitempty" toml:"parity"` // "N", "E" or "O"
	Timeout  time.Duration `yaml:"timeout,omitempty" toml:"timeout"`
}

// MasterConfig transaction policy.
type MasterConfig struct {
	Retries                     *int          `yaml:"retries,omitempty" toml:"retries"`
	WaitToRetry                 time.Duration `yaml:"wait_to_retry,omitempty" toml:"wait_to_retry"`
	RetryOnOldResponseThreshold uint16        `yaml:"retry_on_old_response_threshold,omitempty" toml:"retry_on_old_response_threshold"`
	SlaveBusyUsesRetryCount     bool          `yaml:"slave_busy_uses_retry_count,omitempty" toml:"slave_busy_uses_retry_count"`
}

// TableConfig one register table of the slave.
type TableConfig struct {
	Start    uint16 `yaml:"start" toml:"start"`
	Quantity uint16 `yaml:"quantity" toml:"quantity"`
}

// SlaveConfig the served unit and its tables.
type SlaveConfig struct {
	UnitID    uint8       `yaml:"unit_id" toml:"unit_id"`
	Coils     TableConfig `yaml:"coils" toml:"coils"`
	Discretes TableConfig `yaml:"discretes" toml:"discretes"`
	Inputs    TableConfig `yaml:"inputs" toml:"inputs"`
	Holdings  TableConfig `yaml:"holdings" toml:"holdings"`
}

// JobConfig a periodic read for the poll command.
type JobConfig struct {
	SlaveID  uint8         `yaml:"slave_id" toml:"slave_id"`
	Table    string        `yaml:"table" toml:"table"` // coils, discretes, inputs or holdings
	Address  uint16        `yaml:"address" toml:"address"`
	Quantity uint16        `yaml:"quantity" toml:"quantity"`
	ScanRate time.Duration `yaml:"scan_rate" toml:"scan_rate"`
}

// Config mbcli configuration.
type Config struct {
	Link   LinkConfig   `yaml:"link" toml:"link"`
	Master MasterConfig `yaml:"master" toml:"master"`
	Slave  SlaveConfig  `yaml:"slave" toml:"slave"`
	Jobs   []JobConfig  `yaml:"jobs" toml:"jobs"`
	Debug  bool         `yaml:"debug" toml:"debug"`
}

// Default a tcp master for localhost:502 and a slave with 100 entries per table.
func Default() *Config {
	retries := modbus.DefaultRetries
	return &Config{
		Link: LinkConfig{
			Mode:     ModeTCP,
			Address:  "127.0.0.1:502",
			BaudRate: 19200,
			DataBits: 8,
			StopBits: 1,
			Parity:   "E",
			Timeout:  modbus.SerialDefaultTimeout,
		},
		Master: MasterConfig{
			Retries:                     &retries,
			WaitToRetry:                 modbus.DefaultWaitToRetry,
			RetryOnOldResponseThreshold: modbus.DefaultRetryOnOldResponseThreshold,
		},
		Slave: SlaveConfig{
			UnitID:    1,
			Coils:     TableConfig{0, 100},
			Discretes: TableConfig{0, 100},
			Inputs:    TableConfig{0, 100},
			Holdings:  TableConfig{0, 100},
		},
	}
}

// Load reads path over the defaults and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := Default()
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err = yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse YAML: %w", err)
		}
	case ".toml":
		if _, err = toml.Decode(string(data), cfg); err != nil {
			return nil, fmt.Errorf("parse TOML: %w", err)
		}
	default:
		return nil, fmt.Errorf("config file extension '%s' must be .yaml, .yml or .toml", ext)
	}
	if err = Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks ranges the library would reject later.
func Validate(cfg *Config) error {
	switch cfg.Link.Mode {
	case ModeRTU, ModeASCII:
		switch cfg.Link.Parity {
		case "N", "E", "O":
		default:
			return fmt.Errorf("link.parity '%s' must be N, E or O", cfg.Link.Parity)
		}
		if cfg.Link.BaudRate <= 0 {
			return fmt.Errorf("link.baud_rate '%d' must be positive", cfg.Link.BaudRate)
		}
	case ModeTCP:
	default:
		return fmt.Errorf("link.mode '%s' must be rtu, ascii or tcp", cfg.Link.Mode)
	}
	if strings.TrimSpace(cfg.Link.Address) == "" {
		return fmt.Errorf("link.address is required")
	}
	if cfg.Master.Retries != nil && *cfg.Master.Retries < 0 {
		return fmt.Errorf("master.retries '%d' must not be negative", *cfg.Master.Retries)
	}
	if cfg.Slave.UnitID < modbus.AddressMin || cfg.Slave.UnitID > modbus.AddressMax {
		return fmt.Errorf("slave.unit_id '%d' must be between %d and %d",
			cfg.Slave.UnitID, modbus.AddressMin, modbus.AddressMax)
	}
	for name, table := range map[string]TableConfig{
		"coils":     cfg.Slave.Coils,
		"discretes": cfg.Slave.Discretes,
		"inputs":    cfg.Slave.Inputs,
		"holdings":  cfg.Slave.Holdings,
	} {
		if int(table.Start)+int(table.Quantity) > 0x10000 {
			return fmt.Errorf("slave.%s start '%d' quantity '%d' exceed the address space",
				name, table.Start, table.Quantity)
		}
	}
	for i, job := range cfg.Jobs {
		if _, err := TableFuncCode(job.Table); err != nil {
			return fmt.Errorf("jobs[%d]: %w", i, err)
		}
		if job.SlaveID < modbus.AddressMin || job.SlaveID > modbus.AddressMax {
			return fmt.Errorf("jobs[%d]: slave_id '%d' must be between %d and %d",
				i, job.SlaveID, modbus.AddressMin, modbus.AddressMax)
		}
		if job.Quantity == 0 {
			return fmt.Errorf("jobs[%d]: quantity must be positive", i)
		}
		if job.ScanRate <= 0 {
			return fmt.Errorf("jobs[%d]: scan_rate must be positive", i)
		}
	}
	return nil
}

// TableFuncCode the read function code of a table name.
func TableFuncCode(table string) (byte, error) {
	switch table {
	case "coils":
		return modbus.FuncCodeReadCoils, nil
	case "discretes":
		return modbus.FuncCodeReadDiscreteInputs, nil
	case "inputs":
		return modbus.FuncCodeReadInputRegisters, nil
	case "holdings":
		return modbus.FuncCodeReadHoldingRegisters, nil
	}
	return 0, fmt.Errorf("table '%s' must be coils, discretes, inputs or holdings", table)
}

// SerialConfig the serial line settings of the link.
func (sf *Config) SerialConfig() serial.Config {
	return serial.Config{
		Address:  sf.Link.Address,
		BaudRate: sf.Link.BaudRate,
		DataBits: sf.Link.DataBits,
		StopBits: sf.Link.StopBits,
		Parity:   sf.Link.Parity,
		Timeout:  sf.Link.Timeout,
	}
}

// Options master and slave options from the configuration.
func (sf *Config) Options() []modbus.Option {
	opts := []modbus.Option{
		modbus.WithWaitToRetry(sf.Master.WaitToRetry),
		modbus.WithRetryOnOldResponseThreshold(sf.Master.RetryOnOldResponseThreshold),
		modbus.WithSlaveBusyUsesRetryCount(sf.Master.SlaveBusyUsesRetryCount),
	}
	if sf.Debug {
		opts = append(opts, modbus.WithEnableLogger())
	}
	if sf.Master.Retries != nil {
		opts = append(opts, modbus.WithRetries(*sf.Master.Retries))
	}
	if sf.Link.Mode == ModeTCP && sf.Link.Timeout > 0 {
		opts = append(opts, modbus.WithReadTimeout(sf.Link.Timeout))
	}
	return opts
}

// NodeRegister an empty data store shaped like the slave tables.
func (sf *Config) NodeRegister() *modbus.NodeRegister {
	s := sf.Slave
	return modbus.NewNodeRegister(
		s.Coils.Start, s.Coils.Quantity,
		s.Discretes.Start, s.Discretes.Quantity,
		s.Inputs.Start, s.Inputs.Quantity,
		s.Holdings.Start, s.Holdings.Quantity)
}
