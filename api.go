package modbus

import (
	"context"
)

// Client per function convenience API over a Master.
type Client interface {
	// Send request to the slave and return its validated response.
	Send(ctx context.Context, req Request) (Message, error)
	// LogMode set enable or disable log output when you has set logger
	LogMode(enable bool)
	// Close the underlying stream
	Close() error

	// Bits

	// ReadCoils reads from 1 to 2000 contiguous status of coils in a
	// remote device and returns coil status.
	ReadCoils(ctx context.Context, slaveID byte, address, quantity uint16) (results []byte, err error)
	// ReadDiscreteInputs reads from 1 to 2000 contiguous status of
	// discrete inputs in a remote device and returns input status.
	ReadDiscreteInputs(ctx context.Context, slaveID byte, address, quantity uint16) (results []byte, err error)

	// WriteSingleCoil write a single output to either ON or OFF in a
	// remote device and returns success or failed.
	WriteSingleCoil(ctx context.Context, slaveID byte, address uint16, isOn bool) error
	// WriteMultipleCoils forces each coil in a sequence of coils to either
	// ON or OFF in a remote device and returns success or failed.
	WriteMultipleCoils(ctx context.Context, slaveID byte, address, quantity uint16, value []byte) error

	// 16-bits

	// ReadInputRegistersBytes reads from 1 to 125 contiguous input registers in
	// a remote device and returns input registers.
	ReadInputRegistersBytes(ctx context.Context, slaveID byte, address, quantity uint16) (results []byte, err error)
	// ReadInputRegisters reads from 1 to 125 contiguous input registers in
	// a remote device and returns input registers.
	ReadInputRegisters(ctx context.Context, slaveID byte, address, quantity uint16) (results []uint16, err error)

	// ReadHoldingRegistersBytes reads the contents of a contiguous block of
	// holding registers in a remote device and returns register value.
	ReadHoldingRegistersBytes(ctx context.Context, slaveID byte, address, quantity uint16) (results []byte, err error)
	// ReadHoldingRegisters reads the contents of a contiguous block of
	// holding registers in a remote device and returns register value.
	ReadHoldingRegisters(ctx context.Context, slaveID byte, address, quantity uint16) (results []uint16, err error)

	// WriteSingleRegister writes a single holding register in a remote
	// device and returns success or failed.
	WriteSingleRegister(ctx context.Context, slaveID byte, address, value uint16) error
	// WriteMultipleRegistersBytes writes a block of contiguous registers
	// (1 to 123 registers) in a remote device and returns success or failed.
	WriteMultipleRegistersBytes(ctx context.Context, slaveID byte, address, quantity uint16, value []byte) error
	// WriteMultipleRegisters writes a block of contiguous registers
	// (1 to 123 registers) in a remote device and returns success or failed.
	WriteMultipleRegisters(ctx context.Context, slaveID byte, address, quantity uint16, value []uint16) error

	// ReadWriteMultipleRegistersBytes performs a combination of one read
	// operation and one write operation. It returns read registers value.
	ReadWriteMultipleRegistersBytes(ctx context.Context, slaveID byte, readAddress, readQuantity,
		writeAddress, writeQuantity uint16, value []byte) (results []byte, err error)
	// ReadWriteMultipleRegisters performs a combination of one read
	// operation and one write operation. It returns read registers value.
	ReadWriteMultipleRegisters(ctx context.Context, slaveID byte, readAddress, readQuantity,
		writeAddress, writeQuantity uint16, value []byte) (results []uint16, err error)

	// MaskWriteRegister modify the contents of a specified holding
	// register using a combination of an AND mask, an OR mask, and the
	// register's current contents. The function returns success or failed.
	MaskWriteRegister(ctx context.Context, slaveID byte, address, andMask, orMask uint16) error

	// Diagnostics

	// ReturnQueryData asks the slave to echo data back, a line loopback test.
	ReturnQueryData(ctx context.Context, slaveID byte, data uint16) error

	// File record

	// ReadFileRecord reads groups of file records and returns the raw
	// sub-responses.
	ReadFileRecord(ctx context.Context, slaveID byte, refs ...FileRecordReference) (results []byte, err error)
}
